package upload

import "time"

// Session is the server-side state bound to one in-progress upload. It is
// created by PreRequest and consulted and updated by every following
// Chunk/Status request that carries its session id.
type Session struct {
	ID         string
	Uploadable Uploadable
	Total      int64
	UploadPath string
	CreatedAt  time.Time
}

// SessionStore binds session ids to Session values for the lifetime of an
// upload. Implementations may keep sessions in memory (a single server
// process) or in a shared store such as Redis (a fleet of servers behind
// a load balancer, where a chunk request can land on a different process
// than the one that handled the pre-request).
//
// Every method is safe for concurrent use; a store is shared by all
// requests currently in flight. It is the caller's responsibility to
// serialize operations against a single session id: the store does not
// itself linearize concurrent writes to the same id.
type SessionStore interface {
	// NewSession reserves a fresh session id and stores sess under it.
	// The returned id is what the Location header for the pre-request
	// response is built from.
	NewSession(sess Session) (string, error)

	// Get retrieves the session for id. It returns ErrSessionExpired if
	// no such session exists, which covers an unknown id, one that timed
	// out, and one removed after a fatal error.
	Get(id string) (Session, error)

	// Put overwrites the session stored under id, e.g. after its
	// UploadPath has been bound to a fresh upload or cleared.
	Put(id string, sess Session) error

	// Remove discards the session for id. It is called when an upload
	// fails fatally (skipped or too large); a completed upload only has
	// its UploadPath cleared via Put, and the session stays.
	Remove(id string) error
}
