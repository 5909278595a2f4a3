package upload

import (
	"context"
	"io"
)

// UploadState classifies how much of an uploadable's data the server
// durably holds after a store call.
type UploadState int

const (
	// StateIncomplete means bytes were appended but the announced total
	// has not yet been reached.
	StateIncomplete UploadState = iota
	// StateComplete means the uploadable is fully stored and finalized
	// as a durable object.
	StateComplete
)

// Status is what Store reports back about a session's upload.
type Status struct {
	UploadPath string
	State      UploadState
	ByteSize   int64
}

// UploadMetaData is everything store needs to durably persist a finished
// upload: who uploaded it, what it announced about itself, the
// Content-Range of the chunk being appended, and where the bytes staged
// under the session's upload path live.
type UploadMetaData struct {
	User         string
	Uploadable   Uploadable
	UploadPath   string
	ContentRange ContentRange
}

// StorageService is the durable backing store for completed uploads and
// the staging area for in-progress ones. Implementations may be a local
// filesystem directory (see internal/localstore) or an object-storage
// adapter; the engine only ever sees this interface.
//
// Store may fail with ErrUploadAlreadyExists when finalization races
// with a concurrent completion of the same identifiers; the chunk handler
// answers that with 409, which the client treats as success.
type StorageService interface {
	// IsStored reports whether the uploadable named by id already has a
	// finished, durable object on record. Used at pre-request and status
	// time to detect conflicts with already-completed work.
	IsStored(ctx context.Context, id Identifier) (bool, error)

	// BytesUploaded reports how many bytes are currently staged under
	// uploadPath. It fails if the handle is unknown, which the caller
	// interprets as "the staged data vanished" (orphan recovery).
	BytesUploaded(ctx context.Context, uploadPath string) (int64, error)

	// Store consumes r (exactly meta.ContentRange.Size() bytes), appends
	// it to the blob staged at meta.UploadPath, and returns the
	// resulting Status. A State of StateComplete means the object has
	// reached its announced total and has been finalized durably under
	// meta.Uploadable.Identifier; the caller must then treat uploadPath
	// as consumed.
	Store(ctx context.Context, r io.Reader, meta UploadMetaData) (Status, error)

	// Clean discards any staged bytes at uploadPath and releases the
	// handle. The engine calls it when a chunk exceeds the configured
	// size limit; a successful finalization consumes the staged bytes
	// without it.
	Clean(ctx context.Context, uploadPath string) error
}
