package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// Authenticator resolves the authenticated user identity for a request.
// It returns ok == false when the request carries no valid credentials,
// which every handler below turns into a 401 before doing anything else.
// A concrete implementation lives in internal/auth.
type Authenticator func(r *http.Request) (user string, ok bool)

// EngineOption configures optional UploadEngine behavior.
type EngineOption func(*UploadEngine)

// WithMetrics attaches a Metrics sink. The default is a no-op sink.
func WithMetrics(m Metrics) EngineOption {
	return func(e *UploadEngine) { e.metrics = m }
}

// WithLogger overrides the engine's base logger. The default is
// slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *UploadEngine) { e.logger = l }
}

// UploadEngine ties the content-range arithmetic, metadata extraction,
// session binding and storage capability together into the protocol
// handlers: PreRequest and ChunkOrStatus.
type UploadEngine struct {
	cfg          Config
	sessions     SessionStore
	storage      StorageService
	authenticate Authenticator
	metrics      Metrics
	notifier     Notifier
	logger       *slog.Logger
}

// NewUploadEngine validates cfg and wires sessions/storage/authenticate
// into a ready-to-use UploadEngine.
func NewUploadEngine(cfg Config, sessions SessionStore, storage StorageService, authenticate Authenticator, opts ...EngineOption) (*UploadEngine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	e := &UploadEngine{
		cfg:          cfg,
		sessions:     sessions,
		storage:      storage,
		authenticate: authenticate,
		metrics:      noopMetrics{},
		notifier:     noopNotifier{},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// PreRequest handles the POST that announces a new upload. isAttachment
// selects between the measurement and attachment shape of metadata
// extraction.
func (e *UploadEngine) PreRequest(w http.ResponseWriter, r *http.Request, isAttachment bool) {
	ctx := e.newContext(w, r)
	e.metrics.RequestReceived("pre-request")

	if _, ok := e.authenticate(r); !ok {
		e.fail(ctx, ErrUnauthenticated)
		return
	}

	announced, err := checkBodySize(r.Header.Get("x-upload-content-length"), e.cfg.MaxUploadSize)
	if err != nil {
		e.fail(ctx, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, e.cfg.MaxUploadSize+1))
	if err != nil {
		e.fail(ctx, fmt.Errorf("upload: reading pre-request body: %w", err))
		return
	}

	uploadable, err := FromJSON(body, isAttachment)
	if err != nil {
		e.fail(ctx, err)
		return
	}
	ctx.log = ctx.log.With("deviceId", uploadable.Identifier.DeviceID, "measurementId", uploadable.Identifier.MeasurementID)

	if err := e.checkConflict(ctx, uploadable.Identifier); err != nil {
		e.fail(ctx, err)
		return
	}

	sessionID, err := e.sessions.NewSession(Session{
		Uploadable: uploadable,
		Total:      announced,
	})
	if err != nil {
		e.fail(ctx, fmt.Errorf("upload: binding session: %w", err))
		return
	}
	ctx.log = ctx.log.With("sessionId", sessionID)

	e.metrics.UploadCreated()
	ctx.log.Info("upload bound")

	HTTPResponse{
		StatusCode: http.StatusOK,
		Header: HTTPHeader{
			"Location": buildLocation(r, e.cfg.BasePath, sessionID),
		},
	}.writeTo(w)
}

// checkConflict enforces I4 and I5 against durable storage before a
// session is bound.
func (e *UploadEngine) checkConflict(ctx context.Context, id Identifier) error {
	if id.IsAttachment() {
		parent := Identifier{DeviceID: id.DeviceID, MeasurementID: id.MeasurementID}
		parentExists, err := e.storage.IsStored(ctx, parent)
		if err != nil {
			return fmt.Errorf("upload: checking parent measurement: %w", err)
		}
		if !parentExists {
			return ErrAttachmentWithoutParent
		}
	}

	exists, err := e.storage.IsStored(ctx, id)
	if err != nil {
		return fmt.Errorf("upload: checking existing upload: %w", err)
	}
	if exists {
		return ErrConflict
	}
	return nil
}

// checkBodySize validates the announced size header used by the
// pre-request: missing or non-integer values are Unparsable, a value
// over the configured ceiling is PayloadTooLarge.
func checkBodySize(raw string, limit int64) (int64, error) {
	if raw == "" {
		return 0, ErrUnparsable
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, ErrUnparsable
	}
	if n > limit {
		return 0, ErrPayloadTooLarge
	}
	return n, nil
}

// ChunkOrStatus handles the PUT against a bound session: an empty body
// is a status query, anything else is a chunk carrying bytes to append.
func (e *UploadEngine) ChunkOrStatus(w http.ResponseWriter, r *http.Request, sessionID string) {
	ctx := e.newContext(w, r)
	ctx.log = ctx.log.With("sessionId", sessionID)

	user, ok := e.authenticate(r)
	if !ok {
		e.fail(ctx, ErrUnauthenticated)
		return
	}

	crHeader := r.Header.Get("Content-Range")

	if r.ContentLength == 0 {
		e.metrics.RequestReceived("status")
		e.handleStatus(ctx, sessionID, crHeader)
		return
	}

	e.metrics.RequestReceived("chunk")
	e.handleChunk(ctx, user, sessionID, crHeader)
}

func (e *UploadEngine) handleStatus(ctx *requestContext, sessionID, crHeader string) {
	if _, err := parseStatusContentRange(crHeader); err != nil {
		e.fail(ctx, err)
		return
	}

	isAttachment := ctx.req.Header.Get(fieldAttachmentID) != ""
	id, err := IdentifierFromHeaders(ctx.req.Header, isAttachment)
	if err != nil {
		e.fail(ctx, err)
		return
	}

	stored, err := e.storage.IsStored(ctx, id)
	if err != nil {
		e.fail(ctx, fmt.Errorf("upload: checking storage: %w", err))
		return
	}
	if stored {
		HTTPResponse{StatusCode: http.StatusOK}.writeTo(ctx.res)
		return
	}

	sess, err := e.sessions.Get(sessionID)
	if err != nil || sess.UploadPath == "" {
		resumeIncomplete(0).writeTo(ctx.res)
		return
	}

	n, err := e.storage.BytesUploaded(ctx, sess.UploadPath)
	if err != nil {
		sess.UploadPath = ""
		_ = e.sessions.Put(sessionID, sess)
		resumeIncomplete(0).writeTo(ctx.res)
		return
	}

	resumeIncomplete(n).writeTo(ctx.res)
}

// resumeIncomplete builds the 308 response used both by the status
// handler and by an incomplete chunk. n <= 0 means no bytes are known to
// be held yet, which omits the Range header entirely.
func resumeIncomplete(n int64) HTTPResponse {
	header := HTTPHeader{}
	if n > 0 {
		header["Range"] = fmt.Sprintf("bytes=0-%d", n-1)
	}
	return HTTPResponse{StatusCode: http.StatusPermanentRedirect, Header: header}
}

func (e *UploadEngine) handleChunk(ctx *requestContext, user, sessionID, crHeader string) {
	sess, sessErr := e.sessions.Get(sessionID)

	if ctx.req.ContentLength > e.cfg.MaxUploadSize {
		uploadPath := ""
		if sessErr == nil {
			uploadPath = sess.UploadPath
		}
		e.failPayloadTooLarge(ctx, sessionID, uploadPath)
		return
	}

	isAttachment := ctx.req.Header.Get(fieldAttachmentID) != ""
	uploadable, err := FromHeaders(ctx.req.Header, isAttachment)
	if err != nil {
		if isSkipUpload(err) {
			e.failDestroySession(ctx, sessionID, err)
			return
		}
		e.fail(ctx, err)
		return
	}

	if sessErr != nil {
		e.fail(ctx, ErrSessionExpired)
		return
	}
	if !sameIdentifier(sess.Uploadable.Identifier, uploadable.Identifier) {
		e.fail(ctx, ErrIllegalSession)
		return
	}

	cr, err := parseContentRange(crHeader)
	if err != nil {
		e.fail(ctx, err)
		return
	}
	if ctx.req.ContentLength >= 0 && cr.Size() != ctx.req.ContentLength {
		e.fail(ctx, ErrUnparsable)
		return
	}

	up := sess.UploadPath

	switch {
	case up == "" && cr.From != 0:
		e.fail(ctx, ErrUnexpectedContentRange)
		return
	case up != "" && cr.From == 0:
		e.fail(ctx, ErrUnexpectedContentRange)
		return
	case up == "":
		up = uuid.NewString()
		e.metrics.UploadCreated()
	default:
		n, err := e.storage.BytesUploaded(ctx, up)
		switch {
		case err != nil:
			// Orphan recovery: the handle refers to vanished data; accept
			// this chunk as the first one of a new upload. The new staging
			// file starts empty, so the incoming bytes land at offset 0
			// regardless of where the client thought it was resuming from.
			up = uuid.NewString()
			e.metrics.UploadCreated()
			cr = ContentRange{From: 0, To: cr.Size() - 1, Total: cr.Total}
		case cr.From != n:
			resumeIncomplete(n).writeTo(ctx.res)
			return
		}
	}

	sess.UploadPath = up
	if err := e.sessions.Put(sessionID, sess); err != nil {
		e.fail(ctx, fmt.Errorf("upload: updating session: %w", err))
		return
	}

	status, err := e.storage.Store(ctx, ctx.req.Body, UploadMetaData{
		User:         user,
		Uploadable:   uploadable,
		UploadPath:   up,
		ContentRange: cr,
	})
	if err != nil {
		if isUploadAlreadyExists(err) {
			sess.UploadPath = ""
			_ = e.sessions.Put(sessionID, sess)
			HTTPResponse{StatusCode: http.StatusConflict}.writeTo(ctx.res)
			return
		}
		// Any other runtime failure: 500, keep session and staged bytes
		// intact so the client can retry.
		e.fail(ctx, fmt.Errorf("upload: storing chunk: %w", err))
		return
	}

	e.metrics.BytesReceived(cr.Size())

	if status.State == StateComplete {
		sess.UploadPath = ""
		_ = e.sessions.Put(sessionID, sess)
		e.metrics.UploadFinished()
		go e.notifier.NotifyUploadFinished(context.Background(), user, uploadable.Identifier, status.ByteSize)
		HTTPResponse{StatusCode: http.StatusCreated}.writeTo(ctx.res)
		return
	}

	resumeIncomplete(status.ByteSize).writeTo(ctx.res)
}

func sameIdentifier(a, b Identifier) bool {
	return a.DeviceID == b.DeviceID && a.MeasurementID == b.MeasurementID && a.AttachmentID == b.AttachmentID
}

func isSkipUpload(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code == ErrSkipUpload.Code
}

func isUploadAlreadyExists(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code == ErrUploadAlreadyExists.Code
}

// fail writes the HTTP response for err.
func (e *UploadEngine) fail(ctx *requestContext, err error) {
	e.metrics.ErrorOccurred(errorCode(err))
	ctx.log.Warn("request failed", "error", err)
	toHTTPResponse(err).writeTo(ctx.res)
}

// failPayloadTooLarge is fail plus the chunk handler's cleanup: discard
// any staged bytes and destroy the session.
func (e *UploadEngine) failPayloadTooLarge(ctx *requestContext, sessionID, uploadPath string) {
	if uploadPath != "" {
		_ = e.storage.Clean(ctx, uploadPath)
	}
	_ = e.sessions.Remove(sessionID)
	e.fail(ctx, ErrPayloadTooLarge)
}

// failDestroySession is fail plus destroying the session, used for
// SkipUpload on the chunk path.
func (e *UploadEngine) failDestroySession(ctx *requestContext, sessionID string, err error) {
	_ = e.sessions.Remove(sessionID)
	e.metrics.UploadSkipped()
	e.fail(ctx, err)
}

func errorCode(err error) string {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return "ERR_INTERNAL"
}
