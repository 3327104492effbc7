package sword

import "errors"

// The error taxonomy for the deposit pipeline. Handlers and the fedora
// client wrap these with context (pkg/errors); the orchestrator is the one
// place that maps them to protocol responses, using errors.Cause to get
// back to the sentinel.
var (
	// ErrCredentials means the request's credentials are missing or were
	// rejected by the repository. Recoverable: the HTTP layer answers
	// with a credentials challenge.
	ErrCredentials = errors.New("authentication failed")

	// ErrForbidden means the acting user has no deposit permission on the
	// target collection.
	ErrForbidden = errors.New("user may not deposit to collection")

	// ErrContentNotAccepted means the collection's policy rejects the
	// request's content type or packaging format.
	ErrContentNotAccepted = errors.New("content not accepted by collection")

	// ErrNoHandler means no registered content handler accepts the
	// content type and packaging. Distinct from ErrContentNotAccepted:
	// this is a server capability gap, not a policy decision.
	ErrNoHandler = errors.New("no content handler for deposit")

	// ErrNotFound means the target identifier does not resolve to an
	// object.
	ErrNotFound = errors.New("object not found")

	// ErrBadRequest means the client sent something unparseable, such as
	// an unrecognized boolean header value.
	ErrBadRequest = errors.New("malformed request")

	// ErrBackendUnavailable is a transport, timeout, or backend
	// authentication fault. Possibly transient, but no retries happen
	// inside this pipeline.
	ErrBackendUnavailable = errors.New("repository unavailable")

	// ErrBackendRejected means the repository refused a call it was able
	// to read, for example a malformed ingest document.
	ErrBackendRejected = errors.New("repository rejected request")
)
