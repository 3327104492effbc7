// Package sword holds the protocol-level value objects for the deposit
// service: the request types built by the HTTP layer, the Atom entry
// documents returned to clients, and the error taxonomy shared by the
// handlers and the orchestrator.
package sword

import "io"

// A Deposit is one create-or-update request. The HTTP layer fills in every
// field from the request headers and body; nothing here reaches back into
// net/http.
type Deposit struct {
	Username   string
	Password   string
	OnBehalfOf string // empty means act as Username

	// Location is the target of the request as presented by the client.
	// For a create the last path segment names the collection; for an
	// update the last two segments name the collection and the object.
	Location string

	NoOp    bool // validate only, do not write to the repository
	Verbose bool

	Content       io.Reader
	ContentType   string
	Packaging     string // packaging format identifier, may be empty
	Slug          string
	ContentLength int64
	Filename      string // from Content-Disposition, may be empty
	UserAgent     string
}

// Depositor returns the user the deposit should be attributed to: the
// mediated user when one was named, otherwise the authenticated user.
func (d *Deposit) Depositor() string {
	if d.OnBehalfOf != "" {
		return d.OnBehalfOf
	}
	return d.Username
}

// A DeleteRequest asks for an object's state to be set to Deleted. The
// object is named by the last two path segments of Location, as with an
// update.
type DeleteRequest struct {
	Username   string
	Password   string
	OnBehalfOf string
	Location   string
	NoOp       bool
	UserAgent  string
}

// Actor returns the user the delete is performed on behalf of.
func (d *DeleteRequest) Actor() string {
	if d.OnBehalfOf != "" {
		return d.OnBehalfOf
	}
	return d.Username
}
