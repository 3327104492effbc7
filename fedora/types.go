// Package fedora holds the in-memory model of a repository object as it is
// composed during a deposit, the FOXML serializer for it, and the HTTP
// client facade for the repository's access and management services.
//
// An Object is built field by field by a content handler, serialized once,
// and ingested. It is never mutated after ingest; updates build a fresh
// Object keyed by the same identifier.
package fedora

import (
	"errors"
	"time"
)

// PropertyKind separates repository-reserved properties from
// client-supplied ones. External properties are carried through the ingest
// document under their own name but mean nothing to the repository.
type PropertyKind int

const (
	Internal PropertyKind = iota
	External
)

// A Property is one name/value pair in the object's property list.
type Property struct {
	Name  string
	Value string
	Kind  PropertyKind
}

// Reserved property names.
const (
	PropResourceType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	PropState        = "info:fedora/fedora-system:def/model#state"
	PropLabel        = "info:fedora/fedora-system:def/model#label"
	PropOwner        = "info:fedora/fedora-system:def/model#ownerId"
	PropCreated      = "info:fedora/fedora-system:def/model#createdDate"
	PropModified     = "info:fedora/fedora-system:def/view#lastModifiedDate"
	PropSlug         = "org.purl.sword.slug"
)

// DublinCore is the object's descriptive metadata block. Each field is a
// sequence; order is preserved and duplicates are allowed.
type DublinCore struct {
	Title       []string
	Creator     []string
	Subject     []string
	Description []string
	Rights      []string
	Identifier  []string
	Format      []string
}

// State is a datastream or object lifecycle state.
type State string

const (
	StateActive   State = "A"
	StateInactive State = "I"
	StateDeleted  State = "D"
)

// ControlGroup says how the repository stores a datastream's content.
type ControlGroup string

const (
	Managed    ControlGroup = "M" // content copied into the repository
	ExternalCG ControlGroup = "E" // content stays at an external URL
	InlineXML  ControlGroup = "X" // content embedded in the object XML
	Redirect   ControlGroup = "R" // repository redirects to the URL
)

// DatastreamInfo carries the attributes common to every datastream
// variant. Checksums are disabled unless a digest is set explicitly.
type DatastreamInfo struct {
	ID           string
	State        State
	ControlGroup ControlGroup
	MimeType     string
	Label        string
	Created      string // repository timestamp format, may be empty
	Versionable  bool
	DigestType   string
	Digest       string
}

// A Datastream is one named, typed content unit attached to an object.
// The three variants are Inline (XML embedded in the ingest document),
// Local (content staged on local disk, uploaded before ingest), and
// Reference (content addressed by an external URL).
type Datastream interface {
	Info() *DatastreamInfo
}

func newInfo(id, mime string) DatastreamInfo {
	return DatastreamInfo{
		ID:           id,
		State:        StateActive,
		ControlGroup: Managed,
		MimeType:     mime,
		Versionable:  true,
		DigestType:   "DISABLED",
		Digest:       "none",
	}
}

// Inline is a datastream whose XML content is embedded in the ingest
// document.
type Inline struct {
	DatastreamInfo
	Body []byte // an XML fragment
}

// NewInline returns an inline datastream holding the given XML fragment.
func NewInline(id, mime, label string, body []byte) *Inline {
	ds := &Inline{DatastreamInfo: newInfo(id, mime), Body: body}
	ds.ControlGroup = InlineXML
	ds.Label = label
	return ds
}

func (d *Inline) Info() *DatastreamInfo { return &d.DatastreamInfo }

// Local is a datastream whose content sits in a staged local file. The
// staged content must be uploaded to the repository before the object can
// be serialized.
type Local struct {
	DatastreamInfo
	Staged *StagedFile
}

// NewLocal returns a managed datastream backed by the file at path. The
// file is deleted after upload unless keep is true.
func NewLocal(id, mime, path string, keep bool) *Local {
	ds := &Local{DatastreamInfo: newInfo(id, mime), Staged: NewStagedFile(path, keep)}
	ds.Label = "SWORD deposit upload"
	return ds
}

func (d *Local) Info() *DatastreamInfo { return &d.DatastreamInfo }

// Reference is a datastream whose content lives at an externally
// reachable URL.
type Reference struct {
	DatastreamInfo
	URL string
}

// NewReference returns an externally-stored datastream pointing at url.
func NewReference(id, mime, label, url string) *Reference {
	ds := &Reference{DatastreamInfo: newInfo(id, mime), URL: url}
	ds.ControlGroup = ExternalCG
	ds.Label = label
	return ds
}

func (d *Reference) Info() *DatastreamInfo { return &d.DatastreamInfo }

// A Binding ties a disseminator parameter to one of the object's
// datastreams.
type Binding struct {
	Key        string
	Datastream string
}

// A Disseminator declares a behavior mechanism over a set of datastreams.
// Only legacy repositories accept them; newer versions express the same
// through content models.
type Disseminator struct {
	ID        string
	BDef      string
	Mechanism string
	Bindings  []Binding
}

// An Object is the in-memory representation of a repository object before
// ingest.
type Object struct {
	PID           string
	Properties    []Property
	DC            *DublinCore
	Rels          *Relationship
	Datastreams   []Datastream
	Disseminators []Disseminator
}

var errIncomplete = errors.New("object is missing identifier, metadata, or relationships")

// Valid reports whether the object is complete enough to serialize.
func (o *Object) Valid() error {
	if o.PID == "" || o.DC == nil || o.Rels == nil {
		return errIncomplete
	}
	return nil
}

// Date formats a time the way the repository's timestamp properties want.
func Date(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
