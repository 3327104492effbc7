package handler

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ndlib/fedsword/fedora"
	"github.com/ndlib/fedsword/sword"
)

const objectLabel = "Object created via the SWORD deposit service"

// Steps is the shared deposit pipeline. Every handler embeds one and
// overrides only the steps where its content type differs; a nil step
// falls back to the Default* function of the same name.
//
// The Ingest driver runs the steps in a fixed order: properties, metadata,
// relationships, datastreams, identifier dedup, disseminators, then mint
// and ingest. When the deposit is flagged no-op everything up to and
// including dedup still runs, so the content is fully validated, but the
// backend is never written to and no identifier is minted.
type Steps struct {
	Properties    func(cx *Context) []fedora.Property
	Metadata      func(cx *Context) *fedora.DublinCore
	Relationships func(cx *Context) *fedora.Relationship
	Datastreams   func(cx *Context) ([]fedora.Datastream, error)
	Disseminators func(cx *Context, dss []fedora.Datastream) []fedora.Disseminator
	LinkName      func(cx *Context) string
}

// Ingest builds a new object from the deposit and ingests it.
func (s *Steps) Ingest(cx *Context) (*sword.Entry, error) {
	obj := &fedora.Object{
		Properties: s.properties(cx),
		DC:         s.metadata(cx),
		Rels:       s.relationships(cx),
	}
	if obj.Rels.MemberOf() == "" {
		obj.Rels.AddMembership(cx.Collection)
	}
	dss, err := s.datastreams(cx)
	if err != nil {
		return nil, err
	}
	DedupIdentifiers(dss)
	obj.Datastreams = dss
	obj.Disseminators = s.disseminators(cx, dss)

	if !cx.Deposit.NoOp {
		pid, err := cx.Repo.MintPID()
		if err != nil {
			return nil, err
		}
		obj.PID = pid
		if err := cx.Repo.Ingest(obj); err != nil {
			return nil, err
		}
	}
	return s.entry(cx, obj), nil
}

// Update rebuilds the metadata, relationship, and content datastreams of
// an existing object from the deposit. Properties and disseminators are
// left alone; the repository does not allow replacing those in place.
func (s *Steps) Update(cx *Context, pid string) (*sword.Entry, error) {
	obj := &fedora.Object{
		PID:  pid,
		DC:   s.metadata(cx),
		Rels: s.relationships(cx),
	}
	if obj.Rels.MemberOf() == "" {
		obj.Rels.AddMembership(cx.Collection)
	}
	obj.Rels.PID = pid
	dss, err := s.datastreams(cx)
	if err != nil {
		return nil, err
	}
	DedupIdentifiers(dss)
	obj.Datastreams = dss

	if !cx.Deposit.NoOp {
		dcBody, err := obj.DC.Encode()
		if err != nil {
			return nil, errors.Wrap(err, "serialize descriptive metadata")
		}
		relBody, err := obj.Rels.Encode(cx.Repo.Profile().SuppressModels)
		if err != nil {
			return nil, errors.Wrap(err, "serialize relationships")
		}
		writes := append([]fedora.Datastream{
			fedora.NewInline("DC", "text/xml", "Dublin Core Record", dcBody),
			fedora.NewInline("RELS-EXT", "application/rdf+xml", "Relationships to other objects", relBody),
		}, dss...)
		message := "updated via the SWORD deposit service by " + cx.Deposit.Depositor()
		for _, ds := range writes {
			exists, err := cx.Repo.HasDatastream(pid, ds.Info().ID)
			if err != nil {
				return nil, err
			}
			if exists {
				err = cx.Repo.ModifyDatastream(pid, ds, message)
			} else {
				err = cx.Repo.AddDatastream(pid, ds, message)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return s.entry(cx, obj), nil
}

func (s *Steps) properties(cx *Context) []fedora.Property {
	if s.Properties != nil {
		return s.Properties(cx)
	}
	return DefaultProperties(cx)
}

func (s *Steps) metadata(cx *Context) *fedora.DublinCore {
	if s.Metadata != nil {
		return s.Metadata(cx)
	}
	return DefaultMetadata(cx)
}

func (s *Steps) relationships(cx *Context) *fedora.Relationship {
	if s.Relationships != nil {
		return s.Relationships(cx)
	}
	return DefaultRelationships(cx)
}

func (s *Steps) datastreams(cx *Context) ([]fedora.Datastream, error) {
	if s.Datastreams != nil {
		return s.Datastreams(cx)
	}
	return DefaultDatastreams(cx)
}

func (s *Steps) disseminators(cx *Context, dss []fedora.Datastream) []fedora.Disseminator {
	if s.Disseminators != nil {
		return s.Disseminators(cx, dss)
	}
	return nil
}

func (s *Steps) linkName(cx *Context) string {
	if s.LinkName != nil {
		return s.LinkName(cx)
	}
	return ValidName(uploadName(cx))
}

// DefaultProperties fills the object's property list from the request:
// resource type, lifecycle state, a standard label, the depositor as
// owner, timestamps, and the client's suggested identifier as an external
// property when one was sent.
func DefaultProperties(cx *Context) []fedora.Property {
	now := fedora.Date(time.Now())
	props := []fedora.Property{
		{Name: fedora.PropResourceType, Value: "FedoraObject"},
		{Name: fedora.PropState, Value: "Active"},
		{Name: fedora.PropLabel, Value: objectLabel},
		{Name: fedora.PropOwner, Value: cx.Deposit.Depositor()},
		{Name: fedora.PropCreated, Value: now},
		{Name: fedora.PropModified, Value: now},
	}
	if cx.Deposit.Slug != "" {
		props = append(props, fedora.Property{
			Name:  fedora.PropSlug,
			Value: cx.Deposit.Slug,
			Kind:  fedora.External,
		})
	}
	return props
}

// DefaultMetadata guesses a descriptive record from the request headers.
func DefaultMetadata(cx *Context) *fedora.DublinCore {
	d := cx.Deposit
	dc := &fedora.DublinCore{
		Creator: []string{d.Depositor()},
		Format:  []string{mediaType(d.ContentType)},
	}
	if d.Filename != "" {
		dc.Title = []string{d.Filename}
	} else {
		dc.Title = []string{"SWORD deposit"}
	}
	if d.Slug != "" {
		dc.Identifier = []string{d.Slug}
	}
	return dc
}

// DefaultRelationships returns a block holding only the membership triple
// for the target collection.
func DefaultRelationships(cx *Context) *fedora.Relationship {
	r := fedora.NewRelationship()
	r.AddMembership(cx.Collection)
	return r
}

// DefaultDatastreams stages the deposit body as a single managed
// datastream.
func DefaultDatastreams(cx *Context) ([]fedora.Datastream, error) {
	path, err := saveContent(cx)
	if err != nil {
		return nil, err
	}
	ds := fedora.NewLocal(uploadName(cx), mediaType(cx.Deposit.ContentType), path, false)
	if cx.Deposit.Filename != "" {
		ds.Label = cx.Deposit.Filename
	}
	return []fedora.Datastream{ds}, nil
}

// ValidName coerces a name into a usable datastream identifier: names not
// starting with a letter or underscore get an "Uploaded-" prefix, and
// everything from the first dot on is dropped.
func ValidName(name string) string {
	if name == "" {
		name = "Upload"
	}
	c := name[0]
	if c != '_' && !(c >= 'A' && c <= 'Z') && !(c >= 'a' && c <= 'z') {
		name = "Uploaded-" + name
	}
	if i := strings.Index(name, "."); i > 0 {
		name = name[:i]
	}
	return name
}

// DedupIdentifiers rewrites each datastream's identifier through ValidName
// and resolves collisions deterministically: the first occurrence keeps
// the bare name, the nth gets a "-n" suffix. Two datastreams both named
// "X" come out as "X" and "X-2". A suffixed name that is already taken
// keeps counting up until a free one is found.
func DedupIdentifiers(dss []fedora.Datastream) {
	used := make(map[string]bool)
	count := make(map[string]int)
	for _, ds := range dss {
		info := ds.Info()
		base := ValidName(info.ID)
		count[base]++
		name := base
		if n := count[base]; n > 1 {
			name = fmt.Sprintf("%s-%d", base, n)
		}
		for used[name] {
			count[base]++
			name = fmt.Sprintf("%s-%d", base, count[base])
		}
		used[name] = true
		info.ID = name
	}
}

// uploadName is the raw name for the deposit body's datastream, before
// identifier normalization.
func uploadName(cx *Context) string {
	if cx.Deposit.Filename != "" {
		return cx.Deposit.Filename
	}
	return "Upload"
}

// saveContent copies the deposit body into the request's scratch
// directory and returns the file's path.
func saveContent(cx *Context) (string, error) {
	f, err := ioutil.TempFile(cx.TempDir, "deposit-")
	if err != nil {
		return "", errors.Wrap(err, "stage deposit content")
	}
	_, cpErr := io.Copy(f, cx.Deposit.Content)
	clErr := f.Close()
	if cpErr == nil {
		cpErr = clErr
	}
	if cpErr != nil {
		os.Remove(f.Name())
		// a digest mismatch surfaces here as a read error; keep its
		// classification
		if errors.Cause(cpErr) == sword.ErrContentNotAccepted {
			return "", cpErr
		}
		return "", errors.Wrap(sword.ErrBadRequest, cpErr.Error())
	}
	return f.Name(), nil
}

// entry assembles the response document for a finished (or no-op) deposit.
// A no-op object has no identifier, so the content and edit links are
// omitted for it.
func (s *Steps) entry(cx *Context, obj *fedora.Object) *sword.Entry {
	d := cx.Deposit
	e := sword.NewEntry()
	now := sword.AtomDate(time.Now())

	e.Title = strings.Join(obj.DC.Title, "; ")
	e.Authors = []sword.Author{{Name: d.Username}}
	if d.OnBehalfOf != "" {
		e.Contributors = []sword.Contributor{{Name: d.OnBehalfOf}}
	}
	e.Rights = strings.Join(obj.DC.Rights, " ")
	e.Summary = strings.Join(obj.DC.Description, " ")
	e.Categories = obj.DC.Subject
	e.Published = now
	e.Updated = now
	e.Treatment = cx.Treatment
	if e.Treatment == "" {
		e.Treatment = "Stored in the repository as a new object"
	}
	e.Packaging = d.Packaging
	e.NoOp = d.NoOp
	e.UserAgent = d.UserAgent
	e.Generator = &sword.Generator{URI: cx.ServiceURI, Version: "1.3"}

	if obj.PID != "" {
		e.ID = cx.Repo.ObjectURL(obj.PID)
		media := cx.Repo.DatastreamURL(obj.PID, s.linkName(cx))
		e.Content = &sword.Content{Type: mediaType(d.ContentType), Source: media}
		e.AddLink("edit-media", media)
		if cx.EditBase != "" {
			e.AddLink("edit", strings.TrimSuffix(cx.EditBase, "/")+"/"+obj.PID)
		} else {
			e.AddLink("edit", cx.Repo.ObjectURL(obj.PID))
		}
	}

	if d.Verbose {
		var b strings.Builder
		if d.NoOp {
			b.WriteString("No-op deposit: the content was accepted but nothing was written to the repository.")
		} else {
			fmt.Fprintf(&b, "Object %s was created in collection %s.", obj.PID, cx.Collection)
		}
		for _, ds := range obj.Datastreams {
			info := ds.Info()
			fmt.Fprintf(&b, "\nDatastream %s (%s)", info.ID, info.MimeType)
		}
		e.VerboseDesc = b.String()
	}
	return e
}
