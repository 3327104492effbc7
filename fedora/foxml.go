package fedora

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const foxmlNS = "info:fedora/fedora-system:def/foxml#"

// A Profile captures the serialization differences between repository
// major versions. It is computed once per connection from the version
// string the repository reports; everything downstream branches on these
// flags instead of re-parsing version strings.
type Profile struct {
	Version string

	// OmitResourceType drops the resource-type marker property; the
	// legacy major version infers it and rejects an explicit one.
	OmitResourceType bool

	// SuppressModels drops content-model relationship triples; newer
	// versions express content models through a separate mechanism.
	SuppressModels bool

	// Disseminators are only understood by the legacy major version.
	Disseminators bool
}

// ProfileFor computes the Profile for a repository version string such as
// "3.8.1" or "2.2". Versions below 3 are the legacy branch.
func ProfileFor(version string) Profile {
	legacy := true
	if i := strings.IndexAny(version, "."); i > 0 {
		if major, err := strconv.Atoi(version[:i]); err == nil {
			legacy = major < 3
		}
	} else if major, err := strconv.Atoi(version); err == nil {
		legacy = major < 3
	}
	return Profile{
		Version:          version,
		OmitResourceType: legacy,
		SuppressModels:   !legacy,
		Disseminators:    legacy,
	}
}

// Legacy reports whether this profile targets the legacy major version.
func (p Profile) Legacy() bool {
	return p.Disseminators
}

// FormatURI is the ingest-document format identifier to declare to the
// repository.
func (p Profile) FormatURI() string {
	if p.Legacy() {
		return "foxml1.0"
	}
	return "info:fedora/fedora-system:FOXML-1.1"
}

// xml shapes for the ingest document

type xDigitalObject struct {
	XMLName       xml.Name `xml:"foxml:digitalObject"`
	NS            string   `xml:"xmlns:foxml,attr"`
	PID           string   `xml:"PID,attr"`
	Version       string   `xml:"VERSION,attr,omitempty"`
	Properties    xObjectProperties
	Datastreams   []xDatastream
	Disseminators []xDisseminator
}

type xObjectProperties struct {
	XMLName    xml.Name       `xml:"foxml:objectProperties"`
	Properties []xProperty    `xml:"foxml:property"`
	External   []xExtProperty `xml:"foxml:extproperty"`
}

type xProperty struct {
	Name  string `xml:"NAME,attr"`
	Value string `xml:"VALUE,attr"`
}

type xExtProperty struct {
	Name  string `xml:"NAME,attr"`
	Value string `xml:"VALUE,attr"`
}

type xDatastream struct {
	XMLName      xml.Name `xml:"foxml:datastream"`
	ID           string   `xml:"ID,attr"`
	State        State    `xml:"STATE,attr"`
	ControlGroup string   `xml:"CONTROL_GROUP,attr"`
	Versionable  bool     `xml:"VERSIONABLE,attr"`
	Version      xDatastreamVersion
}

type xDatastreamVersion struct {
	XMLName  xml.Name `xml:"foxml:datastreamVersion"`
	ID       string   `xml:"ID,attr"`
	Label    string   `xml:"LABEL,attr,omitempty"`
	Created  string   `xml:"CREATED,attr,omitempty"`
	MimeType string   `xml:"MIMETYPE,attr"`
	Digest   xContentDigest
	XML      *xXMLContent
	Location *xContentLocation
}

type xContentDigest struct {
	XMLName xml.Name `xml:"foxml:contentDigest"`
	Type    string   `xml:"TYPE,attr"`
	Digest  string   `xml:"DIGEST,attr"`
}

type xXMLContent struct {
	XMLName xml.Name `xml:"foxml:xmlContent"`
	Body    []byte   `xml:",innerxml"`
}

type xContentLocation struct {
	XMLName xml.Name `xml:"foxml:contentLocation"`
	Type    string   `xml:"TYPE,attr"`
	Ref     string   `xml:"REF,attr"`
}

type xDisseminator struct {
	XMLName xml.Name `xml:"foxml:disseminator"`
	ID      string   `xml:"ID,attr"`
	BDef    string   `xml:"BDEF_CONTRACT_PID,attr"`
	State   State    `xml:"STATE,attr"`
	Version xDisseminatorVersion
}

type xDisseminatorVersion struct {
	XMLName   xml.Name   `xml:"foxml:disseminatorVersion"`
	ID        string     `xml:"ID,attr"`
	Mechanism string     `xml:"BMECH_SERVICE_PID,attr"`
	Bindings  []xBinding `xml:"foxml:serviceInputMap>foxml:datastreamBinding"`
}

type xBinding struct {
	Key        string `xml:"KEY,attr"`
	Datastream string `xml:"DATASTREAM_ID,attr"`
}

// Serialize converts the object into the repository's native ingest
// document, applying the profile's version branches. Local datastreams
// must already be uploaded; serializing one that is not is an error.
func Serialize(o *Object, p Profile) ([]byte, error) {
	if err := o.Valid(); err != nil {
		return nil, err
	}
	doc := xDigitalObject{NS: foxmlNS, PID: o.PID}
	if !p.Legacy() {
		doc.Version = "1.1"
	}
	for _, prop := range o.Properties {
		if p.OmitResourceType && prop.Name == PropResourceType {
			continue
		}
		if prop.Kind == External {
			doc.Properties.External = append(doc.Properties.External,
				xExtProperty{Name: prop.Name, Value: prop.Value})
			continue
		}
		doc.Properties.Properties = append(doc.Properties.Properties,
			xProperty{Name: prop.Name, Value: prop.Value})
	}

	dcBody, err := o.DC.Encode()
	if err != nil {
		return nil, errors.Wrap(err, "serialize descriptive metadata")
	}
	dc := NewInline("DC", "text/xml", "Dublin Core Record", dcBody)

	o.Rels.PID = o.PID
	relBody, err := o.Rels.Encode(p.SuppressModels)
	if err != nil {
		return nil, errors.Wrap(err, "serialize relationships")
	}
	rels := NewInline("RELS-EXT", "application/rdf+xml", "Relationships to other objects", relBody)

	all := append([]Datastream{dc, rels}, o.Datastreams...)
	for _, ds := range all {
		x, err := datastreamXML(ds)
		if err != nil {
			return nil, err
		}
		doc.Datastreams = append(doc.Datastreams, x)
	}

	if p.Disseminators {
		for _, diss := range o.Disseminators {
			x := xDisseminator{
				ID:    diss.ID,
				BDef:  diss.BDef,
				State: StateActive,
				Version: xDisseminatorVersion{
					ID:        diss.ID + ".0",
					Mechanism: diss.Mechanism,
				},
			}
			for _, b := range diss.Bindings {
				x.Version.Bindings = append(x.Version.Bindings,
					xBinding{Key: b.Key, Datastream: b.Datastream})
			}
			doc.Disseminators = append(doc.Disseminators, x)
		}
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

func datastreamXML(ds Datastream) (xDatastream, error) {
	info := ds.Info()
	x := xDatastream{
		ID:           info.ID,
		State:        info.State,
		ControlGroup: string(info.ControlGroup),
		Versionable:  info.Versionable,
		Version: xDatastreamVersion{
			ID:       info.ID + ".0",
			Label:    info.Label,
			Created:  info.Created,
			MimeType: info.MimeType,
			Digest:   xContentDigest{Type: info.DigestType, Digest: info.Digest},
		},
	}
	switch t := ds.(type) {
	case *Inline:
		x.Version.XML = &xXMLContent{Body: t.Body}
	case *Local:
		url := t.Staged.UploadedURL()
		if url == "" {
			return x, errors.Errorf("datastream %s: staged content was never uploaded", info.ID)
		}
		x.Version.Location = &xContentLocation{Type: "URL", Ref: url}
	case *Reference:
		x.Version.Location = &xContentLocation{Type: "URL", Ref: t.URL}
	default:
		return x, errors.Errorf("datastream %s: unknown variant", info.ID)
	}
	return x, nil
}

type xDC struct {
	XMLName     xml.Name `xml:"oai_dc:dc"`
	NSOAI       string   `xml:"xmlns:oai_dc,attr"`
	NSDC        string   `xml:"xmlns:dc,attr"`
	Title       []string `xml:"dc:title"`
	Creator     []string `xml:"dc:creator"`
	Subject     []string `xml:"dc:subject"`
	Description []string `xml:"dc:description"`
	Rights      []string `xml:"dc:rights"`
	Identifier  []string `xml:"dc:identifier"`
	Format      []string `xml:"dc:format"`
}

// Encode serializes the metadata block as an oai_dc fragment for the DC
// datastream.
func (dc *DublinCore) Encode() ([]byte, error) {
	return xml.MarshalIndent(xDC{
		NSOAI:       "http://www.openarchives.org/OAI/2.0/oai_dc/",
		NSDC:        "http://purl.org/dc/elements/1.1/",
		Title:       dc.Title,
		Creator:     dc.Creator,
		Subject:     dc.Subject,
		Description: dc.Description,
		Rights:      dc.Rights,
		Identifier:  dc.Identifier,
		Format:      dc.Format,
	}, "", "  ")
}
