package sword

import (
	"encoding/xml"
	"time"
)

// Namespace identifiers used in the protocol documents.
const (
	AtomNS  = "http://www.w3.org/2005/Atom"
	SwordNS = "http://purl.org/net/sword/"
	AppNS   = "http://www.w3.org/2007/app"
)

// An Entry is the protocol response document describing one deposited
// object. It is marshaled once, returned to the client, and a copy is kept
// in the entry cache for later GETs. The sword:* extension elements carry
// the deposit bookkeeping (treatment, packaging echo, no-op flag).
type Entry struct {
	XMLName    xml.Name `xml:"entry"`
	XMLNS      string   `xml:"xmlns,attr"`
	XMLNSSword string   `xml:"xmlns:sword,attr"`

	ID           string        `xml:"id,omitempty"`
	Title        string        `xml:"title,omitempty"`
	Authors      []Author      `xml:"author"`
	Contributors []Contributor `xml:"contributor"`
	Rights       string        `xml:"rights,omitempty"`
	Summary      string        `xml:"summary,omitempty"`
	Categories   []string      `xml:"category"`
	Content      *Content      `xml:"content"`
	Links        []Link        `xml:"link"`
	Published    string        `xml:"published,omitempty"`
	Updated      string        `xml:"updated,omitempty"`
	Generator    *Generator    `xml:"generator"`

	Treatment   string `xml:"sword:treatment,omitempty"`
	Packaging   string `xml:"sword:packaging,omitempty"`
	NoOp        bool   `xml:"sword:noOp"`
	UserAgent   string `xml:"sword:userAgent,omitempty"`
	VerboseDesc string `xml:"sword:verboseDescription,omitempty"`
}

type Author struct {
	Name string `xml:"name"`
}

type Contributor struct {
	Name string `xml:"name"`
}

type Content struct {
	Type   string `xml:"type,attr,omitempty"`
	Source string `xml:"src,attr,omitempty"`
}

type Link struct {
	Rel      string `xml:"rel,attr"`
	Href     string `xml:"href,attr"`
	HrefLang string `xml:"hreflang,attr,omitempty"`
}

type Generator struct {
	URI     string `xml:"uri,attr,omitempty"`
	Version string `xml:"version,attr,omitempty"`
	Value   string `xml:",chardata"`
}

// NewEntry returns an entry with the namespace declarations set.
func NewEntry() *Entry {
	return &Entry{XMLNS: AtomNS, XMLNSSword: SwordNS}
}

// AddLink appends a link with the given relation and target.
func (e *Entry) AddLink(rel, href string) {
	e.Links = append(e.Links, Link{Rel: rel, Href: href, HrefLang: "en"})
}

// EditLink returns the href of the first link whose relation is "edit", or
// "" if the entry has none. The orchestrator surfaces this as the
// response's Location.
func (e *Entry) EditLink() string {
	for _, l := range e.Links {
		if l.Rel == "edit" {
			return l.Href
		}
	}
	return ""
}

// Encode returns the entry as an XML document with header.
func (e *Entry) Encode() ([]byte, error) {
	body, err := xml.MarshalIndent(e, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

// A DepositResponse is what the orchestrator hands back to the HTTP layer:
// an HTTP-style status, an optional Location (the entry's edit link), and
// the entry document. Delete success and no-op acceptance carry no entry.
type DepositResponse struct {
	Status   int
	Location string
	Entry    *Entry
}

// AtomDate formats a time the way the Atom documents want it.
func AtomDate(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
