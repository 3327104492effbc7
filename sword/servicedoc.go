package sword

import "encoding/xml"

// A ServiceDocument describes the collections a user may deposit to. It is
// generated from the server's collection policy; clients read it to learn
// the accepted content types and packaging formats before depositing.
type ServiceDocument struct {
	XMLName    xml.Name `xml:"service"`
	XMLNS      string   `xml:"xmlns,attr"`
	XMLNSAtom  string   `xml:"xmlns:atom,attr"`
	XMLNSSword string   `xml:"xmlns:sword,attr"`

	Version    string      `xml:"sword:version"`
	Workspaces []Workspace `xml:"workspace"`
}

type Workspace struct {
	Title       string              `xml:"atom:title"`
	Collections []ServiceCollection `xml:"collection"`
}

type ServiceCollection struct {
	Href       string   `xml:"href,attr"`
	Title      string   `xml:"atom:title"`
	Accepts    []string `xml:"accept"`
	Packaging  []string `xml:"sword:acceptPackaging"`
	Treatment  string   `xml:"sword:treatment,omitempty"`
	Mediation  bool     `xml:"sword:mediation"`
	Collection string   `xml:"sword:collectionPolicy,omitempty"`
}

// NewServiceDocument returns a document with the namespace declarations
// and protocol version set.
func NewServiceDocument() *ServiceDocument {
	return &ServiceDocument{
		XMLNS:      AppNS,
		XMLNSAtom:  AtomNS,
		XMLNSSword: SwordNS,
		Version:    "1.3",
	}
}

// Encode returns the service document as an XML document with header.
func (s *ServiceDocument) Encode() ([]byte, error) {
	body, err := xml.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}
