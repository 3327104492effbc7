// Package mets reads the structured-package manifests accepted by the
// deposit service. Only the pieces the content handlers need are parsed:
// the Dublin Core descriptive section, an optional relationship section,
// and the file section naming the package's content.
package mets

import (
	"bytes"
	"encoding/xml"
	"io"
	"io/ioutil"
	"strings"

	"github.com/pkg/errors"

	"github.com/ndlib/fedsword/fedora"
)

// A File is one entry from the manifest's file section.
type File struct {
	ID       string
	MimeType string
	Href     string // URL or a path relative to the package
	LocType  string
}

// A Document is a parsed manifest. DC and Rels are nil when the manifest
// does not carry the corresponding section; handlers fall back to their
// default derivations in that case.
type Document struct {
	DC    *fedora.DublinCore
	Rels  *fedora.Relationship
	Files []File
	Raw   []byte // the manifest as received, kept as its own datastream
}

// xml shapes. The manifest namespace is matched loosely (by local name)
// since deposits arrive with a variety of prefix conventions.

type xMets struct {
	DmdSecs []xMdSec `xml:"dmdSec"`
	AmdSecs []xMdSec `xml:"amdSec>techMD"`
	Rights  []xMdSec `xml:"amdSec>rightsMD"`
	Files   []xFile  `xml:"fileSec>fileGrp>file"`
}

type xMdSec struct {
	ID     string    `xml:"ID,attr"`
	MdWrap []xMdWrap `xml:"mdWrap"`
}

type xMdWrap struct {
	MDType      string   `xml:"MDTYPE,attr"`
	OtherMDType string   `xml:"OTHERMDTYPE,attr"`
	Fields      []xField `xml:"xmlData"`
}

type xField struct {
	Inner []xAny `xml:",any"`
}

type xAny struct {
	XMLName  xml.Name
	Value    string `xml:",chardata"`
	Resource string `xml:"resource,attr"`
	Inner    []xAny `xml:",any"`
}

type xFile struct {
	ID       string `xml:"ID,attr"`
	MimeType string `xml:"MIMETYPE,attr"`
	Locat    []xLoc `xml:"FLocat"`
}

type xLoc struct {
	LocType string `xml:"LOCTYPE,attr"`
	Href    string `xml:"href,attr"`
}

// Parse reads a manifest.
func Parse(r io.Reader) (*Document, error) {
	raw, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read manifest")
	}
	var m xMets
	if err := xml.NewDecoder(bytes.NewReader(raw)).Decode(&m); err != nil {
		return nil, errors.Wrap(err, "parse manifest")
	}
	doc := &Document{Raw: raw}
	for _, sec := range m.DmdSecs {
		for _, wrap := range sec.MdWrap {
			if strings.EqualFold(wrap.MDType, "DC") {
				doc.DC = decodeDC(wrap)
			}
		}
	}
	for _, sec := range append(m.AmdSecs, m.Rights...) {
		for _, wrap := range sec.MdWrap {
			if strings.EqualFold(wrap.OtherMDType, "RELS") {
				doc.Rels = decodeRels(wrap)
			}
		}
	}
	for _, f := range m.Files {
		entry := File{ID: f.ID, MimeType: f.MimeType}
		if len(f.Locat) > 0 {
			entry.Href = f.Locat[0].Href
			entry.LocType = f.Locat[0].LocType
		}
		doc.Files = append(doc.Files, entry)
	}
	return doc, nil
}

// Fragment returns the manifest with any leading XML declaration removed,
// so it can be embedded inside another document.
func (d *Document) Fragment() []byte {
	raw := bytes.TrimLeft(d.Raw, " \t\r\n")
	if bytes.HasPrefix(raw, []byte("<?xml")) {
		if i := bytes.Index(raw, []byte("?>")); i >= 0 {
			raw = bytes.TrimLeft(raw[i+2:], " \t\r\n")
		}
	}
	return raw
}

// decodeDC collects dc:* elements from the metadata wrapper, descending
// one level in case the fields sit inside an oai_dc:dc container.
func decodeDC(wrap xMdWrap) *fedora.DublinCore {
	dc := &fedora.DublinCore{}
	var walk func(items []xAny, depth int)
	walk = func(items []xAny, depth int) {
		for _, el := range items {
			v := strings.TrimSpace(el.Value)
			switch el.XMLName.Local {
			case "title":
				dc.Title = append(dc.Title, v)
			case "creator":
				dc.Creator = append(dc.Creator, v)
			case "subject":
				dc.Subject = append(dc.Subject, v)
			case "description":
				dc.Description = append(dc.Description, v)
			case "rights":
				dc.Rights = append(dc.Rights, v)
			case "identifier":
				dc.Identifier = append(dc.Identifier, v)
			case "format":
				dc.Format = append(dc.Format, v)
			default:
				if depth < 2 {
					walk(el.Inner, depth+1)
				}
			}
		}
	}
	for _, f := range wrap.Fields {
		walk(f.Inner, 0)
	}
	if len(dc.Title)+len(dc.Creator)+len(dc.Subject)+len(dc.Description)+
		len(dc.Rights)+len(dc.Identifier)+len(dc.Format) == 0 {
		return nil
	}
	return dc
}

// decodeRels reads relationship assertions from an RDF fragment embedded
// in the manifest. Elements carrying an rdf:resource attribute become
// triples; hasModel assertions keep the model namespace.
func decodeRels(wrap xMdWrap) *fedora.Relationship {
	rels := fedora.NewRelationship()
	var walk func(items []xAny, depth int)
	walk = func(items []xAny, depth int) {
		for _, el := range items {
			if el.Resource != "" {
				target := strings.TrimPrefix(el.Resource, "info:fedora/")
				if el.XMLName.Local == "hasModel" {
					rels.AddModel(target)
				} else {
					rels.Add(el.XMLName.Local, target)
				}
				continue
			}
			if depth < 3 {
				walk(el.Inner, depth+1)
			}
		}
	}
	for _, f := range wrap.Fields {
		walk(f.Inner, 0)
	}
	if len(rels.Triples) == 0 {
		return nil
	}
	return rels
}
