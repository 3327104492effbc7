package fedora

import (
	"bytes"
	"encoding/xml"
)

// Namespaces used in the relationship datastream.
const (
	rdfNS   = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	relNS   = "info:fedora/fedora-system:def/relations-external#"
	modelNS = "info:fedora/fedora-system:def/model#"
)

// A Triple is one relationship assertion: this object stands in relation
// Predicate to the object or model named by Target.
type Triple struct {
	Namespace string
	Predicate string
	Target    string
}

// A Relationship is the set of triples attached to one object. Every
// deposited object carries at least a membership triple naming its
// collection. Content-model triples may be suppressed at serialization
// time when the target repository expresses models differently.
type Relationship struct {
	PID     string
	Triples []Triple
}

// NewRelationship returns an empty relationship block.
func NewRelationship() *Relationship {
	return &Relationship{}
}

// Add appends a triple in the standard external-relations namespace.
func (r *Relationship) Add(predicate, target string) {
	r.AddNS(relNS, predicate, target)
}

// AddNS appends a triple with an explicit namespace.
func (r *Relationship) AddNS(ns, predicate, target string) {
	r.Triples = append(r.Triples, Triple{Namespace: ns, Predicate: predicate, Target: target})
}

// AddMembership records that this object is a member of the given
// collection.
func (r *Relationship) AddMembership(collection string) {
	r.Add("isMemberOf", collection)
}

// AddModel declares a content model. Duplicate declarations are dropped.
func (r *Relationship) AddModel(model string) {
	for _, t := range r.Triples {
		if t.Namespace == modelNS && t.Predicate == "hasModel" && t.Target == model {
			return
		}
	}
	r.AddNS(modelNS, "hasModel", model)
}

// MemberOf returns the target of the first membership triple, or "".
func (r *Relationship) MemberOf() string {
	for _, t := range r.Triples {
		if t.Namespace == relNS && t.Predicate == "isMemberOf" {
			return t.Target
		}
	}
	return ""
}

// Encode serializes the relationship block as an RDF fragment for the
// RELS-EXT datastream. Content-model triples are skipped when
// suppressModels is set.
func (r *Relationship) Encode(suppressModels bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	rdf := xml.StartElement{
		Name: xml.Name{Local: "rdf:RDF"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:rdf"}, Value: rdfNS},
			{Name: xml.Name{Local: "xmlns:rel"}, Value: relNS},
			{Name: xml.Name{Local: "xmlns:fedora-model"}, Value: modelNS},
		},
	}
	desc := xml.StartElement{
		Name: xml.Name{Local: "rdf:Description"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "rdf:about"}, Value: "info:fedora/" + r.PID},
		},
	}
	if err := enc.EncodeToken(rdf); err != nil {
		return nil, err
	}
	if err := enc.EncodeToken(desc); err != nil {
		return nil, err
	}
	for _, t := range r.Triples {
		if suppressModels && t.Namespace == modelNS {
			continue
		}
		var prefix string
		switch t.Namespace {
		case relNS:
			prefix = "rel:"
		case modelNS:
			prefix = "fedora-model:"
		default:
			prefix = "rel:" // unknown namespaces fold into the default
		}
		el := xml.StartElement{
			Name: xml.Name{Local: prefix + t.Predicate},
			Attr: []xml.Attr{
				{Name: xml.Name{Local: "rdf:resource"}, Value: "info:fedora/" + t.Target},
			},
		}
		if err := enc.EncodeToken(el); err != nil {
			return nil, err
		}
		if err := enc.EncodeToken(el.End()); err != nil {
			return nil, err
		}
	}
	if err := enc.EncodeToken(desc.End()); err != nil {
		return nil, err
	}
	if err := enc.EncodeToken(rdf.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
