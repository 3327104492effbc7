package fedora

import (
	"strings"
	"testing"
)

func TestRelationshipEncode(t *testing.T) {
	r := NewRelationship()
	r.PID = "sword:1"
	r.AddMembership("sword:col")
	r.AddModel("demo:model")
	r.AddModel("demo:model") // duplicates are dropped
	r.Add("isPartOf", "sword:parent")

	body, err := r.Encode(false)
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	doc := string(body)
	for _, want := range []string{
		`rdf:about="info:fedora/sword:1"`,
		`<rel:isMemberOf rdf:resource="info:fedora/sword:col">`,
		`<rel:isPartOf rdf:resource="info:fedora/sword:parent">`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document is missing %s:\n%s", want, doc)
		}
	}
	if n := strings.Count(doc, "fedora-model:hasModel"); n != 2 {
		// one open and one close tag
		t.Errorf("content model appears %d times:\n%s", n, doc)
	}

	// and again with models suppressed
	body, err = r.Encode(true)
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	doc = string(body)
	if strings.Contains(doc, "hasModel") {
		t.Errorf("suppressed document still carries a content model:\n%s", doc)
	}
	if !strings.Contains(doc, "rel:isMemberOf") {
		t.Errorf("suppression dropped the membership triple:\n%s", doc)
	}
}

func TestMemberOf(t *testing.T) {
	r := NewRelationship()
	if r.MemberOf() != "" {
		t.Errorf("empty block reports a membership")
	}
	r.AddModel("demo:model")
	r.AddMembership("sword:col")
	r.AddMembership("sword:other")
	if got := r.MemberOf(); got != "sword:col" {
		t.Errorf("got %q, expected the first membership", got)
	}
}
