package sword

import (
	"strings"
	"testing"
	"time"
)

func TestEntryEncode(t *testing.T) {
	e := NewEntry()
	e.ID = "http://repo.example.org/objects/sword:1"
	e.Title = "A Thing"
	e.Authors = []Author{{Name: "alice"}}
	e.Contributors = []Contributor{{Name: "bob"}}
	e.Treatment = "Stored in the repository"
	e.Packaging = "http://www.loc.gov/METS/"
	e.Updated = AtomDate(time.Date(2015, 4, 1, 12, 30, 0, 0, time.UTC))
	e.AddLink("edit-media", "http://repo.example.org/objects/sword:1/datastreams/data/content")
	e.AddLink("edit", "http://sword.example.org/sword/edit/col/sword:1")

	body, err := e.Encode()
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	doc := string(body)
	for _, want := range []string{
		`xmlns="http://www.w3.org/2005/Atom"`,
		`xmlns:sword="http://purl.org/net/sword/"`,
		"<title>A Thing</title>",
		"<name>alice</name>",
		"<name>bob</name>",
		"<sword:treatment>Stored in the repository</sword:treatment>",
		"<sword:packaging>http://www.loc.gov/METS/</sword:packaging>",
		"<sword:noOp>false</sword:noOp>",
		"<updated>2015-04-01T12:30:00Z</updated>",
		`rel="edit"`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document is missing %s:\n%s", want, doc)
		}
	}
}

func TestEditLink(t *testing.T) {
	e := NewEntry()
	if e.EditLink() != "" {
		t.Errorf("entry with no links has an edit link")
	}
	e.AddLink("edit-media", "http://example.org/media")
	e.AddLink("edit", "http://example.org/edit")
	if got := e.EditLink(); got != "http://example.org/edit" {
		t.Errorf("got edit link %q", got)
	}
}

func TestServiceDocumentEncode(t *testing.T) {
	doc := NewServiceDocument()
	doc.Workspaces = []Workspace{{
		Title: "SWORD Deposit Service",
		Collections: []ServiceCollection{{
			Href:      "http://sword.example.org/sword/deposit/col",
			Title:     "col",
			Accepts:   []string{"application/zip", "image/jpeg"},
			Packaging: []string{"http://www.loc.gov/METS/"},
			Treatment: "Stored in the repository",
			Mediation: true,
		}},
	}}
	body, err := doc.Encode()
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	out := string(body)
	for _, want := range []string{
		"<sword:version>1.3</sword:version>",
		`<collection href="http://sword.example.org/sword/deposit/col">`,
		"<accept>application/zip</accept>",
		"<sword:acceptPackaging>http://www.loc.gov/METS/</sword:acceptPackaging>",
		"<sword:mediation>true</sword:mediation>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("document is missing %s:\n%s", want, out)
		}
	}
}
