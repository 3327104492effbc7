package mets

import (
	"strings"
	"testing"
)

const sampleManifest = `<?xml version="1.0" encoding="UTF-8"?>
<mets xmlns="http://www.loc.gov/METS/"
      xmlns:dc="http://purl.org/dc/elements/1.1/"
      xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <dmdSec ID="DMD1">
    <mdWrap MDTYPE="DC">
      <xmlData>
        <dc:title>A Packaged Thing</dc:title>
        <dc:creator>alice</dc:creator>
        <dc:identifier>thing-1</dc:identifier>
      </xmlData>
    </mdWrap>
  </dmdSec>
  <amdSec>
    <techMD ID="AMD1">
      <mdWrap MDTYPE="OTHER" OTHERMDTYPE="RELS">
        <xmlData>
          <rdf:RDF>
            <rdf:Description>
              <hasModel rdf:resource="info:fedora/demo:model"/>
              <isPartOf rdf:resource="info:fedora/sword:parent"/>
            </rdf:Description>
          </rdf:RDF>
        </xmlData>
      </mdWrap>
    </techMD>
  </amdSec>
  <fileSec>
    <fileGrp>
      <file ID="F1" MIMETYPE="application/pdf">
        <FLocat LOCTYPE="URL" xlink:href="http://example.org/thing.pdf" xmlns:xlink="http://www.w3.org/1999/xlink"/>
      </file>
      <file ID="F2" MIMETYPE="image/jpeg">
        <FLocat LOCTYPE="URL" xlink:href="pics/thing.jpg" xmlns:xlink="http://www.w3.org/1999/xlink"/>
      </file>
    </fileGrp>
  </fileSec>
</mets>`

func TestParse(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleManifest))
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}

	if doc.DC == nil {
		t.Fatalf("manifest's descriptive section was not found")
	}
	if len(doc.DC.Title) != 1 || doc.DC.Title[0] != "A Packaged Thing" {
		t.Errorf("got titles %v", doc.DC.Title)
	}
	if len(doc.DC.Creator) != 1 || doc.DC.Creator[0] != "alice" {
		t.Errorf("got creators %v", doc.DC.Creator)
	}
	if len(doc.DC.Identifier) != 1 || doc.DC.Identifier[0] != "thing-1" {
		t.Errorf("got identifiers %v", doc.DC.Identifier)
	}

	if doc.Rels == nil {
		t.Fatalf("manifest's relationship section was not found")
	}
	if len(doc.Rels.Triples) != 2 {
		t.Errorf("got triples %v", doc.Rels.Triples)
	}

	if len(doc.Files) != 2 {
		t.Fatalf("got files %v", doc.Files)
	}
	if doc.Files[0].ID != "F1" || doc.Files[0].MimeType != "application/pdf" ||
		doc.Files[0].Href != "http://example.org/thing.pdf" {
		t.Errorf("got first file %+v", doc.Files[0])
	}
	if doc.Files[1].Href != "pics/thing.jpg" {
		t.Errorf("got second file %+v", doc.Files[1])
	}
}

func TestParseMinimal(t *testing.T) {
	const minimal = `<mets xmlns="http://www.loc.gov/METS/"></mets>`
	doc, err := Parse(strings.NewReader(minimal))
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if doc.DC != nil || doc.Rels != nil || len(doc.Files) != 0 {
		t.Errorf("empty manifest produced sections: %+v", doc)
	}
}

func TestParseBad(t *testing.T) {
	if _, err := Parse(strings.NewReader("this is not xml")); err == nil {
		t.Errorf("parsed something that is not a manifest")
	}
}

func TestFragment(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleManifest))
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	frag := string(doc.Fragment())
	if strings.Contains(frag, "<?xml") {
		t.Errorf("fragment keeps the XML declaration:\n%s", frag[:60])
	}
	if !strings.HasPrefix(frag, "<mets") {
		t.Errorf("fragment does not start with the root element:\n%s", frag[:60])
	}
}
