package server

import (
	"crypto/md5"
	"io/ioutil"
	"net/http"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/ndlib/fedsword/sword"
)

func depositRequest(headers map[string]string) *http.Request {
	r, _ := http.NewRequest("POST", "/sword/deposit/col", strings.NewReader("body"))
	r.SetBasicAuth("alice", "s3cret")
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func TestParseDeposit(t *testing.T) {
	d, err := parseDeposit(depositRequest(map[string]string{
		"Content-Type":        "application/zip",
		"Content-Disposition": `attachment; filename=photos.zip`,
		"Slug":                "my-photos",
		"X-On-Behalf-Of":      "bob",
	}))
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if d.Username != "alice" || d.Password != "s3cret" {
		t.Errorf("credentials not copied: %q %q", d.Username, d.Password)
	}
	if d.ContentType != "application/zip" {
		t.Errorf("got content type %q", d.ContentType)
	}
	if d.Filename != "photos.zip" {
		t.Errorf("got filename %q", d.Filename)
	}
	if d.Depositor() != "bob" {
		t.Errorf("got depositor %q, expected the mediated user", d.Depositor())
	}

	// no content type means octet-stream
	d, err = parseDeposit(depositRequest(nil))
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if d.ContentType != "application/octet-stream" {
		t.Errorf("got content type %q", d.ContentType)
	}
}

func TestParseDepositNoAuth(t *testing.T) {
	r, _ := http.NewRequest("POST", "/sword/deposit/col", strings.NewReader("body"))
	_, err := parseDeposit(r)
	if errors.Cause(err) != sword.ErrCredentials {
		t.Errorf("got %v, expected ErrCredentials", err)
	}
}

func TestBoolHeader(t *testing.T) {
	var table = []struct {
		value string
		out   bool
		bad   bool
	}{
		{"", false, false},
		{"true", true, false},
		{"false", false, false},
		{"True", true, false},
		{"yes", false, true},
		{"1", false, true},
	}
	for _, tab := range table {
		r := depositRequest(map[string]string{"X-No-Op": tab.value})
		out, err := boolHeader(r, "X-No-Op")
		if tab.bad {
			if errors.Cause(err) != sword.ErrBadRequest {
				t.Errorf("%q: got %v, expected ErrBadRequest", tab.value, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: received %s", tab.value, err.Error())
		}
		if out != tab.out {
			t.Errorf("%q: got %v, expected %v", tab.value, out, tab.out)
		}
	}
}

func TestPackagingHeader(t *testing.T) {
	r := depositRequest(map[string]string{"X-Format-Namespace": "old-style"})
	if p := packagingHeader(r); p != "old-style" {
		t.Errorf("got %q, expected the legacy header to be honored", p)
	}
	r.Header.Set("X-Packaging", "new-style")
	if p := packagingHeader(r); p != "new-style" {
		t.Errorf("got %q, expected X-Packaging to win", p)
	}
}

func TestDispositionFilename(t *testing.T) {
	var table = []struct{ input, output string }{
		{"", ""},
		{"attachment; filename=photo.jpg", "photo.jpg"},
		{`attachment; filename="some thing.zip"`, "some thing.zip"},
		{"attachment", ""},
		{"not a header;;;", ""},
	}
	for _, tab := range table {
		if out := dispositionFilename(tab.input); out != tab.output {
			t.Errorf("dispositionFilename(%q) = %q, expected %q", tab.input, out, tab.output)
		}
	}
}

func TestChecksumReader(t *testing.T) {
	// md5("hello") = 5d41402abc4b2a76b9719d911017c592
	const good = "5d41402abc4b2a76b9719d911017c592"

	d, err := parseDeposit(depositRequest(map[string]string{"Content-MD5": good}))
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	// the request body is "body", not "hello", so the digest must not match
	_, err = ioutil.ReadAll(d.Content)
	if errors.Cause(err) != sword.ErrContentNotAccepted {
		t.Errorf("got %v, expected ErrContentNotAccepted", err)
	}

	cr := &checksumReader{r: strings.NewReader("hello"), hash: md5.New(), want: strings.ToUpper(good)}
	body, err := ioutil.ReadAll(cr)
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if string(body) != "hello" {
		t.Errorf("got body %q", body)
	}
}
