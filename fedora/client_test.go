package fedora

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/ndlib/fedsword/sword"
)

// fakeFedora emulates just enough of the repository's REST interface for
// the client tests.
func fakeFedora() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/describe", func(w http.ResponseWriter, r *http.Request) {
		_, pass, _ := r.BasicAuth()
		if pass != "s3cret" {
			w.WriteHeader(401)
			return
		}
		fmt.Fprint(w, `{"repositoryVersion": "3.8.1"}`)
	})
	mux.HandleFunc("/management/nextPID", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"pids": ["sword:77"]}`)
	})
	mux.HandleFunc("/access/findObjects", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pid") == "sword:7" {
			fmt.Fprint(w, `{"resultList": [{"pid": "sword:7", "label": "a label", "ownerId": "alice"}]}`)
			return
		}
		fmt.Fprint(w, `{"resultList": []}`)
	})
	mux.HandleFunc("/management/objects/sword:7/datastreams/DC", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	})
	mux.HandleFunc("/management/objects/sword:7/datastreams/NOPE", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	})
	mux.HandleFunc("/management/objects/sword:7/datastreams/BROKEN", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		fmt.Fprint(w, "malformed request")
	})
	return mux
}

func testConnection(t *testing.T) (*Connection, func()) {
	ts := httptest.NewServer(fakeFedora())
	remote := &Remote{HostURL: ts.URL, PIDNamespace: "sword"}
	return remote.As("alice", "s3cret").(*Connection), ts.Close
}

func TestAuthenticate(t *testing.T) {
	conn, closer := testConnection(t)
	defer closer()

	if err := conn.Authenticate(); err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if v := conn.Profile().Version; v != "3.8.1" {
		t.Errorf("got profile version %q", v)
	}
	if conn.Profile().Legacy() {
		t.Errorf("3.8.1 classified as legacy")
	}
}

// One Remote serves every request goroutine at once.
func TestAsConcurrent(t *testing.T) {
	ts := httptest.NewServer(fakeFedora())
	defer ts.Close()
	remote := &Remote{HostURL: ts.URL}

	errs := make(chan error, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- remote.As("alice", "s3cret").Authenticate()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Received %s", err.Error())
		}
	}
}

func TestAuthenticateBadPassword(t *testing.T) {
	ts := httptest.NewServer(fakeFedora())
	defer ts.Close()
	remote := &Remote{HostURL: ts.URL}

	err := remote.As("alice", "wrong").Authenticate()
	if errors.Cause(err) != sword.ErrCredentials {
		t.Errorf("got %v, expected ErrCredentials", err)
	}
}

func TestMintPID(t *testing.T) {
	conn, closer := testConnection(t)
	defer closer()

	pid, err := conn.MintPID()
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if pid != "sword:77" {
		t.Errorf("got pid %q", pid)
	}
}

func TestFindObject(t *testing.T) {
	conn, closer := testConnection(t)
	defer closer()

	fields, err := conn.FindObject("sword:7")
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if fields == nil || fields.Label != "a label" || fields.Owner != "alice" {
		t.Errorf("got fields %+v", fields)
	}

	fields, err = conn.FindObject("sword:404")
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if fields != nil {
		t.Errorf("got fields %+v for an object that does not exist", fields)
	}
}

func TestHasDatastream(t *testing.T) {
	conn, closer := testConnection(t)
	defer closer()

	var table = []struct {
		dsid string
		has  bool
	}{
		{"DC", true},
		{"NOPE", false},
	}
	for _, tab := range table {
		has, err := conn.HasDatastream("sword:7", tab.dsid)
		if err != nil {
			t.Fatalf("%s: received %s", tab.dsid, err.Error())
		}
		if has != tab.has {
			t.Errorf("%s: got %v, expected %v", tab.dsid, has, tab.has)
		}
	}

	_, err := conn.HasDatastream("sword:7", "BROKEN")
	if errors.Cause(err) != sword.ErrBackendRejected {
		t.Errorf("got %v, expected ErrBackendRejected", err)
	}
}

func TestUnreachableBackend(t *testing.T) {
	remote := &Remote{HostURL: "http://localhost:0"}
	err := remote.As("alice", "s3cret").Authenticate()
	if errors.Cause(err) != sword.ErrBackendUnavailable {
		t.Errorf("got %v, expected ErrBackendUnavailable", err)
	}
}
