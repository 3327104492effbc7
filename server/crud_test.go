package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/ndlib/fedsword/fedora"
	"github.com/ndlib/fedsword/handler"
	"github.com/ndlib/fedsword/sword"
)

// testRepo is an in-memory stand-in for the repository. It records every
// write so tests can assert on what was (or was not) executed.
type testRepo struct {
	authErr error
	nextPID string
	objects map[string]*fedora.ObjectFields
	ops     []string
}

func (f *testRepo) Authenticate() error      { return f.authErr }
func (f *testRepo) Profile() fedora.Profile  { return fedora.ProfileFor("3.8.1") }
func (f *testRepo) MintPID() (string, error) { return f.nextPID, nil }
func (f *testRepo) Ingest(o *fedora.Object) error {
	f.ops = append(f.ops, "ingest "+o.PID)
	return nil
}
func (f *testRepo) FindObject(pid string) (*fedora.ObjectFields, error) {
	return f.objects[pid], nil
}
func (f *testRepo) ModifyObject(pid string, state fedora.State, label, owner, message string) error {
	f.ops = append(f.ops, "modify "+pid+" "+string(state))
	return nil
}
func (f *testRepo) AddDatastream(pid string, ds fedora.Datastream, message string) error {
	f.ops = append(f.ops, "add "+pid+"/"+ds.Info().ID)
	return nil
}
func (f *testRepo) ModifyDatastream(pid string, ds fedora.Datastream, message string) error {
	f.ops = append(f.ops, "modify "+pid+"/"+ds.Info().ID)
	return nil
}
func (f *testRepo) HasDatastream(pid, dsid string) (bool, error) { return false, nil }
func (f *testRepo) ObjectURL(pid string) string {
	return "http://repo.example.org/objects/" + pid
}
func (f *testRepo) DatastreamURL(pid, dsid string) string {
	return "http://repo.example.org/objects/" + pid + "/datastreams/" + dsid + "/content"
}
func (f *testRepo) Upload(path string) (string, error) { return "uploaded:" + path, nil }

type testSource struct{ repo *testRepo }

func (s testSource) As(username, password string) fedora.Repository { return s.repo }

func newTestServer(repo *testRepo) *RESTServer {
	return &RESTServer{
		Fedora:      testSource{repo},
		Policy:      OpenPolicy{},
		Handlers:    handler.DefaultRegistry(),
		Entries:     NewEntryCacheMemory(),
		ExternalURL: "http://sword.example.org",
		Treatment:   "Stored in the repository",
	}
}

func newDeposit() *sword.Deposit {
	return &sword.Deposit{
		Username:    "alice",
		Password:    "s3cret",
		ContentType: "application/octet-stream",
		Slug:        "my-item",
		Content:     strings.NewReader("hello"),
	}
}

func TestDepositCreate(t *testing.T) {
	repo := &testRepo{nextPID: "sword:101"}
	s := newTestServer(repo)

	resp, err := s.deposit(newDeposit(), "sword:col", "")
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if resp.Status != 201 {
		t.Errorf("got status %d, expected 201", resp.Status)
	}
	const edit = "http://sword.example.org/sword/edit/sword:col/sword:101"
	if resp.Location != edit {
		t.Errorf("got location %q, expected %q", resp.Location, edit)
	}
	found := false
	for _, op := range repo.ops {
		if op == "ingest sword:101" {
			found = true
		}
	}
	if !found {
		t.Errorf("ingest never happened, ops were %v", repo.ops)
	}
	body, err := s.Entries.Get("sword:col", "sword:101")
	if err != nil {
		t.Fatalf("entry was not cached: %s", err.Error())
	}
	if !strings.Contains(string(body), "<entry") {
		t.Errorf("cached document is not an entry: %s", body)
	}
}

func TestDepositNoOp(t *testing.T) {
	repo := &testRepo{nextPID: "sword:101"}
	s := newTestServer(repo)

	d := newDeposit()
	d.NoOp = true
	resp, err := s.deposit(d, "sword:col", "")
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if resp.Status != 200 {
		t.Errorf("got status %d, expected 200", resp.Status)
	}
	if resp.Location != "" {
		t.Errorf("no-op should have no location, got %q", resp.Location)
	}
	if len(repo.ops) != 0 {
		t.Errorf("no-op wrote to the repository: %v", repo.ops)
	}
	if _, err := s.Entries.Get("sword:col", "sword:101"); err == nil {
		t.Errorf("no-op cached an entry")
	}
}

func TestDepositBadPackaging(t *testing.T) {
	repo := &testRepo{nextPID: "sword:101"}
	s := newTestServer(repo)

	d := newDeposit()
	d.Packaging = "http://example.org/not-a-format"
	_, err := s.deposit(d, "sword:col", "")
	if errors.Cause(err) != sword.ErrContentNotAccepted {
		t.Errorf("got %v, expected ErrContentNotAccepted", err)
	}
	if len(repo.ops) != 0 {
		t.Errorf("rejected deposit wrote to the repository: %v", repo.ops)
	}
}

func TestDepositForbidden(t *testing.T) {
	repo := &testRepo{nextPID: "sword:101"}
	s := newTestServer(repo)
	var err error
	s.Policy, err = NewListPolicyString("other bob")
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}

	_, err = s.deposit(newDeposit(), "sword:col", "")
	if errors.Cause(err) != sword.ErrForbidden {
		t.Errorf("got %v, expected ErrForbidden", err)
	}
	if len(repo.ops) != 0 {
		t.Errorf("forbidden deposit wrote to the repository: %v", repo.ops)
	}
}

// A bad login is reported as such even when the user would also have
// failed authorization.
func TestDepositAuthenticateFirst(t *testing.T) {
	repo := &testRepo{authErr: sword.ErrCredentials}
	s := newTestServer(repo)
	var err error
	s.Policy, err = NewListPolicyString("other bob")
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}

	_, err = s.deposit(newDeposit(), "sword:col", "")
	if errors.Cause(err) != sword.ErrCredentials {
		t.Errorf("got %v, expected ErrCredentials", err)
	}
}

func TestUpdate(t *testing.T) {
	repo := &testRepo{
		objects: map[string]*fedora.ObjectFields{
			"sword:7": {PID: "sword:7", Label: "old label", Owner: "alice"},
		},
	}
	s := newTestServer(repo)

	resp, err := s.deposit(newDeposit(), "sword:col", "sword:7")
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if resp.Status != 200 {
		t.Errorf("got status %d, expected 200", resp.Status)
	}
	if len(repo.ops) == 0 {
		t.Errorf("update wrote nothing")
	}
	if _, err := s.Entries.Get("sword:col", "sword:7"); err != nil {
		t.Errorf("updated entry was not cached: %s", err.Error())
	}
}

func TestUpdateMissing(t *testing.T) {
	s := newTestServer(&testRepo{})

	_, err := s.deposit(newDeposit(), "sword:col", "sword:404")
	if errors.Cause(err) != sword.ErrNotFound {
		t.Errorf("got %v, expected ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	repo := &testRepo{
		objects: map[string]*fedora.ObjectFields{
			"sword:7": {PID: "sword:7", Label: "a label", Owner: "alice"},
		},
	}
	s := newTestServer(repo)
	s.Entries.Put("sword:col", "sword:7", []byte("seven"))
	s.Entries.Put("sword:col", "sword:8", []byte("eight"))

	dr := &sword.DeleteRequest{Username: "alice", Password: "s3cret"}
	status, err := s.delete(dr, "sword:col", "sword:7")
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if status != 200 {
		t.Errorf("got status %d, expected 200", status)
	}
	found := false
	for _, op := range repo.ops {
		if op == "modify sword:7 "+string(fedora.StateDeleted) {
			found = true
		}
	}
	if !found {
		t.Errorf("object was never marked deleted, ops were %v", repo.ops)
	}
	if _, err := s.Entries.Get("sword:col", "sword:7"); err == nil {
		t.Errorf("deleted object's entry is still cached")
	}
	if _, err := s.Entries.Get("sword:col", "sword:8"); err != nil {
		t.Errorf("unrelated entry was dropped: %s", err.Error())
	}
}

func TestDeleteNoOp(t *testing.T) {
	repo := &testRepo{
		objects: map[string]*fedora.ObjectFields{
			"sword:7": {PID: "sword:7", Label: "a label", Owner: "alice"},
		},
	}
	s := newTestServer(repo)
	s.Entries.Put("sword:col", "sword:7", []byte("seven"))

	dr := &sword.DeleteRequest{Username: "alice", Password: "s3cret", NoOp: true}
	status, err := s.delete(dr, "sword:col", "sword:7")
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	if status != 200 {
		t.Errorf("got status %d, expected 200", status)
	}
	if len(repo.ops) != 0 {
		t.Errorf("no-op delete wrote to the repository: %v", repo.ops)
	}
	if _, err := s.Entries.Get("sword:col", "sword:7"); err != nil {
		t.Errorf("no-op delete dropped the cached entry")
	}
}

func TestDeleteMissing(t *testing.T) {
	s := newTestServer(&testRepo{})

	dr := &sword.DeleteRequest{Username: "alice", Password: "s3cret"}
	_, err := s.delete(dr, "sword:col", "sword:404")
	if errors.Cause(err) != sword.ErrNotFound {
		t.Errorf("got %v, expected ErrNotFound", err)
	}
}

func TestErrorStatus(t *testing.T) {
	var table = []struct {
		err    error
		status int
	}{
		{errors.Wrap(sword.ErrCredentials, "x"), 401},
		{errors.Wrap(sword.ErrForbidden, "x"), 403},
		{errors.Wrap(sword.ErrContentNotAccepted, "x"), 406},
		{errors.Wrap(sword.ErrNoHandler, "x"), 415},
		{errors.Wrap(sword.ErrNotFound, "x"), 404},
		{errors.Wrap(sword.ErrBadRequest, "x"), 400},
		{errors.Wrap(sword.ErrBackendUnavailable, "x"), 500},
		{errors.New("surprise"), 500},
	}
	s := newTestServer(&testRepo{})
	for _, tab := range table {
		w := httptest.NewRecorder()
		s.writeError(w, tab.err)
		if w.Code != tab.status {
			t.Errorf("%v: got status %d, expected %d", tab.err, w.Code, tab.status)
		}
	}

	w := httptest.NewRecorder()
	s.writeError(w, sword.ErrCredentials)
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Errorf("401 response is missing a challenge")
	}
}

// Exercise the whole stack: route, header parsing, deposit, and then a GET
// of the resulting entry document.
func TestDepositHTTP(t *testing.T) {
	repo := &testRepo{nextPID: "sword:101"}
	s := newTestServer(repo)
	ts := httptest.NewServer(s.addRoutes())
	defer ts.Close()

	req, _ := http.NewRequest("POST", ts.URL+"/sword/deposit/sword:col", strings.NewReader("hello"))
	req.SetBasicAuth("alice", "s3cret")
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	resp.Body.Close()
	if resp.StatusCode != 201 {
		t.Fatalf("got status %d, expected 201", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); !strings.HasSuffix(loc, "/sword/edit/sword:col/sword:101") {
		t.Errorf("got location %q", loc)
	}

	resp, err = http.Get(ts.URL + "/sword/edit/sword:col/sword:101")
	if err != nil {
		t.Fatalf("Received %s", err.Error())
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("got status %d, expected 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/atom+xml") {
		t.Errorf("got content type %q", ct)
	}
}

func TestResolveTarget(t *testing.T) {
	var table = []struct {
		location   string
		withObject bool
		collection string
		id         string
	}{
		{"/sword/deposit/sword:col", false, "sword:col", ""},
		{"/sword/deposit/sword:col/", false, "sword:col", ""},
		{"/sword/edit/sword:col/sword:7", true, "sword:col", "sword:7"},
		{"/sword/edit/sword:col/sword:7/", true, "sword:col", "sword:7"},
		{"/sword:col", true, "", ""},
		{"", false, "", ""},
	}
	for _, tab := range table {
		collection, id := resolveTarget(tab.location, tab.withObject)
		if collection != tab.collection || id != tab.id {
			t.Errorf("resolveTarget(%q, %v) = (%q, %q), expected (%q, %q)",
				tab.location, tab.withObject, collection, id, tab.collection, tab.id)
		}
	}
}

func TestPidFromEdit(t *testing.T) {
	var table = []struct{ input, output string }{
		{"http://example.org/sword/edit/col/sword:1", "sword:1"},
		{"sword:1", ""},
		{"", ""},
	}
	for _, tab := range table {
		if out := pidFromEdit(tab.input); out != tab.output {
			t.Errorf("pidFromEdit(%q) = %q, expected %q", tab.input, out, tab.output)
		}
	}
}
