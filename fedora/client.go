package fedora

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/pkg/errors"

	"github.com/ndlib/fedsword/sword"
)

// ObjectFields is the slice of an object's state the delete and update
// paths need: enough to preserve label and owner across a state change.
type ObjectFields struct {
	PID   string
	Label string
	Owner string
}

// Repository is the narrow facade over the backend the deposit pipeline
// depends on. The production implementation is a Connection; tests use an
// in-memory fake.
//
// Every method that reaches the backend may fail with
// sword.ErrBackendUnavailable (transport fault or timeout) or
// sword.ErrBackendRejected (the backend refused a well-formed call).
// Ingest is not safe to retry blindly.
type Repository interface {
	// Authenticate verifies this connection's credentials against the
	// backend. Failure is sword.ErrCredentials.
	Authenticate() error

	// Profile returns the version profile learned during Authenticate.
	Profile() Profile

	// MintPID reserves and returns the next object identifier.
	MintPID() (string, error)

	// Ingest uploads any staged content, serializes the object, and
	// ingests it.
	Ingest(o *Object) error

	// FindObject looks up an object's current label and owner. A nil
	// result with a nil error means the object does not exist.
	FindObject(pid string) (*ObjectFields, error)

	// ModifyObject transitions an object's state, preserving the given
	// label and owner, with an audit message.
	ModifyObject(pid string, state State, label, owner, message string) error

	// AddDatastream attaches a new datastream to an existing object.
	AddDatastream(pid string, ds Datastream, message string) error

	// ModifyDatastream replaces the content of an existing datastream,
	// by value for inline content and by reference otherwise.
	ModifyDatastream(pid string, ds Datastream, message string) error

	// HasDatastream reports whether the object already has a datastream
	// with the given id.
	HasDatastream(pid, dsid string) (bool, error)

	// ObjectURL and DatastreamURL return externally reachable URLs for
	// links in response documents.
	ObjectURL(pid string) string
	DatastreamURL(pid, dsid string) string

	Uploader
}

// A Source hands out per-request repository connections. Credentials are
// per request, so the shared Remote never holds any.
type Source interface {
	As(username, password string) Repository
}

// Remote describes how to reach the repository. One Remote is shared by
// all requests; call As to get a Repository bound to a request's
// credentials. Do not change fields after the first use.
type Remote struct {
	// HostURL is the base URL of the repository's web services, for
	// example "http://fedora.example.edu:8080/fedora".
	HostURL string

	// ExternalURL is the public base URL used when building links in
	// response documents. Defaults to HostURL.
	ExternalURL string

	// PIDNamespace is the namespace new identifiers are minted in.
	PIDNamespace string

	// Timeout bounds every backend call. Defaults to one minute. A
	// timeout surfaces as sword.ErrBackendUnavailable.
	Timeout time.Duration

	initClient sync.Once
	client     *http.Client
}

// As returns a Repository speaking for the given user. Every request
// goroutine calls this, so the shared client is set up exactly once.
func (r *Remote) As(username, password string) Repository {
	r.initClient.Do(func() {
		timeout := r.Timeout
		if timeout == 0 {
			timeout = time.Minute
		}
		r.client = &http.Client{Timeout: timeout}
	})
	return &Connection{remote: r, username: username, password: password}
}

// A Connection is a Repository bound to one request's credentials. It is
// not safe for concurrent use; each request gets its own.
type Connection struct {
	remote   *Remote
	username string
	password string

	profile   Profile
	connected bool
}

var _ Repository = &Connection{}

// Authenticate describes the repository with this connection's
// credentials and caches the version profile for later serialization.
func (c *Connection) Authenticate() error {
	if c.connected {
		return nil
	}
	resp, err := c.do("GET", "/describe?format=json", "", nil)
	if err != nil {
		return errors.Wrap(sword.ErrBackendUnavailable, err.Error())
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200:
		// fall through
	case 401, 403:
		return sword.ErrCredentials
	default:
		return errors.Wrapf(sword.ErrBackendUnavailable, "describe returned %d", resp.StatusCode)
	}
	v, err := jason.NewObjectFromReader(resp.Body)
	if err != nil {
		return errors.Wrap(sword.ErrBackendUnavailable, err.Error())
	}
	version, _ := v.GetString("repositoryVersion")
	c.profile = ProfileFor(strings.TrimSpace(version))
	c.connected = true
	return nil
}

// Profile returns the version profile cached by Authenticate.
func (c *Connection) Profile() Profile {
	return c.profile
}

// MintPID asks the repository for the next available identifier.
func (c *Connection) MintPID() (string, error) {
	path := "/management/nextPID?format=json&namespace=" + url.QueryEscape(c.remote.PIDNamespace)
	v, err := c.doJason("POST", path)
	if err != nil {
		return "", err
	}
	pids, err := v.GetStringArray("pids")
	if err != nil || len(pids) == 0 {
		return "", errors.Wrap(sword.ErrBackendRejected, "nextPID returned no identifiers")
	}
	return pids[0], nil
}

// Ingest uploads the object's staged content, serializes it against the
// repository's version profile, and ingests the document.
func (c *Connection) Ingest(o *Object) error {
	if err := c.Authenticate(); err != nil {
		return err
	}
	for _, ds := range o.Datastreams {
		local, ok := ds.(*Local)
		if !ok {
			continue
		}
		if _, err := local.Staged.Upload(c); err != nil {
			return err
		}
	}
	doc, err := Serialize(o, c.profile)
	if err != nil {
		return err
	}
	path := "/management/ingest?format=" + url.QueryEscape(c.profile.FormatURI()) +
		"&logMessage=" + url.QueryEscape("ingested by the sword service")
	resp, err := c.do("POST", path, "text/xml", bytes.NewReader(doc))
	if err != nil {
		return errors.Wrap(sword.ErrBackendUnavailable, err.Error())
	}
	defer resp.Body.Close()
	return statusErr(resp, "ingest "+o.PID)
}

// FindObject resolves an object's current label and owner. An empty
// result set is a valid "not found", reported as (nil, nil).
func (c *Connection) FindObject(pid string) (*ObjectFields, error) {
	path := "/access/findObjects?format=json&fields=pid,label,ownerId&pid=" + url.QueryEscape(pid)
	v, err := c.doJason("GET", path)
	if err != nil {
		return nil, err
	}
	list, err := v.GetObjectArray("resultList")
	if err != nil || len(list) == 0 {
		return nil, nil
	}
	var result ObjectFields
	result.PID, _ = list[0].GetString("pid")
	result.Label, _ = list[0].GetString("label")
	result.Owner, _ = list[0].GetString("ownerId")
	return &result, nil
}

// ModifyObject transitions the object's state.
func (c *Connection) ModifyObject(pid string, state State, label, owner, message string) error {
	path := "/management/objects/" + url.PathEscape(pid) +
		"?state=" + url.QueryEscape(string(state)) +
		"&label=" + url.QueryEscape(label) +
		"&ownerId=" + url.QueryEscape(owner) +
		"&logMessage=" + url.QueryEscape(message)
	resp, err := c.do("PUT", path, "", nil)
	if err != nil {
		return errors.Wrap(sword.ErrBackendUnavailable, err.Error())
	}
	defer resp.Body.Close()
	return statusErr(resp, "modify "+pid)
}

// AddDatastream attaches ds to an existing object.
func (c *Connection) AddDatastream(pid string, ds Datastream, message string) error {
	return c.writeDatastream("POST", pid, ds, message)
}

// ModifyDatastream replaces the content of an existing datastream.
func (c *Connection) ModifyDatastream(pid string, ds Datastream, message string) error {
	return c.writeDatastream("PUT", pid, ds, message)
}

func (c *Connection) writeDatastream(method, pid string, ds Datastream, message string) error {
	info := ds.Info()
	path := "/management/objects/" + url.PathEscape(pid) + "/datastreams/" + url.PathEscape(info.ID) +
		"?mimeType=" + url.QueryEscape(info.MimeType) +
		"&dsLabel=" + url.QueryEscape(info.Label) +
		"&controlGroup=" + url.QueryEscape(string(info.ControlGroup)) +
		"&dsState=" + url.QueryEscape(string(info.State)) +
		"&versionable=" + fmt.Sprintf("%t", info.Versionable) +
		"&logMessage=" + url.QueryEscape(message)

	var body io.Reader
	var contentType string
	switch t := ds.(type) {
	case *Inline:
		body = bytes.NewReader(t.Body)
		contentType = "text/xml"
	case *Local:
		loc, err := t.Staged.Upload(c)
		if err != nil {
			return err
		}
		path += "&dsLocation=" + url.QueryEscape(loc)
	case *Reference:
		path += "&dsLocation=" + url.QueryEscape(t.URL)
	default:
		return errors.Wrapf(sword.ErrBackendRejected, "datastream %s: unknown variant", info.ID)
	}

	resp, err := c.do(method, path, contentType, body)
	if err != nil {
		return errors.Wrap(sword.ErrBackendUnavailable, err.Error())
	}
	defer resp.Body.Close()
	return statusErr(resp, "write datastream "+pid+"/"+info.ID)
}

// HasDatastream reports whether pid already carries a datastream dsid.
func (c *Connection) HasDatastream(pid, dsid string) (bool, error) {
	path := "/management/objects/" + url.PathEscape(pid) + "/datastreams/" + url.PathEscape(dsid)
	resp, err := c.do("GET", path, "", nil)
	if err != nil {
		return false, errors.Wrap(sword.ErrBackendUnavailable, err.Error())
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case 200:
		return true, nil
	case 404:
		return false, nil
	}
	return false, statusErr(resp, "get datastream "+pid+"/"+dsid)
}

// Upload sends a local file to the repository's staging area and returns
// the URL the repository assigned to it.
func (c *Connection) Upload(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open staged content")
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err = io.Copy(part, f); err != nil {
		return "", err
	}
	if err = w.Close(); err != nil {
		return "", err
	}

	log.Println("uploading", path, "to repository")
	resp, err := c.do("POST", "/management/upload", w.FormDataContentType(), &buf)
	if err != nil {
		return "", errors.Wrap(sword.ErrBackendUnavailable, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != 201 && resp.StatusCode != 200 {
		return "", statusErr(resp, "upload "+path)
	}
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(sword.ErrBackendUnavailable, err.Error())
	}
	return strings.TrimSpace(string(body)), nil
}

// ObjectURL returns the public URL for an object.
func (c *Connection) ObjectURL(pid string) string {
	return c.remote.external() + "/objects/" + pid
}

// DatastreamURL returns the public URL for a datastream's content.
func (c *Connection) DatastreamURL(pid, dsid string) string {
	return c.remote.external() + "/objects/" + pid + "/datastreams/" + dsid + "/content"
}

func (r *Remote) external() string {
	if r.ExternalURL != "" {
		return strings.TrimSuffix(r.ExternalURL, "/")
	}
	return strings.TrimSuffix(r.HostURL, "/")
}

// do performs an http request using our client with a timeout. The
// timeout is there so we don't hang indefinitely should the server never
// close the connection.
func (c *Connection) do(method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, strings.TrimSuffix(c.remote.HostURL, "/")+path, body)
	if err != nil {
		return nil, err
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.remote.client.Do(req)
}

func (c *Connection) doJason(method, path string) (*jason.Object, error) {
	resp, err := c.do(method, path, "", nil)
	if err != nil {
		return nil, errors.Wrap(sword.ErrBackendUnavailable, err.Error())
	}
	defer resp.Body.Close()
	if err := statusErr(resp, method+" "+path); err != nil {
		return nil, err
	}
	v, err := jason.NewObjectFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(sword.ErrBackendUnavailable, err.Error())
	}
	return v, nil
}

// statusErr classifies a backend response code. 2xx is success; other
// 4xx codes mean the backend understood and refused the call; everything
// else is treated as the backend being unavailable.
func statusErr(resp *http.Response, op string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		detail, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Wrapf(sword.ErrBackendRejected, "%s: %d %s", op, resp.StatusCode, strings.TrimSpace(string(detail)))
	default:
		return errors.Wrapf(sword.ErrBackendUnavailable, "%s: %d", op, resp.StatusCode)
	}
}
