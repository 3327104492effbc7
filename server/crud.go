package server

import (
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	raven "github.com/getsentry/raven-go"
	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"

	"github.com/ndlib/fedsword/fedora"
	"github.com/ndlib/fedsword/handler"
	"github.com/ndlib/fedsword/sword"
)

// depositState tracks a request through the pipeline. Every request ends
// in one of Executed, NoOp, or Rejected; the terminal states are counted
// in expvars.
type depositState int

const (
	stateReceived depositState = iota
	stateAuthenticated
	stateAuthorized
	stateContentAccepted
	stateExecuted
	stateNoOp
	stateRejected
)

func (s depositState) String() string {
	switch s {
	case stateReceived:
		return "received"
	case stateAuthenticated:
		return "authenticated"
	case stateAuthorized:
		return "authorized"
	case stateContentAccepted:
		return "content-accepted"
	case stateExecuted:
		return "executed"
	case stateNoOp:
		return "noop"
	case stateRejected:
		return "rejected"
	}
	return "unknown"
}

var depositStats = expvar.NewMap("deposits")

// DepositHandler accepts a new deposit into a collection. The collection
// is the last segment of the request's target location.
func (s *RESTServer) DepositHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	d, err := parseDeposit(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	collection, _ := resolveTarget(d.Location, false)
	if collection == "" {
		s.writeError(w, errors.Wrap(sword.ErrBadRequest, "no collection in target location"))
		return
	}
	resp, err := s.deposit(d, collection, "")
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, resp)
}

// UpdateHandler replaces the content and metadata of an existing object.
// The collection and object are the last two segments of the request's
// target location.
func (s *RESTServer) UpdateHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	d, err := parseDeposit(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	collection, pid := resolveTarget(d.Location, true)
	if collection == "" || pid == "" {
		s.writeError(w, errors.Wrap(sword.ErrBadRequest, "no object in target location"))
		return
	}
	resp, err := s.deposit(d, collection, pid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, resp)
}

// deposit drives a create (pid empty) or update (pid set) through the
// pipeline. State advances strictly: a request is authenticated before it
// is authorized, and authorized before any of its content is examined.
func (s *RESTServer) deposit(d *sword.Deposit, collection, pid string) (*sword.DepositResponse, error) {
	state := stateReceived
	defer func() { depositStats.Add(state.String(), 1) }()

	repo := s.Fedora.As(d.Username, d.Password)
	if err := repo.Authenticate(); err != nil {
		state = stateRejected
		return nil, err
	}
	state = stateAuthenticated

	if err := s.Policy.Authorize(d.Depositor(), collection); err != nil {
		state = stateRejected
		return nil, err
	}
	state = stateAuthorized

	// acceptability is a policy decision and comes before handler dispatch
	if err := s.Policy.AcceptsContent(collection, d.ContentType, d.Packaging); err != nil {
		state = stateRejected
		return nil, err
	}
	h, err := s.Handlers.Select(d.ContentType, d.Packaging)
	if err != nil {
		state = stateRejected
		return nil, err
	}
	if pid != "" {
		fields, err := repo.FindObject(pid)
		if err != nil {
			state = stateRejected
			return nil, err
		}
		if fields == nil {
			state = stateRejected
			return nil, errors.Wrapf(sword.ErrNotFound, "no object %s in %s", pid, collection)
		}
	}
	state = stateContentAccepted

	tempdir, err := scratch()
	if err != nil {
		state = stateRejected
		return nil, err
	}
	defer os.RemoveAll(tempdir)

	cx := &handler.Context{
		Deposit:    d,
		Collection: collection,
		Repo:       repo,
		TempDir:    tempdir,
		Treatment:  s.Treatment,
		EditBase:   s.ExternalURL + "/sword/edit/" + collection,
		ServiceURI: s.ExternalURL,
	}
	var entry *sword.Entry
	if pid == "" {
		entry, err = h.Ingest(cx)
	} else {
		entry, err = h.Update(cx, pid)
	}
	if err != nil {
		state = stateRejected
		return nil, err
	}

	resp := &sword.DepositResponse{Entry: entry}
	if d.NoOp {
		state = stateNoOp
		resp.Status = 200
		return resp, nil
	}
	state = stateExecuted
	resp.Location = entry.EditLink()
	operation := "update"
	if pid == "" {
		operation = "create"
		resp.Status = 201
		pid = pidFromEdit(resp.Location)
	} else {
		resp.Status = 200
	}
	s.cacheEntry(collection, pid, entry)
	s.audit(AuditRecord{
		When:       time.Now(),
		Collection: collection,
		PID:        pid,
		Depositor:  d.Depositor(),
		Operation:  operation,
		Message:    d.ContentType,
	})
	return resp, nil
}

// DeleteHandler marks an object deleted and drops its cached entry.
func (s *RESTServer) DeleteHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	dr, err := parseDelete(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	collection, pid := resolveTarget(dr.Location, true)
	if collection == "" || pid == "" {
		s.writeError(w, errors.Wrap(sword.ErrBadRequest, "no object in target location"))
		return
	}
	status, err := s.delete(dr, collection, pid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(status)
}

func (s *RESTServer) delete(dr *sword.DeleteRequest, collection, pid string) (int, error) {
	state := stateReceived
	defer func() { depositStats.Add(state.String(), 1) }()

	repo := s.Fedora.As(dr.Username, dr.Password)
	if err := repo.Authenticate(); err != nil {
		state = stateRejected
		return 0, err
	}
	state = stateAuthenticated

	if err := s.Policy.Authorize(dr.Actor(), collection); err != nil {
		state = stateRejected
		return 0, err
	}
	state = stateAuthorized

	// a no-op delete returns before the backend is consulted at all
	if dr.NoOp {
		state = stateNoOp
		return 200, nil
	}
	fields, err := repo.FindObject(pid)
	if err != nil {
		state = stateRejected
		return 0, err
	}
	if fields == nil {
		state = stateRejected
		return 0, errors.Wrapf(sword.ErrNotFound, "no object %s in %s", pid, collection)
	}
	message := fmt.Sprintf("Deleted by %s via the SWORD deposit service", dr.Actor())
	err = repo.ModifyObject(pid, fedora.StateDeleted, fields.Label, fields.Owner, message)
	if err != nil {
		state = stateRejected
		return 0, err
	}
	state = stateExecuted
	// drop only this object's cached entry; a miss here is fine
	s.Entries.Invalidate(collection, pid)
	s.audit(AuditRecord{
		When:       time.Now(),
		Collection: collection,
		PID:        pid,
		Depositor:  dr.Actor(),
		Operation:  "delete",
		Message:    message,
	})
	return 200, nil
}

// EntryHandler serves the cached entry document for an object.
func (s *RESTServer) EntryHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	body, err := s.Entries.Get(ps.ByName("collection"), ps.ByName("id"))
	if err != nil {
		s.writeError(w, errors.Wrap(sword.ErrNotFound, err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	w.Write(body)
}

// cacheEntry saves the entry document for later GETs. Failures are logged
// and reported, not returned: the deposit itself already succeeded.
func (s *RESTServer) cacheEntry(collection, pid string, entry *sword.Entry) {
	if pid == "" {
		return
	}
	body, err := entry.Encode()
	if err == nil {
		err = s.Entries.Put(collection, pid, body)
	}
	if err != nil {
		log.Println("cache entry:", collection, pid, err)
		raven.CaptureError(err, map[string]string{"Collection": collection, "PID": pid})
	}
}

func (s *RESTServer) audit(rec AuditRecord) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(rec); err != nil {
		log.Println("audit:", rec.PID, err)
		raven.CaptureError(err, map[string]string{"PID": rec.PID})
	}
}

func (s *RESTServer) writeResponse(w http.ResponseWriter, resp *sword.DepositResponse) {
	body, err := resp.Entry.Encode()
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	if resp.Location != "" {
		w.Header().Set("Location", resp.Location)
	}
	w.WriteHeader(resp.Status)
	w.Write(body)
}

// writeError maps the pipeline's error taxonomy onto HTTP statuses. This
// is the only place the mapping happens.
func (s *RESTServer) writeError(w http.ResponseWriter, err error) {
	var status int
	switch errors.Cause(err) {
	case sword.ErrCredentials:
		w.Header().Set("WWW-Authenticate", `Basic realm="SWORD deposit"`)
		status = 401
	case sword.ErrForbidden:
		status = 403
	case sword.ErrContentNotAccepted:
		status = 406
	case sword.ErrNoHandler:
		status = 415
	case sword.ErrNotFound:
		status = 404
	case sword.ErrBadRequest:
		status = 400
	default:
		status = 500
		raven.CaptureError(err, nil)
	}
	log.Println("deposit error:", status, err)
	w.WriteHeader(status)
	fmt.Fprintln(w, err.Error())
}

// pidFromEdit recovers the object identifier from an edit link.
func pidFromEdit(editURL string) string {
	for i := len(editURL) - 1; i >= 0; i-- {
		if editURL[i] == '/' {
			return editURL[i+1:]
		}
	}
	return ""
}

// resolveTarget extracts the target collection, and for edit locations
// also the object identifier, from a request's location path. The
// collection is the last segment of a deposit location and the
// second-to-last of an edit location.
func resolveTarget(location string, withObject bool) (collection, id string) {
	segs := strings.Split(strings.Trim(location, "/"), "/")
	if withObject {
		if len(segs) < 2 {
			return "", ""
		}
		return segs[len(segs)-2], segs[len(segs)-1]
	}
	return segs[len(segs)-1], ""
}
