package server

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/BurntSushi/migration"
	"github.com/julienschmidt/httprouter"
)

// An AuditRecord is one executed operation against the repository. No-op
// requests are not recorded; they change nothing.
type AuditRecord struct {
	When       time.Time `json:"when"`
	Collection string    `json:"collection"`
	PID        string    `json:"pid"`
	Depositor  string    `json:"depositor"`
	Operation  string    `json:"operation"` // create, update, or delete
	Message    string    `json:"message"`
}

// AuditDB stores the audit trail of executed operations.
type AuditDB interface {
	// Record appends one entry to the trail.
	Record(rec AuditRecord) error

	// Search returns every entry for the given object, oldest first.
	Search(pid string) ([]AuditRecord, error)
}

// AuditHandler returns the audit trail for one object as JSON.
func (s *RESTServer) AuditHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	recs, err := s.Audit.Search(ps.ByName("pid"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(recs)
}

// we need to adapt the migration version functions to work with MySQL and QL
// This code is slightly modified from github.com/BurntSushi/migration

type dbVersion struct {
	// SQL to get the version of this db, returns one row and one column
	GetSQL string
	// SQL to insert a new version of this db. takes one parameter, the new
	// version
	SetSQL string
	// the SQL to create the version table for this db
	CreateSQL string
}

func (d dbVersion) Get(tx migration.LimitedTx) (int, error) {
	v, err := d.get(tx)
	if err != nil {
		// we assume error means there is no migration table
		log.Println(err.Error())
		return 0, nil
	}
	return v, nil
}

func (d dbVersion) Set(tx migration.LimitedTx, version int) error {
	if err := d.set(tx, version); err != nil {
		if err := d.createTable(tx); err != nil {
			return err
		}
		return d.set(tx, version)
	}
	return nil
}

func (d dbVersion) get(tx migration.LimitedTx) (int, error) {
	var version int
	r := tx.QueryRow(d.GetSQL)
	if err := r.Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func (d dbVersion) set(tx migration.LimitedTx, version int) error {
	_, err := tx.Exec(d.SetSQL, version)
	return err
}

func (d dbVersion) createTable(tx migration.LimitedTx) error {
	_, err := tx.Exec(d.CreateSQL)
	if err == nil {
		err = d.set(tx, 0)
	}
	return err
}
