package server

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/cznic/ql/driver"
)

// This file implements the audit log using the QL embedded database, for
// deployments without a MySQL server.

type qlAudit struct {
	db *sql.DB
}

var _ AuditDB = &qlAudit{}

const qlAuditInit = `
	CREATE TABLE IF NOT EXISTS deposits (
		created time,
		collection string,
		pid string,
		depositor string,
		operation string,
		message string
	);
	CREATE INDEX IF NOT EXISTS depositpid ON deposits (pid);
	CREATE INDEX IF NOT EXISTS depositcreated ON deposits (created);
`

// NewQlAudit makes a QL backed audit log saved to the given file. The
// filename "memory" means to keep everything in memory.
func NewQlAudit(filename string) (*qlAudit, error) {
	var db *sql.DB
	var err error
	if filename == "memory" {
		db, err = sql.Open("ql-mem", "mem.db")
	} else {
		db, err = sql.Open("ql", filename)
	}
	if err == nil {
		_, err = performExec(db, qlAuditInit)
	}
	if err != nil {
		log.Printf("Open QL: %s", err.Error())
		return nil, err
	}
	return &qlAudit{db: db}, nil
}

func (qa *qlAudit) Record(rec AuditRecord) error {
	const query = `INSERT INTO deposits VALUES (?1, ?2, ?3, ?4, ?5, ?6)`

	_, err := performExec(qa.db, query,
		rec.When, rec.Collection, rec.PID, rec.Depositor, rec.Operation, rec.Message)
	return err
}

func (qa *qlAudit) Search(pid string) ([]AuditRecord, error) {
	const query = `
		SELECT created, collection, pid, depositor, operation, message
		FROM deposits
		WHERE pid == ?1
		ORDER BY created`

	rows, err := qa.db.Query(query, pid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var when time.Time
		err = rows.Scan(&when, &rec.Collection, &rec.PID, &rec.Depositor, &rec.Operation, &rec.Message)
		if err != nil {
			return nil, err
		}
		rec.When = when
		result = append(result, rec)
	}
	return result, rows.Err()
}

func performExec(db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	var result sql.Result
	result, err = tx.Exec(query, args...)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	err = tx.Commit()
	return result, err
}
