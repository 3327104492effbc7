package server

import (
	"database/sql"
	"log"
	"time"

	// no _ in import mysql since we need mysql.NullTime
	"github.com/BurntSushi/migration"
	"github.com/go-sql-driver/mysql"
)

// This file implements the audit log using MySQL as the backing store.

type msqlAudit struct {
	db *sql.DB
}

var _ AuditDB = &msqlAudit{}

// List of migrations to perform. Add new ones to the end.
// DO NOT change the order of items already in this list.
var mysqlMigrations = []migration.Migrator{
	mysqlschema1,
}

// Adapt the schema versioning for MySQL

var mysqlVersioning = dbVersion{
	GetSQL:    `SELECT max(version) FROM migration_version`,
	SetSQL:    `INSERT INTO migration_version (version, applied) VALUES (?, now())`,
	CreateSQL: `CREATE TABLE migration_version (version INTEGER, applied datetime)`,
}

// NewMysqlAudit connects to a MySQL database and returns an audit log
// backed by it, applying any pending schema migrations first.
func NewMysqlAudit(dial string) (*msqlAudit, error) {
	db, err := migration.OpenWith(
		"mysql",
		dial,
		mysqlMigrations,
		mysqlVersioning.Get,
		mysqlVersioning.Set)
	if err != nil {
		log.Printf("Open Mysql: %s", err.Error())
		return nil, err
	}
	return &msqlAudit{db: db}, nil
}

func (ms *msqlAudit) Record(rec AuditRecord) error {
	const query = `
		INSERT INTO deposits (created, collection, pid, depositor, operation, message)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := ms.db.Exec(query,
		rec.When, rec.Collection, rec.PID, rec.Depositor, rec.Operation, rec.Message)
	return err
}

func (ms *msqlAudit) Search(pid string) ([]AuditRecord, error) {
	const query = `
		SELECT created, collection, pid, depositor, operation, message
		FROM deposits
		WHERE pid = ?
		ORDER BY created`

	rows, err := ms.db.Query(query, pid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		var when mysql.NullTime
		err = rows.Scan(&when, &rec.Collection, &rec.PID, &rec.Depositor, &rec.Operation, &rec.Message)
		if err != nil {
			return nil, err
		}
		if when.Valid {
			rec.When = when.Time
		} else {
			rec.When = time.Time{}
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// database migrations. each one is a go function. Add them to the
// list mysqlMigrations at top of this file for them to be run.

func mysqlschema1(tx migration.LimitedTx) error {
	var s = []string{
		`CREATE TABLE IF NOT EXISTS deposits (
		id int PRIMARY KEY AUTO_INCREMENT,
		created datetime,
		collection varchar(255),
		pid varchar(255),
		depositor varchar(255),
		operation varchar(32),
		message text)`,

		`CREATE INDEX depositpid ON deposits (pid)`,
	}
	return execlist(tx, s)
}

// execlist exec's each item in the list, return if there is an error.
// Used to work around mysql driver not handling compound exec statements.
func execlist(tx migration.LimitedTx, stms []string) error {
	var err error
	for _, s := range stms {
		_, err = tx.Exec(s)
		if err != nil {
			break
		}
	}
	return err
}
