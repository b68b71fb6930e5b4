// Package store implements the repository's relational metadata index:
// timelines, snapshots, versions, blocks, blobs, tags and cleanup policies
// (C5, spec.md §4.5), backed by modernc.org/sqlite. Every externally
// visible mutation runs inside a single transaction; a demotemutex-guarded
// gate serialises writers while letting readers proceed freely, matching
// spec.md §5's "writes are transactional, conflicting transactions retry
// or fail cleanly" and "multiple parallel threads invoking read operations
// concurrently".
package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/uplo-tech/demotemutex"
	"github.com/uplo-tech/errors"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// Store is the relational metadata index for one repository.
type Store struct {
	db *sql.DB
	// writeGate serialises writers; readers never block on it. withWriteTx
	// holds it as an exclusive lock for the whole transaction, retries
	// included, and releases it fully once the transaction is done.
	writeGate demotemutex.DemoteMutex
}

// Open opens (creating if necessary) the sqlite database at path and
// ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.AddContext(err, "could not open metadata store")
	}
	db.SetMaxOpenConns(1) // sqlite serialises writers anyway; avoid lock thrash
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, errors.AddContext(err, "could not enable foreign keys")
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, errors.AddContext(err, "could not enable WAL journal mode")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.AddContext(err, "could not apply schema")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// isBusy reports whether err is a transient sqlite lock-contention error
// worth retrying, per spec.md §5 "conflicting transactions retry".
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withWriteTx runs fn inside a write transaction, serialised against other
// writers by writeGate, retrying on transient busy errors with bounded
// exponential backoff.
func (s *Store) withWriteTx(fn func(tx *sql.Tx) error) error {
	s.writeGate.Lock()
	defer s.writeGate.Unlock()

	op := func() error {
		tx, err := s.db.Begin()
		if err != nil {
			if isBusy(err) {
				return err
			}
			return backoff.Permanent(errors.AddContext(err, "could not begin transaction"))
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			if isBusy(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if err := tx.Commit(); err != nil {
			if isBusy(err) {
				return err
			}
			return backoff.Permanent(errors.AddContext(err, "could not commit transaction"))
		}
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 10)
	return backoff.Retry(op, b)
}

// withReadTx runs fn inside a read-only transaction. Readers never wait on
// writeGate; sqlite's own MVCC (WAL mode) gives them a consistent snapshot.
func (s *Store) withReadTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.AddContext(err, "could not begin read transaction")
	}
	defer tx.Rollback()
	return fn(tx)
}

func nowMillis(t time.Time) int64 {
	return t.UnixMilli()
}
