package store

import (
	"database/sql"

	"github.com/uplo-tech/errors"
)

// GetConfig implements config.Store.
func (s *Store) GetConfig(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Contains(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.AddContext(err, "could not read config")
	}
	return value, true, nil
}

// SetConfig implements config.Store.
func (s *Store) SetConfig(key, value string) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO config(key, value) VALUES(?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
		if err != nil {
			return errors.AddContext(err, "could not write config")
		}
		return nil
	})
}
