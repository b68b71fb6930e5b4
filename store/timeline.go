package store

import (
	"database/sql"
	"time"

	"github.com/lostatc/reversion/reversionerrors"
	"github.com/uplo-tech/errors"
)

// CreateTimeline inserts a new timeline row.
func (s *Store) CreateTimeline(id string, now time.Time) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO timeline(id, time_created) VALUES(?, ?)`, id, nowMillis(now))
		if err != nil {
			return errors.AddContext(err, "could not create timeline")
		}
		return nil
	})
}

// GetTimeline returns the timeline row for id.
func (s *Store) GetTimeline(id string) (TimelineRow, error) {
	var row TimelineRow
	var ms int64
	err := s.db.QueryRow(`SELECT id, time_created FROM timeline WHERE id = ?`, id).Scan(&row.ID, &ms)
	if errors.Contains(err, sql.ErrNoRows) {
		return TimelineRow{}, reversionerrors.ErrNotFound
	}
	if err != nil {
		return TimelineRow{}, errors.AddContext(err, "could not read timeline")
	}
	row.TimeCreated = time.UnixMilli(ms)
	return row, nil
}

// ListTimelines returns every timeline row in the repository.
func (s *Store) ListTimelines() ([]TimelineRow, error) {
	rows, err := s.db.Query(`SELECT id, time_created FROM timeline`)
	if err != nil {
		return nil, errors.AddContext(err, "could not list timelines")
	}
	defer rows.Close()
	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		var ms int64
		if err := rows.Scan(&row.ID, &ms); err != nil {
			return nil, errors.AddContext(err, "could not scan timeline")
		}
		row.TimeCreated = time.UnixMilli(ms)
		out = append(out, row)
	}
	return out, rows.Err()
}

// RemoveTimeline deletes a timeline and, via ON DELETE CASCADE, every
// snapshot/version/block/tag beneath it. Blob rows referenced only by those
// blocks become orphaned and must be swept by the caller (the blob store
// owns blob-file deletion; see repository.Repository.RemoveTimeline).
func (s *Store) RemoveTimeline(id string) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM timeline WHERE id = ?`, id)
		if err != nil {
			return errors.AddContext(err, "could not remove timeline")
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return reversionerrors.ErrNotFound
		}
		return nil
	})
}

// nextRevision allocates the next strictly-increasing revision number for a
// timeline, starting at 1, inside the caller's write transaction
// (spec.md §4.5 "a single monotonic revision counter per timeline").
func nextRevision(tx *sql.Tx, timelineID string) (int64, error) {
	var max sql.NullInt64
	err := tx.QueryRow(`SELECT MAX(revision) FROM snapshot WHERE timeline_id = ?`, timelineID).Scan(&max)
	if err != nil {
		return 0, errors.AddContext(err, "could not compute next revision")
	}
	if !max.Valid {
		return 1, nil
	}
	return max.Int64 + 1, nil
}
