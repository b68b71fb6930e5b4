package store

import (
	"database/sql"
	"time"

	"github.com/lostatc/reversion/reversionerrors"
	"github.com/uplo-tech/errors"
)

// CreateSnapshot allocates the next revision for timelineID and inserts a
// new snapshot row, all within one transaction (spec.md §4.8
// Timeline.create_snapshot steps 1-3).
func (s *Store) CreateSnapshot(timelineID string, name string, hasName bool, description string, pinned bool, now time.Time) (SnapshotRow, error) {
	var row SnapshotRow
	err := s.withWriteTx(func(tx *sql.Tx) error {
		rev, err := nextRevision(tx, timelineID)
		if err != nil {
			return err
		}
		var nameArg sql.NullString
		if hasName {
			nameArg = sql.NullString{String: name, Valid: true}
		}
		res, err := tx.Exec(`INSERT INTO snapshot(timeline_id, revision, name, description, pinned, time_created)
			VALUES(?, ?, ?, ?, ?, ?)`,
			timelineID, rev, nameArg, description, boolToInt(pinned), nowMillis(now))
		if err != nil {
			return errors.AddContext(err, "could not insert snapshot")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return errors.AddContext(err, "could not read new snapshot id")
		}
		row = SnapshotRow{
			ID: id, TimelineID: timelineID, Revision: rev,
			Name: name, HasName: hasName, Description: description,
			Pinned: pinned, TimeCreated: now,
		}
		return nil
	})
	return row, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanSnapshot(rows interface {
	Scan(dest ...interface{}) error
}) (SnapshotRow, error) {
	var row SnapshotRow
	var name sql.NullString
	var pinned int
	var ms int64
	if err := rows.Scan(&row.ID, &row.TimelineID, &row.Revision, &name, &row.Description, &pinned, &ms); err != nil {
		return SnapshotRow{}, err
	}
	row.Name = name.String
	row.HasName = name.Valid
	row.Pinned = pinned != 0
	row.TimeCreated = time.UnixMilli(ms)
	return row, nil
}

const snapshotColumns = `id, timeline_id, revision, name, description, pinned, time_created`

// GetSnapshot returns the snapshot row by id.
func (s *Store) GetSnapshot(id int64) (SnapshotRow, error) {
	row := s.db.QueryRow(`SELECT `+snapshotColumns+` FROM snapshot WHERE id = ?`, id)
	sr, err := scanSnapshot(row)
	if errors.Contains(err, sql.ErrNoRows) {
		return SnapshotRow{}, reversionerrors.ErrNotFound
	}
	if err != nil {
		return SnapshotRow{}, errors.AddContext(err, "could not read snapshot")
	}
	return sr, nil
}

// GetSnapshotByRevision returns the snapshot row for (timelineID, revision).
func (s *Store) GetSnapshotByRevision(timelineID string, revision int64) (SnapshotRow, error) {
	row := s.db.QueryRow(`SELECT `+snapshotColumns+` FROM snapshot WHERE timeline_id = ? AND revision = ?`, timelineID, revision)
	sr, err := scanSnapshot(row)
	if errors.Contains(err, sql.ErrNoRows) {
		return SnapshotRow{}, reversionerrors.ErrNotFound
	}
	if err != nil {
		return SnapshotRow{}, errors.AddContext(err, "could not read snapshot")
	}
	return sr, nil
}

// ListSnapshots returns every snapshot in a timeline, oldest revision
// first.
func (s *Store) ListSnapshots(timelineID string) ([]SnapshotRow, error) {
	rows, err := s.db.Query(`SELECT `+snapshotColumns+` FROM snapshot WHERE timeline_id = ? ORDER BY revision ASC`, timelineID)
	if err != nil {
		return nil, errors.AddContext(err, "could not list snapshots")
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		sr, err := scanSnapshot(rows)
		if err != nil {
			return nil, errors.AddContext(err, "could not scan snapshot")
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the snapshot with the highest revision in a
// timeline.
func (s *Store) LatestSnapshot(timelineID string) (SnapshotRow, bool, error) {
	row := s.db.QueryRow(`SELECT `+snapshotColumns+` FROM snapshot WHERE timeline_id = ? ORDER BY revision DESC LIMIT 1`, timelineID)
	sr, err := scanSnapshot(row)
	if errors.Contains(err, sql.ErrNoRows) {
		return SnapshotRow{}, false, nil
	}
	if err != nil {
		return SnapshotRow{}, false, errors.AddContext(err, "could not read latest snapshot")
	}
	return sr, true, nil
}

// SetSnapshotLabels updates the mutable name/description/pinned fields of a
// snapshot (spec.md §4.8 "There is no edit of a Snapshot's content after
// creation... name/description/pinned are mutable labels").
func (s *Store) SetSnapshotLabels(id int64, name string, hasName bool, description string, pinned bool) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		var nameArg sql.NullString
		if hasName {
			nameArg = sql.NullString{String: name, Valid: true}
		}
		res, err := tx.Exec(`UPDATE snapshot SET name = ?, description = ?, pinned = ? WHERE id = ?`,
			nameArg, description, boolToInt(pinned), id)
		if err != nil {
			return errors.AddContext(err, "could not update snapshot labels")
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return reversionerrors.ErrNotFound
		}
		return nil
	})
}

// RemoveSnapshot deletes a snapshot and, via cascade, its versions/blocks/
// tags.
func (s *Store) RemoveSnapshot(id int64) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM snapshot WHERE id = ?`, id)
		if err != nil {
			return errors.AddContext(err, "could not remove snapshot")
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return reversionerrors.ErrNotFound
		}
		return nil
	})
}

// SnapshotVersionCount returns how many versions remain in a snapshot,
// used to decide whether an emptied snapshot should be removed.
func (s *Store) SnapshotVersionCount(id int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM version WHERE snapshot_id = ?`, id).Scan(&n)
	if err != nil {
		return 0, errors.AddContext(err, "could not count snapshot versions")
	}
	return n, nil
}
