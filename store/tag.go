package store

import (
	"database/sql"
	"strings"

	"github.com/lostatc/reversion/reversionerrors"
	"github.com/uplo-tech/errors"
)

// AddTag creates a tag on a snapshot, failing with ErrRecordAlreadyExists
// if the name collides within the timeline (spec.md §4.8 "Tag.add... fails
// with RecordAlreadyExists if a tag with that name already exists in the
// same timeline").
func (s *Store) AddTag(snapshotID int64, timelineID, name, description string, pinned bool) (int64, error) {
	var id int64
	err := s.withWriteTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`INSERT INTO tag(snapshot_id, timeline_id, name, description, pinned) VALUES(?, ?, ?, ?, ?)`,
			snapshotID, timelineID, name, description, boolToInt(pinned))
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				return reversionerrors.ErrRecordAlreadyExists
			}
			return errors.AddContext(err, "could not add tag")
		}
		id, err = res.LastInsertId()
		if err != nil {
			return errors.AddContext(err, "could not read new tag id")
		}
		if pinned {
			if _, err := tx.Exec(`UPDATE snapshot SET pinned = 1 WHERE id = ?`, snapshotID); err != nil {
				return errors.AddContext(err, "could not propagate pinned tag to snapshot")
			}
		}
		return nil
	})
	return id, err
}

func scanTag(row interface {
	Scan(dest ...interface{}) error
}) (TagRow, error) {
	var t TagRow
	var pinned int
	if err := row.Scan(&t.ID, &t.SnapshotID, &t.TimelineID, &t.Name, &t.Description, &pinned); err != nil {
		return TagRow{}, err
	}
	t.Pinned = pinned != 0
	return t, nil
}

const tagColumns = `id, snapshot_id, timeline_id, name, description, pinned`

// ListTagsOnSnapshot returns every tag attached to a snapshot.
func (s *Store) ListTagsOnSnapshot(snapshotID int64) ([]TagRow, error) {
	rows, err := s.db.Query(`SELECT `+tagColumns+` FROM tag WHERE snapshot_id = ?`, snapshotID)
	if err != nil {
		return nil, errors.AddContext(err, "could not list tags")
	}
	defer rows.Close()
	var out []TagRow
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, errors.AddContext(err, "could not scan tag")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTagByName returns the tag named name within a timeline.
func (s *Store) GetTagByName(timelineID, name string) (TagRow, bool, error) {
	row := s.db.QueryRow(`SELECT `+tagColumns+` FROM tag WHERE timeline_id = ? AND name = ?`, timelineID, name)
	t, err := scanTag(row)
	if errors.Contains(err, sql.ErrNoRows) {
		return TagRow{}, false, nil
	}
	if err != nil {
		return TagRow{}, false, errors.AddContext(err, "could not read tag")
	}
	return t, true, nil
}

// ListTags returns every tag in a timeline.
func (s *Store) ListTags(timelineID string) ([]TagRow, error) {
	rows, err := s.db.Query(`SELECT `+tagColumns+` FROM tag WHERE timeline_id = ?`, timelineID)
	if err != nil {
		return nil, errors.AddContext(err, "could not list tags")
	}
	defer rows.Close()
	var out []TagRow
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, errors.AddContext(err, "could not scan tag")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RemoveTag deletes a tag by id.
func (s *Store) RemoveTag(id int64) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM tag WHERE id = ?`, id)
		if err != nil {
			return errors.AddContext(err, "could not remove tag")
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return reversionerrors.ErrNotFound
		}
		return nil
	})
}

// ModifyTag updates a tag's mutable fields.
func (s *Store) ModifyTag(id int64, description string, pinned bool) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		var snapshotID int64
		if err := tx.QueryRow(`SELECT snapshot_id FROM tag WHERE id = ?`, id).Scan(&snapshotID); err != nil {
			if errors.Contains(err, sql.ErrNoRows) {
				return reversionerrors.ErrNotFound
			}
			return errors.AddContext(err, "could not look up tag")
		}
		if _, err := tx.Exec(`UPDATE tag SET description = ?, pinned = ? WHERE id = ?`, description, boolToInt(pinned), id); err != nil {
			return errors.AddContext(err, "could not modify tag")
		}
		if pinned {
			if _, err := tx.Exec(`UPDATE snapshot SET pinned = 1 WHERE id = ?`, snapshotID); err != nil {
				return errors.AddContext(err, "could not propagate pinned tag to snapshot")
			}
		}
		return nil
	})
}

// SnapshotIsPinned reports the snapshot's own pinned column (spec.md §4.8
// Snapshot.pinned; DESIGN.md Open Question #2 picks the direct-column
// representation). Tags are not consulted here: AddTag and ModifyTag set
// the column when they record a pinned tag, while RemoveTag and unpinning
// a tag through ModifyTag leave it unchanged.
func (s *Store) SnapshotIsPinned(snapshotID int64) (bool, error) {
	sn, err := s.GetSnapshot(snapshotID)
	if err != nil {
		return false, err
	}
	return sn.Pinned, nil
}
