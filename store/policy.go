package store

import (
	"database/sql"

	"github.com/lostatc/reversion/reversionerrors"
	"github.com/uplo-tech/errors"
)

// AddCleanupPolicy inserts a policy and associates it with a timeline
// (spec.md §3 "CleanupPolicy"; §4.5 "many-to-many with timelines").
func (s *Store) AddCleanupPolicy(timelineID string, minIntervalMs, timeFrameMs int64, maxVersions uint64, description string) (int64, error) {
	var id int64
	err := s.withWriteTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`INSERT INTO cleanup_policy(min_interval_ms, time_frame_ms, max_versions, description) VALUES(?, ?, ?, ?)`,
			minIntervalMs, timeFrameMs, int64(maxVersions), description)
		if err != nil {
			return errors.AddContext(err, "could not insert cleanup policy")
		}
		id, err = res.LastInsertId()
		if err != nil {
			return errors.AddContext(err, "could not read new policy id")
		}
		if _, err := tx.Exec(`INSERT INTO timeline_cleanup_policy(timeline_id, policy_id) VALUES(?, ?)`, timelineID, id); err != nil {
			return errors.AddContext(err, "could not associate cleanup policy")
		}
		return nil
	})
	return id, err
}

// ListCleanupPolicies returns every policy associated with a timeline.
func (s *Store) ListCleanupPolicies(timelineID string) ([]PolicyRow, error) {
	rows, err := s.db.Query(`
		SELECT p.id, p.min_interval_ms, p.time_frame_ms, p.max_versions, p.description
		FROM cleanup_policy p
		JOIN timeline_cleanup_policy tcp ON tcp.policy_id = p.id
		WHERE tcp.timeline_id = ?`, timelineID)
	if err != nil {
		return nil, errors.AddContext(err, "could not list cleanup policies")
	}
	defer rows.Close()
	var out []PolicyRow
	for rows.Next() {
		var p PolicyRow
		var maxV int64
		if err := rows.Scan(&p.ID, &p.MinIntervalMs, &p.TimeFrameMs, &maxV, &p.Description); err != nil {
			return nil, errors.AddContext(err, "could not scan cleanup policy")
		}
		p.MaxVersions = uint64(maxV)
		out = append(out, p)
	}
	return out, rows.Err()
}

// RemoveCleanupPolicy deletes a policy and its timeline association.
func (s *Store) RemoveCleanupPolicy(id int64) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM cleanup_policy WHERE id = ?`, id)
		if err != nil {
			return errors.AddContext(err, "could not remove cleanup policy")
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return reversionerrors.ErrNotFound
		}
		return nil
	})
}
