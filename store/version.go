package store

import (
	"database/sql"
	"time"

	"github.com/lostatc/reversion/reversionerrors"
	"github.com/uplo-tech/errors"
)

// VersionInput describes a new version row plus the ordered blob ids of
// its blocks.
type VersionInput struct {
	Path           string
	LastModifiedMs int64
	Permissions    *uint16
	Size           int64
	Checksum       []byte
	BlobIDs        []int64 // block 0..n-1, in order
}

// CreateVersion inserts a version row and its ordered block rows in one
// transaction (spec.md §4.8 step 4e and "Block... Unique on
// (version, index)").
func (s *Store) CreateVersion(snapshotID int64, in VersionInput) (int64, error) {
	var versionID int64
	err := s.withWriteTx(func(tx *sql.Tx) error {
		var permArg sql.NullInt64
		if in.Permissions != nil {
			permArg = sql.NullInt64{Int64: int64(*in.Permissions), Valid: true}
		}
		res, err := tx.Exec(`INSERT INTO version(snapshot_id, path, last_modified_ms, permissions, size, checksum)
			VALUES(?, ?, ?, ?, ?, ?)`,
			snapshotID, in.Path, in.LastModifiedMs, permArg, in.Size, in.Checksum)
		if err != nil {
			return errors.AddContext(err, "could not insert version")
		}
		versionID, err = res.LastInsertId()
		if err != nil {
			return errors.AddContext(err, "could not read new version id")
		}
		stmt, err := tx.Prepare(`INSERT INTO block(version_id, blob_id, idx) VALUES(?, ?, ?)`)
		if err != nil {
			return errors.AddContext(err, "could not prepare block insert")
		}
		defer stmt.Close()
		for i, blobID := range in.BlobIDs {
			if _, err := stmt.Exec(versionID, blobID, i); err != nil {
				return errors.AddContext(err, "could not insert block")
			}
		}
		return nil
	})
	return versionID, err
}

func scanVersion(row interface {
	Scan(dest ...interface{}) error
}) (VersionRow, error) {
	var v VersionRow
	var perm sql.NullInt64
	if err := row.Scan(&v.ID, &v.SnapshotID, &v.Path, &v.LastModifiedMs, &perm, &v.Size, &v.Checksum); err != nil {
		return VersionRow{}, err
	}
	if perm.Valid {
		p := uint16(perm.Int64)
		v.Permissions = &p
	}
	return v, nil
}

const versionColumns = `id, snapshot_id, path, last_modified_ms, permissions, size, checksum`

// GetVersion returns the version row by id.
func (s *Store) GetVersion(id int64) (VersionRow, error) {
	row := s.db.QueryRow(`SELECT `+versionColumns+` FROM version WHERE id = ?`, id)
	v, err := scanVersion(row)
	if errors.Contains(err, sql.ErrNoRows) {
		return VersionRow{}, reversionerrors.ErrNotFound
	}
	if err != nil {
		return VersionRow{}, errors.AddContext(err, "could not read version")
	}
	return v, nil
}

// GetVersionByPath returns the version row for (snapshotID, path).
func (s *Store) GetVersionByPath(snapshotID int64, path string) (VersionRow, bool, error) {
	row := s.db.QueryRow(`SELECT `+versionColumns+` FROM version WHERE snapshot_id = ? AND path = ?`, snapshotID, path)
	v, err := scanVersion(row)
	if errors.Contains(err, sql.ErrNoRows) {
		return VersionRow{}, false, nil
	}
	if err != nil {
		return VersionRow{}, false, errors.AddContext(err, "could not read version")
	}
	return v, true, nil
}

// ListVersionsInSnapshot returns every version belonging to a snapshot.
func (s *Store) ListVersionsInSnapshot(snapshotID int64) ([]VersionRow, error) {
	rows, err := s.db.Query(`SELECT `+versionColumns+` FROM version WHERE snapshot_id = ?`, snapshotID)
	if err != nil {
		return nil, errors.AddContext(err, "could not list versions")
	}
	defer rows.Close()
	var out []VersionRow
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, errors.AddContext(err, "could not scan version")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListVersionsByPath returns, newest-to-oldest, every version of path in a
// timeline (spec.md §4.8 Timeline.list_versions), joined against snapshot
// revision for ordering.
func (s *Store) ListVersionsByPath(timelineID, path string) ([]VersionRow, error) {
	rows, err := s.db.Query(`
		SELECT v.id, v.snapshot_id, v.path, v.last_modified_ms, v.permissions, v.size, v.checksum
		FROM version v JOIN snapshot sn ON sn.id = v.snapshot_id
		WHERE sn.timeline_id = ? AND v.path = ?
		ORDER BY sn.revision DESC`, timelineID, path)
	if err != nil {
		return nil, errors.AddContext(err, "could not list versions by path")
	}
	defer rows.Close()
	var out []VersionRow
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, errors.AddContext(err, "could not scan version")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CumulativeVersions returns, for every path with at least one version in
// timelineID at revision <= maxRevision, the version belonging to the
// snapshot with the largest such revision (spec.md §4.8
// Snapshot.cumulative_versions).
func (s *Store) CumulativeVersions(timelineID string, maxRevision int64) (map[string]VersionRow, error) {
	rows, err := s.db.Query(`
		SELECT v.id, v.snapshot_id, v.path, v.last_modified_ms, v.permissions, v.size, v.checksum
		FROM version v
		JOIN snapshot sn ON sn.id = v.snapshot_id
		JOIN (
			SELECT v2.path AS path, MAX(sn2.revision) AS max_rev
			FROM version v2
			JOIN snapshot sn2 ON sn2.id = v2.snapshot_id
			WHERE sn2.timeline_id = ? AND sn2.revision <= ?
			GROUP BY v2.path
		) latest ON latest.path = v.path AND latest.max_rev = sn.revision
		WHERE sn.timeline_id = ?`, timelineID, maxRevision, timelineID)
	if err != nil {
		return nil, errors.AddContext(err, "could not compute cumulative versions")
	}
	defer rows.Close()
	out := make(map[string]VersionRow)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, errors.AddContext(err, "could not scan version")
		}
		out[v.Path] = v
	}
	return out, rows.Err()
}

// VersionWithSnapshot pairs a version row with the timestamp and pinned
// state of the snapshot it belongs to, the shape the retention engine
// needs to apply spec.md §4.9's per-policy interval algorithm without a
// second round trip per version.
type VersionWithSnapshot struct {
	VersionRow
	SnapshotRevision    int64
	SnapshotTimeCreated time.Time
	Pinned              bool
}

// ListVersionsWithSnapshotByPath returns, newest-snapshot-first, every
// version of path in a timeline along with its snapshot's time_created and
// pinned state.
func (s *Store) ListVersionsWithSnapshotByPath(timelineID, path string) ([]VersionWithSnapshot, error) {
	rows, err := s.db.Query(`
		SELECT v.id, v.snapshot_id, v.path, v.last_modified_ms, v.permissions, v.size, v.checksum,
		       sn.revision, sn.time_created, sn.pinned
		FROM version v JOIN snapshot sn ON sn.id = v.snapshot_id
		WHERE sn.timeline_id = ? AND v.path = ?
		ORDER BY sn.revision DESC`, timelineID, path)
	if err != nil {
		return nil, errors.AddContext(err, "could not list versions with snapshot info")
	}
	defer rows.Close()
	var out []VersionWithSnapshot
	for rows.Next() {
		var vs VersionWithSnapshot
		var perm sql.NullInt64
		var ms int64
		var pinned int
		if err := rows.Scan(&vs.ID, &vs.SnapshotID, &vs.Path, &vs.LastModifiedMs, &perm, &vs.Size, &vs.Checksum,
			&vs.SnapshotRevision, &ms, &pinned); err != nil {
			return nil, errors.AddContext(err, "could not scan version with snapshot info")
		}
		if perm.Valid {
			p := uint16(perm.Int64)
			vs.Permissions = &p
		}
		vs.SnapshotTimeCreated = time.UnixMilli(ms)
		vs.Pinned = pinned != 0
		out = append(out, vs)
	}
	return out, rows.Err()
}

// ListDistinctPaths returns every distinct path with at least one version
// anywhere in the timeline, used when a retention pass isn't scoped to an
// explicit path list (spec.md §4.9 "defaults to every path in the
// timeline").
func (s *Store) ListDistinctPaths(timelineID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT v.path FROM version v
		JOIN snapshot sn ON sn.id = v.snapshot_id
		WHERE sn.timeline_id = ?`, timelineID)
	if err != nil {
		return nil, errors.AddContext(err, "could not list distinct paths")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, errors.AddContext(err, "could not scan path")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RemoveVersion deletes a version row (cascading its blocks) and reports
// whether a row was actually deleted (spec.md §4.8
// Snapshot.remove_version).
func (s *Store) RemoveVersion(id int64) (bool, error) {
	var deleted bool
	err := s.withWriteTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM version WHERE id = ?`, id)
		if err != nil {
			return errors.AddContext(err, "could not remove version")
		}
		n, _ := res.RowsAffected()
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// ListBlocks returns a version's blocks in index order.
func (s *Store) ListBlocks(versionID int64) ([]BlockRow, error) {
	rows, err := s.db.Query(`SELECT version_id, blob_id, idx FROM block WHERE version_id = ? ORDER BY idx ASC`, versionID)
	if err != nil {
		return nil, errors.AddContext(err, "could not list blocks")
	}
	defer rows.Close()
	var out []BlockRow
	for rows.Next() {
		var b BlockRow
		if err := rows.Scan(&b.VersionID, &b.BlobID, &b.Index); err != nil {
			return nil, errors.AddContext(err, "could not scan block")
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
