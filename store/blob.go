package store

import (
	"database/sql"

	"github.com/lostatc/reversion/reversionerrors"
	"github.com/uplo-tech/errors"
)

// UpsertBlob inserts a blob row for checksum if none exists, returning its
// id either way. Callers write the blob file to the blob store before
// calling this (spec.md §3 "Lifecycles": "the blob file is written first,
// then the record").
func (s *Store) UpsertBlob(sum []byte, size int64) (int64, error) {
	var id int64
	err := s.withWriteTx(func(tx *sql.Tx) error {
		err := tx.QueryRow(`SELECT id FROM blob WHERE checksum = ?`, sum).Scan(&id)
		if err == nil {
			return nil
		}
		if !errors.Contains(err, sql.ErrNoRows) {
			return errors.AddContext(err, "could not look up blob")
		}
		res, err := tx.Exec(`INSERT INTO blob(checksum, size) VALUES(?, ?)`, sum, size)
		if err != nil {
			return errors.AddContext(err, "could not insert blob")
		}
		id, err = res.LastInsertId()
		if err != nil {
			return errors.AddContext(err, "could not read new blob id")
		}
		return nil
	})
	return id, err
}

// GetBlobByChecksum returns the blob row for sum, if present.
func (s *Store) GetBlobByChecksum(sum []byte) (BlobRow, bool, error) {
	var row BlobRow
	err := s.db.QueryRow(`SELECT id, checksum, size FROM blob WHERE checksum = ?`, sum).Scan(&row.ID, &row.Checksum, &row.Size)
	if errors.Contains(err, sql.ErrNoRows) {
		return BlobRow{}, false, nil
	}
	if err != nil {
		return BlobRow{}, false, errors.AddContext(err, "could not read blob")
	}
	return row, true, nil
}

// GetBlob returns the blob row by id.
func (s *Store) GetBlob(id int64) (BlobRow, error) {
	var row BlobRow
	err := s.db.QueryRow(`SELECT id, checksum, size FROM blob WHERE id = ?`, id).Scan(&row.ID, &row.Checksum, &row.Size)
	if errors.Contains(err, sql.ErrNoRows) {
		return BlobRow{}, reversionerrors.ErrNotFound
	}
	if err != nil {
		return BlobRow{}, errors.AddContext(err, "could not read blob")
	}
	return row, nil
}

// ListBlobs returns every blob row in the repository, used by verify's
// orphan/corruption scan.
func (s *Store) ListBlobs() ([]BlobRow, error) {
	rows, err := s.db.Query(`SELECT id, checksum, size FROM blob`)
	if err != nil {
		return nil, errors.AddContext(err, "could not list blobs")
	}
	defer rows.Close()
	var out []BlobRow
	for rows.Next() {
		var row BlobRow
		if err := rows.Scan(&row.ID, &row.Checksum, &row.Size); err != nil {
			return nil, errors.AddContext(err, "could not scan blob")
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// VersionsReferencingBlob returns every distinct version with a block
// pointing at blobID, used by verify's repair policy to find which
// versions a missing/corrupt/size-mismatched blob affects.
func (s *Store) VersionsReferencingBlob(blobID int64) ([]VersionRow, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT v.id, v.snapshot_id, v.path, v.last_modified_ms, v.permissions, v.size, v.checksum
		FROM version v JOIN block k ON k.version_id = v.id
		WHERE k.blob_id = ?`, blobID)
	if err != nil {
		return nil, errors.AddContext(err, "could not list versions referencing blob")
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

// BlockRefCount returns how many blocks reference a blob.
func (s *Store) BlockRefCount(blobID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM block WHERE blob_id = ?`, blobID).Scan(&n)
	if err != nil {
		return 0, errors.AddContext(err, "could not count block references")
	}
	return n, nil
}

// DeleteBlobRecord removes a blob row. Callers must ensure the blob file
// itself is also removed (or already gone); this only touches metadata.
func (s *Store) DeleteBlobRecord(id int64) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM blob WHERE id = ?`, id)
		if err != nil {
			return errors.AddContext(err, "could not delete blob record")
		}
		return nil
	})
}

// SweepUnreferencedBlobs deletes blob rows with zero remaining block
// references and returns the deleted rows, so the caller can remove the
// corresponding blob files by checksum (spec.md §3 "Lifecycles": blob deleted when
// no Block references it).
func (s *Store) SweepUnreferencedBlobs() ([]BlobRow, error) {
	rows, err := s.db.Query(`
		SELECT b.id, b.checksum, b.size FROM blob b
		LEFT JOIN block k ON k.blob_id = b.id
		WHERE k.blob_id IS NULL`)
	if err != nil {
		return nil, errors.AddContext(err, "could not find unreferenced blobs")
	}
	var orphans []BlobRow
	for rows.Next() {
		var row BlobRow
		if err := rows.Scan(&row.ID, &row.Checksum, &row.Size); err != nil {
			rows.Close()
			return nil, errors.AddContext(err, "could not scan orphan blob")
		}
		orphans = append(orphans, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, o := range orphans {
		if err := s.DeleteBlobRecord(o.ID); err != nil {
			return nil, err
		}
	}
	return orphans, nil
}
