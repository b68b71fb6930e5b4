package timeline

import (
	"os"
	"path/filepath"
	"time"

	"github.com/lostatc/reversion/checksum"
	"github.com/lostatc/reversion/config"
	"github.com/lostatc/reversion/persist"
	"github.com/lostatc/reversion/reversionerrors"
	"github.com/lostatc/reversion/store"
	"github.com/uplo-tech/errors"
)

// Snapshot is identified by (timeline_id, revision): an immutable set of
// versions except for its mutable name/description/pinned labels
// (spec.md §3 "Snapshot").
type Snapshot struct {
	tl  *Timeline
	row store.SnapshotRow
}

// ID returns the snapshot's internal row id.
func (s *Snapshot) ID() int64 { return s.row.ID }

// Revision returns the snapshot's strictly-increasing, never-reused
// revision number within its timeline.
func (s *Snapshot) Revision() int64 { return s.row.Revision }

// Name returns the snapshot's optional name and whether one was set.
func (s *Snapshot) Name() (string, bool) { return s.row.Name, s.row.HasName }

// Description returns the snapshot's free-text description.
func (s *Snapshot) Description() string { return s.row.Description }

// TimeCreated returns when the snapshot was created.
func (s *Snapshot) TimeCreated() time.Time { return s.row.TimeCreated }

// Pinned reports whether this snapshot (directly, or via a pinned tag) may
// never be deleted by clean() (spec.md §4.8 Snapshot.pinned; DESIGN.md
// Open Question #2).
func (s *Snapshot) Pinned() (bool, error) {
	return s.tl.store.SnapshotIsPinned(s.row.ID)
}

// SetLabels updates the snapshot's mutable name/description/pinned fields.
func (s *Snapshot) SetLabels(name string, hasName bool, description string, pinned bool) error {
	if err := s.tl.store.SetSnapshotLabels(s.row.ID, name, hasName, description, pinned); err != nil {
		return err
	}
	s.row.Name, s.row.HasName, s.row.Description, s.row.Pinned = name, hasName, description, pinned
	return nil
}

// Versions returns every version directly belonging to this snapshot.
func (s *Snapshot) Versions() ([]store.VersionRow, error) {
	return s.tl.store.ListVersionsInSnapshot(s.row.ID)
}

// VersionAt returns the version at path within this snapshot, if any.
func (s *Snapshot) VersionAt(path string) (store.VersionRow, bool, error) {
	return s.tl.store.GetVersionByPath(s.row.ID, NormalizePath(path))
}

// RemoveVersion deletes the version at path from this snapshot, cascading
// its blocks, and sweeps any blob left with zero references
// (spec.md §4.8 Snapshot.remove_version). Reports whether a version was
// actually removed.
func (s *Snapshot) RemoveVersion(path string) (bool, error) {
	v, ok, err := s.tl.store.GetVersionByPath(s.row.ID, NormalizePath(path))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	deleted, err := s.tl.store.RemoveVersion(v.ID)
	if err != nil {
		return false, err
	}
	if deleted {
		if err := s.tl.sweepOrphanBlobs(); err != nil {
			return true, err
		}
	}
	return deleted, nil
}

// CumulativeVersions returns, for every path present in any snapshot of
// this timeline at revision <= this snapshot's revision, the version
// belonging to the snapshot with the largest such revision
// (spec.md §4.8 Snapshot.cumulative_versions).
func (s *Snapshot) CumulativeVersions() (map[string]store.VersionRow, error) {
	return s.tl.store.CumulativeVersions(s.tl.id, s.row.Revision)
}

// Checkout reads src's version within this snapshot and writes its
// reconstructed bytes to dst, an arbitrary destination path unrelated to
// any working directory. If verify is true, the reconstructed bytes are
// hashed and compared against the version's stored whole-file checksum
// before anything is written, failing with ErrDataCorrupt on mismatch
// (spec.md §6 "checkout -r <rev> <src-rel> <dst>"; §7 "DataCorrupt").
func (s *Snapshot) Checkout(src, dst string, verify bool) error {
	v, ok, err := s.VersionAt(src)
	if err != nil {
		return err
	}
	if !ok {
		return reversionerrors.ErrNotFound
	}

	view, err := s.tl.OpenView(v)
	if err != nil {
		return err
	}
	data, err := view.ReadAll()
	if err != nil {
		return err
	}

	if verify {
		hashAlg, err := config.Get(s.tl.config, config.HashAlgorithm)
		if err != nil {
			return err
		}
		sum, err := hashAlg.Bytes(data)
		if err != nil {
			return errors.AddContext(err, "could not digest checked-out bytes")
		}
		if !checksum.Checksum(sum).Equal(checksum.Checksum(v.Checksum)) {
			return errors.Extend(reversionerrors.ErrDataCorrupt, errors.New(src))
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.AddContext(err, "could not create destination directory")
	}
	tmp := dst + "." + persist.RandomSuffix() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.AddContext(err, "could not write checked-out file")
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return errors.AddContext(err, "could not rename checked-out file into place")
	}
	return nil
}

// sweepOrphanBlobs removes blob rows with zero remaining block references
// and deletes their files from the blob store (spec.md §3 "Lifecycles":
// "Deleted when no Block references it").
func (tl *Timeline) sweepOrphanBlobs() error {
	orphans, err := tl.store.SweepUnreferencedBlobs()
	if err != nil {
		return err
	}
	for _, o := range orphans {
		if err := tl.blobs.Delete(o.Checksum); err != nil {
			return err
		}
	}
	return nil
}
