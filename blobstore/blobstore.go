// Package blobstore implements the content-addressed, sharded, on-disk
// blob store (C6, spec.md §4.6): one file per distinct chunk, named by hex
// checksum, written via write-then-rename. Writes are sequenced through a
// write-ahead log so a crash between "file written" and "rename complete"
// leaves a recoverable trace instead of a silently abandoned temp file —
// the blob store is otherwise exactly as idempotent and content-addressed
// as spec.md describes, so recovery only ever needs to finish or discard
// an in-flight rename, never roll back application state.
package blobstore

import (
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lostatc/reversion/blob"
	"github.com/lostatc/reversion/checksum"
	"github.com/lostatc/reversion/metrics"
	"github.com/lostatc/reversion/reversionerrors"
	"github.com/spf13/afero"
	"github.com/uplo-tech/errors"
	"github.com/uplo-tech/fastrand"
	"github.com/uplo-tech/writeaheadlog"
)

const blobUpdateName = "putBlob"

// ErrBlobMissing is returned when a Block references a checksum absent
// from the store (spec.md §4.12 "Missing blob").
var ErrBlobMissing = reversionerrors.ErrNotFound

// Store is the content-addressed blob store rooted at a directory.
type Store struct {
	fs      afero.Fs
	root    string
	wal     *writeaheadlog.WAL
	metrics *metrics.Registry
}

// UseMetrics attaches a metrics registry that Put reports against. A nil
// registry (the default) disables reporting.
func (s *Store) UseMetrics(m *metrics.Registry) { s.metrics = m }

// Open opens (creating if necessary) the blob store rooted at root on fs.
// Any updates left over from an unclean shutdown are discarded without
// being reported or replayed: puts are idempotent by content address, so a leftover
// "in-flight rename" entry is harmless — either the final file is already
// in place, or the next Put for that checksum repeats the write.
func Open(fs afero.Fs, root string) (*Store, error) {
	if err := fs.MkdirAll(root, 0700); err != nil {
		return nil, errors.AddContext(err, "could not create blob store root")
	}
	walPath := strings.TrimSuffix(root, "/") + ".wal"
	wal, _, err := writeaheadlog.New(walPath)
	if err != nil {
		return nil, errors.AddContext(err, "could not open blob store write-ahead log")
	}
	return &Store{fs: fs, root: root, wal: wal}, nil
}

// Close releases the write-ahead log handle.
func (s *Store) Close() error {
	return s.wal.Close()
}

// shardedPath returns the on-disk path for a checksum: blobs/xx/yy/<hex>,
// where xx is the first hex byte-pair and yy the second (spec.md §4.6,
// §6 on-disk layout).
func (s *Store) shardedPath(sum checksum.Checksum) string {
	h := sum.String()
	for len(h) < 4 {
		h += "0"
	}
	return filepath.Join(s.root, h[0:2], h[2:4], sum.String())
}

// Path exposes the on-disk path for a checksum, for tests and tooling that
// need to inspect the store's layout directly.
func (s *Store) Path(sum checksum.Checksum) string {
	return s.shardedPath(sum)
}

// Put computes b's checksum under alg, and if no file already exists at
// the target shard path with a matching size, streams b's bytes to a temp
// file and renames it into place (spec.md §4.6 "put(blob)"). Returns the
// blob's checksum and size either way.
func (s *Store) Put(b blob.Blob, alg checksum.Algorithm) (checksum.Checksum, int64, error) {
	sum, err := b.Checksum(alg)
	if err != nil {
		return nil, 0, err
	}
	size, err := b.Size()
	if err != nil {
		return nil, 0, err
	}

	target := s.shardedPath(sum)
	if fi, err := s.fs.Stat(target); err == nil && fi.Size() == size {
		s.metrics.ObserveBlobPut(true, size)
		return sum, size, nil
	}

	if err := s.fs.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return nil, 0, errors.AddContext(err, "could not create blob shard directory")
	}

	tmp := target + "." + tmpSuffix() + ".tmp"
	update := writeaheadlog.Update{Name: blobUpdateName, Instructions: []byte(target)}
	txn, err := s.wal.NewTransaction([]writeaheadlog.Update{update})
	if err != nil {
		return nil, 0, errors.AddContext(err, "could not begin blob write-ahead transaction")
	}
	if err := <-txn.SignalSetupComplete(); err != nil {
		return nil, 0, errors.AddContext(err, "could not persist blob write-ahead transaction")
	}

	if err := s.writeTemp(b, tmp); err != nil {
		return nil, 0, err
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		return nil, 0, errors.AddContext(err, "could not rename blob into place")
	}
	if err := txn.SignalUpdatesApplied(); err != nil {
		return nil, 0, errors.AddContext(err, "could not close blob write-ahead transaction")
	}

	s.metrics.ObserveBlobPut(false, size)
	return sum, size, nil
}

// tmpSuffix returns a short random hex suffix for temp filenames, the same
// entropy source the teacher's persist.RandomSuffix uses.
func tmpSuffix() string {
	return hex.EncodeToString(fastrand.Bytes(8))
}

func (s *Store) writeTemp(b blob.Blob, tmp string) error {
	r, err := b.Open()
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return errors.AddContext(err, "could not create temp blob file")
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		s.fs.Remove(tmp)
		return errors.AddContext(err, "could not write temp blob file")
	}
	if err := f.Close(); err != nil {
		return errors.AddContext(err, "could not close temp blob file")
	}
	return nil
}

// aferoFileBlob is a Blob backed by a file on the store's afero.Fs. Kept
// distinct from blob.FromFile, which always uses the real OS filesystem,
// so the blob store itself is testable against an in-memory fs.
type aferoFileBlob struct {
	fs   afero.Fs
	path string
}

func (b aferoFileBlob) Open() (io.ReadCloser, error) {
	f, err := b.fs.Open(b.path)
	if err != nil {
		return nil, errors.AddContext(err, "could not open blob file")
	}
	return f, nil
}

func (b aferoFileBlob) Checksum(alg checksum.Algorithm) (checksum.Checksum, error) {
	r, err := b.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return alg.Stream(r)
}

func (b aferoFileBlob) Size() (int64, error) {
	fi, err := b.fs.Stat(b.path)
	if err != nil {
		return 0, errors.AddContext(err, "could not stat blob file")
	}
	return fi.Size(), nil
}

// Get returns a re-readable Blob backed by the file for sum, or ok=false
// if no such file exists (spec.md §4.6 "get(checksum)").
func (s *Store) Get(sum checksum.Checksum) (blob.Blob, bool, error) {
	path := s.shardedPath(sum)
	if _, err := s.fs.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.AddContext(err, "could not stat blob")
	}
	return aferoFileBlob{fs: s.fs, path: path}, true, nil
}

// Delete removes the on-disk file for sum, if present (spec.md §4.6
// "delete(checksum)").
func (s *Store) Delete(sum checksum.Checksum) error {
	path := s.shardedPath(sum)
	if err := s.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.AddContext(err, "could not delete blob")
	}
	return nil
}

// Size returns the on-disk size of the file for sum, used by verify to
// detect metadata/blob size mismatches (spec.md §4.12).
func (s *Store) Size(sum checksum.Checksum) (int64, bool, error) {
	fi, err := s.fs.Stat(s.shardedPath(sum))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, errors.AddContext(err, "could not stat blob")
	}
	return fi.Size(), true, nil
}

// Walk visits every blob file currently on disk, passing its checksum.
// Used by verify's orphan-blob scan.
func (s *Store) Walk(visit func(sum checksum.Checksum) error) error {
	return afero.Walk(s.fs, s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		sum, decodeErr := checksum.FromHex(filepath.Base(path))
		if decodeErr != nil {
			return nil // not a blob file (e.g. stray files); skip
		}
		return visit(sum)
	})
}
