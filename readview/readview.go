// Package readview implements the snapshot/version read-only view the
// mount-backing API needs (C13, spec.md §4.13): random-access
// reconstruction of a Version's byte stream via cumulative block offsets
// plus binary search, and directory listing within a Snapshot. Grounded
// on the teacher's streaming download path
// (modules/renter/skynetblob, modules/renter/streamer.go), which
// similarly walks an ordered piece/chunk list computing a byte range
// against a fetched piece.
package readview

import (
	"io"
	"sort"
	"strings"
	"time"

	"github.com/lostatc/reversion/blobstore"
	"github.com/lostatc/reversion/checksum"
	"github.com/lostatc/reversion/reversionerrors"
	"github.com/lostatc/reversion/store"
	"github.com/uplo-tech/encoding"
	"github.com/uplo-tech/errors"
)

// IndexEntry is one block's position within a version's reconstructed byte
// stream.
type IndexEntry struct {
	Start int64
	Size  int64
	Blob  []byte
}

// Index is a version's ordered block offset table, computed once at open
// time (spec.md §4.13 "compute cumulative offsets of blocks at open
// time"). It encodes with github.com/uplo-tech/encoding so a caller that
// reopens the same version repeatedly (the FUSE layer, across mounts) can
// cache it instead of re-querying the metadata store every time.
type Index struct {
	Entries []IndexEntry
	Size    int64
}

// Marshal encodes the index for caching.
func (idx Index) Marshal() []byte {
	return encoding.Marshal(idx)
}

// UnmarshalIndex decodes an index previously produced by Index.Marshal.
func UnmarshalIndex(data []byte) (Index, error) {
	var idx Index
	if err := encoding.Unmarshal(data, &idx); err != nil {
		return Index{}, errors.AddContext(err, "could not decode block offset index")
	}
	return idx, nil
}

// BuildIndex queries the metadata store for versionID's ordered blocks and
// computes their cumulative start offsets.
func BuildIndex(st *store.Store, versionID int64) (Index, error) {
	blocks, err := st.ListBlocks(versionID)
	if err != nil {
		return Index{}, err
	}
	entries := make([]IndexEntry, len(blocks))
	var cum int64
	for i, blk := range blocks {
		row, err := st.GetBlob(blk.BlobID)
		if err != nil {
			return Index{}, err
		}
		entries[i] = IndexEntry{Start: cum, Size: row.Size, Blob: row.Checksum}
		cum += row.Size
	}
	return Index{Entries: entries, Size: cum}, nil
}

// View is a read-only, random-access window onto one Version's
// reconstructed byte stream (spec.md §4.13).
type View struct {
	row   store.VersionRow
	blobs *blobstore.Store
	idx   Index
}

// Open builds a View for row, querying the metadata store for its block
// offset index.
func Open(st *store.Store, bs *blobstore.Store, row store.VersionRow) (*View, error) {
	idx, err := BuildIndex(st, row.ID)
	if err != nil {
		return nil, err
	}
	return &View{row: row, blobs: bs, idx: idx}, nil
}

// OpenWithIndex builds a View from a previously-cached Index, skipping the
// metadata store round trip BuildIndex would otherwise make.
func OpenWithIndex(bs *blobstore.Store, row store.VersionRow, idx Index) (*View, error) {
	if err := checkIndexConsistency(idx); err != nil {
		return nil, err
	}
	return &View{row: row, blobs: bs, idx: idx}, nil
}

// Size returns the version's total byte length.
func (v *View) Size() int64 { return v.row.Size }

// LastModified returns the version's recorded modification time.
func (v *View) LastModified() time.Time {
	return time.UnixMilli(v.row.LastModifiedMs)
}

// Permissions returns the version's recorded POSIX permission bits, and
// whether any were recorded at all.
func (v *View) Permissions() (uint16, bool) {
	if v.row.Permissions == nil {
		return 0, false
	}
	return *v.row.Permissions, true
}

// blockAt returns the index of the block containing byte offset, via
// binary search over the cumulative start offsets (spec.md §4.13 "locate
// the first block via binary search").
func (v *View) blockAt(offset int64) (int, bool) {
	entries := v.idx.Entries
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Start+entries[i].Size > offset
	})
	if i >= len(entries) {
		return 0, false
	}
	return i, true
}

// Read reconstructs length bytes starting at offset by walking the
// version's blocks from the one containing offset, opening each
// referenced blob in turn and reading until length is satisfied or the
// version ends (spec.md §4.13 "read(offset, len)"). A short read at
// end-of-version is not an error; the returned slice is simply shorter
// than length.
func (v *View) Read(offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, errors.New("read offset and length must be non-negative")
	}
	if offset >= v.row.Size || length == 0 {
		return nil, nil
	}
	if offset+length > v.row.Size {
		length = v.row.Size - offset
	}

	idx, ok := v.blockAt(offset)
	if !ok {
		return nil, errors.New("read offset past end of block index")
	}

	out := make([]byte, 0, length)
	remaining := length
	pos := offset
	for remaining > 0 && idx < len(v.idx.Entries) {
		entry := v.idx.Entries[idx]
		innerOffset := pos - entry.Start
		toRead := entry.Size - innerOffset
		if toRead > remaining {
			toRead = remaining
		}

		b, ok, err := v.blobs.Get(checksum.Checksum(entry.Blob))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Compose(reversionerrors.ErrIO, errors.New("missing blob referenced by version"))
		}
		r, err := b.Open()
		if err != nil {
			return nil, err
		}
		if innerOffset > 0 {
			if _, err := io.CopyN(io.Discard, r, innerOffset); err != nil {
				r.Close()
				return nil, errors.AddContext(err, "could not seek within block")
			}
		}
		buf := make([]byte, toRead)
		if _, err := io.ReadFull(r, buf); err != nil {
			r.Close()
			return nil, errors.AddContext(err, "could not read block range")
		}
		r.Close()

		out = append(out, buf...)
		pos += toRead
		remaining -= toRead
		idx++
	}
	return out, nil
}

// ReadAll reconstructs the version's entire byte stream.
func (v *View) ReadAll() ([]byte, error) {
	return v.Read(0, v.row.Size)
}

// Entry is one immediate child of a listed directory path within a
// Snapshot (spec.md §4.13 "list(directory_path)").
type Entry struct {
	Name       string
	HasVersion bool
	Version    store.VersionRow
	IsDir      bool
}

// List returns the immediate children of directoryPath within the
// snapshot, collapsing every version whose path begins with
// directoryPath + "/" (or every version, when directoryPath is "") down
// to its first path segment past the prefix. A child is flagged IsDir
// when some version sits strictly deeper than it, independent of whether
// a version also sits exactly at that child's own path.
func List(st *store.Store, snapshotID int64, directoryPath string) ([]Entry, error) {
	versions, err := st.ListVersionsInSnapshot(snapshotID)
	if err != nil {
		return nil, err
	}

	prefix := strings.Trim(directoryPath, "/")
	if prefix != "" {
		prefix += "/"
	}

	byName := make(map[string]*Entry)
	var order []string
	for _, version := range versions {
		if prefix != "" && !strings.HasPrefix(version.Path, prefix) {
			continue
		}
		rel := strings.TrimPrefix(version.Path, prefix)
		if rel == "" {
			continue
		}
		parts := strings.SplitN(rel, "/", 2)
		name := parts[0]

		e, ok := byName[name]
		if !ok {
			e = &Entry{Name: name}
			byName[name] = e
			order = append(order, name)
		}
		if len(parts) == 2 {
			e.IsDir = true
		} else {
			e.HasVersion = true
			e.Version = version
		}
	}

	out := make([]Entry, len(order))
	for i, name := range order {
		out[i] = *byName[name]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// checkIndexConsistency guards against an Index whose Size disagrees with
// its own entries, a programmer error if OpenWithIndex is handed a stale
// cache rather than one produced by BuildIndex/Marshal.
func checkIndexConsistency(idx Index) error {
	var sum int64
	for _, e := range idx.Entries {
		sum += e.Size
	}
	if sum != idx.Size {
		return errors.New("block offset index size does not match its own entries")
	}
	return nil
}
