package readview

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lostatc/reversion/blobstore"
	"github.com/lostatc/reversion/config"
	"github.com/lostatc/reversion/store"
	"github.com/lostatc/reversion/timeline"
	"github.com/spf13/afero"
)

func newFixture(t *testing.T) (*store.Store, *blobstore.Store, *timeline.Timeline, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "metadata.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	bs, err := blobstore.Open(afero.NewOsFs(), filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bs.Close() })
	if err := st.CreateTimeline("t1", time.Now()); err != nil {
		t.Fatal(err)
	}
	cfg := config.New(st)
	tl := timeline.New("t1", st, bs, cfg)
	return st, bs, tl, dir
}

func writeAndSnapshot(t *testing.T, tl *timeline.Timeline, workDir, rel string, data []byte) *timeline.Snapshot {
	t.Helper()
	full := filepath.Join(workDir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		t.Fatal(err)
	}
	sn, err := tl.CreateSnapshot([]string{rel}, workDir, timeline.SnapshotOptions{})
	if err != nil {
		t.Fatal(err)
	}
	return sn
}

func TestReadWholeVersion(t *testing.T) {
	st, bs, tl, dir := newFixture(t)
	workDir := filepath.Join(dir, "work")
	content := []byte("the quick brown fox jumps over the lazy dog")
	writeAndSnapshot(t, tl, workDir, "a", content)

	versions, err := tl.ListVersions("a")
	if err != nil {
		t.Fatal(err)
	}
	view, err := Open(st, bs, versions[0])
	if err != nil {
		t.Fatal(err)
	}
	if view.Size() != int64(len(content)) {
		t.Fatalf("expected size %d, got %d", len(content), view.Size())
	}

	got, err := view.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("expected %q, got %q", content, got)
	}
}

func TestReadRange(t *testing.T) {
	st, bs, tl, dir := newFixture(t)
	workDir := filepath.Join(dir, "work")
	content := []byte("0123456789abcdefghij")
	writeAndSnapshot(t, tl, workDir, "a", content)

	versions, err := tl.ListVersions("a")
	if err != nil {
		t.Fatal(err)
	}
	view, err := Open(st, bs, versions[0])
	if err != nil {
		t.Fatal(err)
	}

	got, err := view.Read(5, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := content[5:15]
	if !bytes.Equal(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestReadPastEndIsShort(t *testing.T) {
	st, bs, tl, dir := newFixture(t)
	workDir := filepath.Join(dir, "work")
	content := []byte("short")
	writeAndSnapshot(t, tl, workDir, "a", content)

	versions, err := tl.ListVersions("a")
	if err != nil {
		t.Fatal(err)
	}
	view, err := Open(st, bs, versions[0])
	if err != nil {
		t.Fatal(err)
	}

	got, err := view.Read(2, 1000)
	if err != nil {
		t.Fatal(err)
	}
	want := content[2:]
	if !bytes.Equal(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	st, bs, tl, dir := newFixture(t)
	workDir := filepath.Join(dir, "work")
	content := []byte("roundtrip me")
	writeAndSnapshot(t, tl, workDir, "a", content)

	versions, err := tl.ListVersions("a")
	if err != nil {
		t.Fatal(err)
	}
	idx, err := BuildIndex(st, versions[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	data := idx.Marshal()
	decoded, err := UnmarshalIndex(data)
	if err != nil {
		t.Fatal(err)
	}
	view, err := OpenWithIndex(bs, versions[0], decoded)
	if err != nil {
		t.Fatal(err)
	}
	got, err := view.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("expected %q, got %q", content, got)
	}
}

func TestListCollapsesToImmediateChildren(t *testing.T) {
	st, _, tl, dir := newFixture(t)
	workDir := filepath.Join(dir, "work")
	for rel, data := range map[string][]byte{
		"a.txt":         []byte("1"),
		"dir/b.txt":     []byte("2"),
		"dir/sub/c.txt": []byte("3"),
	} {
		full := filepath.Join(workDir, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	sn, err := tl.CreateSnapshot([]string{"a.txt", "dir/b.txt", "dir/sub/c.txt"}, workDir, timeline.SnapshotOptions{})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := List(st, sn.ID(), "")
	if err != nil {
		t.Fatal(err)
	}
	byName := make(map[string]Entry)
	for _, e := range entries {
		byName[e.Name] = e
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 root entries, got %d: %+v", len(entries), entries)
	}
	if !byName["a.txt"].HasVersion || byName["a.txt"].IsDir {
		t.Fatalf("expected a.txt to be a plain file entry, got %+v", byName["a.txt"])
	}
	if byName["dir"].HasVersion || !byName["dir"].IsDir {
		t.Fatalf("expected dir to be a directory-only entry, got %+v", byName["dir"])
	}

	sub, err := List(st, sn.ID(), "dir")
	if err != nil {
		t.Fatal(err)
	}
	if len(sub) != 2 {
		t.Fatalf("expected 2 entries under dir, got %d: %+v", len(sub), sub)
	}
}
