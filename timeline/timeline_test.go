package timeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lostatc/reversion/blobstore"
	"github.com/lostatc/reversion/checksum"
	"github.com/lostatc/reversion/config"
	"github.com/lostatc/reversion/store"
	"github.com/spf13/afero"
)

func newTestTimeline(t *testing.T) (*Timeline, string) {
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
	return New("t1", st, bs, cfg), dir
}

func writeFile(t *testing.T, workDir, rel string, data []byte) {
	t.Helper()
	full := filepath.Join(workDir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestSingleFileRoundTrip(t *testing.T) {
	tl, dir := newTestTimeline(t)
	workDir := filepath.Join(dir, "work")
	writeFile(t, workDir, "a", []byte("apple"))

	sn, err := tl.CreateSnapshot([]string{"a"}, workDir, SnapshotOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if sn.Revision() != 1 {
		t.Fatalf("expected revision 1, got %d", sn.Revision())
	}

	versions, err := tl.ListVersions("a")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected 1 version, got %d", len(versions))
	}
	if versions[0].Size != 5 {
		t.Fatalf("expected size 5, got %d", versions[0].Size)
	}
	want, err := checksum.SHA256.Bytes([]byte("apple"))
	if err != nil {
		t.Fatal(err)
	}
	if string(versions[0].Checksum) != string(want) {
		t.Fatalf("checksum mismatch")
	}
}

func TestDedupAcrossSnapshot(t *testing.T) {
	tl, dir := newTestTimeline(t)
	workDir := filepath.Join(dir, "work")
	writeFile(t, workDir, "a", []byte("apple"))
	writeFile(t, workDir, "b", []byte("apple"))

	sn, err := tl.CreateSnapshot([]string{"a", "b"}, workDir, SnapshotOptions{})
	if err != nil {
		t.Fatal(err)
	}
	versions, err := sn.Versions()
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if string(versions[0].Checksum) != string(versions[1].Checksum) {
		t.Fatal("expected identical content to produce identical checksums")
	}
}

func TestCumulativeAcrossSnapshots(t *testing.T) {
	tl, dir := newTestTimeline(t)
	workDir := filepath.Join(dir, "work")
	writeFile(t, workDir, "a", []byte("apple"))
	writeFile(t, workDir, "c/a", []byte("orange"))
	if _, err := tl.CreateSnapshot([]string{"a", "c/a"}, workDir, SnapshotOptions{}); err != nil {
		t.Fatal(err)
	}

	writeFile(t, workDir, "a", []byte("apple-2"))
	writeFile(t, workDir, "b", []byte("banana"))
	sn2, err := tl.CreateSnapshot([]string{"a", "b"}, workDir, SnapshotOptions{})
	if err != nil {
		t.Fatal(err)
	}

	cum, err := sn2.CumulativeVersions()
	if err != nil {
		t.Fatal(err)
	}
	if len(cum) != 3 {
		t.Fatalf("expected 3 cumulative paths, got %+v", cum)
	}
	want, _ := checksum.SHA256.Bytes([]byte("apple-2"))
	if string(cum["a"].Checksum) != string(want) {
		t.Fatalf("expected latest apple-2 content for a")
	}
}

func TestCreateSnapshotMissingPathFails(t *testing.T) {
	tl, dir := newTestTimeline(t)
	workDir := filepath.Join(dir, "work")
	if err := os.MkdirAll(workDir, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := tl.CreateSnapshot([]string{"missing"}, workDir, SnapshotOptions{}); err == nil {
		t.Fatal("expected error for missing path")
	}
	snapshots, err := tl.Snapshots()
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 0 {
		t.Fatalf("expected failed snapshot to be cleaned up, got %d", len(snapshots))
	}
}

func TestTagPinning(t *testing.T) {
	tl, dir := newTestTimeline(t)
	workDir := filepath.Join(dir, "work")
	writeFile(t, workDir, "a", []byte("apple"))
	sn, err := tl.CreateSnapshot([]string{"a"}, workDir, SnapshotOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tl.AddTag(sn.ID(), "stable", "", true); err != nil {
		t.Fatal(err)
	}
	pinned, err := sn.Pinned()
	if err != nil {
		t.Fatal(err)
	}
	if !pinned {
		t.Fatal("expected snapshot pinned via tag")
	}

	_, err = tl.AddTag(sn.ID(), "stable", "", false)
	if err == nil {
		t.Fatal("expected duplicate tag name to fail")
	}
}

func TestCheckoutWritesReconstructedBytes(t *testing.T) {
	tl, dir := newTestTimeline(t)
	workDir := filepath.Join(dir, "work")
	writeFile(t, workDir, "a", []byte("apple pie"))
	sn, err := tl.CreateSnapshot([]string{"a"}, workDir, SnapshotOptions{})
	if err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "out", "a-copy")
	if err := sn.Checkout("a", dst, true); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "apple pie" {
		t.Fatalf("expected checked-out content to match, got %q", data)
	}
}

func TestRemoveSnapshotCascades(t *testing.T) {
	tl, dir := newTestTimeline(t)
	workDir := filepath.Join(dir, "work")
	writeFile(t, workDir, "a", []byte("apple"))
	sn, err := tl.CreateSnapshot([]string{"a"}, workDir, SnapshotOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if err := tl.RemoveSnapshot(sn.ID()); err != nil {
		t.Fatal(err)
	}
	snapshots, err := tl.Snapshots()
	if err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 0 {
		t.Fatalf("expected no snapshots remaining, got %d", len(snapshots))
	}
}

func TestCheckoutMissingPathFails(t *testing.T) {
	tl, dir := newTestTimeline(t)
	workDir := filepath.Join(dir, "work")
	writeFile(t, workDir, "a", []byte("apple"))
	sn, err := tl.CreateSnapshot([]string{"a"}, workDir, SnapshotOptions{})
	if err != nil {
		t.Fatal(err)
	}

	err = sn.Checkout("missing", filepath.Join(dir, "out"), false)
	if err == nil {
		t.Fatal("expected checkout of a nonexistent path to fail")
	}
}
