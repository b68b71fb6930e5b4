package verify

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lostatc/reversion/blob"
	"github.com/lostatc/reversion/blobstore"
	"github.com/lostatc/reversion/checksum"
	"github.com/lostatc/reversion/config"
	"github.com/lostatc/reversion/store"
	"github.com/lostatc/reversion/timeline"
	"github.com/spf13/afero"
)

type testFixture struct {
	engine *Engine
	store  *store.Store
	blobs  *blobstore.Store
	tl     *timeline.Timeline
	dir    string
}

func newFixture(t *testing.T) *testFixture {
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
	return &testFixture{engine: NewEngine(st, bs, cfg), store: st, blobs: bs, tl: tl, dir: dir}
}

func (f *testFixture) writeAndSnapshot(t *testing.T, rel string, data []byte) string {
	t.Helper()
	workDir := filepath.Join(f.dir, "work")
	full := filepath.Join(workDir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tl.CreateSnapshot([]string{rel}, workDir, timeline.SnapshotOptions{}); err != nil {
		t.Fatal(err)
	}
	return workDir
}

// soleBlobRow returns the single blob a path's sole version is made of,
// assuming the default whole-file chunker.
func (f *testFixture) soleBlobRow(t *testing.T, rel string) store.BlobRow {
	t.Helper()
	versions, err := f.tl.ListVersions(rel)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) == 0 {
		t.Fatal("expected at least one version")
	}
	blocks, err := f.store.ListBlocks(versions[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected exactly 1 block under the default chunker, got %d", len(blocks))
	}
	row, err := f.store.GetBlob(blocks[0].BlobID)
	if err != nil {
		t.Fatal(err)
	}
	return row
}

func findAction(t *testing.T, actions []VerifyAction, context string) VerifyAction {
	t.Helper()
	for _, a := range actions {
		if a.Context == context {
			return a
		}
	}
	t.Fatalf("no verify action found for context %q", context)
	return VerifyAction{}
}

func TestVerifyCleanRepositoryHasNoFindings(t *testing.T) {
	f := newFixture(t)
	f.writeAndSnapshot(t, "a", []byte("hello world"))

	actions, err := f.engine.Build("")
	if err != nil {
		t.Fatal(err)
	}
	findings, err := f.engine.RunAll(actions, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 0 {
		t.Fatalf("expected no findings, got %d", len(findings))
	}
}

func TestVerifyMissingBlobRepairsFromWorkDir(t *testing.T) {
	f := newFixture(t)
	workDir := f.writeAndSnapshot(t, "a", []byte("hello world"))
	row := f.soleBlobRow(t, "a")
	sum := checksum.Checksum(row.Checksum)

	if err := f.blobs.Delete(sum); err != nil {
		t.Fatal(err)
	}

	actions, err := f.engine.Build(workDir)
	if err != nil {
		t.Fatal(err)
	}
	action := findAction(t, actions, "blob "+sum.String())
	repair, err := action.Check()
	if err != nil {
		t.Fatal(err)
	}
	if repair == nil {
		t.Fatal("expected a repair action for a missing blob")
	}

	result, err := repair.Run()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("expected repair to succeed, got message %q", result.Message)
	}

	_, ok, err := f.blobs.Get(sum)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected the blob file to exist again after repair")
	}
}

func TestVerifyCorruptBlobRepairsFromWorkDir(t *testing.T) {
	f := newFixture(t)
	content := []byte("hello world")
	workDir := f.writeAndSnapshot(t, "a", content)
	row := f.soleBlobRow(t, "a")
	sum := checksum.Checksum(row.Checksum)

	garbage := bytes.Repeat([]byte{'x'}, len(content))
	if err := os.WriteFile(f.blobs.Path(sum), garbage, 0644); err != nil {
		t.Fatal(err)
	}

	actions, err := f.engine.Build(workDir)
	if err != nil {
		t.Fatal(err)
	}
	action := findAction(t, actions, "blob "+sum.String())
	repair, err := action.Check()
	if err != nil {
		t.Fatal(err)
	}
	if repair == nil {
		t.Fatal("expected a repair action for a corrupt blob")
	}

	result, err := repair.Run()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("expected repair to succeed, got message %q", result.Message)
	}

	got, err := os.ReadFile(f.blobs.Path(sum))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Fatal("expected corrupt blob content to be overwritten with the correct bytes")
	}
}

func TestVerifyCorruptBlobNoWorkDirRemovesVersion(t *testing.T) {
	f := newFixture(t)
	f.writeAndSnapshot(t, "a", []byte("hello world"))
	row := f.soleBlobRow(t, "a")
	sum := checksum.Checksum(row.Checksum)

	if err := os.WriteFile(f.blobs.Path(sum), []byte("xxxxxxxxxxx"), 0644); err != nil {
		t.Fatal(err)
	}

	actions, err := f.engine.Build("")
	if err != nil {
		t.Fatal(err)
	}
	action := findAction(t, actions, "blob "+sum.String())
	repair, err := action.Check()
	if err != nil {
		t.Fatal(err)
	}
	if repair == nil {
		t.Fatal("expected a repair action")
	}
	result, err := repair.Run()
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Fatal("expected repair without a working directory to report failure")
	}

	versions, err := f.tl.ListVersions("a")
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 0 {
		t.Fatalf("expected the unrecoverable version to be removed, got %d left", len(versions))
	}
}

func TestVerifySizeMismatchTreatedAsCorruption(t *testing.T) {
	f := newFixture(t)
	content := []byte("hello world")
	workDir := f.writeAndSnapshot(t, "a", content)
	row := f.soleBlobRow(t, "a")
	sum := checksum.Checksum(row.Checksum)

	if err := os.WriteFile(f.blobs.Path(sum), content[:len(content)-1], 0644); err != nil {
		t.Fatal(err)
	}

	actions, err := f.engine.Build(workDir)
	if err != nil {
		t.Fatal(err)
	}
	action := findAction(t, actions, "blob "+sum.String())
	repair, err := action.Check()
	if err != nil {
		t.Fatal(err)
	}
	if repair == nil {
		t.Fatal("expected a repair action for a size mismatch")
	}
	if _, err := repair.Run(); err != nil {
		t.Fatal(err)
	}

	size, ok, err := f.blobs.Size(sum)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || size != int64(len(content)) {
		t.Fatalf("expected blob size to be restored to %d, got %d", len(content), size)
	}
}

func TestVerifyOrphanBlobIsDeleted(t *testing.T) {
	f := newFixture(t)
	data := []byte("nobody references me")
	sum, _, err := f.blobs.Put(blob.FromBytes(data), checksum.SHA256)
	if err != nil {
		t.Fatal(err)
	}

	actions, err := f.engine.Build("")
	if err != nil {
		t.Fatal(err)
	}
	action := findAction(t, actions, "orphan blob "+sum.String())
	repair, err := action.Check()
	if err != nil {
		t.Fatal(err)
	}
	if repair == nil {
		t.Fatal("expected a repair action for an orphan blob")
	}

	result, err := repair.Run()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("expected orphan deletion to succeed, got %q", result.Message)
	}

	_, ok, err := f.blobs.Get(sum)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected the orphan blob file to be gone")
	}
}
