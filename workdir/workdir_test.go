package workdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lostatc/reversion/reversionerrors"
	"github.com/uplo-tech/errors"
)

func TestInitThenOpen(t *testing.T) {
	dir := t.TempDir()
	w, err := Init(dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	tlID := w.Timeline().ID()
	if err := w.Repository().Close(); err != nil {
		t.Fatal(err)
	}

	w2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer w2.Repository().Close()
	if w2.Timeline().ID() != tlID {
		t.Fatalf("expected reopened working directory to track the same timeline")
	}
}

func TestInitTwiceFails(t *testing.T) {
	dir := t.TempDir()
	w, err := Init(dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Repository().Close()

	_, err = Init(dir, nil, nil)
	if !errors.Contains(err, reversionerrors.ErrAlreadyAWorkDir) {
		t.Fatalf("expected ErrAlreadyAWorkDir, got %v", err)
	}
}

func TestOpenNotAWorkDir(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(dir)
	if !errors.Contains(err, reversionerrors.ErrNotAWorkDir) {
		t.Fatalf("expected ErrNotAWorkDir, got %v", err)
	}
}

func TestOpenFromDescendant(t *testing.T) {
	dir := t.TempDir()
	w, err := Init(dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Repository().Close()

	nested := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	w2, err := OpenFromDescendant(nested)
	if err != nil {
		t.Fatal(err)
	}
	defer w2.Repository().Close()
	if w2.Path() != dir {
		t.Fatalf("expected root %q, got %q", dir, w2.Path())
	}
}

func TestOpenFromDescendantNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := OpenFromDescendant(dir)
	if !errors.Contains(err, reversionerrors.ErrNotAWorkDir) {
		t.Fatalf("expected ErrNotAWorkDir, got %v", err)
	}
}

func TestStatusAndCommit(t *testing.T) {
	dir := t.TempDir()
	w, err := Init(dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Repository().Close()

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	status, err := w.Status()
	if err != nil {
		t.Fatal(err)
	}
	if len(status) != 1 || status[0] != "a.txt" {
		t.Fatalf("expected [a.txt] as modified, got %v", status)
	}

	sn, err := w.Commit([]string{"a.txt"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if sn == nil {
		t.Fatal("expected a snapshot")
	}

	status, err = w.Status()
	if err != nil {
		t.Fatal(err)
	}
	if len(status) != 0 {
		t.Fatalf("expected no modified paths after commit, got %v", status)
	}
}

func TestCommitNothingModifiedReturnsNil(t *testing.T) {
	dir := t.TempDir()
	w, err := Init(dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Repository().Close()

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Commit([]string{"a.txt"}, false); err != nil {
		t.Fatal(err)
	}

	sn, err := w.Commit([]string{"a.txt"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if sn != nil {
		t.Fatal("expected nil snapshot when nothing is modified")
	}
}

func TestCommitForceRecommitsUnmodified(t *testing.T) {
	dir := t.TempDir()
	w, err := Init(dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Repository().Close()

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Commit([]string{"a.txt"}, false); err != nil {
		t.Fatal(err)
	}

	sn, err := w.Commit([]string{"a.txt"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if sn == nil {
		t.Fatal("expected force commit to create a snapshot even with no changes")
	}
}

func TestStatusIgnoresMatchedPaths(t *testing.T) {
	dir := t.TempDir()
	w, err := Init(dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Repository().Close()

	vdir := versioningDir(dir)
	if err := saveIgnore(vdir, []Matcher{GlobMatcher{Pattern: "*.log"}}); err != nil {
		t.Fatal(err)
	}
	w.matchers, err = loadIgnoreFile(vdir)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skip.log"), []byte("b"), 0644); err != nil {
		t.Fatal(err)
	}

	status, err := w.Status()
	if err != nil {
		t.Fatal(err)
	}
	if len(status) != 1 || status[0] != "keep.txt" {
		t.Fatalf("expected only keep.txt reported modified, got %v", status)
	}
}

func TestUpdateRestoresFile(t *testing.T) {
	dir := t.TempDir()
	w, err := Init(dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Repository().Close()

	full := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(full, []byte("original"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Commit([]string{"a.txt"}, false); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(full, []byte("changed locally"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := w.Update([]string{"a.txt"}, nil, false); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "changed locally" {
		t.Fatalf("expected overwrite=false to leave local change, got %q", data)
	}

	if err := w.Update([]string{"a.txt"}, nil, true); err != nil {
		t.Fatal(err)
	}
	data, err = os.ReadFile(full)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "original" {
		t.Fatalf("expected overwrite=true to restore committed content, got %q", data)
	}
}

func TestUpdateUnknownPathIsSkipped(t *testing.T) {
	dir := t.TempDir()
	w, err := Init(dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Repository().Close()

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Commit([]string{"a.txt"}, false); err != nil {
		t.Fatal(err)
	}

	if err := w.Update([]string{"missing.txt"}, nil, true); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "missing.txt")); !os.IsNotExist(err) {
		t.Fatal("expected no file to be created for an unknown path")
	}
}

func TestDeleteRemovesMetadataKeepsFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := Init(dir, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := w.Delete(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(versioningDir(dir)); !os.IsNotExist(err) {
		t.Fatal("expected .versioning to be removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "a.txt")); err != nil {
		t.Fatal("expected working file to survive delete")
	}
}

func TestParseIgnoreAndIsIgnored(t *testing.T) {
	matchers, err := ParseIgnore([]byte("prefix:build/\nglob:*.tmp\n# a comment\n\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matchers) != 2 {
		t.Fatalf("expected 2 matchers, got %d", len(matchers))
	}
	if !IsIgnored("build/out.o", matchers) {
		t.Fatal("expected prefix matcher to exclude build/out.o")
	}
	if !IsIgnored("scratch.tmp", matchers) {
		t.Fatal("expected glob matcher to exclude scratch.tmp")
	}
	if IsIgnored("src/main.go", matchers) {
		t.Fatal("did not expect src/main.go to be ignored")
	}
	if !IsIgnored(".versioning", matchers) || !IsIgnored(".versioning/config", matchers) {
		t.Fatal("expected .versioning to always be ignored")
	}
}

func TestParseIgnoreBadMatcher(t *testing.T) {
	_, err := ParseIgnore([]byte("bogus:foo"))
	if !errors.Contains(err, ErrBadMatcher) {
		t.Fatalf("expected ErrBadMatcher, got %v", err)
	}
}
