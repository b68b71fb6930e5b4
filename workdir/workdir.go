// Package workdir implements the working directory (C10, spec.md §4.10):
// the `.versioning/` binding between a plain filesystem tree and a
// repository timeline, plus status/commit/update against it. Grounded on
// the teacher's siadir/siafile "metadata sits beside the data it
// describes" layout (modules/renter/filesystem/siadir), adapted from a
// single renter-owned data directory to a user-owned tree with an
// embedded or linked repository.
package workdir

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lostatc/reversion/checksum"
	"github.com/lostatc/reversion/config"
	"github.com/lostatc/reversion/metrics"
	"github.com/lostatc/reversion/persist"
	"github.com/lostatc/reversion/repository"
	"github.com/lostatc/reversion/retention"
	"github.com/lostatc/reversion/reversionerrors"
	"github.com/lostatc/reversion/store"
	"github.com/lostatc/reversion/timeline"
	"github.com/uplo-tech/errors"
)

// WorkDirectory binds a plain directory tree to one timeline of a
// repository (spec.md §3 "WorkDirectory").
type WorkDirectory struct {
	path     string
	repo     *repository.Repository
	timeline *timeline.Timeline
	matchers []Matcher
	metrics  *metrics.Registry
}

// Path returns the working directory's root.
func (w *WorkDirectory) Path() string { return w.path }

// UseMetrics attaches a metrics registry that Commit, and the underlying
// repository's blob store, report against. A nil registry (the default)
// disables reporting.
func (w *WorkDirectory) UseMetrics(m *metrics.Registry) {
	w.metrics = m
	w.repo.UseMetrics(m)
}

// Repository returns the repository this working directory is bound to.
func (w *WorkDirectory) Repository() *repository.Repository { return w.repo }

// Timeline returns the timeline this working directory tracks.
func (w *WorkDirectory) Timeline() *timeline.Timeline { return w.timeline }

func versioningDir(path string) string { return filepath.Join(path, dirName) }

// Init creates a fresh working directory at path: a new embedded
// repository, a new timeline bound to it, and an empty ignore file.
// Fails with ErrAlreadyAWorkDir if path already has a .versioning
// directory (spec.md §4.10 "init(path, provider, config)").
func Init(path string, rawConfig map[string]string, policies []retention.Policy) (*WorkDirectory, error) {
	vdir := versioningDir(path)
	if _, err := os.Stat(vdir); err == nil {
		return nil, reversionerrors.ErrAlreadyAWorkDir
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, errors.AddContext(err, "could not create working directory")
	}
	if err := os.MkdirAll(vdir, 0755); err != nil {
		return nil, errors.AddContext(err, "could not create working directory metadata")
	}

	repo, err := repository.Create(repositoryEntryPath(vdir), rawConfig)
	if err != nil {
		return nil, err
	}
	tl, err := repo.CreateTimeline(policies)
	if err != nil {
		repo.Close()
		return nil, err
	}
	if err := saveBinding(vdir, binding{TimelineID: tl.ID()}); err != nil {
		repo.Close()
		return nil, err
	}
	if err := saveIgnore(vdir, nil); err != nil {
		repo.Close()
		return nil, err
	}
	return &WorkDirectory{path: path, repo: repo, timeline: tl}, nil
}

// Open loads the binding at path, failing with ErrNotAWorkDir if no
// .versioning directory exists, or ErrInvalidRepository if the bound
// repository can't be opened (spec.md §4.10 "open(path)").
func Open(path string) (*WorkDirectory, error) {
	vdir := versioningDir(path)
	if _, err := os.Stat(vdir); err != nil {
		return nil, reversionerrors.ErrNotAWorkDir
	}

	repoPath, err := resolveRepositoryPath(vdir)
	if err != nil {
		return nil, err
	}
	repo, err := repository.Open(repoPath)
	if err != nil {
		return nil, errors.Compose(reversionerrors.ErrInvalidRepository, err)
	}

	b, err := loadBinding(vdir)
	if err != nil {
		repo.Close()
		return nil, err
	}
	tl, ok := repo.Timelines()[b.TimelineID]
	if !ok {
		repo.Close()
		return nil, errors.Compose(reversionerrors.ErrInvalidRepository, errors.New("bound timeline not found in repository"))
	}

	matchers, err := loadIgnoreFile(vdir)
	if err != nil {
		repo.Close()
		return nil, err
	}
	return &WorkDirectory{path: path, repo: repo, timeline: tl, matchers: matchers}, nil
}

// OpenFromDescendant walks path's ancestors until it finds a .versioning
// directory, opening the working directory rooted there
// (spec.md §4.10 "open_from_descendant(path)").
func OpenFromDescendant(path string) (*WorkDirectory, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.AddContext(err, "could not resolve absolute path")
	}
	for {
		if _, err := os.Stat(versioningDir(dir)); err == nil {
			return Open(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, reversionerrors.ErrNotAWorkDir
		}
		dir = parent
	}
}

// LinkExternal creates a working directory at path bound to an already
// existing repository elsewhere on disk, via a link stub rather than an
// embedded copy (spec.md §4.10 "or a stub file referencing an external
// repository path").
func LinkExternal(path, repoPath string, policies []retention.Policy) (*WorkDirectory, error) {
	vdir := versioningDir(path)
	if _, err := os.Stat(vdir); err == nil {
		return nil, reversionerrors.ErrAlreadyAWorkDir
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, errors.AddContext(err, "could not create working directory")
	}
	if err := os.MkdirAll(vdir, 0755); err != nil {
		return nil, errors.AddContext(err, "could not create working directory metadata")
	}

	repo, err := repository.Open(repoPath)
	if err != nil {
		return nil, err
	}
	tl, err := repo.CreateTimeline(policies)
	if err != nil {
		repo.Close()
		return nil, err
	}
	if err := saveRepositoryLink(vdir, repositoryLink{Path: repoPath}); err != nil {
		repo.Close()
		return nil, err
	}
	if err := saveBinding(vdir, binding{TimelineID: tl.ID()}); err != nil {
		repo.Close()
		return nil, err
	}
	if err := saveIgnore(vdir, nil); err != nil {
		repo.Close()
		return nil, err
	}
	return &WorkDirectory{path: path, repo: repo, timeline: tl}, nil
}

// Delete removes the .versioning metadata directory, leaving the current
// file contents in the working directory untouched
// (spec.md §4.10 "delete()").
func (w *WorkDirectory) Delete() error {
	if err := w.repo.Close(); err != nil {
		return err
	}
	if err := os.RemoveAll(versioningDir(w.path)); err != nil {
		return errors.AddContext(err, "could not remove working directory metadata")
	}
	return nil
}

// modifiedPaths walks the working directory (skipping ignored
// subtrees) and returns, keyed by normalized relative path, whether each
// on-disk file differs from the latest snapshot's cumulative state
// (spec.md §4.10 "status()").
func (w *WorkDirectory) modifiedPaths() (map[string]bool, error) {
	sn, ok, err := w.timeline.LatestSnapshot()
	if err != nil {
		return nil, err
	}
	cumulative := map[string]store.VersionRow{}
	if ok {
		cumulative, err = sn.CumulativeVersions()
		if err != nil {
			return nil, err
		}
	}

	hashAlg, err := config.Get(w.repo.Config(), config.HashAlgorithm)
	if err != nil {
		return nil, err
	}

	out := make(map[string]bool)
	err = filepath.WalkDir(w.path, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if full == w.path {
			return nil
		}
		rel, err := filepath.Rel(w.path, full)
		if err != nil {
			return err
		}
		relNorm := timeline.NormalizePath(rel)
		if d.IsDir() {
			if IsIgnored(relNorm, w.matchers) {
				return filepath.SkipDir
			}
			return nil
		}
		if IsIgnored(relNorm, w.matchers) {
			return nil
		}
		v, ok := cumulative[relNorm]
		if !ok {
			out[relNorm] = true
			return nil
		}
		sum, err := hashAlg.File(full)
		if err != nil {
			return errors.AddContext(err, "could not digest file for status")
		}
		out[relNorm] = !checksum.Checksum(sum).Equal(checksum.Checksum(v.Checksum))
		return nil
	})
	if err != nil {
		return nil, errors.AddContext(err, "could not walk working directory")
	}
	return out, nil
}

// Status reports every path that exists on disk and either has no
// version in the latest snapshot or whose content digest differs from
// it. Missing files (present in the snapshot but absent on disk) are not
// reported (spec.md §4.10 "status()").
func (w *WorkDirectory) Status() ([]string, error) {
	modified, err := w.modifiedPaths()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(modified))
	for p, isModified := range modified {
		if isModified {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}

// collectPaths walks each of paths (descending into directories),
// normalizing and deduplicating, excluding ignored paths and, unless
// force, paths that aren't modified (spec.md §4.10 "commit(paths,
// force=false)").
func (w *WorkDirectory) collectPaths(paths []string, force bool) ([]string, error) {
	modified, err := w.modifiedPaths()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, p := range paths {
		full := filepath.Join(w.path, p)
		err := filepath.WalkDir(full, func(walkPath string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(w.path, walkPath)
			if err != nil {
				return err
			}
			relNorm := timeline.NormalizePath(rel)
			if d.IsDir() {
				if IsIgnored(relNorm, w.matchers) {
					return filepath.SkipDir
				}
				return nil
			}
			if IsIgnored(relNorm, w.matchers) || seen[relNorm] {
				return nil
			}
			if !force && !modified[relNorm] {
				return nil
			}
			seen[relNorm] = true
			out = append(out, relNorm)
			return nil
		})
		if err != nil {
			return nil, errors.AddContext(err, "could not walk commit path "+p)
		}
	}
	return out, nil
}

// Commit creates a snapshot of every modified path under paths (or every
// path, if force), excluding ignored paths. Returns nil with no error if
// nothing qualified (spec.md §4.10 "commit(paths, force=false) ->
// Snapshot?").
func (w *WorkDirectory) Commit(paths []string, force bool) (*timeline.Snapshot, error) {
	start := time.Now()
	filtered, err := w.collectPaths(paths, force)
	if err != nil {
		w.metrics.ObserveCommit("error", time.Since(start).Seconds())
		return nil, err
	}
	if len(filtered) == 0 {
		w.metrics.ObserveCommit("noop", time.Since(start).Seconds())
		return nil, nil
	}
	sn, err := w.timeline.CreateSnapshot(filtered, w.path, timeline.SnapshotOptions{})
	if err != nil {
		w.metrics.ObserveCommit("error", time.Since(start).Seconds())
		return nil, err
	}
	w.metrics.ObserveCommit("created", time.Since(start).Seconds())
	return sn, nil
}

// Update writes back the blob content of each path's version at the given
// revision (or the latest snapshot, if revision is nil) to the working
// directory, restoring mtime and permissions. A path with no version in
// the target snapshot, or whose target file already exists with
// overwrite=false, is skipped silently (spec.md §4.10 "update(paths,
// revision?=None, overwrite=false)").
func (w *WorkDirectory) Update(paths []string, revision *int64, overwrite bool) error {
	var sn *timeline.Snapshot
	if revision != nil {
		s, err := w.timeline.Snapshot(*revision)
		if err != nil {
			return err
		}
		sn = s
	} else {
		s, ok, err := w.timeline.LatestSnapshot()
		if err != nil {
			return err
		}
		if !ok {
			return reversionerrors.ErrNotFound
		}
		sn = s
	}

	for _, p := range paths {
		rel := timeline.NormalizePath(p)
		if strings.HasPrefix(rel, "..") {
			continue
		}
		if err := w.updateOne(sn, rel, overwrite); err != nil {
			return err
		}
	}
	return nil
}

func (w *WorkDirectory) updateOne(sn *timeline.Snapshot, rel string, overwrite bool) error {
	v, ok, err := sn.VersionAt(rel)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	target := filepath.Join(w.path, rel)
	if _, err := os.Stat(target); err == nil && !overwrite {
		return nil
	}

	view, err := w.timeline.OpenView(v)
	if err != nil {
		return err
	}
	data, err := view.ReadAll()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.AddContext(err, "could not create parent directory for update")
	}
	tmp := target + "." + persist.RandomSuffix() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.AddContext(err, "could not write updated file")
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return errors.AddContext(err, "could not rename updated file into place")
	}

	mtime := time.UnixMilli(v.LastModifiedMs)
	if err := os.Chtimes(target, mtime, mtime); err != nil {
		return errors.AddContext(err, "could not restore modification time")
	}
	if v.Permissions != nil {
		if err := restorePermissions(target, *v.Permissions); err != nil {
			return errors.AddContext(err, "could not restore permissions")
		}
	}
	return nil
}
