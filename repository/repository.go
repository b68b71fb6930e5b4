// Package repository glues a metadata store and blob store into the
// Repository the rest of reversion operates against (C7, spec.md §4.7),
// plus the storage provider registry (C11, spec.md §4.11). Grounded on the
// teacher's modules/renter's top-level wiring of a persist dir plus a
// contract set, adapted to this spec's format.json marker and embedded
// SQLite store.
package repository

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lostatc/reversion/blobstore"
	"github.com/lostatc/reversion/checksum"
	"github.com/lostatc/reversion/config"
	"github.com/lostatc/reversion/metrics"
	"github.com/lostatc/reversion/persist"
	"github.com/lostatc/reversion/reversionerrors"
	"github.com/lostatc/reversion/retention"
	"github.com/lostatc/reversion/store"
	"github.com/lostatc/reversion/timeline"
	"github.com/lostatc/reversion/verify"
	"github.com/spf13/afero"
	"github.com/uplo-tech/errors"
	"github.com/uplo-tech/threadgroup"
)

// Repository is an opened database-backed repository: one metadata store,
// one blob store directory, one config, and the timelines built on top of
// them (spec.md §4.7, §3 "Ownership in design terms").
type Repository struct {
	path   string
	store  *store.Store
	blobs  *blobstore.Store
	config *config.Config
	format Format

	mu        sync.Mutex
	timelines map[string]*timeline.Timeline

	// tg blocks Close until every in-flight operation has returned, and
	// rejects new operations once Close has been called (teacher's
	// modules/feemanager shutdown idiom).
	tg threadgroup.ThreadGroup
}

// Path returns the repository's root directory.
func (r *Repository) Path() string { return r.path }

// Config returns the repository's config.
func (r *Repository) Config() *config.Config { return r.config }

// UUID returns the repository's format-marker identity.
func (r *Repository) UUID() string { return r.format.UUID }

// UseMetrics attaches a metrics registry that the repository's blob store
// reports puts against. A nil registry (the default) disables reporting.
func (r *Repository) UseMetrics(m *metrics.Registry) { r.blobs.UseMetrics(m) }

// Close blocks until every in-flight operation returns, then releases the
// underlying metadata and blob store handles.
func (r *Repository) Close() error {
	if err := r.tg.Stop(); err != nil {
		return errors.AddContext(err, "could not stop repository thread group")
	}
	berr := r.blobs.Close()
	serr := r.store.Close()
	if serr != nil {
		return serr
	}
	return berr
}

func loadTimelines(st *store.Store, bs *blobstore.Store, cfg *config.Config) (map[string]*timeline.Timeline, error) {
	rows, err := st.ListTimelines()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*timeline.Timeline, len(rows))
	for _, row := range rows {
		out[row.ID] = timeline.New(row.ID, st, bs, cfg)
	}
	return out, nil
}

func openAt(path string, f Format) (*Repository, error) {
	st, err := store.Open(metadataPath(path))
	if err != nil {
		return nil, errors.AddContext(err, "could not open metadata store")
	}
	bs, err := blobstore.Open(afero.NewOsFs(), blobsPath(path))
	if err != nil {
		st.Close()
		return nil, errors.AddContext(err, "could not open blob store")
	}
	cfg := config.New(st)
	timelines, err := loadTimelines(st, bs, cfg)
	if err != nil {
		st.Close()
		bs.Close()
		return nil, err
	}
	return &Repository{
		path: path, store: st, blobs: bs, config: cfg, format: f,
		timelines: timelines,
	}, nil
}

// CreateTimeline allocates a fresh timeline UUID, inserts it, attaches the
// given cleanup policies, and returns its Timeline handle
// (spec.md §4.7 "create_timeline(policies) -> Timeline").
func (r *Repository) CreateTimeline(policies []retention.Policy) (*timeline.Timeline, error) {
	if err := r.tg.Add(); err != nil {
		return nil, err
	}
	defer r.tg.Done()

	id := uuid.NewString()
	if err := r.store.CreateTimeline(id, time.Now()); err != nil {
		return nil, err
	}
	engine := retention.NewEngine(r.store, r.blobs, id)
	for _, p := range policies {
		if _, err := engine.AddPolicy(p); err != nil {
			return nil, err
		}
	}
	tl := timeline.New(id, r.store, r.blobs, r.config)

	r.mu.Lock()
	r.timelines[id] = tl
	r.mu.Unlock()
	return tl, nil
}

// RemoveTimeline deletes a timeline (cascading its snapshots/versions/
// blocks/tags) and sweeps any blob left with zero remaining references
// across the whole repository (spec.md §3 "Lifecycles": "removal cascades
// ... -> orphan blobs"). Reports whether a timeline was actually removed.
func (r *Repository) RemoveTimeline(id string) (bool, error) {
	if err := r.tg.Add(); err != nil {
		return false, err
	}
	defer r.tg.Done()

	err := r.store.RemoveTimeline(id)
	if errors.Contains(err, reversionerrors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	orphans, err := r.store.SweepUnreferencedBlobs()
	if err != nil {
		return true, err
	}
	for _, o := range orphans {
		if err := r.blobs.Delete(checksum.Checksum(o.Checksum)); err != nil {
			return true, err
		}
	}

	r.mu.Lock()
	delete(r.timelines, id)
	r.mu.Unlock()
	return true, nil
}

// Timelines returns a snapshot copy of every timeline currently open in
// this repository, keyed by id.
func (r *Repository) Timelines() map[string]*timeline.Timeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*timeline.Timeline, len(r.timelines))
	for id, tl := range r.timelines {
		out[id] = tl
	}
	return out
}

// Retention returns a retention engine scoped to one of this repository's
// timelines.
func (r *Repository) Retention(timelineID string) *retention.Engine {
	return retention.NewEngine(r.store, r.blobs, timelineID)
}

// Verify enumerates the repository's pending integrity checks against the
// blob store, optionally repairing from workDir when a check's RepairAction
// is run (spec.md §4.12 "Repository.verify(work_dir) -> Sequence<VerifyAction>").
// workDir may be empty, in which case repairs can only remove unrecoverable
// versions, never re-ingest.
func (r *Repository) Verify(workDir string) ([]verify.VerifyAction, error) {
	if err := r.tg.Add(); err != nil {
		return nil, err
	}
	defer r.tg.Done()
	return verify.NewEngine(r.store, r.blobs, r.config).Build(workDir)
}

// writeFormat persists f to <path>/format.json via persist's atomic
// write-then-rename.
func writeFormat(path string, f Format) error {
	return persist.SaveJSON(persist.Metadata{Header: formatHeader, Version: formatFileVersion}, f, formatPath(path))
}

// readFormat loads the format marker at path. Any failure (missing file,
// wrong header/version, malformed JSON) is reported as a plain error; the
// provider translates that into the specific reversionerrors sentinel its
// callers expect.
func readFormat(path string) (Format, error) {
	var f Format
	err := persist.LoadJSON(persist.Metadata{Header: formatHeader, Version: formatFileVersion}, &f, formatPath(path))
	if err != nil {
		return Format{}, err
	}
	return f, nil
}
