// Package retention implements the stacked cleanup-policy intersection
// algorithm (C9, spec.md §4.9). Grounded fresh in the teacher's idiom: no
// direct analogue exists in uplo-tech-uplo, so this follows the shape of
// the store package's transaction-scoped helpers rather than copying
// unrelated teacher code.
package retention

import (
	"math"
	"sort"
	"time"

	"github.com/lostatc/reversion/blobstore"
	"github.com/lostatc/reversion/store"
	"github.com/uplo-tech/errors"
)

// Forever is the sentinel duration meaning "the entire range" for a
// policy's MinInterval or TimeFrame (spec.md §4.9 "Special durations").
const Forever = time.Duration(math.MaxInt64)

// UnlimitedVersions is the sentinel meaning "keep every version selected by
// an interval", i.e. this policy contributes nothing towards deletion.
const UnlimitedVersions = uint64(math.MaxUint64)

// instantMin stands in for spec.md's Instant.MIN: a fixed point before any
// real snapshot, used as the start of the single interval a FOREVER
// time_frame builds (DESIGN.md Open Question #4).
var instantMin = time.Unix(0, 0)

// Policy is one cleanup policy: a version is deleted only if every policy
// attached to its timeline agrees it can be deleted (spec.md §3
// "CleanupPolicy", §4.9).
type Policy struct {
	ID          int64
	MinInterval time.Duration
	TimeFrame   time.Duration
	MaxVersions uint64
	Description string
}

// OfStaggered keeps one version per unit-sized bucket across n buckets,
// e.g. OfStaggered(7, 24*time.Hour) for "7 daily snapshots".
func OfStaggered(n int, unit time.Duration) Policy {
	return Policy{
		MinInterval: unit,
		TimeFrame:   unit * time.Duration(n),
		MaxVersions: 1,
		Description: "staggered",
	}
}

// OfVersions keeps the newest n versions of each path regardless of age.
func OfVersions(n uint64) Policy {
	return Policy{
		MinInterval: Forever,
		TimeFrame:   Forever,
		MaxVersions: n,
		Description: "versions",
	}
}

// OfDuration keeps every version created within the last n units, and
// nothing older.
func OfDuration(n int, unit time.Duration) Policy {
	frame := unit * time.Duration(n)
	return Policy{
		MinInterval: frame,
		TimeFrame:   frame,
		MaxVersions: UnlimitedVersions,
		Description: "duration",
	}
}

// KeepForever never deletes anything; useful stacked alongside other
// policies during testing or as a documented no-op.
func KeepForever() Policy {
	return Policy{
		MinInterval: Forever,
		TimeFrame:   Forever,
		MaxVersions: UnlimitedVersions,
		Description: "forever",
	}
}

// Engine applies retention policies to a single timeline's versions.
type Engine struct {
	store      *store.Store
	blobs      *blobstore.Store
	timelineID string
}

// NewEngine wraps a timeline's store/blob-store pair for retention passes.
// Called by package repository, which owns the timeline id's lifecycle.
func NewEngine(st *store.Store, bs *blobstore.Store, timelineID string) *Engine {
	return &Engine{store: st, blobs: bs, timelineID: timelineID}
}

func fromRow(row store.PolicyRow) Policy {
	return Policy{
		ID:          row.ID,
		MinInterval: time.Duration(row.MinIntervalMs) * time.Millisecond,
		TimeFrame:   time.Duration(row.TimeFrameMs) * time.Millisecond,
		MaxVersions: row.MaxVersions,
		Description: row.Description,
	}
}

// AddPolicy persists a policy and associates it with the engine's timeline.
func (e *Engine) AddPolicy(p Policy) (Policy, error) {
	id, err := e.store.AddCleanupPolicy(e.timelineID, int64(p.MinInterval/time.Millisecond), int64(p.TimeFrame/time.Millisecond), p.MaxVersions, p.Description)
	if err != nil {
		return Policy{}, err
	}
	p.ID = id
	return p, nil
}

// Policies returns every policy associated with the engine's timeline.
func (e *Engine) Policies() ([]Policy, error) {
	rows, err := e.store.ListCleanupPolicies(e.timelineID)
	if err != nil {
		return nil, err
	}
	out := make([]Policy, len(rows))
	for i, row := range rows {
		out[i] = fromRow(row)
	}
	return out, nil
}

// RemovePolicy deletes a policy by id.
func (e *Engine) RemovePolicy(id int64) error {
	return e.store.RemoveCleanupPolicy(id)
}

// Clean implements Timeline.clean (spec.md §4.9): a version is deleted only
// if every policy's candidate set contains it. pathsToClean defaults to
// every path with a version anywhere in the timeline. Returns the number
// of versions deleted.
func (e *Engine) Clean(pathsToClean []string) (int, error) {
	policies, err := e.Policies()
	if err != nil {
		return 0, err
	}
	// DESIGN.md's retention entry: with no policies configured, clean is a
	// no-op. An intersection over zero sets is vacuously "everything",
	// which would delete the whole timeline on every path - clearly not
	// the intended behaviour for an unconfigured timeline.
	if len(policies) == 0 {
		return 0, nil
	}

	if len(pathsToClean) == 0 {
		pathsToClean, err = e.store.ListDistinctPaths(e.timelineID)
		if err != nil {
			return 0, err
		}
	}

	var intersection map[int64]bool
	for _, p := range policies {
		candidates, err := e.policyCandidates(p, pathsToClean)
		if err != nil {
			return 0, err
		}
		if intersection == nil {
			intersection = candidates
			continue
		}
		for id := range intersection {
			if !candidates[id] {
				delete(intersection, id)
			}
		}
	}

	deleted := 0
	touchedSnapshots := make(map[int64]bool)
	for id := range intersection {
		v, err := e.store.GetVersion(id)
		if err != nil {
			return deleted, err
		}
		ok, err := e.store.RemoveVersion(id)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
			touchedSnapshots[v.SnapshotID] = true
		}
	}

	for snapshotID := range touchedSnapshots {
		n, err := e.store.SnapshotVersionCount(snapshotID)
		if err != nil {
			return deleted, err
		}
		if n == 0 {
			if err := e.store.RemoveSnapshot(snapshotID); err != nil {
				return deleted, errors.AddContext(err, "could not remove emptied snapshot")
			}
		}
	}

	if deleted > 0 {
		orphans, err := e.store.SweepUnreferencedBlobs()
		if err != nil {
			return deleted, err
		}
		for _, o := range orphans {
			if err := e.blobs.Delete(o.Checksum); err != nil {
				return deleted, err
			}
		}
	}
	return deleted, nil
}

// policyCandidates computes candidates_P (spec.md §4.9 steps 1-5) as the
// union, across paths, of versions one policy would delete.
func (e *Engine) policyCandidates(p Policy, paths []string) (map[int64]bool, error) {
	candidates := make(map[int64]bool)
	for _, path := range paths {
		all, err := e.store.ListVersionsWithSnapshotByPath(e.timelineID, path)
		if err != nil {
			return nil, err
		}
		var unpinned []store.VersionWithSnapshot
		for _, v := range all {
			if !v.Pinned {
				unpinned = append(unpinned, v)
			}
		}
		if len(unpinned) == 0 {
			continue
		}
		// newest first, matching the query's ORDER BY revision DESC.
		sort.SliceStable(unpinned, func(i, j int) bool {
			return unpinned[i].SnapshotRevision > unpinned[j].SnapshotRevision
		})
		latest := unpinned[0].SnapshotTimeCreated

		var start time.Time
		if p.TimeFrame == Forever {
			start = instantMin
		} else {
			start = latest.Add(-p.TimeFrame)
		}

		for _, v := range unpinned {
			if v.SnapshotTimeCreated.Before(start) {
				candidates[v.ID] = true
			}
		}

		if p.TimeFrame == Forever {
			// One interval covering every selected version, inclusive of the
			// newest. A half-open [start, latest) bucket would exclude the
			// newest version (its time equals latest) into a degenerate
			// bucket of its own, so max_versions would bound only the
			// everything-but-newest set instead of the whole set.
			if p.MaxVersions < uint64(len(unpinned)) {
				for _, v := range unpinned[p.MaxVersions:] {
					candidates[v.ID] = true
				}
			}
			continue
		}

		step := p.MinInterval
		if step <= 0 || step > p.TimeFrame {
			step = latest.Sub(start)
			if step <= 0 {
				step = time.Nanosecond
			}
		}

		for bucketStart := start; bucketStart.Before(latest) || bucketStart.Equal(latest); bucketStart = bucketStart.Add(step) {
			bucketEnd := bucketStart.Add(step)
			var bucket []store.VersionWithSnapshot
			for _, v := range unpinned {
				t := v.SnapshotTimeCreated
				if !t.Before(bucketStart) && t.Before(bucketEnd) {
					bucket = append(bucket, v)
				}
			}
			if p.MaxVersions < uint64(len(bucket)) {
				for _, v := range bucket[p.MaxVersions:] {
					candidates[v.ID] = true
				}
			}
			if step == 0 {
				break
			}
		}
	}
	return candidates, nil
}
