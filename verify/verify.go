// Package verify implements the repository integrity scan and repair
// policy (C12, spec.md §4.12). It has no direct teacher analogue: the
// teacher repo checks host-side Merkle roots during downloads rather than
// scanning an owned on-disk store, so the scan/repair shape here is built
// fresh in the teacher's idiom, reusing its bandwidth-limiting and
// bounded-fan-out libraries.
package verify

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lostatc/reversion/blob"
	"github.com/lostatc/reversion/blobstore"
	"github.com/lostatc/reversion/checksum"
	"github.com/lostatc/reversion/chunker"
	"github.com/lostatc/reversion/config"
	"github.com/lostatc/reversion/store"
	"github.com/uplo-tech/errors"
	"github.com/uplo-tech/ratelimit"
	"golang.org/x/sync/errgroup"
)

// RepairResult reports the outcome of running a RepairAction.
type RepairResult struct {
	Success bool
	Message string
}

// RepairAction is the repair a VerifyAction's check proposed, left unrun
// until the caller decides to apply it (spec.md §4.12 "a RepairAction is
// not applied until Run is called").
type RepairAction struct {
	Description string
	run         func() (RepairResult, error)
}

// Run applies the repair.
func (r *RepairAction) Run() (RepairResult, error) {
	return r.run()
}

// VerifyAction is one deferred integrity check: Context names what is
// being checked, Check runs it and returns a RepairAction if (and only if)
// a defect was found.
type VerifyAction struct {
	Context string
	check   func() (*RepairAction, error)
}

// Check runs the deferred integrity check.
func (v *VerifyAction) Check() (*RepairAction, error) {
	return v.check()
}

// Finding pairs a VerifyAction that found a defect with the RepairAction
// it proposed.
type Finding struct {
	Context string
	Repair  *RepairAction
}

// Engine scans and repairs one repository's blob store against its
// metadata. The scan rate can be throttled via SetScanRateLimit, using the
// same ratelimit.RateLimit the teacher throttles renter network I/O with;
// unlike the teacher's NewRLConn/NewRLStream, which wrap a net.Conn or
// uplomux stream, here the limiter only ever paces local file reads, so
// Engine reads back its configured rate and sleeps manually rather than
// wrapping a reader.
type Engine struct {
	store *store.Store
	blobs *blobstore.Store
	cfg   *config.Config
	rl    *ratelimit.RateLimit
}

// NewEngine returns an Engine with no scan rate limit.
func NewEngine(st *store.Store, bs *blobstore.Store, cfg *config.Config) *Engine {
	return &Engine{store: st, blobs: bs, cfg: cfg, rl: ratelimit.NewRateLimit(0, 0, 0)}
}

// SetScanRateLimit caps how many bytes per second the scan reads from the
// blob store while digesting; 0 means unlimited.
func (e *Engine) SetScanRateLimit(bytesPerSecond int64) {
	_, writeBPS, packetSize := e.rl.Limits()
	e.rl.SetLimits(bytesPerSecond, writeBPS, packetSize)
}

func (e *Engine) throttle(n int64) {
	readBPS, _, _ := e.rl.Limits()
	if readBPS <= 0 || n <= 0 {
		return
	}
	delay := time.Duration(float64(n) / float64(readBPS) * float64(time.Second))
	if delay > 0 {
		time.Sleep(delay)
	}
}

// Build enumerates every integrity check this repository currently has
// pending: one per known blob (missing/corrupt/size-mismatch) plus one per
// on-disk file with no metadata reference (orphan). Each check's actual
// I/O is deferred until its VerifyAction.Check is called (spec.md §4.12
// "Repository.verify(work_dir) -> Sequence<VerifyAction>").
func (e *Engine) Build(workDir string) ([]VerifyAction, error) {
	rows, err := e.store.ListBlobs()
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(rows))
	actions := make([]VerifyAction, 0, len(rows))
	for _, row := range rows {
		row := row
		sum := checksum.Checksum(row.Checksum)
		known[sum.String()] = true
		actions = append(actions, VerifyAction{
			Context: fmt.Sprintf("blob %s", sum),
			check:   e.checkBlob(row, workDir),
		})
	}

	var onDisk []checksum.Checksum
	err = e.blobs.Walk(func(sum checksum.Checksum) error {
		onDisk = append(onDisk, sum)
		return nil
	})
	if err != nil {
		return nil, errors.AddContext(err, "could not walk blob store")
	}
	for _, sum := range onDisk {
		sum := sum
		if known[sum.String()] {
			continue
		}
		actions = append(actions, VerifyAction{
			Context: fmt.Sprintf("orphan blob %s", sum),
			check:   e.checkOrphan(sum),
		})
	}
	return actions, nil
}

// RunAll executes every action's Check concurrently, bounded to limit
// goroutines in flight, and collects the findings that proposed a repair
// (golang.org/x/sync/errgroup, the teacher's bounded-fan-out tool for
// exactly this shape of independent, fallible work).
func (e *Engine) RunAll(actions []VerifyAction, limit int) ([]Finding, error) {
	if limit <= 0 {
		limit = 8
	}
	findings := make([]*Finding, len(actions))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, a := range actions {
		i, a := i, a
		g.Go(func() error {
			repair, err := a.Check()
			if err != nil {
				return errors.AddContext(err, "could not verify "+a.Context)
			}
			if repair != nil {
				findings[i] = &Finding{Context: a.Context, Repair: repair}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if f != nil {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (e *Engine) checkBlob(row store.BlobRow, workDir string) func() (*RepairAction, error) {
	return func() (*RepairAction, error) {
		sum := checksum.Checksum(row.Checksum)

		b, ok, err := e.blobs.Get(sum)
		if err != nil {
			return nil, err
		}
		if !ok {
			return e.repairAction(row, workDir, "missing blob"), nil
		}

		onDiskSize, ok, err := e.blobs.Size(sum)
		if err != nil {
			return nil, err
		}
		if !ok || onDiskSize != row.Size {
			return e.repairAction(row, workDir, "metadata/blob size mismatch"), nil
		}

		hashAlg, err := config.Get(e.cfg, config.HashAlgorithm)
		if err != nil {
			return nil, err
		}
		computed, err := b.Checksum(hashAlg)
		e.throttle(onDiskSize)
		if err != nil {
			return nil, err
		}
		if !computed.Equal(sum) {
			return e.repairAction(row, workDir, "corrupt blob"), nil
		}
		return nil, nil
	}
}

func (e *Engine) checkOrphan(sum checksum.Checksum) func() (*RepairAction, error) {
	return func() (*RepairAction, error) {
		_, ok, err := e.store.GetBlobByChecksum(sum)
		if err != nil {
			return nil, err
		}
		if ok {
			// Became referenced since Build scanned; no longer an orphan.
			return nil, nil
		}
		return &RepairAction{
			Description: fmt.Sprintf("delete orphan blob %s", sum),
			run: func() (RepairResult, error) {
				if err := e.blobs.Delete(sum); err != nil {
					return RepairResult{}, err
				}
				return RepairResult{Success: true, Message: "deleted orphan blob " + sum.String()}, nil
			},
		}, nil
	}
}

// repairAction builds the RepairAction for a missing/corrupt/size-
// mismatched blob: every version referencing it is re-ingested from
// workDir if its whole-file checksum still matches, otherwise the version
// (and its snapshot, if emptied) is removed (spec.md §4.12 "Repair
// policy").
func (e *Engine) repairAction(row store.BlobRow, workDir, reason string) *RepairAction {
	sum := checksum.Checksum(row.Checksum)
	return &RepairAction{
		Description: fmt.Sprintf("repair %s (%s)", sum, reason),
		run: func() (RepairResult, error) {
			return e.repair(row, workDir, reason)
		},
	}
}

func (e *Engine) repair(row store.BlobRow, workDir, reason string) (RepairResult, error) {
	versions, err := e.store.VersionsReferencingBlob(row.ID)
	if err != nil {
		return RepairResult{}, err
	}

	hashAlg, err := config.Get(e.cfg, config.HashAlgorithm)
	if err != nil {
		return RepairResult{}, err
	}
	spec, err := config.ChunkerSpec(e.cfg)
	if err != nil {
		return RepairResult{}, err
	}
	target := checksum.Checksum(row.Checksum)

	recovered := false
	var unrecoverable []string
	touchedSnapshots := map[int64]bool{}

	for _, v := range versions {
		if workDir == "" {
			touchedSnapshots[v.SnapshotID] = true
			if _, rmErr := e.store.RemoveVersion(v.ID); rmErr != nil {
				return RepairResult{}, rmErr
			}
			unrecoverable = append(unrecoverable, v.Path)
			continue
		}
		full := filepath.Join(workDir, v.Path)
		if _, err := os.Stat(full); err != nil {
			touchedSnapshots[v.SnapshotID] = true
			if _, rmErr := e.store.RemoveVersion(v.ID); rmErr != nil {
				return RepairResult{}, rmErr
			}
			unrecoverable = append(unrecoverable, v.Path)
			continue
		}
		wholeSum, err := hashAlg.File(full)
		if err != nil || !wholeSum.Equal(checksum.Checksum(v.Checksum)) {
			touchedSnapshots[v.SnapshotID] = true
			if _, rmErr := e.store.RemoveVersion(v.ID); rmErr != nil {
				return RepairResult{}, rmErr
			}
			unrecoverable = append(unrecoverable, v.Path)
			continue
		}

		found, err := e.reingest(full, spec, hashAlg, target)
		if err != nil {
			return RepairResult{}, err
		}
		if found {
			recovered = true
		} else {
			touchedSnapshots[v.SnapshotID] = true
			if _, rmErr := e.store.RemoveVersion(v.ID); rmErr != nil {
				return RepairResult{}, rmErr
			}
			unrecoverable = append(unrecoverable, v.Path)
		}
	}

	for sid := range touchedSnapshots {
		n, err := e.store.SnapshotVersionCount(sid)
		if err != nil {
			return RepairResult{}, err
		}
		if n == 0 {
			if err := e.store.RemoveSnapshot(sid); err != nil {
				return RepairResult{}, err
			}
		}
	}

	if recovered {
		return RepairResult{Success: true, Message: fmt.Sprintf("re-ingested %s from working directory (%s)", target, reason)}, nil
	}
	if len(unrecoverable) > 0 {
		return RepairResult{Success: false, Message: fmt.Sprintf("removed unrecoverable versions: %v", unrecoverable)}, nil
	}
	return RepairResult{Success: false, Message: "no working directory copy available; nothing to repair"}, nil
}

// reingest re-chunks the file at full and rewrites whichever resulting
// chunk matches target, bypassing the blob store's normal same-size skip
// (blobstore.Store.Put only compares file size against the expected size,
// which would let a same-size-but-corrupt file on disk survive a repair
// untouched). Chunks that don't match target go through the ordinary,
// idempotent Put.
func (e *Engine) reingest(full string, spec chunker.Spec, alg checksum.Algorithm, target checksum.Checksum) (bool, error) {
	ck, err := chunker.New(spec)
	if err != nil {
		return false, err
	}
	src, err := chunker.OpenFile(full)
	if err != nil {
		return false, err
	}
	chunks, err := ck.Chunk(src)
	if err != nil {
		return false, err
	}

	found := false
	for _, c := range chunks {
		cb := blob.FileSlice(full, c.Offset, c.Length)
		sum, err := cb.Checksum(alg)
		if err != nil {
			return false, err
		}
		if sum.Equal(target) {
			found = true
			// The file on disk at this checksum's shard path is suspect;
			// force a real rewrite instead of Put's size-match skip.
			if err := e.blobs.Delete(sum); err != nil {
				return false, err
			}
		}
		newSum, newSize, err := e.blobs.Put(cb, alg)
		if err != nil {
			return false, err
		}
		if _, err := e.store.UpsertBlob(newSum, newSize); err != nil {
			return false, err
		}
	}
	return found, nil
}
