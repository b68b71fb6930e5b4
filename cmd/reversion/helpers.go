package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lostatc/reversion/reversionerrors"
	"github.com/lostatc/reversion/timeline"
	"github.com/lostatc/reversion/workdir"
	"github.com/uplo-tech/errors"
)

// wrap adapts a plain args-taking handler to cobra's Run signature, the
// same indirection cmd/uploc's command vars use to avoid repeating the
// *cobra.Command/[]string boilerplate in every handler.
func wrap(fn func(args []string)) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		fn(args)
	}
}

// errUsage marks an error as a CLI usage mistake (bad arguments), rather
// than a failure from the reversion library itself.
var errUsage = errors.New("usage error")

// exitCode classifies an error into the exit codes spec.md §6 names:
// 0 success, 1 usage error, 2 I/O or repository error, 3 repository is
// corrupt or incompatible.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Contains(err, reversionerrors.ErrIncompatibleRepository),
		errors.Contains(err, reversionerrors.ErrUnsupportedFormat),
		errors.Contains(err, reversionerrors.ErrInvalidRepository):
		return 3
	case errors.Contains(err, reversionerrors.ErrNotAWorkDir),
		errors.Contains(err, reversionerrors.ErrAlreadyAWorkDir),
		errors.Contains(err, reversionerrors.ErrNoSuchFile),
		errors.Contains(err, reversionerrors.ErrValueConvert),
		errors.Contains(err, errUsage):
		return 1
	default:
		return 2
	}
}

// openWorkDir resolves the working directory to operate against: the
// --path flag if given, else the current directory or one of its
// ancestors (spec.md §4.10 "open_from_descendant(path)").
func openWorkDir() (*workdir.WorkDirectory, error) {
	var (
		w   *workdir.WorkDirectory
		err error
	)
	if workDirPath != "" {
		w, err = workdir.Open(workDirPath)
	} else {
		var cwd string
		cwd, err = os.Getwd()
		if err != nil {
			return nil, errors.AddContext(err, "could not determine current directory")
		}
		w, err = workdir.OpenFromDescendant(cwd)
	}
	if err != nil {
		return nil, err
	}
	w.UseMetrics(registry)
	return w, nil
}

// resolveSnapshot looks up the snapshot at revision, or the latest
// snapshot when revision is 0 (spec.md §6 "[-r <rev>]").
func resolveSnapshot(w *workdir.WorkDirectory, revision int64) (*timeline.Snapshot, error) {
	if revision != 0 {
		return w.Timeline().Snapshot(revision)
	}
	sn, ok, err := w.Timeline().LatestSnapshot()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, reversionerrors.ErrNotFound
	}
	return sn, nil
}

// parseRevisionArg parses the first positional argument as a revision
// number, calling die (exit code 1) if it's missing or malformed.
func parseRevisionArg(args []string) int64 {
	if len(args) != 1 {
		die(errors.Extend(errUsage, errors.New("expected exactly one revision argument")))
	}
	rev, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		die(errors.Extend(errUsage, fmt.Errorf("invalid revision %q: %w", args[0], err)))
	}
	return rev
}
