package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/uplo-tech/errors"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Inspect and remove versions",
}

var versionListCmd = &cobra.Command{
	Use:   "list <path>",
	Short: "List every version of a path, newest first",
	Run:   wrap(versionlistcmd),
}

var versionInfoCmd = &cobra.Command{
	Use:   "info <path> <revision>",
	Short: "Show details for one version",
	Run:   wrap(versioninfocmd),
}

var versionRemoveCmd = &cobra.Command{
	Use:   "remove <path> <revision>",
	Short: "Remove a path's version from a snapshot",
	Run:   wrap(versionremovecmd),
}

func init() {
	versionCmd.AddCommand(versionListCmd)
	versionCmd.AddCommand(versionInfoCmd)
	versionCmd.AddCommand(versionRemoveCmd)
}

func versionlistcmd(args []string) {
	if len(args) != 1 {
		die(errors.Extend(errUsage, errors.New("version list requires exactly one path argument")))
	}
	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	versions, err := w.Timeline().ListVersions(args[0])
	if err != nil {
		die(err)
	}
	for _, v := range versions {
		fmt.Printf("snapshot=%d\tsize=%d\tmodified=%s\n", v.SnapshotID, v.Size, time.UnixMilli(v.LastModifiedMs).Format("2006-01-02 15:04:05"))
	}
}

func versioninfocmd(args []string) {
	if len(args) != 2 {
		die(errors.Extend(errUsage, errors.New("version info requires <path> <revision>")))
	}
	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	rev := parseRevisionArg(args[1:])
	sn, err := w.Timeline().Snapshot(rev)
	if err != nil {
		die(err)
	}
	v, ok, err := sn.VersionAt(args[0])
	if err != nil {
		die(err)
	}
	if !ok {
		die(errors.Extend(errUsage, errors.New("no version of "+args[0]+" in revision "+args[1])))
	}
	fmt.Printf("Path:     %s\n", v.Path)
	fmt.Printf("Size:     %d\n", v.Size)
	fmt.Printf("Modified: %s\n", time.UnixMilli(v.LastModifiedMs).Format("2006-01-02 15:04:05"))
	if v.Permissions != nil {
		fmt.Printf("Mode:     %o\n", *v.Permissions)
	}
}

func versionremovecmd(args []string) {
	if len(args) != 2 {
		die(errors.Extend(errUsage, errors.New("version remove requires <path> <revision>")))
	}
	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	rev := parseRevisionArg(args[1:])
	sn, err := w.Timeline().Snapshot(rev)
	if err != nil {
		die(err)
	}
	removed, err := sn.RemoveVersion(args[0])
	if err != nil {
		die(err)
	}
	if !removed {
		die(errors.Extend(errUsage, errors.New("no version of "+args[0]+" in revision "+args[1])))
	}
	fmt.Printf("Removed %s from revision %d.\n", args[0], rev)
}
