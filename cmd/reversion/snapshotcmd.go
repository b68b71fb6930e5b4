package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect and remove snapshots",
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every snapshot in the timeline",
	Run:   wrap(snapshotlistcmd),
}

var snapshotInfoCmd = &cobra.Command{
	Use:   "info <revision>",
	Short: "Show details for one snapshot",
	Run:   wrap(snapshotinfocmd),
}

var snapshotRemoveCmd = &cobra.Command{
	Use:   "remove <revision>",
	Short: "Remove a snapshot outright",
	Run:   wrap(snapshotremovecmd),
}

func init() {
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotInfoCmd)
	snapshotCmd.AddCommand(snapshotRemoveCmd)
}

func snapshotlistcmd(args []string) {
	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	snapshots, err := w.Timeline().Snapshots()
	if err != nil {
		die(err)
	}
	for _, sn := range snapshots {
		name, hasName := sn.Name()
		pinned, err := sn.Pinned()
		if err != nil {
			die(err)
		}
		label := ""
		if hasName {
			label = " " + name
		}
		fmt.Printf("%d%s\t%s\tpinned=%t\n", sn.Revision(), label, sn.TimeCreated().Format("2006-01-02 15:04:05"), pinned)
	}
}

func snapshotinfocmd(args []string) {
	rev := parseRevisionArg(args)
	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	sn, err := w.Timeline().Snapshot(rev)
	if err != nil {
		die(err)
	}
	versions, err := sn.Versions()
	if err != nil {
		die(err)
	}
	name, hasName := sn.Name()
	fmt.Printf("Revision:    %d\n", sn.Revision())
	if hasName {
		fmt.Printf("Name:        %s\n", name)
	}
	fmt.Printf("Description: %s\n", sn.Description())
	fmt.Printf("Created:     %s\n", sn.TimeCreated().Format("2006-01-02 15:04:05"))
	fmt.Printf("Versions:    %d\n", len(versions))
	for _, v := range versions {
		fmt.Printf("  %s\n", v.Path)
	}
}

func snapshotremovecmd(args []string) {
	rev := parseRevisionArg(args)
	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	sn, err := w.Timeline().Snapshot(rev)
	if err != nil {
		die(err)
	}
	if err := w.Timeline().RemoveSnapshot(sn.ID()); err != nil {
		die(err)
	}
	fmt.Printf("Removed snapshot revision %d.\n", rev)
}
