package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uplo-tech/errors"
)

var (
	tagCreateDescription string
	tagCreatePinned      bool
	tagCreateRevision    int64
	tagModifyDescription string
	tagModifyPinned      bool
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Create, inspect, modify, and remove tags",
}

var tagCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Tag a snapshot",
	Run:   wrap(tagcreatecmd),
}

var tagRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a tag",
	Run:   wrap(tagremovecmd),
}

var tagModifyCmd = &cobra.Command{
	Use:   "modify <name>",
	Short: "Change a tag's description or pinned state",
	Run:   wrap(tagmodifycmd),
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every tag in the timeline",
	Run:   wrap(taglistcmd),
}

var tagInfoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show details for one tag",
	Run:   wrap(taginfocmd),
}

func init() {
	tagCreateCmd.Flags().StringVar(&tagCreateDescription, "description", "", "free-text description")
	tagCreateCmd.Flags().BoolVar(&tagCreatePinned, "pinned", false, "prevent clean from removing the tagged snapshot")
	tagCreateCmd.Flags().Int64VarP(&tagCreateRevision, "revision", "r", 0, "snapshot revision to tag (default: latest)")
	tagModifyCmd.Flags().StringVar(&tagModifyDescription, "description", "", "new free-text description")
	tagModifyCmd.Flags().BoolVar(&tagModifyPinned, "pinned", false, "new pinned state")

	tagCmd.AddCommand(tagCreateCmd)
	tagCmd.AddCommand(tagRemoveCmd)
	tagCmd.AddCommand(tagModifyCmd)
	tagCmd.AddCommand(tagListCmd)
	tagCmd.AddCommand(tagInfoCmd)
}

func tagcreatecmd(args []string) {
	if len(args) != 1 {
		die(errors.Extend(errUsage, errors.New("tag create requires exactly one name argument")))
	}
	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	sn, err := resolveSnapshot(w, tagCreateRevision)
	if err != nil {
		die(err)
	}
	if _, err := w.Timeline().AddTag(sn.ID(), args[0], tagCreateDescription, tagCreatePinned); err != nil {
		die(err)
	}
	fmt.Printf("Created tag %q on revision %d.\n", args[0], sn.Revision())
}

func tagremovecmd(args []string) {
	if len(args) != 1 {
		die(errors.Extend(errUsage, errors.New("tag remove requires exactly one name argument")))
	}
	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	tag, found, err := w.Timeline().GetTag(args[0])
	if err != nil {
		die(err)
	}
	if !found {
		die(errors.Extend(errUsage, errors.New("no such tag: "+args[0])))
	}
	if err := w.Timeline().RemoveTag(tag.ID()); err != nil {
		die(err)
	}
	fmt.Printf("Removed tag %q.\n", args[0])
}

func tagmodifycmd(args []string) {
	if len(args) != 1 {
		die(errors.Extend(errUsage, errors.New("tag modify requires exactly one name argument")))
	}
	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	tag, found, err := w.Timeline().GetTag(args[0])
	if err != nil {
		die(err)
	}
	if !found {
		die(errors.Extend(errUsage, errors.New("no such tag: "+args[0])))
	}
	if err := tag.Modify(tagModifyDescription, tagModifyPinned); err != nil {
		die(err)
	}
	fmt.Printf("Modified tag %q.\n", args[0])
}

func taglistcmd(args []string) {
	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	tags, err := w.Timeline().Tags()
	if err != nil {
		die(err)
	}
	for _, t := range tags {
		fmt.Printf("%s\tsnapshot=%d\tpinned=%t\n", t.Name(), t.SnapshotID(), t.Pinned())
	}
}

func taginfocmd(args []string) {
	if len(args) != 1 {
		die(errors.Extend(errUsage, errors.New("tag info requires exactly one name argument")))
	}
	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	tag, found, err := w.Timeline().GetTag(args[0])
	if err != nil {
		die(err)
	}
	if !found {
		die(errors.Extend(errUsage, errors.New("no such tag: "+args[0])))
	}
	fmt.Printf("Name:        %s\n", tag.Name())
	fmt.Printf("Description: %s\n", tag.Description())
	fmt.Printf("Snapshot:    %d\n", tag.SnapshotID())
	fmt.Printf("Pinned:      %t\n", tag.Pinned())
}
