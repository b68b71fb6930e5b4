package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	updateRevision  int64
	updateOverwrite bool
)

var updateCmd = &cobra.Command{
	Use:   "update [paths...]",
	Short: "Write version content back into the working directory",
	Long:  "Restore the given paths (or every tracked path, with none given) from a snapshot into the working directory.",
	Run:   wrap(updatecmd),
}

func init() {
	updateCmd.Flags().Int64VarP(&updateRevision, "revision", "r", 0, "snapshot revision to update from (default: latest)")
	updateCmd.Flags().BoolVar(&updateOverwrite, "overwrite", false, "overwrite files that already exist on disk")
}

func updatecmd(args []string) {
	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	paths := args
	if len(paths) == 0 {
		sn, err := resolveSnapshot(w, updateRevision)
		if err != nil {
			die(err)
		}
		versions, err := sn.Versions()
		if err != nil {
			die(err)
		}
		for _, v := range versions {
			paths = append(paths, v.Path)
		}
	}

	var revision *int64
	if updateRevision != 0 {
		revision = &updateRevision
	}
	if err := w.Update(paths, revision, updateOverwrite); err != nil {
		die(err)
	}
	fmt.Printf("Updated %d path(s).\n", len(paths))
}
