package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Verify and repair the repository's blobs",
	Long:  "Scan for defects like verify, then run every proposed repair: re-ingest from the working directory when possible, else remove the affected version.",
	Run:   wrap(repaircmd),
}

func repaircmd(args []string) {
	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	actions, err := w.Repository().Verify(w.Path())
	if err != nil {
		die(err)
	}

	repaired := 0
	for _, action := range actions {
		repair, err := action.Check()
		if err != nil {
			die(err)
		}
		if repair == nil {
			continue
		}
		registry.ObserveVerifyFinding(findingCategory(action.Context))
		result, err := repair.Run()
		if err != nil {
			die(err)
		}
		repaired++
		fmt.Printf("%s: %s\n", action.Context, result.Message)
	}
	if repaired == 0 {
		fmt.Println("No defects found.")
	}
}
