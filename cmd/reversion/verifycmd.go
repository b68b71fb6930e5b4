package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the repository's blobs against its metadata",
	Long:  "Scan every known blob for missing/corrupt/size-mismatched content and every on-disk blob for orphans, reporting defects without repairing them.",
	Run:   wrap(verifycmd),
}

func verifycmd(args []string) {
	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	actions, err := w.Repository().Verify(w.Path())
	if err != nil {
		die(err)
	}

	found := 0
	for _, action := range actions {
		repair, err := action.Check()
		if err != nil {
			die(err)
		}
		if repair == nil {
			continue
		}
		found++
		registry.ObserveVerifyFinding(findingCategory(action.Context))
		fmt.Printf("%s: %s\n", action.Context, repair.Description)
	}
	if found == 0 {
		fmt.Println("No defects found.")
	}
}

// findingCategory derives a metrics label from a VerifyAction's Context
// string (e.g. "blob <sum>", "orphan blob <sum>").
func findingCategory(context string) string {
	if strings.HasPrefix(context, "orphan") {
		return "orphan"
	}
	return "blob"
}
