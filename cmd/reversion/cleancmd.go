package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [paths...]",
	Short: "Delete versions no longer kept by any retention policy",
	Long:  "Delete versions that every configured retention policy agrees can be removed (every path in the timeline, with none given).",
	Run:   wrap(cleancmd),
}

func cleancmd(args []string) {
	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	engine := w.Repository().Retention(w.Timeline().ID())
	removed, err := engine.Clean(args)
	if err != nil {
		die(err)
	}
	registry.ObserveClean(w.Timeline().ID(), removed)
	fmt.Printf("Removed %d version(s).\n", removed)
}
