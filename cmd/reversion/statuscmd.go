package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List modified paths",
	Long:  "List every path under the working directory that is new or differs from the latest snapshot.",
	Run:   wrap(statuscmd),
}

func statuscmd(args []string) {
	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	modified, err := w.Status()
	if err != nil {
		die(err)
	}
	if len(modified) == 0 {
		fmt.Println("No modified paths.")
		return
	}
	for _, p := range modified {
		fmt.Println(p)
	}
}
