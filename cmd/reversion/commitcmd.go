package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v5"
	"github.com/vbauerster/mpb/v5/decor"
)

var commitForce bool

var commitCmd = &cobra.Command{
	Use:   "commit [paths...]",
	Short: "Create a snapshot of the given paths",
	Long:  "Create a snapshot of every modified path under the given paths (every path given, with --force).",
	Run:   wrap(commitcmd),
}

func init() {
	commitCmd.Flags().BoolVar(&commitForce, "force", false, "commit every given path, not just modified ones")
}

func commitcmd(args []string) {
	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	pbs := mpb.New(mpb.WithWidth(40))
	bar := pbs.AddBar(1,
		mpb.PrependDecorators(
			decor.Name("committing", decor.WC{W: 10}),
		),
	)

	sn, err := w.Commit(args, commitForce)
	bar.Increment()
	pbs.Wait()
	if err != nil {
		die(err)
	}
	if sn == nil {
		fmt.Println("Nothing to commit.")
		return
	}
	fmt.Printf("Created snapshot revision %d.\n", sn.Revision())
}
