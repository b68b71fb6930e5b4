package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uplo-tech/errors"
)

var (
	checkoutRevision int64
	checkoutVerify   bool
)

var checkoutCmd = &cobra.Command{
	Use:   "checkout <src-rel> <dst>",
	Short: "Write a version's bytes to an arbitrary destination",
	Long:  "Reconstruct a version's bytes from the blob store and write them to dst, independent of the working directory.",
	Run:   wrap(checkoutcmd),
}

func init() {
	checkoutCmd.Flags().Int64VarP(&checkoutRevision, "revision", "r", 0, "snapshot revision to read from (default: latest)")
	checkoutCmd.Flags().BoolVar(&checkoutVerify, "verify", false, "verify the reconstructed bytes against the stored checksum before writing")
}

func checkoutcmd(args []string) {
	if len(args) != 2 {
		die(errors.Extend(errUsage, errors.New("checkout requires exactly 2 arguments: <src-rel> <dst>")))
	}
	src, dst := args[0], args[1]

	w, err := openWorkDir()
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()

	sn, err := resolveSnapshot(w, checkoutRevision)
	if err != nil {
		die(err)
	}

	if err := sn.Checkout(src, dst, checkoutVerify); err != nil {
		die(err)
	}
	fmt.Printf("Checked out %s to %s.\n", src, dst)
}
