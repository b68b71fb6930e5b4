package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lostatc/reversion/config"
	"github.com/lostatc/reversion/workdir"
)

var (
	initHashAlgorithm string
	initChunkerKind   string
	initBlockSize     string
	initTargetBit     string
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Create a new working directory",
	Long:  "Create a new working directory with a fresh, embedded repository and timeline.",
	Run:   wrap(initcmd),
}

func init() {
	initCmd.Flags().StringVar(&initHashAlgorithm, "hash-algorithm", "", "digest algorithm for files and blobs (SHA-256 or BLAKE3)")
	initCmd.Flags().StringVar(&initChunkerKind, "chunker-kind", "", "chunk boundary strategy: fixed or rolling")
	initCmd.Flags().StringVar(&initBlockSize, "block-size", "", "fixed-size chunker block size in bytes")
	initCmd.Flags().StringVar(&initTargetBit, "target-bit", "", "rolling-hash chunker target size, in bits")
}

func initcmd(args []string) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}

	rawConfig := map[string]string{}
	if initHashAlgorithm != "" {
		rawConfig[config.HashAlgorithm.Key] = initHashAlgorithm
	}
	if initChunkerKind != "" {
		rawConfig[config.ChunkerKind.Key] = initChunkerKind
	}
	if initBlockSize != "" {
		rawConfig[config.BlockSize.Key] = initBlockSize
	}
	if initTargetBit != "" {
		rawConfig[config.ChunkerTargetBit.Key] = initTargetBit
	}

	w, err := workdir.Init(path, rawConfig, nil)
	if err != nil {
		die(err)
	}
	defer w.Repository().Close()
	fmt.Printf("Initialized working directory in %s\n", w.Path())
}
