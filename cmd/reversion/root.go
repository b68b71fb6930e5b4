package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/lostatc/reversion/metrics"
)

var (
	workDirPath string
	metricsAddr string
)

// registry is the process-wide metrics registry. It always exists so
// commands can report against it unconditionally; it is only served over
// HTTP when --metrics-addr is given.
var registry = metrics.NewRegistry()

var rootCmd = &cobra.Command{
	Use:   "reversion",
	Short: "Content-addressed file versioning",
	Long:  "reversion tracks and restores versions of files in a working directory using content-addressed, chunk-deduplicated storage.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if metricsAddr == "" {
			return
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", registry.Handler())
		go http.ListenAndServe(metricsAddr, mux)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workDirPath, "path", "", "working directory to operate against (default: current directory or an ancestor of it)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics at <addr>/metrics while this command runs (default: disabled)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(checkoutCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command, returning any error it produced instead
// of exiting directly, so main can classify it into an exit code.
func Execute() error {
	return rootCmd.Execute()
}

// die prints an error to stderr and exits immediately with the code its
// kind maps to (spec.md §6 "Exit codes").
func die(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(exitCode(err))
}
