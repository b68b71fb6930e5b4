// Command reversion is a thin CLI over the reversion library: init,
// status, commit, checkout, update, clean, verify, repair, and the
// snapshot/tag/version inspection commands (spec.md §6). Grounded on
// cmd/uploc's cobra wiring (one *cobra.Command var per command, grouped
// by file per subsystem), adapted from uploc's HTTP-API-client model to
// calling the reversion library directly since there is no daemon here.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}
