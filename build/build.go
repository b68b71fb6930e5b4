package build

// Version is the current reversion release version, bumped on every
// tagged release.
const Version = "0.1.0"

// IssuesURL is where users are pointed to file bug reports.
const IssuesURL = "https://github.com/lostatc/reversion/issues"

// Release identifies which of the three build types (standard/dev/testing)
// produced the running binary. Set at build time via -ldflags, the same
// mechanism the teacher uses.
var Release = "standard"

// DEBUG enables additional runtime assertions and verbose logging. Set at
// build time for dev/testing builds.
var DEBUG = false
