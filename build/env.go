package build

var (
	// envDataDir is the environment variable that overrides where reversion
	// stores its default repository and cache data.
	envDataDir = "REVERSION_DATA_DIR"

	// envLogLevel overrides the default log verbosity.
	envLogLevel = "REVERSION_LOG_LEVEL"
)
