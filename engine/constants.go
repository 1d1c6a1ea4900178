package engine

// Engine command line. The defaults target the behave CLI.
const (
	DefaultBinary = "behave"

	VersionFlag   = "--version"
	NoCaptureFlag = "--no-capture"
	FormatFlag    = "--format"
	OutfileFlag   = "--outfile"

	// JSONPrettyFormat is the engine's indented JSON formatter.
	JSONPrettyFormat = "json.pretty"
)

// DefaultBlacklist lists engine releases that cannot run twice in one process with
// isolated step registries.
var DefaultBlacklist = []string{"1.2.5"}
