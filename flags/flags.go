package flags

import (
	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"

	"github.com/ifcopenshell/bimtester/engine"
)

const EnvVarPrefix = "BIMTESTER"

func prefixEnvVars(name string) []string {
	return opservice.PrefixEnvVar(EnvVarPrefix, name)
}

var (
	IFCPath = &cli.StringFlag{
		Name:    "ifc-path",
		EnvVars: prefixEnvVars("IFC_PATH"),
		Usage:   "Directory containing the IFC file every scenario is checked against",
	}
	FeaturesPath = &cli.StringFlag{
		Name:    "features-path",
		EnvVars: prefixEnvVars("FEATURES_PATH"),
		Usage:   "Directory whose 'features' subdirectory holds the scenario files",
	}
	IFCFilename = &cli.StringFlag{
		Name:    "ifc-filename",
		EnvVars: prefixEnvVars("IFC_FILENAME"),
		Usage:   "IFC file name to use instead of the default named in each scenario file",
	}
	AdvancedArguments = &cli.StringFlag{
		Name:    "advanced-arguments",
		EnvVars: prefixEnvVars("ADVANCED_ARGUMENTS"),
		Usage:   "Whitespace separated arguments passed verbatim to the engine, replacing the report flags",
	}
	Console = &cli.BoolFlag{
		Name:    "console",
		EnvVars: prefixEnvVars("CONSOLE"),
		Usage:   "Leave engine output on the console instead of writing a JSON report",
	}
	RequestFile = &cli.StringFlag{
		Name:    "request-file",
		EnvVars: prefixEnvVars("REQUEST_FILE"),
		Usage:   "YAML (or .toml) file with the run request; explicit flags override its values",
	}
	Workspace = &cli.StringFlag{
		Name:    "workspace",
		EnvVars: prefixEnvVars("WORKSPACE"),
		Usage:   "Workspace root directory (default: <tmp>/bimtesterfc)",
	}
	ResourceRoot = &cli.StringFlag{
		Name:    "resource-root",
		EnvVars: prefixEnvVars("RESOURCE_ROOT"),
		Usage:   "Directory holding the bundled features, steps and environment hook (default: auto-detected)",
	}
	EngineBinary = &cli.StringFlag{
		Name:    "engine-binary",
		Value:   engine.DefaultBinary,
		EnvVars: prefixEnvVars("ENGINE_BINARY"),
		Usage:   "Scenario engine executable",
	}
	EngineBlacklist = &cli.StringSliceFlag{
		Name:    "engine-blacklist",
		Value:   cli.NewStringSlice(engine.DefaultBlacklist...),
		EnvVars: prefixEnvVars("ENGINE_BLACKLIST"),
		Usage:   "Engine versions refused for isolated runs",
	}
	ReportCommand = &cli.StringFlag{
		Name:    "report-command",
		EnvVars: prefixEnvVars("REPORT_COMMAND"),
		Usage:   "Command rendering the HTML report; the workspace root is appended as its last argument",
	}
	NoBrowser = &cli.BoolFlag{
		Name:    "no-browser",
		EnvVars: prefixEnvVars("NO_BROWSER"),
		Usage:   "Do not open the rendered report pages in a browser",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: prefixEnvVars("RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	ServeAddr = &cli.StringFlag{
		Name:    "serve-addr",
		EnvVars: prefixEnvVars("SERVE_ADDR"),
		Usage:   "When set, serve the report directory, metrics and health checks on this address while running",
	}
	Feature = &cli.StringFlag{
		Name:    "feature",
		EnvVars: prefixEnvVars("FEATURE"),
		Usage:   "Single scenario file to run in the ad-hoc flow",
	}
	Only = &cli.StringFlag{
		Name:    "only",
		EnvVars: prefixEnvVars("ONLY"),
		Usage:   "When scanning the working directory for scenario files, stage only the file with this name",
	}
	Addr = &cli.StringFlag{
		Name:    "addr",
		Value:   ":8080",
		EnvVars: prefixEnvVars("ADDR"),
		Usage:   "Listen address of the report server",
	}
)

// RunFlags belong to the isolated run command.
var RunFlags = []cli.Flag{
	IFCPath,
	FeaturesPath,
	IFCFilename,
	AdvancedArguments,
	Console,
	RequestFile,
	Workspace,
	ResourceRoot,
	EngineBinary,
	EngineBlacklist,
	ReportCommand,
	NoBrowser,
	RunInterval,
	ServeAddr,
}

// AdHocFlags belong to the ad-hoc command.
var AdHocFlags = []cli.Flag{
	Feature,
	Only,
	AdvancedArguments,
	Console,
	ResourceRoot,
	EngineBinary,
}

// ServeFlags belong to the report server command.
var ServeFlags = []cli.Flag{
	Workspace,
	Addr,
}

// GlobalFlags are accepted by every command.
var GlobalFlags []cli.Flag

// Flags lists every distinct flag once.
var Flags []cli.Flag

func init() {
	GlobalFlags = append(GlobalFlags, oplog.CLIFlags(EnvVarPrefix)...)

	seen := make(map[string]struct{})
	for _, group := range [][]cli.Flag{GlobalFlags, RunFlags, AdHocFlags, ServeFlags} {
		for _, f := range group {
			name := f.Names()[0]
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			Flags = append(Flags, f)
		}
	}
}
