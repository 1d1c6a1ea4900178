package bimtester

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ifcopenshell/bimtester/flags"
	"github.com/ifcopenshell/bimtester/metrics"
	"github.com/ifcopenshell/bimtester/types"
)

// Config holds the application configuration
type Config struct {
	Mode            string        // metrics.ModeIsolated or metrics.ModeAdHoc
	Request         types.Request // validated for isolated runs
	FeaturePath     string        // single scenario file for ad-hoc runs
	FeatureFilter   string        // ad-hoc working directory scan only stages this file name
	WorkspaceRoot   string        // empty means the default root
	ResourceRoot    string        // empty means auto-detect
	WorkDir         string        // ad-hoc discovery and report directory
	EngineBinary    string
	EngineBlacklist []string
	ReportCommand   []string // empty disables report generation
	OpenBrowser     bool
	RunInterval     time.Duration // Interval between test runs
	RunOnce         bool          // Exit after one test run
	ServeAddr       string        // report server address while running, empty disables it
	Log             log.Logger
}

// NewConfig creates the configuration of the isolated run command.
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	req, err := requestFromCLI(ctx)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cfg, err := newBaseConfig(ctx, log, metrics.ModeIsolated)
	if err != nil {
		return nil, err
	}
	cfg.Request = req

	if root := ctx.String(flags.Workspace.Name); root != "" {
		cfg.WorkspaceRoot, err = filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for workspace '%s': %w", root, err)
		}
	}
	cfg.EngineBlacklist = ctx.StringSlice(flags.EngineBlacklist.Name)
	cfg.ReportCommand = strings.Fields(ctx.String(flags.ReportCommand.Name))
	cfg.OpenBrowser = !ctx.Bool(flags.NoBrowser.Name) && !req.Console
	cfg.RunInterval = ctx.Duration(flags.RunInterval.Name)
	cfg.RunOnce = cfg.RunInterval == 0
	cfg.ServeAddr = ctx.String(flags.ServeAddr.Name)
	return cfg, nil
}

// NewAdHocConfig creates the configuration of the ad-hoc command. It always runs once.
func NewAdHocConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	cfg, err := newBaseConfig(ctx, log, metrics.ModeAdHoc)
	if err != nil {
		return nil, err
	}
	cfg.FeaturePath = ctx.String(flags.Feature.Name)
	cfg.FeatureFilter = ctx.String(flags.Only.Name)
	cfg.Request = types.Request{
		AdvancedArguments: ctx.String(flags.AdvancedArguments.Name),
		Console:           ctx.Bool(flags.Console.Name),
	}
	cfg.RunOnce = true
	return cfg, nil
}

func newBaseConfig(ctx *cli.Context, log log.Logger, mode string) (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}

	resourceRoot := ctx.String(flags.ResourceRoot.Name)
	if resourceRoot != "" {
		resourceRoot, err = filepath.Abs(resourceRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for resource root '%s': %w", resourceRoot, err)
		}
	}

	return &Config{
		Mode:         mode,
		ResourceRoot: resourceRoot,
		WorkDir:      wd,
		EngineBinary: ctx.String(flags.EngineBinary.Name),
		RunOnce:      true,
		Log:          log,
	}, nil
}

// requestFromCLI loads the request file, if any, and applies explicitly set flags on top.
// --console=false switches off console mode requested by the file.
func requestFromCLI(ctx *cli.Context) (types.Request, error) {
	var req types.Request
	if path := ctx.String(flags.RequestFile.Name); path != "" {
		var err error
		req, err = types.LoadRequest(path)
		if err != nil {
			return types.Request{}, err
		}
	}
	req = req.Merge(types.Request{
		IFCPath:           ctx.String(flags.IFCPath.Name),
		FeaturesPath:      ctx.String(flags.FeaturesPath.Name),
		IFCFilename:       ctx.String(flags.IFCFilename.Name),
		AdvancedArguments: ctx.String(flags.AdvancedArguments.Name),
	})
	if ctx.IsSet(flags.Console.Name) {
		req.Console = ctx.Bool(flags.Console.Name)
	}
	return req, nil
}
