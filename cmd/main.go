package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"

	bimtester "github.com/ifcopenshell/bimtester"
	"github.com/ifcopenshell/bimtester/exitcodes"
	"github.com/ifcopenshell/bimtester/flags"
	"github.com/ifcopenshell/bimtester/service"
	"github.com/ifcopenshell/bimtester/workspace"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

func main() {
	app := newApp()

	// Start telemetry
	ctx, shutdown, err := telemetry.SetupOpenTelemetry(
		context.Background(),
		otelconfig.WithServiceName(app.Name),
		otelconfig.WithServiceVersion(app.Version),
	)
	if err != nil {
		log.Crit("Failed to setup open telemetry", "message", err)
	}
	defer shutdown()

	ctx = ctxinterrupt.WithSignalWaiterMain(ctx)
	err = app.RunContext(ctx, os.Args)
	if err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "bimtester"
	app.Usage = "Run BIM acceptance scenarios against an IFC model"
	app.Description = "bimtester prepares an isolated workspace, points every scenario at one IFC file and runs the scenario engine"
	app.Flags = cliapp.ProtectFlags(flags.GlobalFlags)
	app.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "Run the scenarios of a features directory in an isolated workspace",
			Flags:  cliapp.ProtectFlags(flags.RunFlags),
			Action: cliapp.LifecycleCmd(run),
		},
		{
			Name:   "adhoc",
			Usage:  "Run scenario files from the working directory against the bundled features directory",
			Flags:  cliapp.ProtectFlags(flags.AdHocFlags),
			Action: cliapp.LifecycleCmd(adhoc),
		},
		{
			Name:   "serve",
			Usage:  "Serve the report directory of a workspace over HTTP",
			Flags:  cliapp.ProtectFlags(flags.ServeFlags),
			Action: cliapp.LifecycleCmd(serve),
		},
	}
	app.ExitErrHandler = exitErrHandler
	return app
}

func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		cli.HandleExitCoder(exitErr)
		return
	}
	// Everything reaching this point is operational; failing scenarios are not errors.
	cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
}

func setupLogging(ctx *cli.Context) log.Logger {
	logCfg := oplog.ReadCLIConfig(ctx)
	logger := oplog.NewLogger(oplog.AppOut(ctx), logCfg)
	oplog.SetGlobalLogHandler(logger.Handler())
	oplog.SetupDefaults()
	return logger
}

func run(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	log := setupLogging(ctx)

	cfg, err := bimtester.NewConfig(ctx, log)
	if err != nil {
		return nil, bimtester.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}
	cfg.Log.Debug("Config", "config", cfg)

	tester, err := bimtester.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		return nil, bimtester.NewRuntimeError(fmt.Errorf("failed to create tester: %w", err))
	}
	return tester, nil
}

func adhoc(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	log := setupLogging(ctx)

	cfg, err := bimtester.NewAdHocConfig(ctx, log)
	if err != nil {
		return nil, bimtester.NewRuntimeError(fmt.Errorf("failed to create config: %w", err))
	}

	tester, err := bimtester.New(ctx.Context, cfg, Version, closeApp)
	if err != nil {
		return nil, bimtester.NewRuntimeError(fmt.Errorf("failed to create tester: %w", err))
	}
	return tester, nil
}

func serve(ctx *cli.Context, closeApp context.CancelCauseFunc) (cliapp.Lifecycle, error) {
	log := setupLogging(ctx)

	root := ctx.String(flags.Workspace.Name)
	if root == "" {
		root = workspace.DefaultRoot()
	}
	svc, err := service.New(service.Config{
		Addr:      ctx.String(flags.Addr.Name),
		ReportDir: filepath.Join(root, workspace.ReportDir),
		Log:       log,
	})
	if err != nil {
		return nil, bimtester.NewRuntimeError(fmt.Errorf("failed to create report server: %w", err))
	}
	return svc, nil
}
