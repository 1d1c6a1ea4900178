package bimtester

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/ifcopenshell/bimtester/exitcodes"
	"github.com/ifcopenshell/bimtester/metrics"
	"github.com/ifcopenshell/bimtester/service"
)

// Tester implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &Tester{}

// Tester runs the configured flow once, or repeatedly at the configured interval.
type Tester struct {
	config       *Config
	version      string
	orchestrator *Orchestrator
	scheduler    TestScheduler
	server       *service.Service
	result       *RunResult

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*Tester, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	orchestrator, err := NewOrchestrator(config)
	if err != nil {
		return nil, err
	}

	config.Log.Debug("Creating tester with config",
		"mode", config.Mode,
		"workspace", orchestrator.Workspace().Root(),
		"engine", config.EngineBinary,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	t := &Tester{
		config:           config,
		version:          version,
		orchestrator:     orchestrator,
		scheduler:        NewDefaultTestScheduler(config.RunInterval, config.RunOnce, config.Log),
		shutdownCallback: shutdownCallback,
	}

	if config.ServeAddr != "" {
		t.server, err = service.New(service.Config{
			Addr:      config.ServeAddr,
			ReportDir: orchestrator.Workspace().ReportDir(),
			Log:       config.Log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create report server: %w", err)
		}
	}
	return t, nil
}

// Start implements the cliapp.Lifecycle interface.
func (t *Tester) Start(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			t.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	if t.server != nil {
		if err := t.server.Start(ctx); err != nil {
			return NewRuntimeError(err)
		}
	}

	t.scheduler.RegisterCallback(t.runTests)
	if err := t.scheduler.Start(ctx); err != nil {
		t.config.Log.Error("Runtime error running tests", "error", err)
		return err
	}

	if t.config.RunOnce {
		t.config.Log.Info("Tests completed, exiting (run-once mode)")
		go func() {
			t.shutdownCallback(nil)
		}()
	}
	return nil
}

// runTests runs the configured flow once. Every failure is a runtime error; failing
// scenarios are not failures here.
func (t *Tester) runTests(ctx context.Context) error {
	var (
		result *RunResult
		err    error
	)
	switch t.config.Mode {
	case metrics.ModeAdHoc:
		result, err = t.orchestrator.RunAdHoc(ctx, t.config.FeaturePath, t.config.Request)
	default:
		result, err = t.orchestrator.RunAll(ctx, t.config.Request)
	}
	if err != nil {
		return NewRuntimeError(err)
	}
	t.result = result
	t.config.Log.Info("Test run completed", "run_id", result.RunID, "root", result.Root)
	return nil
}

// Result is the outcome of the latest successful run.
func (t *Tester) Result() *RunResult {
	return t.result
}

// Stop implements the cliapp.Lifecycle interface.
func (t *Tester) Stop(ctx context.Context) error {
	t.config.Log.Info("Stopping bimtester")

	var result error
	if err := t.scheduler.Stop(); err != nil {
		result = errors.Join(result, err)
	}
	if err := t.scheduler.WaitForShutdown(ctx); err != nil {
		result = errors.Join(result, err)
	}
	if t.server != nil {
		if err := t.server.Stop(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop report server: %w", err))
		}
	}
	return result
}

// Stopped implements the cliapp.Lifecycle interface.
func (t *Tester) Stopped() bool {
	return t.scheduler.Stopped() && (t.server == nil || t.server.Stopped())
}
