package bimtester

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ifcopenshell/bimtester/engine"
	"github.com/ifcopenshell/bimtester/features"
	"github.com/ifcopenshell/bimtester/logging"
	"github.com/ifcopenshell/bimtester/metrics"
	"github.com/ifcopenshell/bimtester/report"
	"github.com/ifcopenshell/bimtester/resources"
	"github.com/ifcopenshell/bimtester/types"
	"github.com/ifcopenshell/bimtester/workspace"
)

// RunResult describes one orchestration run.
type RunResult struct {
	RunID    string
	Mode     string
	Root     string // workspace root, or the staged features directory of an ad-hoc run
	Prepared *workspace.PrepareResult
	Engine   *engine.Result
	Summary  *report.Summary // nil when the engine wrote no JSON report
	Duration time.Duration
}

func (r *RunResult) String() string {
	if r.Summary == nil {
		return fmt.Sprintf("Run %s finished in %s, workspace %s", r.RunID, formatDuration(r.Duration), r.Root)
	}
	s := r.Summary.Stats
	return fmt.Sprintf("Run %s finished in %s: %d scenarios, %d passed, %d failed, %d skipped, %d undefined (%.1f%% pass rate), workspace %s",
		r.RunID, formatDuration(r.Duration), s.Total, s.Passed, s.Failed, s.Skipped, s.Undefined, s.PassRate(), r.Root)
}

// Orchestrator composes the workspace, the engine and the report collaborators into the
// isolated and ad-hoc flows.
type Orchestrator struct {
	config    *Config
	fs        afero.Fs
	resources *resources.Resolver
	workspace *workspace.Workspace
	collector *features.Collector
	executor  TestExecutor
	generator report.Generator
	launcher  report.Launcher
	formatter ResultFormatter
	reporter  MetricsReporter
	tracer    trace.Tracer
	log       log.Logger
}

func NewOrchestrator(config *Config) (*Orchestrator, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Log == nil {
		config.Log = log.New()
		config.Log.Error("No logger provided, using default")
	}

	res := resources.Detect()
	if config.ResourceRoot != "" {
		res = resources.NewResolver(config.ResourceRoot)
	}
	config.Log.Debug("Resolved resource root", "root", res.Root(), "mode", res.Mode())

	fs := afero.NewOsFs()
	ws, err := workspace.New(workspace.Config{
		Root:      config.WorkspaceRoot,
		Resources: res,
		Fs:        fs,
		Log:       config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	collector, err := features.NewCollector(features.Config{
		Resources: res,
		WorkDir:   config.WorkDir,
		Only:      config.FeatureFilter,
		Fs:        fs,
		Log:       config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create feature collector: %w", err)
	}

	executor, err := engine.NewExecutor(engine.Config{
		Binary:    config.EngineBinary,
		Blacklist: config.EngineBlacklist,
		WorkDir:   config.WorkDir,
		Log:       config.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine executor: %w", err)
	}

	var launcher report.Launcher = report.NoopLauncher{}
	if config.OpenBrowser {
		launcher = report.NewBrowserLauncher(config.Log)
	}

	return &Orchestrator{
		config:    config,
		fs:        fs,
		resources: res,
		workspace: ws,
		collector: collector,
		executor:  executor,
		generator: report.NewGenerator(config.ReportCommand, config.Log),
		launcher:  launcher,
		formatter: NewConsoleResultFormatter(config.Log),
		reporter:  NewDefaultMetricsReporter(),
		tracer:    otel.Tracer("bimtester"),
		log:       config.Log,
	}, nil
}

// Workspace is the handle isolated runs prepare and execute in.
func (o *Orchestrator) Workspace() *workspace.Workspace {
	return o.workspace
}

// RunAll runs the isolated flow: prepare the workspace, run the engine, render the report
// and open one page per scenario file. Failing scenarios do not make it fail.
func (o *Orchestrator) RunAll(ctx context.Context, req types.Request) (*RunResult, error) {
	res := &RunResult{
		RunID: uuid.New().String(),
		Mode:  metrics.ModeIsolated,
		Root:  o.workspace.Root(),
	}
	ctx, span := o.tracer.Start(ctx, "run all")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", res.RunID),
		attribute.String("workspace", res.Root),
		attribute.String("ifc_path", req.IFCPath))

	start := time.Now()
	err := o.runAll(ctx, res, req)
	res.Duration = time.Since(start)
	o.finish(span, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) runAll(ctx context.Context, res *RunResult, req types.Request) error {
	logger := o.log.With("run_id", res.RunID)
	logger.Info("Starting isolated run", "workspace", res.Root, "ifc_path", req.IFCPath, "features_path", req.FeaturesPath)

	if err := o.workspace.Validate(req); err != nil {
		return fmt.Errorf("failed to prepare workspace: %w", err)
	}
	files, err := o.scenarioFiles(req)
	if err != nil {
		return err
	}

	prepared, err := o.prepare(ctx, req)
	if err != nil {
		return err
	}
	res.Prepared = prepared

	engineRes, err := o.execute(ctx, req)
	if err != nil {
		return err
	}
	res.Engine = engineRes

	o.generateReport(ctx, logger)

	if !req.Console {
		for _, file := range files {
			page := o.workspace.ScenarioHTML(file)
			if err := o.launcher.Open(ctx, page); err != nil {
				logger.Warn("Could not open report page", "page", page, "err", err)
			}
		}
	}

	o.summarise(res, logger)
	return nil
}

func (o *Orchestrator) prepare(ctx context.Context, req types.Request) (*workspace.PrepareResult, error) {
	_, span := o.tracer.Start(ctx, "prepare workspace")
	defer span.End()

	prepared, err := o.workspace.Prepare(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to prepare workspace: %w", err)
	}
	span.SetAttributes(
		attribute.Int("injected", len(prepared.Injected)),
		attribute.Int("skipped", len(prepared.Skipped)))
	return prepared, nil
}

func (o *Orchestrator) execute(ctx context.Context, req types.Request) (*engine.Result, error) {
	ctx, span := o.tracer.Start(ctx, "execute engine")
	defer span.End()

	res, err := o.executor.Execute(ctx, o.workspace, req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to execute engine: %w", err)
	}
	span.SetAttributes(attribute.Int("exit_code", res.ExitCode))
	return res, nil
}

// generateReport runs the renderer. The engine results are already on disk, so a renderer
// failure is logged rather than failing the run.
func (o *Orchestrator) generateReport(ctx context.Context, logger log.Logger) {
	ctx, span := o.tracer.Start(ctx, "generate report")
	defer span.End()

	if err := o.generator.Generate(ctx, o.workspace.Root()); err != nil {
		span.RecordError(err)
		logger.Error("Report generation failed", "workspace", o.workspace.Root(), "err", err)
		metrics.RecordErrorDetails("report generation failed", err)
	}
}

// scenarioFiles lists the source scenario files; each gets one report page. It runs
// before the workspace reset, which may remove a source inside the workspace root.
func (o *Orchestrator) scenarioFiles(req types.Request) ([]string, error) {
	entries, err := afero.ReadDir(o.fs, req.SourceFeatures())
	if err != nil {
		return nil, fmt.Errorf("failed to list scenario files: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.Mode().IsRegular() {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}

// RunAdHoc runs the ad-hoc flow: stage scenario files into the bundled features directory
// and run the engine there, writing the report below the working directory.
func (o *Orchestrator) RunAdHoc(ctx context.Context, featurePath string, req types.Request) (*RunResult, error) {
	res := &RunResult{
		RunID: uuid.New().String(),
		Mode:  metrics.ModeAdHoc,
		Root:  o.collector.Target(),
	}
	ctx, span := o.tracer.Start(ctx, "run adhoc")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", res.RunID))

	start := time.Now()
	err := o.runAdHoc(ctx, res, featurePath, req)
	res.Duration = time.Since(start)
	o.finish(span, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (o *Orchestrator) runAdHoc(ctx context.Context, res *RunResult, featurePath string, req types.Request) error {
	logger := o.log.With("run_id", res.RunID)

	found, err := o.collector.Discover(featurePath)
	if err != nil {
		return fmt.Errorf("failed to collect features: %w", err)
	}
	if !found {
		return fmt.Errorf("%w to check in %s", types.ErrNoFeaturesFound, o.config.WorkDir)
	}

	reportPath := filepath.Join(workspace.ReportDir, workspace.ReportFile)
	args := engine.BuildAdHocArgs(o.collector.Target(), reportPath, req)

	logPath := ""
	if engine.WantsReport(req) {
		reportDir := filepath.Join(o.config.WorkDir, workspace.ReportDir)
		if err := os.MkdirAll(reportDir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
		logPath = filepath.Join(reportDir, logging.EngineLogFile)
	}

	ctx, span := o.tracer.Start(ctx, "execute engine")
	engineRes, err := o.executor.Run(ctx, args, logPath)
	if err != nil {
		span.RecordError(err)
		span.End()
		return fmt.Errorf("failed to execute engine: %w", err)
	}
	span.End()

	if engine.WantsReport(req) {
		engineRes.ReportPath = filepath.Join(o.config.WorkDir, reportPath)
	}
	res.Engine = engineRes

	o.summarise(res, logger)
	return nil
}

// summarise reads the JSON report, prints it and records scenario metrics. A missing or
// unreadable report only costs the summary.
func (o *Orchestrator) summarise(res *RunResult, logger log.Logger) {
	if res.Engine == nil || res.Engine.ReportPath == "" {
		logger.Debug("No JSON report requested, skipping summary")
		o.reporter.ReportResults(res.RunID, res)
		return
	}

	summary, err := report.Load(res.Engine.ReportPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("Engine wrote no report", "path", res.Engine.ReportPath)
	case err != nil:
		logger.Warn("Failed to read engine report", "path", res.Engine.ReportPath, "err", err)
		metrics.RecordErrorDetails("report read failed", err)
	default:
		res.Summary = summary
	}

	o.reporter.ReportResults(res.RunID, res)
	if res.Summary != nil {
		if err := o.formatter.FormatResults(res); err != nil {
			logger.Warn("Failed to print results", "err", err)
		}
	}
}

func (o *Orchestrator) finish(span trace.Span, res *RunResult, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordRun(res.Mode, metrics.RunResultError, res.Duration)
		metrics.RecordErrorDetails(res.Mode+" run failed", err)
		o.log.Error("Run failed", "run_id", res.RunID, "mode", res.Mode, "err", err)
		return
	}
	metrics.RecordRun(res.Mode, metrics.RunResultSuccess, res.Duration)
	o.log.Info("Run finished", "run_id", res.RunID, "mode", res.Mode, "root", res.Root, "duration", res.Duration)
}
