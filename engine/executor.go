// Package engine runs the external scenario engine against a prepared workspace.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/mod/semver"

	"github.com/ifcopenshell/bimtester/logging"
	"github.com/ifcopenshell/bimtester/types"
	"github.com/ifcopenshell/bimtester/workspace"
)

var versionRegex = regexp.MustCompile(`\d+\.\d+(\.\d+)?([.+-][0-9A-Za-z.+-]+)?`)

// CommandBuilder creates the engine process. The returned func releases anything the
// builder allocated and is called once the process has exited.
type CommandBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())

// Config holds the executor settings.
type Config struct {
	Binary     string   // engine executable, defaults to DefaultBinary
	Blacklist  []string // engine versions refused before anything runs
	WorkDir    string   // working directory of the engine process
	Stdout     io.Writer
	Stderr     io.Writer
	CmdBuilder CommandBuilder
	Log        log.Logger
}

// Executor runs the engine synchronously.
type Executor struct {
	binary     string
	blacklist  []string
	workDir    string
	stdout     io.Writer
	stderr     io.Writer
	cmdBuilder CommandBuilder
	log        log.Logger
}

// Result describes a completed engine run. A non-zero ExitCode means the engine reported
// failing scenarios; it is not an execution error.
type Result struct {
	Args       []string
	ExitCode   int
	Duration   time.Duration
	ReportPath string // empty when no JSON report was requested
	LogPath    string
}

func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.Blacklist == nil {
		cfg.Blacklist = DefaultBlacklist
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	e := &Executor{
		binary:    cfg.Binary,
		blacklist: cfg.Blacklist,
		workDir:   cfg.WorkDir,
		stdout:    cfg.Stdout,
		stderr:    cfg.Stderr,
		log:       cfg.Log,
	}
	e.cmdBuilder = cfg.CmdBuilder
	if e.cmdBuilder == nil {
		e.cmdBuilder = e.engineCommandContext
	}
	return e, nil
}

// Version asks the engine for its version string.
func (e *Executor) Version(ctx context.Context) (string, error) {
	cmd, cleanup := e.cmdBuilder(ctx, e.binary, VersionFlag)
	defer cleanup()

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to query engine version: %w\noutput: %s", err, out.String())
	}

	v := versionRegex.FindString(out.String())
	if v == "" {
		return "", fmt.Errorf("no version found in engine output %q", strings.TrimSpace(out.String()))
	}
	return v, nil
}

// CheckVersion fails with ErrIncompatibleEngineVersion when the installed engine is
// blacklisted.
func (e *Executor) CheckVersion(ctx context.Context) error {
	v, err := e.Version(ctx)
	if err != nil {
		return err
	}
	for _, bad := range e.blacklist {
		if sameVersion(v, bad) {
			return fmt.Errorf("%w: %s %s cannot run isolated test runs, a newer release is needed",
				types.ErrIncompatibleEngineVersion, e.binary, v)
		}
	}
	e.log.Debug("Engine version accepted", "binary", e.binary, "version", v)
	return nil
}

// sameVersion compares semantically when both sides are semver, textually otherwise.
func sameVersion(a, b string) bool {
	ca, cb := semver.Canonical("v"+a), semver.Canonical("v"+b)
	if ca != "" && cb != "" {
		return semver.Compare(ca, cb) == 0
	}
	return a == b
}

// BuildArgs assembles the engine arguments. The first matching rule wins:
// advanced arguments are appended verbatim; otherwise, outside console mode, a JSON
// report is requested at reportPath with output capture disabled so step diagnostics
// reach the console; in console mode nothing is added.
func BuildArgs(featuresDir, reportPath string, req types.Request) []string {
	args := []string{featuresDir}
	switch {
	case req.AdvancedArguments != "":
		args = append(args, strings.Fields(req.AdvancedArguments)...)
	case !req.Console:
		args = append(args, NoCaptureFlag, FormatFlag, JSONPrettyFormat, OutfileFlag, reportPath)
	}
	return args
}

// BuildAdHocArgs assembles the arguments of the ad-hoc flow. It differs from BuildArgs in
// keeping output capture on, so the console shows only the engine's own summary.
func BuildAdHocArgs(featuresDir, reportPath string, req types.Request) []string {
	args := []string{featuresDir}
	switch {
	case req.AdvancedArguments != "":
		args = append(args, strings.Fields(req.AdvancedArguments)...)
	case !req.Console:
		args = append(args, FormatFlag, JSONPrettyFormat, OutfileFlag, reportPath)
	}
	return args
}

// WantsReport reports whether BuildArgs asks the engine for the default JSON report.
func WantsReport(req types.Request) bool {
	return req.AdvancedArguments == "" && !req.Console
}

// Execute checks the engine version and runs it against the workspace's features. It
// blocks until the engine exits.
func (e *Executor) Execute(ctx context.Context, ws *workspace.Workspace, req types.Request) (*Result, error) {
	if err := e.CheckVersion(ctx); err != nil {
		return nil, err
	}

	args := BuildArgs(ws.FeaturesDir(), ws.ReportJSON(), req)
	reportPath := ""
	if WantsReport(req) {
		if err := os.MkdirAll(ws.ReportDir(), 0755); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
		reportPath = ws.ReportJSON()
	}

	res, err := e.Run(ctx, args, filepath.Join(ws.ReportDir(), logging.EngineLogFile))
	if err != nil {
		return nil, err
	}
	res.ReportPath = reportPath
	return res, nil
}

// Run invokes the engine with args, mirroring its output to the console and, when
// logPath is set, to an ANSI-stripped log file.
func (e *Executor) Run(ctx context.Context, args []string, logPath string) (*Result, error) {
	cmd, cleanup := e.cmdBuilder(ctx, e.binary, args...)
	defer cleanup()

	stdout, stderr := e.stdout, e.stderr
	if logPath != "" {
		engineLog, err := logging.OpenEngineLog(logPath)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := engineLog.Close(); err != nil {
				e.log.Warn("Failed to close engine log", "path", logPath, "err", err)
			}
		}()
		stdout = io.MultiWriter(stdout, engineLog)
		stderr = io.MultiWriter(stderr, engineLog)
	}
	stderrTail := logging.NewTailBuffer(logging.DefaultTailBytes)
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, stderrTail)

	e.log.Info("Running engine", "binary", e.binary, "args", args)
	e.log.Debug("Running engine command", "dir", cmd.Dir, "command", cmd.String())

	start := time.Now()
	runErr := cmd.Run()
	res := &Result{
		Args:     args,
		Duration: time.Since(start),
		LogPath:  logPath,
	}

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("engine run interrupted: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("failed to run engine %s: %w", e.binary, runErr)
		}
		res.ExitCode = exitErr.ExitCode()
		e.log.Warn("Engine finished with a non-zero exit code",
			"code", res.ExitCode,
			"stderr", strings.TrimSpace(stderrTail.String()))
	}

	e.log.Info("All tests are finished", "duration", res.Duration, "exit_code", res.ExitCode)
	return res, nil
}

func (e *Executor) engineCommandContext(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.Dir = e.workDir
	cmd.Env = telemetry.InstrumentEnvironment(ctx, os.Environ())
	return cmd, func() {}
}
