// Package workspace builds the isolated directory a run executes in.
//
// Layout under the root:
//
//	features/              copied scenario files, IFC path injected
//	features/steps/        bundled step library
//	features/environment.py
//	report/report.json     written by the engine
//	report/<scenario>.html written by the report generator
//
// A Workspace is a handle on one root. The root is recreated by every Prepare and left
// in place afterwards for reporting and inspection; the caller owns its lifetime. Two
// handles on the same root must not be used concurrently.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/afero"

	"github.com/ifcopenshell/bimtester/fsutil"
	"github.com/ifcopenshell/bimtester/inject"
	"github.com/ifcopenshell/bimtester/metrics"
	"github.com/ifcopenshell/bimtester/resources"
	"github.com/ifcopenshell/bimtester/types"
)

const (
	// DefaultDirName is the fixed directory name under the system temp dir. A randomized
	// name is not used: the engine keeps step registrations across runs in one process
	// and rejects the same steps loaded from a second location as ambiguous.
	DefaultDirName = "bimtesterfc"

	FeaturesDir = "features"
	ReportDir   = "report"
	ReportFile  = "report.json"
	HTMLSuffix  = ".html"
)

// DefaultRoot is the workspace root used when none is configured.
func DefaultRoot() string {
	return filepath.Join(os.TempDir(), DefaultDirName)
}

// Config holds the dependencies of a Workspace.
type Config struct {
	Root      string
	Resources *resources.Resolver
	Fs        afero.Fs
	Log       log.Logger
}

type Workspace struct {
	root      string
	resources *resources.Resolver
	fs        afero.Fs
	log       log.Logger
}

// PrepareResult records what Prepare did to the scenario files.
type PrepareResult struct {
	Injected []inject.Result
	Skipped  []string // scenario files without a placeholder line
}

// New returns a handle on cfg.Root. Nothing is created until Prepare.
func New(cfg Config) (*Workspace, error) {
	if cfg.Resources == nil {
		return nil, errors.New("resource resolver is required")
	}
	if cfg.Root == "" {
		cfg.Root = DefaultRoot()
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for workspace root '%s': %w", cfg.Root, err)
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Workspace{
		root:      root,
		resources: cfg.Resources,
		fs:        cfg.Fs,
		log:       cfg.Log,
	}, nil
}

func (w *Workspace) Root() string {
	return w.root
}

func (w *Workspace) FeaturesDir() string {
	return filepath.Join(w.root, FeaturesDir)
}

func (w *Workspace) ReportDir() string {
	return filepath.Join(w.root, ReportDir)
}

func (w *Workspace) ReportJSON() string {
	return filepath.Join(w.ReportDir(), ReportFile)
}

// ScenarioHTML is where the report generator writes the page for one scenario file.
func (w *Workspace) ScenarioHTML(featureFile string) string {
	return filepath.Join(w.ReportDir(), featureFile+HTMLSuffix)
}

// Prepare recreates the workspace for req: validate, wipe the old root, copy the scenario
// files, inject the IFC path, then add the bundled step library and environment hook.
// Nothing on disk is touched when validation fails.
func (w *Workspace) Prepare(req types.Request) (*PrepareResult, error) {
	if err := w.Validate(req); err != nil {
		return nil, err
	}
	if err := w.reset(); err != nil {
		return nil, err
	}

	w.log.Debug("Copying scenario files", "from", req.SourceFeatures(), "to", w.FeaturesDir())
	if err := fsutil.CopyTree(w.fs, req.SourceFeatures(), w.FeaturesDir()); err != nil {
		return nil, fmt.Errorf("failed to copy features into workspace: %w", err)
	}

	result, err := w.injectAll(req)
	if err != nil {
		return nil, err
	}

	if err := w.copyBundled(); err != nil {
		return nil, err
	}

	w.log.Info("Workspace prepared",
		"root", w.root,
		"injected", len(result.Injected),
		"skipped", len(result.Skipped))
	return result, nil
}

// Validate checks the request against the filesystem without changing anything. Prepare
// calls it first.
func (w *Workspace) Validate(req types.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	ok, err := afero.DirExists(w.fs, req.SourceFeatures())
	if err != nil || !ok {
		return types.NewMissingArgumentError("features_path",
			fmt.Sprintf("no features directory in %s", req.FeaturesPath))
	}
	if ok, _ := afero.DirExists(w.fs, req.IFCPath); !ok {
		w.log.Warn("IFC path does not exist or is not a directory", "ifc_path", req.IFCPath)
	}
	return nil
}

// reset removes a previous workspace and creates an empty root. A root that survives
// removal aborts the run rather than mixing old and new files.
func (w *Workspace) reset() error {
	exists, err := afero.Exists(w.fs, w.root)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrWorkspaceCleanupFailed, w.root, err)
	}
	if exists {
		w.log.Debug("Removing previous workspace", "root", w.root)
		if err := w.fs.RemoveAll(w.root); err != nil {
			return fmt.Errorf("%w: %s: %v", types.ErrWorkspaceCleanupFailed, w.root, err)
		}
		if still, _ := afero.Exists(w.fs, w.root); still {
			return fmt.Errorf("%w: %s still exists after removal", types.ErrWorkspaceCleanupFailed, w.root)
		}
	}
	if err := w.fs.MkdirAll(w.root, 0755); err != nil {
		return fmt.Errorf("failed to create workspace %s: %w", w.root, err)
	}
	return nil
}

func (w *Workspace) injectAll(req types.Request) (*PrepareResult, error) {
	entries, err := afero.ReadDir(w.fs, w.FeaturesDir())
	if err != nil {
		return nil, fmt.Errorf("failed to list workspace features: %w", err)
	}

	result := &PrepareResult{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.FeaturesDir(), entry.Name())
		res, err := inject.InjectFs(w.fs, path, req.IFCPath, req.IFCFilename)
		if errors.Is(err, inject.ErrInjectionSkipped) {
			w.log.Warn("The line which sets the IFC file to test was not found", "file", entry.Name(), "err", err)
			metrics.RecordInjection(metrics.InjectionSkipped)
			result.Skipped = append(result.Skipped, entry.Name())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to inject IFC path: %w", err)
		}
		w.log.Debug("Injected IFC path", "file", entry.Name(), "line", res.Line, "target", res.Target)
		metrics.RecordInjection(metrics.InjectionApplied)
		result.Injected = append(result.Injected, res)
	}
	return result, nil
}

// copyBundled adds the step library and environment hook. Both are optional; without
// them the engine reports undefined steps, which shows up in the report rather than here.
func (w *Workspace) copyBundled() error {
	steps := w.resources.Steps()
	if ok, _ := afero.DirExists(w.fs, steps); ok {
		dst := filepath.Join(w.FeaturesDir(), resources.StepsDir)
		if err := fsutil.CopyTree(w.fs, steps, dst); err != nil {
			return fmt.Errorf("failed to copy step library: %w", err)
		}
	} else {
		w.log.Warn("No bundled step library found", "path", steps)
	}

	hook := w.resources.Environment()
	if ok, _ := afero.Exists(w.fs, hook); ok {
		dst := filepath.Join(w.FeaturesDir(), resources.EnvironmentHook)
		if err := fsutil.CopyFile(w.fs, hook, dst); err != nil {
			return fmt.Errorf("failed to copy environment hook: %w", err)
		}
	} else {
		w.log.Warn("No bundled environment hook found", "path", hook)
	}
	return nil
}
