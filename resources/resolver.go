// Package resources locates the bundled step library and environment hook that are copied
// into every run workspace.
//
// The resource root depends on how bimtester is launched. A standalone distribution ships
// a features directory next to the executable; a source checkout keeps it next to this
// package. An explicit root always wins over both.
package resources

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	FeaturesDir     = "features"
	StepsDir        = "steps"
	EnvironmentHook = "environment.py"
	FeatureSuffix   = ".feature"
)

// Mode describes where the resource root was found.
type Mode string

const (
	ModeExplicit Mode = "explicit"
	ModeBundled  Mode = "bundled"
	ModeSource   Mode = "source"
)

// Resolver maps resource names to absolute paths under a fixed root.
type Resolver struct {
	root string
	mode Mode
}

// NewResolver returns a resolver rooted at root.
func NewResolver(root string) *Resolver {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Resolver{root: root, mode: ModeExplicit}
}

// Detect picks the bundled root when the running executable has a features directory
// beside it, and the source root otherwise.
func Detect() *Resolver {
	exe, err := os.Executable()
	return detect(exe, err)
}

func detect(exe string, exeErr error) *Resolver {
	if exeErr == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}
		dir := filepath.Dir(exe)
		if info, err := os.Stat(filepath.Join(dir, FeaturesDir)); err == nil && info.IsDir() {
			return &Resolver{root: dir, mode: ModeBundled}
		}
	}
	return &Resolver{root: sourceDir(), mode: ModeSource}
}

func sourceDir() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	return filepath.Dir(filename)
}

func (r *Resolver) Root() string {
	return r.root
}

func (r *Resolver) Mode() Mode {
	return r.mode
}

// Resolve joins relative onto the resource root. It never fails; whether the path exists
// is up to the caller.
func (r *Resolver) Resolve(relative string) string {
	return filepath.Join(r.root, relative)
}

// Features is the bundled features directory.
func (r *Resolver) Features() string {
	return r.Resolve(FeaturesDir)
}

// Steps is the bundled step library directory.
func (r *Resolver) Steps() string {
	return r.Resolve(filepath.Join(FeaturesDir, StepsDir))
}

// Environment is the bundled engine environment hook.
func (r *Resolver) Environment() string {
	return r.Resolve(filepath.Join(FeaturesDir, EnvironmentHook))
}
