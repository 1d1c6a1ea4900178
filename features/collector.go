// Package features stages scenario files for the ad-hoc flow, which runs the engine
// directly against the bundled features directory instead of an isolated workspace.
package features

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/afero"

	"github.com/ifcopenshell/bimtester/fsutil"
	"github.com/ifcopenshell/bimtester/resources"
)

// Config holds the dependencies of a Collector.
type Config struct {
	Resources *resources.Resolver
	WorkDir   string // directory searched for scenario files, defaults to the process working directory
	Only      string // when set, the working directory scan only picks up this file name
	Fs        afero.Fs
	Log       log.Logger
}

// Collector copies scenario files into the bundled features directory.
type Collector struct {
	resources *resources.Resolver
	workDir   string
	only      string
	fs        afero.Fs
	log       log.Logger
}

func NewCollector(cfg Config) (*Collector, error) {
	if cfg.Resources == nil {
		return nil, errors.New("resource resolver is required")
	}
	if cfg.WorkDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		cfg.WorkDir = wd
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Collector{
		resources: cfg.Resources,
		workDir:   cfg.WorkDir,
		only:      cfg.Only,
		fs:        cfg.Fs,
		log:       cfg.Log,
	}, nil
}

// Target is the directory scenario files are staged into.
func (c *Collector) Target() string {
	return c.resources.Features()
}

// Discover clears previously staged scenario files and stages new ones, trying in order:
// the explicit feature file, a features directory in the working directory, and finally
// the scenario files directly inside the working directory. It reports whether anything
// was staged.
func (c *Collector) Discover(featurePath string) (bool, error) {
	target := c.Target()
	if err := c.clear(target); err != nil {
		return false, err
	}

	if featurePath != "" {
		src := c.abs(featurePath)
		if err := fsutil.CopyFile(c.fs, src, filepath.Join(target, filepath.Base(src))); err != nil {
			return false, fmt.Errorf("failed to stage feature file: %w", err)
		}
		c.log.Info("Staged feature file", "file", src)
		return true, nil
	}

	local := filepath.Join(c.workDir, resources.FeaturesDir)
	if ok, _ := afero.DirExists(c.fs, local); ok {
		if err := fsutil.CopyTree(c.fs, local, target); err != nil {
			return false, fmt.Errorf("failed to stage features directory: %w", err)
		}
		c.log.Info("Staged features directory", "dir", local)
		return true, nil
	}

	entries, err := afero.ReadDir(c.fs, c.workDir)
	if err != nil {
		return false, fmt.Errorf("failed to list %s: %w", c.workDir, err)
	}
	found := false
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, resources.FeatureSuffix) {
			continue
		}
		if c.only != "" && c.only != name {
			continue
		}
		if err := fsutil.CopyFile(c.fs, filepath.Join(c.workDir, name), filepath.Join(target, name)); err != nil {
			return false, fmt.Errorf("failed to stage feature file: %w", err)
		}
		c.log.Debug("Staged feature file", "file", name)
		found = true
	}
	return found, nil
}

// clear removes the scenario files directly inside dir, creating dir if needed.
func (c *Collector) clear(dir string) error {
	if err := c.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	entries, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), resources.FeatureSuffix) {
			continue
		}
		if err := c.fs.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove staged feature %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func (c *Collector) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.workDir, path)
}
