package types

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"
)

// FeaturesSubdir is the directory inside a features path that holds the scenario files.
const FeaturesSubdir = "features"

// Request describes one isolated test run.
//
// IFCPath and FeaturesPath are required. IFCFilename overrides the default file name found
// in each scenario's placeholder line; the same IFC path applies to every scenario file of
// the run. AdvancedArguments is passed to the engine verbatim and replaces the default
// report flags. Console leaves engine output on the terminal instead of writing a JSON
// report.
type Request struct {
	IFCPath           string `yaml:"ifc_path" toml:"ifc_path"`
	FeaturesPath      string `yaml:"features_path" toml:"features_path"`
	IFCFilename       string `yaml:"ifc_filename,omitempty" toml:"ifc_filename"`
	AdvancedArguments string `yaml:"advanced_arguments,omitempty" toml:"advanced_arguments"`
	Console           bool   `yaml:"console,omitempty" toml:"console"`
}

// Validate checks the required fields. It does not touch the filesystem.
func (r Request) Validate() error {
	if r.IFCPath == "" {
		return NewMissingArgumentError("ifc_path", "no IFC path was given")
	}
	if r.FeaturesPath == "" {
		return NewMissingArgumentError("features_path", "no features path was given")
	}
	return nil
}

// SourceFeatures is the directory the scenario files are copied from.
func (r Request) SourceFeatures() string {
	return filepath.Join(r.FeaturesPath, FeaturesSubdir)
}

// Merge returns r with every non-zero field of override applied on top.
func (r Request) Merge(override Request) Request {
	if override.IFCPath != "" {
		r.IFCPath = override.IFCPath
	}
	if override.FeaturesPath != "" {
		r.FeaturesPath = override.FeaturesPath
	}
	if override.IFCFilename != "" {
		r.IFCFilename = override.IFCFilename
	}
	if override.AdvancedArguments != "" {
		r.AdvancedArguments = override.AdvancedArguments
	}
	if override.Console {
		r.Console = true
	}
	return r
}

// LoadRequest reads a request from a YAML file, or a TOML file when the name ends in .toml.
func LoadRequest(path string) (Request, error) {
	log.Debug("Reading request file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return Request{}, fmt.Errorf("reading request file: %w", err)
	}

	var req Request
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &req); err != nil {
			return Request{}, fmt.Errorf("parsing request file: %w", err)
		}
		return req, nil
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("parsing request file: %w", err)
	}
	return req, nil
}
