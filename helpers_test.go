package bimtester

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/ethereum-optimism/optimism/op-service/testlog"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"
)

const minimalReport = `[{"keyword": "Feature", "name": "Minimal", "location": "features/minimal.feature:1", "status": "passed",
 "elements": [{"type": "scenario", "keyword": "Scenario", "name": "Model is present", "status": "passed",
  "steps": [{"keyword": "Given", "name": "the model", "result": {"status": "passed", "duration": 0.2}}]}]}]`

const minimalFeature = "Feature: Minimal\n\n" +
	"  Background:\n" +
	"    * The IFC file \"default.ifc\" must be provided\n\n" +
	"  Scenario: Model is present\n" +
	"    Then the model is loaded\n"

// writeFakeEngine creates a shell script standing in for the engine CLI. It reports
// version, records its arguments next to itself and writes a report to --outfile.
func writeFakeEngine(t *testing.T, version string, exitCode int) (binary string, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine is a POSIX shell script")
	}
	dir := t.TempDir()
	binary = filepath.Join(dir, "behave")
	argsFile = filepath.Join(dir, "args.txt")
	script := fmt.Sprintf(`#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "behave %s"
  exit 0
fi
printf '%%s\n' "$@" > "%s"
prev=""
for a in "$@"; do
  if [ "$prev" = "--outfile" ]; then
    printf '%%s' '%s' > "$a"
  fi
  prev="$a"
done
echo "1 feature passed, 0 failed, 0 skipped"
exit %d
`, version, argsFile, minimalReport, exitCode)
	require.NoError(t, os.WriteFile(binary, []byte(script), 0755))
	return binary, argsFile
}

func readArgs(t *testing.T, argsFile string) []string {
	t.Helper()
	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

// fixture is a features path with one scenario file, a resource root with a step
// library and an IFC directory.
type fixture struct {
	featuresPath string
	resourceRoot string
	ifcPath      string
	workspace    string
	workDir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	f := &fixture{
		featuresPath: filepath.Join(base, "suite"),
		resourceRoot: filepath.Join(base, "resources"),
		ifcPath:      filepath.Join(base, "models"),
		workspace:    filepath.Join(base, "bimtesterfc"),
		workDir:      filepath.Join(base, "project"),
	}
	writeFile(t, filepath.Join(f.featuresPath, "features", "minimal.feature"), minimalFeature)
	writeFile(t, filepath.Join(f.resourceRoot, "features", "steps", "model.py"), "# steps\n")
	writeFile(t, filepath.Join(f.resourceRoot, "features", "environment.py"), "# hook\n")
	require.NoError(t, os.MkdirAll(f.ifcPath, 0755))
	require.NoError(t, os.MkdirAll(f.workDir, 0755))
	return f
}

func (f *fixture) config(t *testing.T, binary string) *Config {
	return &Config{
		Mode:          "isolated",
		WorkspaceRoot: f.workspace,
		ResourceRoot:  f.resourceRoot,
		WorkDir:       f.workDir,
		EngineBinary:  binary,
		RunOnce:       true,
		Log:           testlog.Logger(t, log.LevelInfo),
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}
