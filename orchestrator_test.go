package bimtester

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ifcopenshell/bimtester/report"
	"github.com/ifcopenshell/bimtester/types"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, root string) error {
	return m.Called(ctx, root).Error(0)
}

type mockLauncher struct {
	mock.Mock
}

func (m *mockLauncher) Open(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

func newTestOrchestrator(t *testing.T, cfg *Config) (*Orchestrator, *mockGenerator, *mockLauncher, *bytes.Buffer) {
	t.Helper()
	o, err := NewOrchestrator(cfg)
	require.NoError(t, err)

	generator := new(mockGenerator)
	launcher := new(mockLauncher)
	var out bytes.Buffer
	o.generator = generator
	o.launcher = launcher
	o.formatter = &ConsoleResultFormatter{logger: cfg.Log, out: &out}
	return o, generator, launcher, &out
}

// openObserverFs calls onOpen before every Open.
type openObserverFs struct {
	afero.Fs
	onOpen func(name string)
}

func (fs openObserverFs) Open(name string) (afero.File, error) {
	fs.onOpen(name)
	return fs.Fs.Open(name)
}

func TestNewOrchestratorRequiresConfig(t *testing.T) {
	_, err := NewOrchestrator(nil)
	assert.Error(t, err)
}

func TestRunAll_EndToEnd(t *testing.T) {
	f := newFixture(t)
	binary, argsFile := writeFakeEngine(t, "1.2.6", 0)
	o, generator, launcher, out := newTestOrchestrator(t, f.config(t, binary))

	page := filepath.Join(f.workspace, "report", "minimal.feature.html")
	generator.On("Generate", mock.Anything, f.workspace).Return(nil)
	launcher.On("Open", mock.Anything, page).Return(nil)

	res, err := o.RunAll(context.Background(), types.Request{
		IFCPath:      "/data/models",
		FeaturesPath: f.featuresPath,
		IFCFilename:  "bldg.ifc",
	})
	require.NoError(t, err)
	generator.AssertExpectations(t)
	launcher.AssertExpectations(t)

	assert.Equal(t, f.workspace, res.Root)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "isolated", res.Mode)

	injected, err := os.ReadFile(filepath.Join(f.workspace, "features", "minimal.feature"))
	require.NoError(t, err)
	assert.Contains(t, string(injected), "\n * The IFC file \"/data/models/bldg.ifc\" must be provided\n")
	assert.Contains(t, string(injected), "    Then the model is loaded\n")
	require.Len(t, res.Prepared.Injected, 1)
	assert.Equal(t, "bldg.ifc", res.Prepared.Injected[0].Filename)

	source, err := os.ReadFile(filepath.Join(f.featuresPath, "features", "minimal.feature"))
	require.NoError(t, err)
	assert.Equal(t, minimalFeature, string(source), "source scenario files are never modified")

	assert.FileExists(t, filepath.Join(f.workspace, "report", "report.json"))
	assert.FileExists(t, filepath.Join(f.workspace, "report", "engine.log"))
	assert.FileExists(t, filepath.Join(f.workspace, "features", "steps", "model.py"))
	assert.FileExists(t, filepath.Join(f.workspace, "features", "environment.py"))

	assert.Equal(t, []string{
		filepath.Join(f.workspace, "features"),
		"--no-capture", "--format", "json.pretty",
		"--outfile", filepath.Join(f.workspace, "report", "report.json"),
	}, readArgs(t, argsFile))

	require.NotNil(t, res.Summary)
	assert.Equal(t, report.Stats{Total: 1, Passed: 1}, res.Summary.Stats)
	assert.Contains(t, out.String(), "Model is present")
	assert.Contains(t, out.String(), res.RunID)
}

func TestRunAll_DefaultFilename(t *testing.T) {
	f := newFixture(t)
	binary, _ := writeFakeEngine(t, "1.2.6", 0)
	o, generator, launcher, _ := newTestOrchestrator(t, f.config(t, binary))
	generator.On("Generate", mock.Anything, mock.Anything).Return(nil)
	launcher.On("Open", mock.Anything, mock.Anything).Return(nil)

	_, err := o.RunAll(context.Background(), types.Request{IFCPath: "/data/models", FeaturesPath: f.featuresPath})
	require.NoError(t, err)

	injected, err := os.ReadFile(filepath.Join(f.workspace, "features", "minimal.feature"))
	require.NoError(t, err)
	assert.Contains(t, string(injected), ` * The IFC file "/data/models/default.ifc" must be provided`)
}

func TestRunAll_MissingArguments(t *testing.T) {
	f := newFixture(t)
	binary, argsFile := writeFakeEngine(t, "1.2.6", 0)
	o, generator, launcher, _ := newTestOrchestrator(t, f.config(t, binary))

	tests := []struct {
		name  string
		req   types.Request
		field string
	}{
		{"nothing given", types.Request{}, "ifc_path"},
		{"no features path", types.Request{IFCPath: "/data/models"}, "features_path"},
		{"no features directory", types.Request{IFCPath: "/data/models", FeaturesPath: f.workDir}, "features_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.RunAll(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrMissingArgument))

			var missing *types.MissingArgumentError
			require.True(t, errors.As(err, &missing))
			assert.Equal(t, tt.field, missing.Field)

			assert.NoDirExists(t, f.workspace, "validation failures leave the filesystem untouched")
			assert.NoFileExists(t, argsFile)
		})
	}
	generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	launcher.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
}

func TestRunAll_BlacklistedEngine(t *testing.T) {
	f := newFixture(t)
	binary, argsFile := writeFakeEngine(t, "1.2.5", 0)
	o, generator, _, _ := newTestOrchestrator(t, f.config(t, binary))

	_, err := o.RunAll(context.Background(), types.Request{IFCPath: "/data/models", FeaturesPath: f.featuresPath})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrIncompatibleEngineVersion))
	assert.NoFileExists(t, filepath.Join(f.workspace, "report", "report.json"))
	assert.NoFileExists(t, argsFile)
	generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestRunAll_StaleWorkspaceRemoved(t *testing.T) {
	f := newFixture(t)
	binary, _ := writeFakeEngine(t, "1.2.6", 0)
	o, generator, launcher, _ := newTestOrchestrator(t, f.config(t, binary))
	generator.On("Generate", mock.Anything, mock.Anything).Return(nil)
	launcher.On("Open", mock.Anything, mock.Anything).Return(nil)

	writeFile(t, filepath.Join(f.workspace, "features", "old.feature"), "Feature: old\n")
	writeFile(t, filepath.Join(f.workspace, "report", "old.feature.html"), "<html></html>")

	_, err := o.RunAll(context.Background(), types.Request{IFCPath: "/data/models", FeaturesPath: f.featuresPath})
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(f.workspace, "features", "old.feature"))
	assert.NoFileExists(t, filepath.Join(f.workspace, "report", "old.feature.html"))
}

func TestRunAll_FailingScenariosAreNotAnError(t *testing.T) {
	f := newFixture(t)
	binary, _ := writeFakeEngine(t, "1.2.6", 1)
	o, generator, launcher, _ := newTestOrchestrator(t, f.config(t, binary))
	generator.On("Generate", mock.Anything, mock.Anything).Return(nil)
	launcher.On("Open", mock.Anything, mock.Anything).Return(nil)

	res, err := o.RunAll(context.Background(), types.Request{IFCPath: "/data/models", FeaturesPath: f.featuresPath})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Engine.ExitCode)
}

func TestRunAll_ReportCollaboratorFailuresAreNotFatal(t *testing.T) {
	f := newFixture(t)
	binary, _ := writeFakeEngine(t, "1.2.6", 0)
	o, generator, launcher, _ := newTestOrchestrator(t, f.config(t, binary))
	generator.On("Generate", mock.Anything, mock.Anything).Return(errors.New("renderer crashed"))
	launcher.On("Open", mock.Anything, mock.Anything).Return(errors.New("no browser"))

	res, err := o.RunAll(context.Background(), types.Request{IFCPath: "/data/models", FeaturesPath: f.featuresPath})
	require.NoError(t, err)
	assert.NotNil(t, res.Summary)
}

func TestRunAll_ConsoleMode(t *testing.T) {
	f := newFixture(t)
	binary, argsFile := writeFakeEngine(t, "1.2.6", 0)
	o, generator, launcher, _ := newTestOrchestrator(t, f.config(t, binary))
	generator.On("Generate", mock.Anything, mock.Anything).Return(nil)

	res, err := o.RunAll(context.Background(), types.Request{IFCPath: "/data/models", FeaturesPath: f.featuresPath, Console: true})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(f.workspace, "features")}, readArgs(t, argsFile))
	assert.Nil(t, res.Summary)
	launcher.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
}

func TestRunAdHoc(t *testing.T) {
	f := newFixture(t)
	binary, argsFile := writeFakeEngine(t, "1.2.6", 0)
	writeFile(t, filepath.Join(f.workDir, "doors.feature"), "Feature: Doors\n")
	writeFile(t, filepath.Join(f.resourceRoot, "features", "stale.feature"), "Feature: Stale\n")

	cfg := f.config(t, binary)
	cfg.Mode = "adhoc"
	o, generator, launcher, _ := newTestOrchestrator(t, cfg)

	res, err := o.RunAdHoc(context.Background(), "", types.Request{})
	require.NoError(t, err)

	staged := filepath.Join(f.resourceRoot, "features")
	assert.Equal(t, staged, res.Root)
	assert.FileExists(t, filepath.Join(staged, "doors.feature"))
	assert.NoFileExists(t, filepath.Join(staged, "stale.feature"))
	assert.FileExists(t, filepath.Join(staged, "steps", "model.py"), "bundled steps are left in place")

	assert.Equal(t, []string{staged, "--format", "json.pretty", "--outfile", filepath.Join("report", "report.json")}, readArgs(t, argsFile))
	assert.FileExists(t, filepath.Join(f.workDir, "report", "report.json"))
	require.NotNil(t, res.Summary)
	assert.Equal(t, 1, res.Summary.Stats.Passed)

	generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	launcher.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
}

func TestRunAdHoc_NoFeatures(t *testing.T) {
	f := newFixture(t)
	binary, argsFile := writeFakeEngine(t, "1.2.6", 0)
	cfg := f.config(t, binary)
	cfg.Mode = "adhoc"
	o, _, _, _ := newTestOrchestrator(t, cfg)

	_, err := o.RunAdHoc(context.Background(), "", types.Request{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrNoFeaturesFound))
	assert.NoFileExists(t, argsFile)
}

func TestRunAdHoc_FeatureFilter(t *testing.T) {
	f := newFixture(t)
	binary, _ := writeFakeEngine(t, "1.2.6", 0)
	writeFile(t, filepath.Join(f.workDir, "doors.feature"), "Feature: Doors\n")
	writeFile(t, filepath.Join(f.workDir, "walls.feature"), "Feature: Walls\n")

	cfg := f.config(t, binary)
	cfg.Mode = "adhoc"
	cfg.FeatureFilter = "walls.feature"
	o, _, _, _ := newTestOrchestrator(t, cfg)

	res, err := o.RunAdHoc(context.Background(), "", types.Request{})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(res.Root, "walls.feature"))
	assert.NoFileExists(t, filepath.Join(res.Root, "doors.feature"))

	cfg.FeatureFilter = "roofs.feature"
	o, _, _, _ = newTestOrchestrator(t, cfg)
	_, err = o.RunAdHoc(context.Background(), "", types.Request{})
	assert.True(t, errors.Is(err, types.ErrNoFeaturesFound))
}

func TestRunAll_ListsScenarioFilesBeforeReset(t *testing.T) {
	f := newFixture(t)
	binary, _ := writeFakeEngine(t, "1.2.6", 0)
	o, generator, launcher, _ := newTestOrchestrator(t, f.config(t, binary))
	generator.On("Generate", mock.Anything, mock.Anything).Return(nil)
	launcher.On("Open", mock.Anything, mock.Anything).Return(nil)

	stale := filepath.Join(f.workspace, "features", "old.feature")
	writeFile(t, stale, "Feature: old\n")

	source := filepath.Join(f.featuresPath, "features")
	listed, staleAtListing := false, false
	o.fs = openObserverFs{Fs: afero.NewOsFs(), onOpen: func(name string) {
		if name == source {
			listed = true
			_, err := os.Stat(stale)
			staleAtListing = err == nil
		}
	}}

	_, err := o.RunAll(context.Background(), types.Request{IFCPath: "/data/models", FeaturesPath: f.featuresPath})
	require.NoError(t, err)
	assert.True(t, listed)
	assert.True(t, staleAtListing, "scenario files are listed before the previous workspace is removed")
	assert.NoFileExists(t, stale)
}
