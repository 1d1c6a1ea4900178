package bimtester

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ifcopenshell/bimtester/types"
)

func TestNewTesterRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), nil, "v0.0.0", func(error) {})
	assert.Error(t, err)
}

func TestTester_RunOnce(t *testing.T) {
	f := newFixture(t)
	binary, _ := writeFakeEngine(t, "1.2.6", 0)
	cfg := f.config(t, binary)
	cfg.Request = types.Request{IFCPath: f.ifcPath, FeaturesPath: f.featuresPath}

	shutdown := make(chan error, 1)
	tester, err := New(context.Background(), cfg, "v0.0.0", func(err error) { shutdown <- err })
	require.NoError(t, err)

	require.NoError(t, tester.Start(context.Background()))

	select {
	case err := <-shutdown:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown callback was not called after a run-once run")
	}

	res := tester.Result()
	require.NotNil(t, res)
	assert.Equal(t, f.workspace, res.Root)
	require.NotNil(t, res.Summary)
	assert.Equal(t, 1, res.Summary.Stats.Passed)

	require.NoError(t, tester.Stop(context.Background()))
	assert.True(t, tester.Stopped())
}

func TestTester_RunFailureIsRuntimeError(t *testing.T) {
	f := newFixture(t)
	binary, _ := writeFakeEngine(t, "1.2.6", 0)
	cfg := f.config(t, binary)
	cfg.Request = types.Request{FeaturesPath: f.featuresPath}

	tester, err := New(context.Background(), cfg, "v0.0.0", func(error) {
		t.Error("shutdown callback must not be called when the run fails")
	})
	require.NoError(t, err)

	err = tester.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))
	assert.True(t, errors.Is(err, types.ErrMissingArgument))
	assert.Nil(t, tester.Result())
}

func TestTester_ServesReports(t *testing.T) {
	f := newFixture(t)
	binary, _ := writeFakeEngine(t, "1.2.6", 0)
	cfg := f.config(t, binary)
	cfg.Request = types.Request{IFCPath: f.ifcPath, FeaturesPath: f.featuresPath}
	cfg.ServeAddr = "127.0.0.1:0"

	tester, err := New(context.Background(), cfg, "v0.0.0", func(error) {})
	require.NoError(t, err)
	require.NotNil(t, tester.server)

	require.NoError(t, tester.Start(context.Background()))
	assert.False(t, tester.server.Stopped())

	require.NoError(t, tester.Stop(context.Background()))
	assert.True(t, tester.Stopped())
}
