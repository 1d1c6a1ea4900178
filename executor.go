package bimtester

import (
	"context"

	"github.com/ifcopenshell/bimtester/engine"
	"github.com/ifcopenshell/bimtester/types"
	"github.com/ifcopenshell/bimtester/workspace"
)

// TestExecutor runs the scenario engine. *engine.Executor is the production implementation.
type TestExecutor interface {
	// Execute checks the engine version and runs it against a prepared workspace.
	Execute(ctx context.Context, ws *workspace.Workspace, req types.Request) (*engine.Result, error)
	// Run invokes the engine with explicit arguments.
	Run(ctx context.Context, args []string, logPath string) (*engine.Result, error)
}

var _ TestExecutor = (*engine.Executor)(nil)
