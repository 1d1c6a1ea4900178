package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/ethereum/go-ethereum/log"
)

// Generator renders the per-scenario HTML pages of a finished workspace.
type Generator interface {
	Generate(ctx context.Context, root string) error
}

// NoopGenerator leaves the workspace as the engine wrote it.
type NoopGenerator struct{}

func (NoopGenerator) Generate(context.Context, string) error { return nil }

// CommandGenerator runs an external renderer with the workspace root as its last argument.
type CommandGenerator struct {
	Command []string
	Stdout  io.Writer
	Stderr  io.Writer
	Log     log.Logger
}

// NewGenerator returns a CommandGenerator for command, or a NoopGenerator when command is
// empty.
func NewGenerator(command []string, logger log.Logger) Generator {
	if len(command) == 0 {
		return NoopGenerator{}
	}
	return &CommandGenerator{Command: command, Log: logger}
}

func (g *CommandGenerator) Generate(ctx context.Context, root string) error {
	if len(g.Command) == 0 {
		return nil
	}
	args := append(append([]string{}, g.Command[1:]...), root)
	cmd := exec.CommandContext(ctx, g.Command[0], args...)
	cmd.Stdout = g.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = g.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if g.Log != nil {
		g.Log.Info("Generating report", "command", cmd.String())
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("report generator %s failed: %w", g.Command[0], err)
	}
	return nil
}
