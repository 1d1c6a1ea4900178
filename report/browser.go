package report

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/ethereum/go-ethereum/log"
)

// Launcher shows a rendered report page to the user.
type Launcher interface {
	Open(ctx context.Context, path string) error
}

type NoopLauncher struct{}

func (NoopLauncher) Open(context.Context, string) error { return nil }

// BrowserLauncher hands a page to the desktop's default browser.
type BrowserLauncher struct {
	// Opener overrides the platform command; the page path is appended to it.
	Opener []string
	Log    log.Logger
}

func NewBrowserLauncher(logger log.Logger) *BrowserLauncher {
	return &BrowserLauncher{Opener: openerFor(runtime.GOOS), Log: logger}
}

func openerFor(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"open"}
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler"}
	default:
		return []string{"xdg-open"}
	}
}

// Open fails when the page does not exist, so a missing renderer output is reported
// instead of opening an error page.
func (b *BrowserLauncher) Open(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("report page not available: %w", err)
	}
	if len(b.Opener) == 0 {
		return fmt.Errorf("no browser opener configured for %s", runtime.GOOS)
	}
	args := append(append([]string{}, b.Opener[1:]...), path)
	cmd := exec.CommandContext(ctx, b.Opener[0], args...)
	if b.Log != nil {
		b.Log.Debug("Opening report page", "path", path, "command", cmd.String())
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to open %s: %w\noutput: %s", path, err, out)
	}
	return nil
}
