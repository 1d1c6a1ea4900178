package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/acarl005/stripansi"
)

// EngineLogFile is the name of the captured engine console output inside the report dir.
const EngineLogFile = "engine.log"

// EngineLog is an io.WriteCloser that stores engine console output with ANSI escape
// sequences removed. Output is written line by line so an escape sequence split across
// two writes is still stripped.
type EngineLog struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	pending []byte
}

// OpenEngineLog creates (or truncates) the log at path, creating parent directories.
func OpenEngineLog(path string) (*EngineLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for engine log: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine log %s: %w", path, err)
	}
	return &EngineLog{path: path, file: file}, nil
}

func (l *EngineLog) Path() string {
	return l.path
}

func (l *EngineLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, p...)
	i := bytes.LastIndexByte(l.pending, '\n')
	if i < 0 {
		return len(p), nil
	}
	if _, err := l.file.WriteString(stripansi.Strip(string(l.pending[:i+1]))); err != nil {
		return 0, err
	}
	l.pending = append(l.pending[:0], l.pending[i+1:]...)
	return len(p), nil
}

// Close flushes a trailing partial line and closes the file.
func (l *EngineLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) > 0 {
		if _, err := l.file.WriteString(stripansi.Strip(string(l.pending))); err != nil {
			_ = l.file.Close()
			return err
		}
		l.pending = nil
	}
	return l.file.Close()
}
