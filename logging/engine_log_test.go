package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineLogStripsANSI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report", EngineLogFile)
	l, err := OpenEngineLog(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())

	// escape sequence split across writes
	_, err = l.Write([]byte("\x1b[32m1 feature pass"))
	require.NoError(t, err)
	_, err = l.Write([]byte("ed\x1b[0m\n\x1b[31m0 fa"))
	require.NoError(t, err)
	_, err = l.Write([]byte("iled\x1b[0m"))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1 feature passed\n0 failed", string(data))
}

func TestTailBuffer(t *testing.T) {
	b := NewTailBuffer(8)
	_, _ = b.Write([]byte("0123"))
	assert.False(t, b.Truncated())

	_, _ = b.Write([]byte("456789"))
	assert.Equal(t, "23456789", b.String())
	assert.Equal(t, int64(10), b.TotalBytes())
	assert.True(t, b.Truncated())
}
