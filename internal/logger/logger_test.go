package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "riskwatch.log")

	l, err := New(Config{Level: "info", File: path})
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("refresh finished")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "refresh finished")
	assert.NotContains(t, string(data), "hidden")
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
}
