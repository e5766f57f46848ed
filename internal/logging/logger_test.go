package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetState() {
	CloseAll()
	logsDir = ""
	opts = Options{}
}

func TestInitialize_ProductionModeIsNoop(t *testing.T) {
	defer resetState()
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, Options{DebugMode: false}))

	// No logs directory should be created.
	_, err := os.Stat(filepath.Join(ws, ".crawler", "logs"))
	assert.True(t, os.IsNotExist(err))

	// Writes must not panic.
	Discovery("should be dropped")
}

func TestInitialize_DebugModeWritesFiles(t *testing.T) {
	defer resetState()
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, Options{DebugMode: true, Level: "debug"}))
	Discovery("resolved %d urls", 3)
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".crawler", "logs"))
	require.NoError(t, err)

	var found bool
	for _, e := range entries {
		if strings.Contains(e.Name(), "discovery") {
			found = true
			data, err := os.ReadFile(filepath.Join(ws, ".crawler", "logs", e.Name()))
			require.NoError(t, err)
			assert.Contains(t, string(data), "resolved 3 urls")
		}
	}
	assert.True(t, found, "expected a discovery log file")
}

func TestCategoryFilter(t *testing.T) {
	defer resetState()
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, Options{
		DebugMode:  true,
		Categories: map[string]bool{"collector": false},
	}))

	assert.False(t, IsCategoryEnabled(CategoryCollector))
	assert.True(t, IsCategoryEnabled(CategoryRouter))
}

func TestLevelFilter(t *testing.T) {
	defer resetState()
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, Options{DebugMode: true, Level: "warn"}))
	l := Get(CategoryPipeline)
	l.Debug("dropped")
	l.Info("dropped too")
	l.Warn("kept")
	l.Error("kept as well")
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".crawler", "logs"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	data, err := os.ReadFile(filepath.Join(ws, ".crawler", "logs", entries[0].Name()))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}
