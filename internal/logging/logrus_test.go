package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salespipe/internal/logging"
)

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "debug", logging.Debug.String())
	assert.Equal(t, "warning", logging.Warning.String())
	assert.Equal(t, "critical", logging.Critical.String())
}

func TestMemorySink_RecordsAndFilters(t *testing.T) {
	sink := &logging.MemorySink{}
	sink.Emit(logging.Info, "started", nil)
	sink.Emit(logging.Error, "boom", logging.Fields{"row": 3})
	sink.Emit(logging.Error, "boom again", nil)

	require.Len(t, sink.Events, 3)
	errs := sink.BySeverity(logging.Error)
	require.Len(t, errs, 2)
	assert.Equal(t, "boom", errs[0].Message)
	assert.Equal(t, 3, errs[0].Fields["row"])
	assert.Empty(t, sink.BySeverity(logging.Critical))
}

func TestLogrusSink_FileRouting(t *testing.T) {
	dir := t.TempDir()
	sink, err := logging.NewLogrusSink(logging.Options{
		Level: "info",
		Dir:   dir,
	})
	require.NoError(t, err)
	defer sink.Close()

	sink.Emit(logging.Debug, "debug detail", nil)
	sink.Emit(logging.Info, "run started", logging.Fields{"records": 12})
	sink.Emit(logging.Error, "batch failed", nil)
	sink.Emit(logging.Critical, "source unreachable", nil)

	full, err := os.ReadFile(filepath.Join(dir, "pipeline.log"))
	require.NoError(t, err)
	errOnly, err := os.ReadFile(filepath.Join(dir, "errors.log"))
	require.NoError(t, err)

	// pipeline.log captures everything, down to debug.
	for _, msg := range []string{"debug detail", "run started", "batch failed", "source unreachable"} {
		assert.Contains(t, string(full), msg)
	}

	// errors.log only has ERROR and above.
	assert.Contains(t, string(errOnly), "batch failed")
	assert.Contains(t, string(errOnly), "source unreachable")
	assert.NotContains(t, string(errOnly), "run started")
	assert.NotContains(t, string(errOnly), "debug detail")
}

func TestLogrusSink_CriticalDoesNotExit(t *testing.T) {
	sink, err := logging.NewLogrusSink(logging.Options{Level: "error"})
	require.NoError(t, err)
	defer sink.Close()

	// Reaching the next line is the assertion.
	sink.Emit(logging.Critical, "fatal-level event", nil)
}

func TestLogrusSink_JSONFormat(t *testing.T) {
	dir := t.TempDir()
	sink, err := logging.NewLogrusSink(logging.Options{
		Level:  "info",
		Format: "json",
		Dir:    dir,
	})
	require.NoError(t, err)
	defer sink.Close()

	sink.Emit(logging.Info, "structured", logging.Fields{"phase": "extract"})

	data, err := os.ReadFile(filepath.Join(dir, "pipeline.log"))
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.True(t, strings.HasPrefix(line, "{"), "expected JSON line, got %q", line)
	assert.Contains(t, line, `"phase":"extract"`)
}
