package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camtrap-pipeline/internal/model"
)

func openTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, InitDB(filepath.Join(t.TempDir(), "runs.db")))
	t.Cleanup(func() { CloseDB() })
}

func testSpec() model.ConversionSpec {
	return model.ConversionSpec{
		ArchivePath:  "export.zip",
		OutputDir:    ".",
		TimezoneHint: "UTC-05:00",
	}
}

func TestSaveAndFinishRun(t *testing.T) {
	openTestDB(t)

	report := model.NewConversionReport()
	report.Warn("images.csv", 3, "age", "", "optional field empty")
	report.Drop("images.csv", 7, "timestamp", "junk", "unparseable timestamp, record dropped")

	require.NoError(t, SaveRun("run1", testSpec()))
	require.NoError(t, FinishRun("run1", "/tmp/camtrapdp_x", report))
	require.NoError(t, SaveRunIssues("run1", report.Warnings))

	run, err := GetRun("run1")
	require.NoError(t, err)
	assert.Equal(t, "completed", run["status"])
	assert.Equal(t, "/tmp/camtrapdp_x", run["outputDir"])
	assert.Equal(t, 2, run["warnings"])
	assert.Equal(t, 1, run["dropped"])

	spec, ok := run["spec"].(model.ConversionSpec)
	require.True(t, ok)
	assert.Equal(t, "export.zip", spec.ArchivePath)
}

func TestSaveRunError(t *testing.T) {
	openTestDB(t)

	require.NoError(t, SaveRun("run1", testSpec()))
	require.NoError(t, SaveRunError("run1", errors.New("structural error: missing table: cameras")))

	run, err := GetRun("run1")
	require.NoError(t, err)
	assert.Equal(t, "failed", run["status"])
	assert.Contains(t, run["error"], "missing table")
}

func TestSaveRunErrorNil(t *testing.T) {
	openTestDB(t)
	assert.NoError(t, SaveRunError("run1", nil))
}

func TestListRuns(t *testing.T) {
	openTestDB(t)

	runs, err := ListRuns()
	require.NoError(t, err)
	assert.Empty(t, runs)

	require.NoError(t, SaveRun("run1", testSpec()))
	require.NoError(t, SaveRun("run2", testSpec()))

	runs, err = ListRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSaveRunIssuesEmpty(t *testing.T) {
	openTestDB(t)
	assert.NoError(t, SaveRunIssues("run1", nil))
}
