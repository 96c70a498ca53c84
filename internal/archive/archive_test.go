package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camtrap-pipeline/internal/model"
)

func writeZip(t *testing.T, entries map[string][]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func baseEntries() map[string][]byte {
	return map[string][]byte{
		"projects.csv":    []byte("project_id,project_name\np1,Jaguar Survey\n"),
		"cameras.csv":     []byte("camera_id,make,model\ncam1,Bushnell,Trophy\n"),
		"deployments.csv": []byte("deployment_id,latitude,longitude,start_date\ndep1,4.7111,-74.0721,2023-01-01 00:00:00\n"),
		"images_123.csv":  []byte("image_id,deployment_id,timestamp,filename,common_name\nimgA,dep1,2023-05-15 14:23:11,IMG_0001.JPG,Jaguar\n"),
	}
}

func TestOpen(t *testing.T) {
	path := writeZip(t, baseEntries())

	ex, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"project_id", "project_name"}, ex.Projects.Columns)
	require.Len(t, ex.Deployments.Rows, 1)

	dep := ex.Deployments.Rows[0]
	assert.Equal(t, 1, dep.Line)
	assert.Equal(t, "dep1", dep.String("deployment_id"))

	// Numeric cells decode as numbers, not strings.
	lat, ok := dep.Float("latitude")
	require.True(t, ok)
	assert.Equal(t, 4.7111, lat)

	require.Len(t, ex.Images.Rows, 1)
	assert.Equal(t, "Jaguar", ex.Images.Rows[0].String("common_name"))
	assert.Equal(t, RoleImages, ex.Images.Role)
}

func TestOpenNestedPaths(t *testing.T) {
	entries := map[string][]byte{}
	for name, data := range baseEntries() {
		entries["my_export/"+name] = data
	}
	path := writeZip(t, entries)

	_, err := Open(path)
	assert.NoError(t, err)
}

func TestOpenIgnoresResourceForks(t *testing.T) {
	entries := baseEntries()
	entries["__MACOSX/._images_123.csv"] = []byte("\x00\x05\x16\x07")
	entries["__MACOSX/._deployments.csv"] = []byte("\x00\x05\x16\x07")
	path := writeZip(t, entries)

	ex, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "images_123.csv", ex.Images.Name)
	assert.Equal(t, "deployments.csv", ex.Deployments.Name)
}

func TestOpenMultiProjectExport(t *testing.T) {
	entries := baseEntries()
	entries["images_456.csv"] = entries["images_123.csv"]
	path := writeZip(t, entries)

	_, err := Open(path)
	require.Error(t, err)
	structural, ok := model.AsStructural(err)
	require.True(t, ok)
	assert.Contains(t, structural.Reason, "multi-project")
}

func TestOpenMissingTable(t *testing.T) {
	entries := baseEntries()
	delete(entries, "cameras.csv")
	path := writeZip(t, entries)

	_, err := Open(path)
	require.Error(t, err)
	structural, ok := model.AsStructural(err)
	require.True(t, ok)
	assert.Contains(t, structural.Reason, "cameras")
}

func TestOpenNotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.zip")
	require.NoError(t, os.WriteFile(path, []byte("this is not a zip"), 0644))

	_, err := Open(path)
	assert.Error(t, err)
}

func TestOpenStripsBOMAndQuotes(t *testing.T) {
	entries := baseEntries()
	entries["projects.csv"] = append([]byte{0xEF, 0xBB, 0xBF}, []byte("\"project_id\",\"project_name\"\np1,Survey\n")...)
	path := writeZip(t, entries)

	ex, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"project_id", "project_name"}, ex.Projects.Columns)
	assert.Equal(t, "p1", ex.Projects.Rows[0].String("project_id"))
}

func TestOpenWindows1252(t *testing.T) {
	entries := baseEntries()
	// "Bogotá" with the accented byte encoded as Windows-1252 0xE1.
	entries["projects.csv"] = []byte("project_id,project_name\np1,Bogot\xe1 Survey\n")
	path := writeZip(t, entries)

	ex, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "Bogotá Survey", ex.Projects.Rows[0].String("project_name"))
}
