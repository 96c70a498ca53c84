package pipeline

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camtrap-pipeline/internal/model"
)

func writeExportZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(data))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func sampleExportEntries() map[string]string {
	return map[string]string{
		"projects.csv": "project_id,project_name,project_sensor_method,metadata_license,image_license\n" +
			"p1,Jaguar Survey,Sensor Detection,CC-BY,CC0\n",
		"cameras.csv": "camera_id,make,model\n" +
			"cam1,Bushnell,Trophy\n",
		"deployments.csv": "deployment_id,placename,latitude,longitude,start_date,end_date,camera_id\n" +
			"dep1,River crossing,4.7111,-74.0721,2023-01-01 00:00:00,2023-06-01 00:00:00,cam1\n",
		"images_123.csv": "image_id,deployment_id,timestamp,filename,location,common_name,genus,species,number_of_objects,age,sex\n" +
			"imgA,dep1,2023-05-15 14:23:11,IMG_0001.JPG,gs://bucket/IMG_0001.JPG,Jaguar,panthera,onca,1,adult,female\n" +
			"imgA,dep1,2023-05-15 14:23:11,IMG_0001.JPG,gs://bucket/IMG_0001.JPG,Ocelot,leopardus,pardalis,1,adult,male\n" +
			"imgB,dep1,2023-05-16 08:00:00,IMG_0002.JPG,gs://bucket/IMG_0002.JPG,Blank,,,,,\n",
	}
}

func sampleSpec(t *testing.T, archivePath string) model.ConversionSpec {
	return model.ConversionSpec{
		ArchivePath:  archivePath,
		OutputDir:    t.TempDir(),
		TimezoneHint: "UTC-05:00",
		Validate:     true,
		MakeZip:      true,
	}
}

func TestRunEndToEnd(t *testing.T) {
	archivePath := writeExportZip(t, sampleExportEntries())
	spec := sampleSpec(t, archivePath)

	result, err := Run(context.Background(), spec, model.NopReporter{})
	require.NoError(t, err)

	// Two distinct photos, three identifications.
	assert.Len(t, result.Package.Media, 2)
	assert.Len(t, result.Package.Observations, 3)
	assert.Len(t, result.Package.Deployments, 1)

	assert.Equal(t, filepath.Join(spec.OutputDir, "camtrapdp_jaguar-survey"), result.OutputDir)
	for _, name := range []string{"deployments.csv", "media.csv", "observations.csv", "datapackage.json"} {
		_, err := os.Stat(filepath.Join(result.OutputDir, "output", name))
		assert.NoError(t, err, name)
	}

	require.NotNil(t, result.Conformance)
	assert.True(t, result.Conformance.Valid, "violations: %v", result.Conformance.Violations)

	require.NotEmpty(t, result.ZipPath)
	_, err = os.Stat(result.ZipPath)
	assert.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
}

func TestRunDeterministic(t *testing.T) {
	archivePath := writeExportZip(t, sampleExportEntries())
	spec := sampleSpec(t, archivePath)
	spec.Overwrite = true

	first, err := Run(context.Background(), spec, model.NopReporter{})
	require.NoError(t, err)
	firstTables := readTables(t, first.OutputDir)

	second, err := Run(context.Background(), spec, model.NopReporter{})
	require.NoError(t, err)
	secondTables := readTables(t, second.OutputDir)

	// Same input, same tables, byte for byte.
	assert.Equal(t, firstTables, secondTables)
}

func TestRunRefusesExistingDestination(t *testing.T) {
	archivePath := writeExportZip(t, sampleExportEntries())
	spec := sampleSpec(t, archivePath)

	_, err := Run(context.Background(), spec, model.NopReporter{})
	require.NoError(t, err)

	_, err = Run(context.Background(), spec, model.NopReporter{})
	assert.ErrorIs(t, err, model.ErrOutputExists)
}

func TestRunBlockingErrorWritesNothing(t *testing.T) {
	entries := sampleExportEntries()
	entries["images_123.csv"] = "image_id,deployment_id,timestamp,filename,common_name\n" +
		"imgA,dep1,2023-05-15 14:23:11,IMG_0001.JPG,No CV Result\n"
	archivePath := writeExportZip(t, entries)
	spec := sampleSpec(t, archivePath)

	_, err := Run(context.Background(), spec, model.NopReporter{})
	require.Error(t, err)
	_, ok := model.AsBlocking(err)
	assert.True(t, ok)

	dirEntries, err := os.ReadDir(spec.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, dirEntries, "a blocked run must not create output")
}

func TestRunUnparseableStartDateBlocks(t *testing.T) {
	entries := sampleExportEntries()
	entries["deployments.csv"] = "deployment_id,placename,latitude,longitude,start_date,end_date,camera_id\n" +
		"dep1,River crossing,4.7111,-74.0721,banana,2023-06-01 00:00:00,cam1\n"
	archivePath := writeExportZip(t, entries)
	spec := sampleSpec(t, archivePath)

	_, err := Run(context.Background(), spec, model.NopReporter{})
	require.Error(t, err)
	blocking, ok := model.AsBlocking(err)
	require.True(t, ok)
	require.Len(t, blocking.Issues, 1)
	assert.Equal(t, "start_date", blocking.Issues[0].Field)

	dirEntries, err := os.ReadDir(spec.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, dirEntries, "a blocked run must not create output")
}

func TestRunStructuralErrorWritesNothing(t *testing.T) {
	entries := sampleExportEntries()
	entries["images_456.csv"] = entries["images_123.csv"]
	archivePath := writeExportZip(t, entries)
	spec := sampleSpec(t, archivePath)

	_, err := Run(context.Background(), spec, model.NopReporter{})
	require.Error(t, err)
	_, ok := model.AsStructural(err)
	assert.True(t, ok)

	dirEntries, err := os.ReadDir(spec.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, dirEntries)
}

func TestRunCancelled(t *testing.T) {
	archivePath := writeExportZip(t, sampleExportEntries())
	spec := sampleSpec(t, archivePath)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, spec, model.NopReporter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunBadTimezoneHint(t *testing.T) {
	archivePath := writeExportZip(t, sampleExportEntries())
	spec := sampleSpec(t, archivePath)
	spec.TimezoneHint = "Not/AZone"

	_, err := Run(context.Background(), spec, model.NopReporter{})
	assert.Error(t, err)
}

func readTables(t *testing.T, runDir string) map[string]string {
	t.Helper()
	tables := map[string]string{}
	for _, name := range []string{"deployments.csv", "media.csv", "observations.csv"} {
		data, err := os.ReadFile(filepath.Join(runDir, "output", name))
		require.NoError(t, err)
		tables[name] = string(data)
	}
	return tables
}
