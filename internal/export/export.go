// Package export writes the assembled three-table package to disk: the CSV
// tables in their documented column order, the datapackage.json manifest and
// the optional result ZIP.
package export

import (
	"archive/zip"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"camtrap-pipeline/internal/conformance"
	"camtrap-pipeline/internal/model"
	"camtrap-pipeline/pkg/utils"
)

// Output file names inside the run's output/ directory.
const (
	DeploymentsFile  = "deployments.csv"
	MediaFile        = "media.csv"
	ObservationsFile = "observations.csv"
	ManifestFile     = "datapackage.json"
)

// Column orders are fixed and documented; consumers rely on them.
var (
	deploymentColumns = []string{"deploymentID", "locationName", "latitude", "longitude", "deploymentStart", "deploymentEnd", "cameraModel"}

	mediaColumns = []string{"mediaID", "deploymentID", "captureMethod", "timestamp", "filePath", "fileMediatype"}

	observationColumns = []string{"observationID", "mediaID", "scientificName", "vernacularName", "count", "observationType", "age", "sex"}
)

// resourceNames are the package's table resources, in manifest order.
var resourceNames = []string{"deployments", "media", "observations"}

// PrepareRunDir creates the destination directory for a run. When it already
// exists and overwrite is not set it fails with ErrOutputExists; with
// overwrite the destination is fully replaced, never merged.
func PrepareRunDir(baseDir, name string, overwrite bool) (string, error) {
	om := utils.NewOutputManager(baseDir)
	runDir := om.RunDir(name)
	if _, err := os.Stat(runDir); err == nil && !overwrite {
		return "", fmt.Errorf("%w: %s", model.ErrOutputExists, runDir)
	}
	if err := om.EnsureOutputDirExists(); err != nil {
		return "", fmt.Errorf("failed to create output base directory: %w", err)
	}
	return om.CreateRunDir(name, overwrite)
}

// CheckDestination reports ErrOutputExists without creating anything, so a
// run can fail fast before any row processing.
func CheckDestination(baseDir, name string, overwrite bool) error {
	runDir := utils.NewOutputManager(baseDir).RunDir(name)
	if _, err := os.Stat(runDir); err == nil && !overwrite {
		return fmt.Errorf("%w: %s", model.ErrOutputExists, runDir)
	}
	return nil
}

// WritePackage writes the three tables and the manifest into the run
// directory's output/ subdirectory. The package is complete in memory before
// this is called, so a failed run never leaves a partial table behind.
func WritePackage(runDir string, pkg *model.Package, manifest *DataPackage) error {
	if err := writeCSV(utils.OutputFilePath(runDir, DeploymentsFile), deploymentColumns, deploymentRows(pkg.Deployments)); err != nil {
		return err
	}
	if err := writeCSV(utils.OutputFilePath(runDir, MediaFile), mediaColumns, mediaRows(pkg.Media)); err != nil {
		return err
	}
	if err := writeCSV(utils.OutputFilePath(runDir, ObservationsFile), observationColumns, observationRows(pkg.Observations)); err != nil {
		return err
	}
	if err := writeManifest(utils.OutputFilePath(runDir, ManifestFile), manifest); err != nil {
		return err
	}
	return writeSchemas(runDir)
}

func deploymentRows(deployments []model.Deployment) [][]string {
	rows := make([][]string, 0, len(deployments))
	for _, d := range deployments {
		rows = append(rows, []string{
			d.DeploymentID,
			d.LocationName,
			formatCoordinate(d.Latitude, d.LatitudeValid),
			formatCoordinate(d.Longitude, d.LongitudeValid),
			d.DeploymentStart,
			d.DeploymentEnd,
			d.CameraModel,
		})
	}
	return rows
}

func mediaRows(media []model.MediaItem) [][]string {
	rows := make([][]string, 0, len(media))
	for _, m := range media {
		rows = append(rows, []string{
			m.MediaID,
			m.DeploymentID,
			m.CaptureMethod,
			m.Timestamp,
			m.FilePath,
			m.FileMediatype,
		})
	}
	return rows
}

func observationRows(observations []model.Observation) [][]string {
	rows := make([][]string, 0, len(observations))
	for _, o := range observations {
		rows = append(rows, []string{
			o.ObservationID,
			o.MediaID,
			o.ScientificName,
			o.VernacularName,
			strconv.Itoa(o.Count),
			o.ObservationType,
			o.Age,
			o.Sex,
		})
	}
	return rows
}

// writeSchemas copies the embedded table-schema documents next to the tables,
// so the manifest's schema references resolve inside the package itself.
func writeSchemas(runDir string) error {
	dir := filepath.Join(runDir, "output", "schemas")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create schemas directory: %w", err)
	}
	for _, name := range resourceNames {
		data, err := conformance.SchemaJSON(name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, name+"-table-schema.json"), data, 0644); err != nil {
			return fmt.Errorf("failed to write schema for %s: %w", name, err)
		}
	}
	return nil
}

// formatCoordinate renders an invalid coordinate as the null marker, never as
// zero.
func formatCoordinate(v float64, valid bool) string {
	if !valid {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeManifest(path string, manifest *DataPackage) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(manifest); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return nil
}

// MakeZip compresses the run's output directory into <runDir>/<name>.zip with
// entries under output/.
func MakeZip(runDir string) (string, error) {
	zipPath := filepath.Join(runDir, filepath.Base(runDir)+".zip")

	zf, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to create result zip: %w", err)
	}
	defer zf.Close()

	zw := zip.NewWriter(zf)
	for _, name := range []string{DeploymentsFile, MediaFile, ObservationsFile, ManifestFile} {
		if err := addZipEntry(zw, utils.OutputFilePath(runDir, name), "output/"+name); err != nil {
			zw.Close()
			return "", err
		}
	}
	for _, name := range resourceNames {
		schema := name + "-table-schema.json"
		src := filepath.Join(runDir, "output", "schemas", schema)
		if err := addZipEntry(zw, src, "output/schemas/"+schema); err != nil {
			zw.Close()
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize result zip: %w", err)
	}
	return zipPath, nil
}

func addZipEntry(zw *zip.Writer, src, name string) error {
	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s for zipping: %w", src, err)
	}
	defer file.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("failed to add zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("failed to write zip entry %s: %w", name, err)
	}
	return nil
}
