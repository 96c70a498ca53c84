// Package archive reads camera-trap project export archives: a ZIP bundling
// four CSV tables (project metadata, camera metadata, deployments, images).
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	pathpkg "path"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"camtrap-pipeline/internal/model"
	"camtrap-pipeline/pkg/utils"
)

// Table roles located inside the archive, by file-name substring.
const (
	RoleProjects    = "projects"
	RoleCameras     = "cameras"
	RoleDeployments = "deployments"
	RoleImages      = "images"
)

// deploymentsMatch covers both deployment.csv and deployments.csv, which
// both appear in the wild.
const deploymentsMatch = "deploy"

// Export holds the four decoded tables of a single-project export.
type Export struct {
	Projects    model.Table
	Cameras     model.Table
	Deployments model.Table
	Images      model.Table
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Open reads the export archive at path and decodes its four tables. It fails
// with a StructuralError before any row processing when the archive holds more
// than one images table (a multi-project "initiative" export) or lacks a
// required table. The input is never mutated.
func Open(path string) (*Export, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export archive: %w", err)
	}
	defer zr.Close()

	var projects, cameras, deployments *zip.File
	var images []*zip.File
	for _, f := range zr.File {
		name := strings.ToLower(f.Name)
		if !strings.HasSuffix(name, ".csv") {
			continue
		}
		// macOS zips carry resource forks under __MACOSX/ with ._ prefixed
		// copies of every entry name.
		if strings.HasPrefix(name, "__macosx/") || strings.HasPrefix(pathpkg.Base(name), ".") {
			continue
		}
		switch {
		case strings.Contains(name, RoleImages):
			images = append(images, f)
		case strings.Contains(name, RoleProjects):
			projects = pick(projects, f)
		case strings.Contains(name, RoleCameras):
			cameras = pick(cameras, f)
		case strings.Contains(name, deploymentsMatch):
			deployments = pick(deployments, f)
		}
	}

	if len(images) > 1 {
		names := make([]string, len(images))
		for i, f := range images {
			names[i] = f.Name
		}
		return nil, model.NewStructuralError(
			"multi-project export: found %d images tables (%s), initiative exports are not supported",
			len(images), strings.Join(names, ", "))
	}

	missing := []string{}
	if projects == nil {
		missing = append(missing, RoleProjects)
	}
	if cameras == nil {
		missing = append(missing, RoleCameras)
	}
	if deployments == nil {
		missing = append(missing, RoleDeployments)
	}
	if len(images) == 0 {
		missing = append(missing, RoleImages)
	}
	if len(missing) > 0 {
		return nil, model.NewStructuralError("missing table: %s", strings.Join(missing, ", "))
	}

	ex := &Export{}
	for _, load := range []struct {
		file *zip.File
		role string
		dst  *model.Table
	}{
		{projects, RoleProjects, &ex.Projects},
		{cameras, RoleCameras, &ex.Cameras},
		{deployments, RoleDeployments, &ex.Deployments},
		{images[0], RoleImages, &ex.Images},
	} {
		t, err := readTable(load.file, load.role)
		if err != nil {
			return nil, err
		}
		*load.dst = t
	}
	return ex, nil
}

// pick keeps the first file found for a role.
func pick(cur, candidate *zip.File) *zip.File {
	if cur != nil {
		return cur
	}
	return candidate
}

func readTable(f *zip.File, role string) (model.Table, error) {
	rc, err := f.Open()
	if err != nil {
		return model.Table{}, fmt.Errorf("failed to open %s in archive: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return model.Table{}, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}

	text, err := decodeText(data)
	if err != nil {
		return model.Table{}, fmt.Errorf("failed to decode %s: %w", f.Name, err)
	}

	csvReader := csv.NewReader(strings.NewReader(text))
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if err != nil {
		return model.Table{}, model.NewStructuralError("table %s has no header row", f.Name)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		// Clean header names: trim whitespace and remove ALL quotes
		clean := strings.TrimSpace(h)
		clean = strings.ReplaceAll(clean, `"`, "")
		columns[i] = clean
	}

	table := model.Table{Name: f.Name, Role: role, Columns: columns}
	line := 0
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.Table{}, fmt.Errorf("CSV read error in %s: %w", f.Name, err)
		}
		line++
		fields := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if i < len(record) {
				fields[col] = utils.ParseValue(record[i])
			}
		}
		table.Rows = append(table.Rows, model.Row{Line: line, Fields: fields})
	}
	return table, nil
}

// decodeText tries a small ordered list of encodings and succeeds on the first
// that decodes to valid UTF-8: UTF-8 itself (BOM stripped), Windows-1252, then
// ISO 8859-1.
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}
	for _, enc := range []encoding.Encoding{charmap.Windows1252, charmap.ISO8859_1} {
		decoded, err := enc.NewDecoder().Bytes(data)
		if err == nil && utf8.Valid(decoded) {
			return string(decoded), nil
		}
	}
	return "", fmt.Errorf("no supported text encoding matched")
}
