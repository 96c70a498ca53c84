package export

import (
	"time"

	"camtrap-pipeline/internal/model"
	"camtrap-pipeline/pkg/utils"
)

// License is one license entry of the manifest, scoped to data or media.
type License struct {
	Name  string `json:"name"`
	Scope string `json:"scope"`
}

// Contributor describes a person or organization behind the package.
type Contributor struct {
	Title        string `json:"title"`
	Email        string `json:"email,omitempty"`
	Organization string `json:"organization,omitempty"`
	Role         string `json:"role,omitempty"`
}

// Resource points a manifest consumer at one table and its schema reference.
type Resource struct {
	Name    string `json:"name"`
	Profile string `json:"profile"`
	Path    string `json:"path"`
	Schema  string `json:"schema"`
}

// DataPackage is the machine-readable manifest written next to the tables.
type DataPackage struct {
	Profile       string            `json:"profile"`
	Name          string            `json:"name"`
	Title         string            `json:"title"`
	ID            string            `json:"id,omitempty"`
	Description   string            `json:"description,omitempty"`
	Created       string            `json:"created"`
	Contributors  []Contributor     `json:"contributors"`
	Licenses      []License         `json:"licenses"`
	CaptureMethod []string          `json:"captureMethod,omitempty"`
	Resources     []Resource        `json:"resources"`
	Extras        map[string]string `json:"extras,omitempty"`
}

// licenseAliases maps the license spellings seen in exports onto SPDX ids.
var licenseAliases = map[string]string{
	"CC-BY":         "CC-BY-4.0",
	"CC-BY-NC":      "CC-BY-NC-4.0",
	"CC-BY-SA":      "CC-BY-SA-4.0",
	"CC-BY-NC-SA":   "CC-BY-NC-SA-4.0",
	"CC0":           "CC0-1.0",
	"Public Domain": "CC0-1.0",
}

// NormalizeLicense maps a raw license value to an SPDX id, defaulting to
// CC-BY-4.0 when the export carries none.
func NormalizeLicense(raw string) string {
	if raw == "" {
		return "CC-BY-4.0"
	}
	if spdx, ok := licenseAliases[raw]; ok {
		return spdx
	}
	return raw
}

// BuildManifest derives the manifest from the project metadata table. Created
// is passed in by the caller so the pipeline stays deterministic under test.
func BuildManifest(projects model.Table, timezoneHint string, created time.Time) *DataPackage {
	var title, id, description string
	var admin, adminEmail, org string
	var dataLicense, mediaLicense string
	var sensorMethod, sensorLayout string
	if rec, ok := projects.First(); ok {
		title = rec.String("project_name")
		id = rec.String("project_id")
		description = rec.String("project_objectives")
		admin = rec.String("project_admin")
		adminEmail = rec.String("project_admin_email")
		org = rec.String("project_admin_organization")
		dataLicense = rec.String("metadata_license")
		mediaLicense = rec.String("image_license")
		sensorMethod = rec.String("project_sensor_method")
		sensorLayout = rec.String("project_sensor_layout")
	}
	if title == "" {
		title = "Camera Trap Project"
	}

	captureMethods := []string{}
	if sensorMethod != "" {
		captureMethods = append(captureMethods, sensorMethod)
	}
	if sensorLayout != "" && sensorLayout != sensorMethod {
		captureMethods = append(captureMethods, sensorLayout)
	}
	if len(captureMethods) == 0 {
		captureMethods = []string{"activityDetection"}
	}

	contributors := []Contributor{}
	if admin != "" {
		contributors = append(contributors, Contributor{
			Title:        utils.CleanText(admin),
			Email:        adminEmail,
			Organization: utils.CleanText(org),
			Role:         "contact",
		})
	}

	return &DataPackage{
		Profile:      "tabular-data-package",
		Name:         utils.Slugify(title),
		Title:        title,
		ID:           id,
		Description:  description,
		Created:      created.UTC().Format("2006-01-02T15:04:05") + "Z",
		Contributors: contributors,
		Licenses: []License{
			{Name: NormalizeLicense(dataLicense), Scope: "data"},
			{Name: NormalizeLicense(mediaLicense), Scope: "media"},
		},
		CaptureMethod: captureMethods,
		Resources: []Resource{
			{Name: "deployments", Profile: "tabular-data-resource", Path: DeploymentsFile, Schema: "schemas/deployments-table-schema.json"},
			{Name: "media", Profile: "tabular-data-resource", Path: MediaFile, Schema: "schemas/media-table-schema.json"},
			{Name: "observations", Profile: "tabular-data-resource", Path: ObservationsFile, Schema: "schemas/observations-table-schema.json"},
		},
		Extras: map[string]string{"timezone_hint": timezoneHint},
	}
}
