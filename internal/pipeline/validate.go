package pipeline

import (
	"fmt"
	"strings"

	"camtrap-pipeline/internal/archive"
	"camtrap-pipeline/internal/model"
	"camtrap-pipeline/pkg/utils"
)

// noResultSentinel marks records whose identification was never completed in
// the source platform. Any occurrence blocks the whole run so the caller can
// finish the identifications and re-export.
const noResultSentinel = "no cv result"

// taxonomyFields are the image-table fields checked for the sentinel.
var taxonomyFields = []string{"common_name", "genus", "species", "family", "order"}

// requiredDeploymentFields must be present on every deployment row.
var requiredDeploymentFields = []string{"deployment_id", "latitude", "longitude", "start_date"}

// CheckExport runs every blocking check over the decoded export and returns
// all offending rows at once, so the source data can be fixed in one pass.
// Nothing has been written when it fails.
func CheckExport(ex *archive.Export, norm *Normalizer) error {
	if err := checkDeploymentColumns(ex.Deployments); err != nil {
		return err
	}
	var issues []model.Issue
	issues = append(issues, checkTaxonomySentinels(ex.Images)...)
	issues = append(issues, checkDeployments(ex.Deployments, norm)...)
	if len(issues) > 0 {
		return &model.BlockingDataError{Issues: issues}
	}
	if err := checkReferences(ex.Images, ex.Deployments); err != nil {
		return err
	}
	return nil
}

// checkDeploymentColumns rejects a deployments table whose header lacks a
// required column outright; that is a malformed export, not a per-row gap.
func checkDeploymentColumns(deployments model.Table) error {
	var missing []string
	for _, field := range requiredDeploymentFields {
		if !deployments.HasColumn(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return model.NewStructuralError("deployments table is missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// checkTaxonomySentinels collects every taxonomy field holding the
// "no identification result" sentinel.
func checkTaxonomySentinels(images model.Table) []model.Issue {
	var issues []model.Issue
	for _, rec := range images.Rows {
		for _, field := range taxonomyFields {
			if utils.FoldTag(rec.String(field)) == noResultSentinel {
				issues = append(issues, model.Issue{
					Table:   images.Name,
					Line:    rec.Line,
					Field:   field,
					Value:   rec.String(field),
					Message: fmt.Sprintf("identification incomplete for %s", rec.String("filename")),
				})
			}
		}
	}
	return issues
}

// checkDeployments collects deployment rows missing a required field,
// rows whose start timestamp cannot be converted, and duplicate deployment
// identifiers. An unconvertible start would leave a required output field
// empty, so it blocks rather than warns.
func checkDeployments(deployments model.Table, norm *Normalizer) []model.Issue {
	var issues []model.Issue
	seen := map[string]int{}
	for _, rec := range deployments.Rows {
		id := rec.String("deployment_id")
		name := id
		if name == "" {
			name = fmt.Sprintf("row %d", rec.Line)
		}
		for _, field := range requiredDeploymentFields {
			if rec.Empty(field) {
				issues = append(issues, model.Issue{
					Table:   deployments.Name,
					Line:    rec.Line,
					Field:   field,
					Message: fmt.Sprintf("deployment %s is missing required field %s", name, field),
				})
			}
		}
		if start := rec.String("start_date"); start != "" {
			loc := norm.Zone(rec.String("timezone"))
			if _, err := norm.NormalizeIn(start, loc); err != nil {
				issues = append(issues, model.Issue{
					Table:   deployments.Name,
					Line:    rec.Line,
					Field:   "start_date",
					Value:   start,
					Message: fmt.Sprintf("deployment %s has an unparseable start timestamp", name),
				})
			}
		}
		if id == "" {
			continue
		}
		if prev, dup := seen[id]; dup {
			issues = append(issues, model.Issue{
				Table:   deployments.Name,
				Line:    rec.Line,
				Field:   "deployment_id",
				Value:   id,
				Message: fmt.Sprintf("duplicate deployment identifier, first seen at row %d", prev),
			})
			continue
		}
		seen[id] = rec.Line
	}
	return issues
}

// checkReferences verifies every image row points at a known deployment. A
// dangling reference means the export itself is inconsistent, which is a
// structural problem rather than a fixable data gap.
func checkReferences(images, deployments model.Table) error {
	known := map[string]bool{}
	for _, rec := range deployments.Rows {
		if id := rec.String("deployment_id"); id != "" {
			known[id] = true
		}
	}
	var dangling []string
	for _, rec := range images.Rows {
		id := rec.String("deployment_id")
		if id != "" && !known[id] {
			dangling = append(dangling, fmt.Sprintf("%s (row %d)", id, rec.Line))
		}
	}
	if len(dangling) > 0 {
		if len(dangling) > 8 {
			dangling = append(dangling[:8], fmt.Sprintf("and %d more", len(dangling)-8))
		}
		return model.NewStructuralError("images reference unknown deployments: %s", strings.Join(dangling, ", "))
	}
	return nil
}

// checkCoordinate validates a latitude or longitude range. Out-of-range
// values are replaced with the null marker downstream, never clamped to zero.
func checkCoordinate(value float64, isLatitude bool) bool {
	if isLatitude {
		return value >= -90 && value <= 90
	}
	return value >= -180 && value <= 180
}
