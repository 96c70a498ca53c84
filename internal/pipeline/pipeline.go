// Package pipeline converts a camera-trap project export into a Camtrap DP
// package: classification against a controlled vocabulary, timezone-correct
// timestamp normalization, fan-out of identifications into observation rows,
// blocking-vs-warning validation, package assembly and an optional
// conformance check.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"camtrap-pipeline/internal/archive"
	"camtrap-pipeline/internal/conformance"
	"camtrap-pipeline/internal/export"
	"camtrap-pipeline/internal/model"
	"camtrap-pipeline/pkg/utils"
)

// Result is what a successful run hands back to the caller: where the package
// landed, the warnings accumulated along the way, and the conformance report
// when the check ran.
type Result struct {
	RunID       string                  `json:"run_id"`
	OutputDir   string                  `json:"output_dir"`
	ZipPath     string                  `json:"zip_path,omitempty"`
	Package     *model.Package          `json:"-"`
	Report      *model.ConversionReport `json:"report"`
	Conformance *conformance.Report     `json:"conformance,omitempty"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// Run executes one conversion: read archive, structural and blocking checks,
// per-row classification and timestamp normalization, table building, package
// assembly, optional conformance check. Stages run in order on the calling
// goroutine; ctx is checked at row and table boundaries so cancellation
// aborts cleanly with nothing written. On any error no output remains behind.
func Run(ctx context.Context, spec model.ConversionSpec, reporter model.Reporter) (*Result, error) {
	start := time.Now()
	runID := NewRunID()
	report := model.NewConversionReport()

	model.Log(reporter, "starting conversion run %s for %s", runID, spec.ArchivePath)
	model.Progress(reporter, 1, "Reading export archive")

	norm, err := NewNormalizer(spec.TimezoneHint)
	if err != nil {
		return nil, err
	}

	ex, err := archive.Open(spec.ArchivePath)
	if err != nil {
		return nil, err
	}

	model.Progress(reporter, 5, "Validating export integrity")
	if err := CheckExport(ex, norm); err != nil {
		return nil, err
	}

	// The destination is derived from the project name, so the overwrite
	// contract can be enforced before any row processing.
	om := utils.NewOutputManager(spec.OutputDir)
	manifest := export.BuildManifest(ex.Projects, spec.TimezoneHint, start)
	runName := om.RunDirName(manifest.Name)
	if err := export.CheckDestination(spec.OutputDir, runName, spec.Overwrite); err != nil {
		return nil, err
	}

	model.Progress(reporter, 20, "Building output tables")
	pkg, err := BuildPackage(ctx, ex, norm, report)
	if err != nil {
		return nil, err
	}
	model.Log(reporter, "built %d deployments, %d media, %d observations (%d warnings, %d rows dropped)",
		len(pkg.Deployments), len(pkg.Media), len(pkg.Observations), report.WarningCount(), report.Dropped)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model.Progress(reporter, 80, "Writing package")
	runDir, err := export.PrepareRunDir(spec.OutputDir, runName, spec.Overwrite)
	if err != nil {
		return nil, err
	}
	if err := export.WritePackage(runDir, pkg, manifest); err != nil {
		return nil, err
	}
	model.Log(reporter, "package written to %s", runDir)

	result := &Result{
		RunID:     runID,
		OutputDir: runDir,
		Package:   pkg,
		Report:    report,
	}

	if spec.Validate {
		model.Progress(reporter, 90, "Checking package conformance")
		confReport, err := conformance.New().Check(exportOutputDir(runDir))
		if err != nil {
			// The package is already written and intact; a checker failure
			// is reported, not fatal.
			model.Log(reporter, "conformance check skipped: %v", err)
		} else {
			result.Conformance = confReport
			if confReport.Valid {
				model.Log(reporter, "package conforms to its table schemas")
			} else {
				model.Log(reporter, "conformance check found %d violation(s)", len(confReport.Violations))
			}
		}
	}

	if spec.MakeZip {
		model.Progress(reporter, 95, "Creating result archive")
		zipPath, err := export.MakeZip(runDir)
		if err != nil {
			return nil, err
		}
		result.ZipPath = zipPath
		if size, err := om.GetFileSize(zipPath); err == nil {
			model.Log(reporter, "result archive: %s (%d bytes)", zipPath, size)
		} else {
			model.Log(reporter, "result archive: %s", zipPath)
		}
	}

	report.FinishedAt = time.Now().UTC()
	model.Progress(reporter, 100, "Conversion complete")
	model.Log(reporter, "run %s finished in %v", runID, time.Since(start).Round(time.Millisecond))
	return result, nil
}

func exportOutputDir(runDir string) string {
	return filepath.Join(runDir, "output")
}
