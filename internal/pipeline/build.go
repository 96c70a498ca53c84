package pipeline

import (
	"context"
	"fmt"
	"strings"

	"camtrap-pipeline/internal/archive"
	"camtrap-pipeline/internal/model"
	"camtrap-pipeline/pkg/utils"
)

// BuildPackage assembles the three output tables from a checked export. Image
// rows are grouped by image identifier: one MediaItem per distinct image, one
// Observation per identification, so a photo with N identifications yields N
// observation rows against a single media row. Everything is built in memory;
// nothing touches the filesystem here.
func BuildPackage(ctx context.Context, ex *archive.Export, norm *Normalizer, report *model.ConversionReport) (*model.Package, error) {
	deployments, zones, err := buildDeployments(ctx, ex, norm, report)
	if err != nil {
		return nil, err
	}

	captureMethod := captureMethodFromProjects(ex.Projects)

	media, observations, err := buildMediaAndObservations(ctx, ex.Images, zones, captureMethod, norm, report)
	if err != nil {
		return nil, err
	}

	return &model.Package{
		Deployments:  deployments,
		Media:        media,
		Observations: observations,
	}, nil
}

// buildDeployments carries deployment rows through with timestamp
// normalization and coordinate range checks. It also returns the
// per-deployment timezone override map used for media timestamps.
func buildDeployments(ctx context.Context, ex *archive.Export, norm *Normalizer, report *model.ConversionReport) ([]model.Deployment, map[string]string, error) {
	cameraModels := cameraModelIndex(ex.Cameras)

	var out []model.Deployment
	zones := make(map[string]string, len(ex.Deployments.Rows))
	for _, rec := range ex.Deployments.Rows {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		dep := model.Deployment{
			DeploymentID: rec.String("deployment_id"),
			LocationName: rec.String("placename"),
		}
		zone := rec.String("timezone")
		zones[dep.DeploymentID] = zone
		loc := norm.Zone(zone)

		dep.Latitude, dep.LatitudeValid = coordinate(rec, "latitude", true, ex.Deployments.Name, report)
		dep.Longitude, dep.LongitudeValid = coordinate(rec, "longitude", false, ex.Deployments.Name, report)

		start, err := norm.NormalizeIn(rec.String("start_date"), loc)
		if err != nil {
			report.Warn(ex.Deployments.Name, rec.Line, "start_date", rec.String("start_date"), "unparseable start timestamp, left empty")
		}
		dep.DeploymentStart = start

		if !rec.Empty("end_date") {
			end, err := norm.NormalizeIn(rec.String("end_date"), loc)
			if err != nil {
				report.Warn(ex.Deployments.Name, rec.Line, "end_date", rec.String("end_date"), "unparseable end timestamp, left empty")
			}
			dep.DeploymentEnd = end
		}

		dep.CameraModel = cameraModels[rec.String("camera_id")]
		if dep.CameraModel == "" {
			report.Warn(ex.Deployments.Name, rec.Line, "camera_id", rec.String("camera_id"), "no camera make/model for deployment")
		}

		out = append(out, dep)
	}
	return out, zones, nil
}

// coordinate reads a latitude or longitude, replacing unparseable or
// out-of-range values with the null marker rather than zero.
func coordinate(rec model.Row, field string, isLatitude bool, table string, report *model.ConversionReport) (float64, bool) {
	v, ok := rec.Float(field)
	if !ok {
		report.Warn(table, rec.Line, field, rec.String(field), "coordinate is not numeric, set to null")
		return 0, false
	}
	if !checkCoordinate(v, isLatitude) {
		report.Warn(table, rec.Line, field, rec.String(field), "coordinate out of range, set to null")
		return 0, false
	}
	return v, true
}

// cameraModelIndex joins the cameras table into a camera_id -> "make-model"
// lookup.
func cameraModelIndex(cameras model.Table) map[string]string {
	idx := make(map[string]string, len(cameras.Rows))
	for _, rec := range cameras.Rows {
		id := rec.String("camera_id")
		if id == "" {
			continue
		}
		maker := rec.String("make")
		if maker == "" {
			maker = rec.String("manufacturer")
		}
		parts := []string{}
		if maker != "" {
			parts = append(parts, maker)
		}
		if m := rec.String("model"); m != "" {
			parts = append(parts, m)
		}
		idx[id] = strings.Join(parts, "-")
	}
	return idx
}

// captureMethodFromProjects maps the project's free-text sensor method onto
// the controlled captureMethod vocabulary.
func captureMethodFromProjects(projects model.Table) string {
	rec, ok := projects.First()
	if !ok {
		return "activityDetection"
	}
	return captureMethodFromText(rec.String("project_sensor_method"))
}

func captureMethodFromText(txt string) string {
	s := strings.ToLower(txt)
	if strings.Contains(s, "manual") || strings.Contains(s, "bait") || strings.Contains(s, "lure") {
		return "manual"
	}
	if strings.Contains(s, "time") && strings.Contains(s, "lapse") {
		return "timeLapse"
	}
	return "activityDetection"
}

// buildMediaAndObservations performs the fan-out: grouped by image id, first
// row of a group creates the MediaItem (first-seen deployment, timestamp and
// path win; later disagreements are warnings), every row creates one
// Observation.
func buildMediaAndObservations(ctx context.Context, images model.Table, zones map[string]string, captureMethod string, norm *Normalizer, report *model.ConversionReport) ([]model.MediaItem, []model.Observation, error) {
	var order []string
	mediaByID := make(map[string]*model.MediaItem)
	firstLine := make(map[string]int)
	obsSeq := make(map[string]int)
	var observations []model.Observation

	for _, rec := range images.Rows {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		imageID := rec.String("image_id")
		if imageID == "" {
			imageID = rec.String("filename")
		}
		if imageID == "" {
			report.Drop(images.Name, rec.Line, "image_id", "", "record has no image identifier, dropped")
			continue
		}

		loc := norm.Zone(zones[rec.String("deployment_id")])
		timestamp, err := norm.NormalizeIn(rec.String("timestamp"), loc)
		if err != nil {
			report.Drop(images.Name, rec.Line, "timestamp", rec.String("timestamp"), "unparseable timestamp, record dropped")
			continue
		}

		filePath := rec.String("location")
		fileName := rec.String("filename")
		mediaSource := fileName
		if mediaSource == "" {
			mediaSource = filePath
		}

		item, seen := mediaByID[imageID]
		if !seen {
			item = &model.MediaItem{
				MediaID:       imageID,
				DeploymentID:  rec.String("deployment_id"),
				CaptureMethod: captureMethod,
				Timestamp:     timestamp,
				FilePath:      filePath,
				FileMediatype: utils.MediaType(mediaSource),
			}
			mediaByID[imageID] = item
			firstLine[imageID] = rec.Line
			order = append(order, imageID)
		} else {
			// First-seen values win; disagreements within a group are
			// warnings, not errors.
			reportConflict(report, images.Name, rec.Line, firstLine[imageID], "deployment_id", item.DeploymentID, rec.String("deployment_id"))
			reportConflict(report, images.Name, rec.Line, firstLine[imageID], "timestamp", item.Timestamp, timestamp)
			reportConflict(report, images.Name, rec.Line, firstLine[imageID], "location", item.FilePath, filePath)
		}

		obsSeq[imageID]++
		observations = append(observations, buildObservation(rec, imageID, obsSeq[imageID], images.Name, report))
	}

	media := make([]model.MediaItem, 0, len(order))
	for _, id := range order {
		media = append(media, *mediaByID[id])
	}
	return media, observations, nil
}

func reportConflict(report *model.ConversionReport, table string, line, firstLine int, field, kept, got string) {
	if kept == got {
		return
	}
	report.Warn(table, line, field, got,
		fmt.Sprintf("conflicts with value %q from row %d for the same image, first-seen value kept", kept, firstLine))
}

// buildObservation creates one identification row for a media item.
func buildObservation(rec model.Row, mediaID string, seq int, table string, report *model.ConversionReport) model.Observation {
	id := "obs_" + mediaID
	if seq > 1 {
		id = fmt.Sprintf("obs_%s_%02d", mediaID, seq)
	}

	classification, matched := Classify(rec)
	if !matched {
		report.Warn(table, rec.Line, "common_name", rec.String("common_name"), "no classification rule matched, treated as unclassified")
	}

	count, ok := rec.Int("number_of_objects")
	if !ok || count < 1 {
		count = 1
	}

	obs := model.Observation{
		ObservationID:   id,
		MediaID:         mediaID,
		ScientificName:  classification.ScientificName,
		VernacularName:  classification.VernacularName,
		Count:           count,
		ObservationType: classification.ObservationType,
		Age:             rec.String("age"),
		Sex:             rec.String("sex"),
	}
	if obs.ObservationType == "animal" {
		if obs.Age == "" {
			report.Warn(table, rec.Line, "age", "", "optional field empty")
		}
		if obs.Sex == "" {
			report.Warn(table, rec.Line, "sex", "", "optional field empty")
		}
	}
	return obs
}
