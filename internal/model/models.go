package model

// ConversionSpec defines one conversion run from a camera-trap export archive
// to a Camtrap DP package.
type ConversionSpec struct {
	ArchivePath  string `json:"archivePath"`            // input ZIP export
	OutputDir    string `json:"outputDir"`              // base directory for results
	TimezoneHint string `json:"timezoneHint,omitempty"` // zone for naive timestamps, e.g. "UTC-05:00" or "America/Bogota"
	Validate     bool   `json:"validate"`               // run the conformance checker on the written package
	MakeZip      bool   `json:"makeZip"`                // compress the output directory into a ZIP
	Overwrite    bool   `json:"overwrite"`              // replace an existing destination
}

// Deployment is one output row of deployments.csv: a camera placed at one
// location for a continuous time span.
type Deployment struct {
	DeploymentID    string  `json:"deploymentID"`
	LocationName    string  `json:"locationName,omitempty"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	LatitudeValid   bool    `json:"-"` // false renders as the null marker, never zero
	LongitudeValid  bool    `json:"-"`
	DeploymentStart string  `json:"deploymentStart"` // UTC ISO 8601
	DeploymentEnd   string  `json:"deploymentEnd,omitempty"`
	CameraModel     string  `json:"cameraModel,omitempty"`
}

// MediaItem is one output row of media.csv: one captured image, independent of
// how many identifications it has.
type MediaItem struct {
	MediaID       string `json:"mediaID"`
	DeploymentID  string `json:"deploymentID"`
	CaptureMethod string `json:"captureMethod"`
	Timestamp     string `json:"timestamp"` // UTC ISO 8601
	FilePath      string `json:"filePath"`
	FileMediatype string `json:"fileMediatype"`
}

// Observation is one output row of observations.csv: a single taxonomic
// identification attached to a MediaItem.
type Observation struct {
	ObservationID   string `json:"observationID"`
	MediaID         string `json:"mediaID"`
	ScientificName  string `json:"scientificName"`
	VernacularName  string `json:"vernacularName,omitempty"`
	Count           int    `json:"count"`
	ObservationType string `json:"observationType"`
	Age             string `json:"age,omitempty"`
	Sex             string `json:"sex,omitempty"`
}

// Classification is the controlled triple a source row maps to.
type Classification struct {
	ObservationType string `json:"observationType"`
	ScientificName  string `json:"scientificName"`
	VernacularName  string `json:"vernacularName"`
}

// Package is the fully built three-table output, assembled in memory before
// anything is written.
type Package struct {
	Deployments  []Deployment  `json:"deployments"`
	Media        []MediaItem   `json:"media"`
	Observations []Observation `json:"observations"`
}
