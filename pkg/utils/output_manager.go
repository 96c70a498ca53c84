package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// OutputManager handles output directory organization for conversion runs.
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager rooted at baseOutputDir.
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// RunDirName builds the destination directory name for one run, derived from
// the package slug so repeated runs on the same project land on the same
// destination and the overwrite flag stays meaningful.
func (om *OutputManager) RunDirName(slug string) string {
	return "camtrapdp_" + slug
}

// RunDir returns the full path of a run directory without creating it.
func (om *OutputManager) RunDir(name string) string {
	return filepath.Join(om.BaseOutputDir, name)
}

// CreateRunDir creates the run directory and its output/ subdirectory,
// replacing existing contents when overwrite is set. When the destination
// exists and overwrite is false it fails without touching anything.
func (om *OutputManager) CreateRunDir(name string, overwrite bool) (string, error) {
	runDir := om.RunDir(name)

	if _, err := os.Stat(runDir); err == nil {
		if !overwrite {
			return "", fmt.Errorf("%s: destination exists", runDir)
		}
		if err := os.RemoveAll(runDir); err != nil {
			return "", fmt.Errorf("failed to clear run directory: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat run directory: %w", err)
	}

	outputDir := filepath.Join(runDir, "output")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run output directory: %w", err)
	}
	return runDir, nil
}

// OutputFilePath joins a file name into a run's output/ subdirectory. The
// name is cleaned so it cannot escape the run directory.
func OutputFilePath(runDir, fileName string) string {
	return filepath.Join(runDir, "output", filepath.Base(fileName))
}

// GetFileSize returns the size of a file in bytes.
func (om *OutputManager) GetFileSize(filePath string) (int64, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	return fileInfo.Size(), nil
}

// EnsureOutputDirExists ensures the base output directory exists.
func (om *OutputManager) EnsureOutputDirExists() error {
	return os.MkdirAll(om.BaseOutputDir, 0755)
}
