package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDirName(t *testing.T) {
	om := NewOutputManager(t.TempDir())
	assert.Equal(t, "camtrapdp_jaguar-survey", om.RunDirName("jaguar-survey"))
}

func TestCreateRunDir(t *testing.T) {
	base := t.TempDir()
	om := NewOutputManager(base)

	runDir, err := om.CreateRunDir("camtrapdp_x", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "camtrapdp_x"), runDir)

	_, err = os.Stat(filepath.Join(runDir, "output"))
	assert.NoError(t, err)
}

func TestCreateRunDirOverwrite(t *testing.T) {
	om := NewOutputManager(t.TempDir())

	runDir, err := om.CreateRunDir("camtrapdp_x", false)
	require.NoError(t, err)
	stale := filepath.Join(runDir, "output", "stale.csv")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0644))

	_, err = om.CreateRunDir("camtrapdp_x", false)
	assert.Error(t, err)

	_, err = om.CreateRunDir("camtrapdp_x", true)
	require.NoError(t, err)
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestOutputFilePath(t *testing.T) {
	got := OutputFilePath(filepath.Join("base", "camtrapdp_x"), "media.csv")
	assert.Equal(t, filepath.Join("base", "camtrapdp_x", "output", "media.csv"), got)
}

func TestGetFileSize(t *testing.T) {
	om := NewOutputManager(t.TempDir())
	path := filepath.Join(om.BaseOutputDir, "f.bin")
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0644))

	size, err := om.GetFileSize(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	_, err = om.GetFileSize(filepath.Join(om.BaseOutputDir, "missing"))
	assert.Error(t, err)
}

func TestEnsureOutputDirExists(t *testing.T) {
	om := NewOutputManager(filepath.Join(t.TempDir(), "a", "b"))
	require.NoError(t, om.EnsureOutputDirExists())
	_, err := os.Stat(om.BaseOutputDir)
	assert.NoError(t, err)
}
