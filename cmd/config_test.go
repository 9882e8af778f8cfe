package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashgrove/replistore/orchestrator"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRunConfig_ParsesProfilesAndOptions(t *testing.T) {
	a := assert.New(t)
	path := writeConfig(t, `{
		"profiles": [
			{
				"name": "main",
				"sourcePath": "/src",
				"destinationPath": "/dst",
				"scanMode": "flat",
				"chunkMaxBytes": 1048576,
				"useSnapshot": true,
				"excludedDirs": [".git"],
				"retryCount": 2,
				"retryWaitMillis": 500
			}
		]
	}`)

	settings, err := loadRunConfig(path)
	a.NoError(err)
	a.Len(settings.Profiles, 1)

	p := settings.Profiles[0]
	a.Equal("main", p.Name)
	a.Equal(orchestrator.EScanMode.Flat(), p.ScanMode)
	a.Equal(int64(1048576), p.ChunkMaxBytes)
	a.True(p.UseSnapshot)
	a.Equal([]string{".git"}, p.CopyEngineOptions.ExcludedDirs)
	a.Equal(2, p.CopyEngineOptions.RetryCount)
}

func TestLoadRunConfig_DefaultsScanModeToSmart(t *testing.T) {
	a := assert.New(t)
	path := writeConfig(t, `{"profiles":[{"name":"p","sourcePath":"/a","destinationPath":"/b"}]}`)

	settings, err := loadRunConfig(path)
	a.NoError(err)
	a.Equal(orchestrator.EScanMode.Smart(), settings.Profiles[0].ScanMode)
}

func TestLoadRunConfig_RejectsUnknownScanMode(t *testing.T) {
	a := assert.New(t)
	path := writeConfig(t, `{"profiles":[{"name":"p","sourcePath":"/a","destinationPath":"/b","scanMode":"bogus"}]}`)

	_, err := loadRunConfig(path)
	a.Error(err)
}

func TestLoadRunConfig_MissingFileReturnsError(t *testing.T) {
	a := assert.New(t)
	_, err := loadRunConfig(filepath.Join(t.TempDir(), "missing.json"))
	a.Error(err)
}
