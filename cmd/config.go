package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ashgrove/replistore/orchestrator"
)

// profileConfig is the on-disk shape of one orchestrator.Profile. It exists
// separately from orchestrator.Profile because the wire format uses plain
// strings and milliseconds where the runtime type uses enums and
// time.Duration -- the same separation the teacher draws between its raw
// cobra flag structs and the enumerator types they get translated into.
type profileConfig struct {
	Name            string   `json:"name"`
	SourcePath      string   `json:"sourcePath"`
	DestinationPath string   `json:"destinationPath"`
	ScanMode        string   `json:"scanMode"` // "smart" (default) or "flat"
	ChunkMaxBytes   int64    `json:"chunkMaxBytes"`
	ChunkMaxFiles   int      `json:"chunkMaxFiles"`
	ChunkMaxDepth   int      `json:"chunkMaxDepth"`
	UseSnapshot     bool     `json:"useSnapshot"`
	ExcludedFiles   []string `json:"excludedFiles"`
	ExcludedDirs    []string `json:"excludedDirs"`
	RetryCount      int      `json:"retryCount"`
	RetryWaitMillis int64    `json:"retryWaitMillis"`
	MirrorDelete    bool     `json:"mirrorDelete"`
}

func (c profileConfig) toProfile() (orchestrator.Profile, error) {
	scanMode := orchestrator.EScanMode.Smart()
	switch c.ScanMode {
	case "", "smart":
		scanMode = orchestrator.EScanMode.Smart()
	case "flat":
		scanMode = orchestrator.EScanMode.Flat()
	default:
		return orchestrator.Profile{}, fmt.Errorf("profile %q: unrecognized scanMode %q", c.Name, c.ScanMode)
	}

	return orchestrator.Profile{
		Name:            c.Name,
		SourcePath:      c.SourcePath,
		DestinationPath: c.DestinationPath,
		ScanMode:        scanMode,
		ChunkMaxBytes:   c.ChunkMaxBytes,
		ChunkMaxFiles:   c.ChunkMaxFiles,
		ChunkMaxDepth:   c.ChunkMaxDepth,
		UseSnapshot:     c.UseSnapshot,
		CopyEngineOptions: orchestrator.CopyEngineOptions{
			ExcludedFiles: c.ExcludedFiles,
			ExcludedDirs:  c.ExcludedDirs,
			RetryCount:    c.RetryCount,
			RetryWait:     time.Duration(c.RetryWaitMillis) * time.Millisecond,
			MirrorDelete:  c.MirrorDelete,
		},
	}, nil
}

// runConfig is the on-disk shape of a whole replication run: a profile list.
// Run-level tunables come from runCmd's command-line flags, not this file.
type runConfig struct {
	Profiles []profileConfig `json:"profiles"`
}

func loadRunConfig(path string) (orchestrator.RunSettings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return orchestrator.RunSettings{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg runConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return orchestrator.RunSettings{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	profiles := make([]orchestrator.Profile, 0, len(cfg.Profiles))
	for _, pc := range cfg.Profiles {
		p, err := pc.toProfile()
		if err != nil {
			return orchestrator.RunSettings{}, err
		}
		profiles = append(profiles, p)
	}

	return orchestrator.RunSettings{Profiles: profiles}, nil
}
