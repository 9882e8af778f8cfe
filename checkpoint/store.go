// Package checkpoint persists and restores replication progress so a run can
// resume after a crash or an intentional stop, per the checkpoint file
// contract: a temp-write, backup, rename discipline that never truncates the
// live checkpoint in place.
package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ashgrove/replistore/common"
	"github.com/ashgrove/replistore/orchestrator"
)

const (
	fileName       = "checkpoint"
	tempSuffix     = ".tmp"
	backupSuffix   = ".bak"
	filePermission = 0o600
)

// Store is a filesystem-backed orchestrator.CheckpointStore living adjacent
// to the operational log directory (falling back to the OS temp directory),
// per the checkpoint file's documented location.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Store{dir: dir}
}

func (s *Store) path() string       { return filepath.Join(s.dir, fileName) }
func (s *Store) tempPath() string   { return filepath.Join(s.dir, fileName+tempSuffix) }
func (s *Store) backupPath() string { return filepath.Join(s.dir, fileName+backupSuffix) }

// Load reads the checkpoint file, if any. sessionID is accepted for interface
// symmetry with a future multi-run checkpoint directory layout; the current
// single-file-per-directory scheme doesn't key on it.
func (s *Store) Load(sessionID string) (*orchestrator.Checkpoint, error) {
	raw, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, common.EReplicationError.CheckpointCorrupt().WithCause(err)
	}

	var cp orchestrator.Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, common.EReplicationError.CheckpointCorrupt().WithCause(err)
	}

	if cp.SchemaVersion != orchestrator.CheckpointSchemaVersion {
		return nil, common.EReplicationError.CheckpointSchemaMismatch().WithInfo(cp.SchemaVersion)
	}

	return &cp, nil
}

// Save writes cp to disk via the documented discipline: write checkpoint.tmp,
// move any existing checkpoint to checkpoint.bak, rename checkpoint.tmp to
// checkpoint, then delete checkpoint.bak once the rename has landed. A crash
// at any point leaves either the prior checkpoint, its backup, or the new one
// intact -- never a half-written file masquerading as the live checkpoint.
func (s *Store) Save(cp orchestrator.Checkpoint) error {
	raw, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return common.EReplicationError.CheckpointCorrupt().WithCause(err)
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return common.EReplicationError.FatalInfrastructureFailure().WithCause(err)
	}

	if err := os.WriteFile(s.tempPath(), raw, filePermission); err != nil {
		return common.EReplicationError.FatalInfrastructureFailure().WithCause(err)
	}

	if _, err := os.Stat(s.path()); err == nil {
		_ = os.Remove(s.backupPath())
		if err := os.Rename(s.path(), s.backupPath()); err != nil {
			return common.EReplicationError.FatalInfrastructureFailure().WithCause(err)
		}
	}

	if err := os.Rename(s.tempPath(), s.path()); err != nil {
		return common.EReplicationError.FatalInfrastructureFailure().WithCause(err)
	}

	_ = os.Remove(s.backupPath())
	return nil
}

// Delete removes the checkpoint file; called when a run completes with no
// more profiles left, per the run-level bootstrap's terminal cleanup.
func (s *Store) Delete() error {
	err := os.Remove(s.path())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
