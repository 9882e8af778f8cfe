package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const healthFileName = "health.json"

// HealthRecord is the periodic probe file contract (§6.4): last-update
// timestamp, phase, completedCount, totalChunks, and the current profile
// name, so an external monitor can check run health without touching
// OrchestrationState directly.
type HealthRecord struct {
	LastUpdate     time.Time `json:"lastUpdate"`
	Phase          string    `json:"phase"`
	CompletedCount int64     `json:"completedCount"`
	TotalChunks    int64     `json:"totalChunks"`
	CurrentProfile string    `json:"currentProfile"`
}

func healthFilePath(logDir string) string { return filepath.Join(logDir, healthFileName) }

// writeHealthFile overwrites the health file via a temp-write-then-rename so
// a reader never observes a half-written probe file, the same discipline the
// checkpoint store uses for its own file.
func writeHealthFile(logDir string, rec HealthRecord) error {
	if logDir == "" {
		return nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	path := healthFilePath(logDir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// removeHealthFile deletes the probe file; called once phase reaches
// Complete (§6.4: "removed on Complete"). Best-effort: a missing file is not
// an error.
func removeHealthFile(logDir string) {
	if logDir == "" {
		return
	}
	_ = os.Remove(healthFilePath(logDir))
}

// currentHealthRecord snapshots the fields §6.4 names from live state.
func (sch *Scheduler) currentHealthRecord() HealthRecord {
	name := ""
	if p := sch.State.CurrentProfile(); p != nil {
		name = p.Name
	}
	totalChunks, _ := sch.State.Totals()
	return HealthRecord{
		LastUpdate:     time.Now(),
		Phase:          sch.State.Phase().String(),
		CompletedCount: sch.State.CompletedCount.Load(),
		TotalChunks:    totalChunks,
		CurrentProfile: name,
	}
}

// maybeWriteHealth writes the probe file at most once per
// Settings.HealthWriteInterval (§4.6 step 5: "write periodic health file
// (throttled)"), or unconditionally when force is true -- terminal phase
// transitions (§6.4: "forced-written on terminal phase transitions") always
// force.
func (sch *Scheduler) maybeWriteHealth(force bool) {
	if !force && time.Since(sch.lastHealthWriteAt) < sch.Settings.HealthWriteInterval {
		return
	}
	if err := writeHealthFile(sch.LogDir, sch.currentHealthRecord()); err != nil {
		sch.State.ErrorMessages.Enqueue(fmt.Sprintf("health file write failed: %v", err))
		return
	}
	sch.lastHealthWriteAt = time.Now()
}
