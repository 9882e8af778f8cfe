package snapshot

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ashgrove/replistore/orchestrator"
)

// createResponse is the JSON shape the external snapshot helper prints to
// stdout on a successful create, analogous to the engine's own "one JSON
// object per terminal line" output convention.
type createResponse struct {
	ShadowID         string `json:"shadowId"`
	ShadowDevicePath string `json:"shadowDevicePath"`
}

// Provider shells out to an external shadow-copy helper (vssadmin-like on
// Windows, an LVM/btrfs snapshot wrapper elsewhere) so this module never
// links platform-specific snapshot APIs directly. Exact subcommand and flag
// spelling is adapter-private, mirroring the copy engine's command contract.
type Provider struct {
	command  string
	tracking *trackingStore

	preflightOnce sync.Once
	preflightErr  error
}

// NewProvider builds a Provider that invokes helperCommand as a child
// process and tracks live shadow ids in trackingFilePath.
func NewProvider(helperCommand string, trackingFilePath string) *Provider {
	return &Provider{
		command:  helperCommand,
		tracking: newTrackingStore(trackingFilePath, 10*time.Second),
	}
}

// IsSupported reports false for remote paths without invoking the helper,
// then runs the privilege/service-reachability preflight at most once per
// Provider (i.e. once per run): a failed preflight disables snapshot use
// for the remainder of the run rather than being retried per profile.
func (p *Provider) IsSupported(sourceVolume string) bool {
	if isRemotePath(sourceVolume) {
		return false
	}
	p.preflightOnce.Do(func() {
		p.preflightErr = p.runPreflight()
	})
	return p.preflightErr == nil
}

func isRemotePath(path string) bool {
	if strings.HasPrefix(path, `\\`) {
		return true
	}
	return strings.Contains(path, "://")
}

// runPreflight asks the helper to confirm it is elevated and that the OS
// snapshot service is reachable. Any failure here is non-fatal to the run --
// the caller (Run.BeginProfile) treats IsSupported()==false as "proceed
// without snapshot isolation", per the documented preflight contract.
func (p *Provider) runPreflight() error {
	cmd := exec.Command(p.command, "status")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("snapshot service preflight failed: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Create asks the helper to snapshot sourceVolume. It makes a single attempt
// -- the retry contract (§ snapshot provider retry) is the caller's
// responsibility (Run.BeginProfile wraps this call in common.WithRetry),
// so a transient failure here surfaces as a plain error for the classifier
// to inspect by message.
func (p *Provider) Create(sourceVolume string) (*orchestrator.Snapshot, error) {
	cmd := exec.Command(p.command, "create", sourceVolume)
	out, err := cmd.Output()
	if err != nil {
		return nil, exitErrorWithStderr(err, "snapshot create")
	}

	var resp createResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("snapshot create: could not parse helper output: %w", err)
	}
	if resp.ShadowID == "" {
		return nil, fmt.Errorf("snapshot create: helper returned no shadowId")
	}

	snap := &orchestrator.Snapshot{
		ShadowID:         resp.ShadowID,
		ShadowDevicePath: resp.ShadowDevicePath,
		SourceVolume:     sourceVolume,
		CreatedAt:        time.Now(),
	}

	if err := p.tracking.Append(trackedEntry{
		ShadowID:         snap.ShadowID,
		ShadowDevicePath: snap.ShadowDevicePath,
		SourceVolume:     snap.SourceVolume,
		CreatedAt:        snap.CreatedAt,
	}); err != nil {
		// The snapshot itself exists even if we failed to record it; removal
		// still works via the returned handle. Losing the tracking entry
		// only means EnumerateOrphans can't find it after a crash.
		return snap, fmt.Errorf("snapshot created (%s) but tracking record failed: %w", snap.ShadowID, err)
	}

	return snap, nil
}

// TranslatePath rewrites a path under the live source volume into the
// equivalent path under the snapshot's frozen device, so the copy engine
// reads from the point-in-time image instead of the live, moving source.
func (p *Provider) TranslatePath(snap *orchestrator.Snapshot, sourcePath string) (string, error) {
	if snap == nil {
		return sourcePath, nil
	}
	rel, err := filepath.Rel(snap.SourceVolume, sourcePath)
	if err != nil {
		return "", fmt.Errorf("translate path: %q is not under snapshot volume %q: %w", sourcePath, snap.SourceVolume, err)
	}
	return filepath.Join(snap.ShadowDevicePath, rel), nil
}

// Remove releases the shadow copy and, regardless of the helper's own
// outcome, drops the tracking entry so a Remove that the service actually
// honored doesn't masquerade as an orphan on the next run.
func (p *Provider) Remove(snap *orchestrator.Snapshot) error {
	if snap == nil {
		return nil
	}
	cmd := exec.Command(p.command, "remove", snap.ShadowID)
	_, err := cmd.Output()

	if trackErr := p.tracking.Remove(snap.ShadowID); trackErr != nil && err == nil {
		err = fmt.Errorf("snapshot removed but tracking cleanup failed: %w", trackErr)
	}
	if err != nil {
		return exitErrorWithStderr(err, fmt.Sprintf("snapshot remove %s", snap.ShadowID))
	}
	return nil
}

// EnumerateOrphans returns every shadow id still present in the tracking
// file: entries a prior run created and never got to Remove, most likely
// because the process was killed or crashed mid-profile.
func (p *Provider) EnumerateOrphans() ([]orchestrator.Snapshot, error) {
	entries, err := p.tracking.All()
	if err != nil {
		return nil, fmt.Errorf("enumerate orphan snapshots: %w", err)
	}
	snaps := make([]orchestrator.Snapshot, 0, len(entries))
	for _, e := range entries {
		snaps = append(snaps, orchestrator.Snapshot{
			ShadowID:         e.ShadowID,
			ShadowDevicePath: e.ShadowDevicePath,
			SourceVolume:     e.SourceVolume,
			CreatedAt:        e.CreatedAt,
		})
	}
	return snaps, nil
}

func exitErrorWithStderr(err error, op string) error {
	if ee, ok := err.(*exec.ExitError); ok {
		return fmt.Errorf("%s: %w: %s", op, err, strings.TrimSpace(string(ee.Stderr)))
	}
	return fmt.Errorf("%s: %w", op, err)
}
