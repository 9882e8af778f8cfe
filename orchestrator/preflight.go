package orchestrator

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/disk"
)

// minDestinationFreeBytes is the threshold below which preflightProfile's
// destination free-space check logs a warning rather than staying silent --
// low enough to not fire on ordinary laptops, high enough to catch a
// destination volume that is genuinely close to full before a multi-hour
// profile discovers it the hard way.
const minDestinationFreeBytes = 1 << 30 // 1 GiB

// preflightProfile runs the per-profile bootstrap's preflight step: the
// source path must be reachable (fatal to this profile, not the run), and
// low destination free space is reported as a non-fatal warning.
func preflightProfile(profile Profile, state *OrchestrationState) error {
	if _, err := os.Stat(profile.SourcePath); err != nil {
		return err
	}

	usage, err := disk.Usage(profile.DestinationPath)
	if err != nil {
		// Destination doesn't exist yet, or the platform can't report usage for
		// it -- this is advisory only, so we proceed without a warning.
		return nil
	}
	if usage.Free < minDestinationFreeBytes {
		state.ErrorMessages.Enqueue(fmt.Sprintf(
			"profile %q: destination %s has only %d bytes free", profile.Name, profile.DestinationPath, usage.Free))
	}
	return nil
}
