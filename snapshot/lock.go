// Package snapshot adapts an external point-in-time snapshot service (a
// VSS-style shadow copy facility, reached as an opaque child process, never
// a library this module links against) into orchestrator.SnapshotProvider.
package snapshot

import (
	"fmt"
	"os"
	"time"
)

// namedLock is a cross-process mutex built on the one primitive every
// filesystem gives for free: os.Mkdir is atomic, so "does the directory
// exist" doubles as "who holds the lock". No third-party flock binding is
// in the dependency set this module draws from, so this is plain os calls
// rather than a borrowed library -- see the design notes for that call.
type namedLock struct {
	dir string
}

func newNamedLock(path string) *namedLock {
	return &namedLock{dir: path + ".lock"}
}

// acquire blocks (polling) until the lock directory can be created or
// timeout elapses, matching the tracking file's documented 10s acquire
// timeout for the VSS tracking file.
func (l *namedLock) acquire(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		err := os.Mkdir(l.dir, 0o700)
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("acquire tracking lock: %w", err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("acquire tracking lock: timed out after %s", timeout)
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func (l *namedLock) release() {
	_ = os.Remove(l.dir)
}
