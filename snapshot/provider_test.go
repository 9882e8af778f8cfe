package snapshot

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashgrove/replistore/orchestrator"
)

// writeFakeHelper writes a tiny shell script standing in for the external
// snapshot service, in the spirit of the e2e runner's practice of pointing
// the adapter at a real invocable executable rather than mocking exec.Command
// itself.
func writeFakeHelper(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake helper script is a POSIX shell script")
	}
	path := filepath.Join(t.TempDir(), "fake-snapshot-helper.sh")
	script := `#!/bin/sh
case "$1" in
  status) exit 0 ;;
  create) echo "{\"shadowId\":\"shadow-1\",\"shadowDevicePath\":\"/snap/shadow-1\"}" ;;
  remove) exit 0 ;;
  *) exit 1 ;;
esac
`
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake helper: %v", err)
	}
	return path
}

func TestIsSupported_RemotePathsAlwaysFalse(t *testing.T) {
	a := assert.New(t)
	p := NewProvider("does-not-matter", filepath.Join(t.TempDir(), "tracking.json"))

	a.False(p.IsSupported(`\\server\share`))
	a.False(p.IsSupported("s3://bucket/key"))
}

func TestIsSupported_LocalPathRunsPreflightOnce(t *testing.T) {
	a := assert.New(t)
	helper := writeFakeHelper(t)
	p := NewProvider(helper, filepath.Join(t.TempDir(), "tracking.json"))

	a.True(p.IsSupported("/local/volume"))
	a.True(p.IsSupported("/local/volume")) // second call reuses the cached preflight result
}

func TestCreate_ParsesResponseAndTracksShadowID(t *testing.T) {
	a := assert.New(t)
	helper := writeFakeHelper(t)
	trackingPath := filepath.Join(t.TempDir(), "tracking.json")
	p := NewProvider(helper, trackingPath)

	snap, err := p.Create("/local/volume")
	a.NoError(err)
	a.Equal("shadow-1", snap.ShadowID)
	a.Equal("/snap/shadow-1", snap.ShadowDevicePath)

	orphans, err := p.EnumerateOrphans()
	a.NoError(err)
	a.Len(orphans, 1)
	a.Equal("shadow-1", orphans[0].ShadowID)
}

func TestRemove_ClearsTrackingEntry(t *testing.T) {
	a := assert.New(t)
	helper := writeFakeHelper(t)
	p := NewProvider(helper, filepath.Join(t.TempDir(), "tracking.json"))

	snap, err := p.Create("/local/volume")
	a.NoError(err)

	a.NoError(p.Remove(snap))

	orphans, err := p.EnumerateOrphans()
	a.NoError(err)
	a.Empty(orphans)
}

func TestTranslatePath_RebasesUnderShadowDevice(t *testing.T) {
	a := assert.New(t)
	p := NewProvider("unused", filepath.Join(t.TempDir(), "tracking.json"))

	snap := &orchestrator.Snapshot{SourceVolume: "/data", ShadowDevicePath: "/snap/shadow-1"}
	translated, err := p.TranslatePath(snap, "/data/projects/a")
	a.NoError(err)
	a.Equal(filepath.Join("/snap/shadow-1", "projects/a"), translated)
}

func TestTranslatePath_NilSnapshotReturnsOriginalPath(t *testing.T) {
	a := assert.New(t)
	p := NewProvider("unused", filepath.Join(t.TempDir(), "tracking.json"))

	translated, err := p.TranslatePath(nil, "/data/projects/a")
	a.NoError(err)
	a.Equal("/data/projects/a", translated)
}

func TestEnumerateOrphans_SurvivesAcrossProviderInstances(t *testing.T) {
	a := assert.New(t)
	helper := writeFakeHelper(t)
	trackingPath := filepath.Join(t.TempDir(), "tracking.json")

	first := NewProvider(helper, trackingPath)
	_, err := first.Create("/local/volume")
	a.NoError(err)

	// A fresh Provider (simulating a restart after a crash) sees the same
	// tracking file and reports the orphaned shadow id.
	second := NewProvider(helper, trackingPath)
	orphans, err := second.EnumerateOrphans()
	a.NoError(err)
	a.Len(orphans, 1)
	a.Equal("shadow-1", orphans[0].ShadowID)
}
