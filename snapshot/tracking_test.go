package snapshot

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackingStore_AppendThenAllRoundTrips(t *testing.T) {
	a := assert.New(t)
	store := newTrackingStore(filepath.Join(t.TempDir(), "tracking.json"), time.Second)

	a.NoError(store.Append(trackedEntry{ShadowID: "s1", SourceVolume: "/src"}))
	a.NoError(store.Append(trackedEntry{ShadowID: "s2", SourceVolume: "/other"}))

	entries, err := store.All()
	a.NoError(err)
	a.Len(entries, 2)
}

func TestTrackingStore_RemoveDropsEntry(t *testing.T) {
	a := assert.New(t)
	store := newTrackingStore(filepath.Join(t.TempDir(), "tracking.json"), time.Second)

	a.NoError(store.Append(trackedEntry{ShadowID: "s1"}))
	a.NoError(store.Append(trackedEntry{ShadowID: "s2"}))
	a.NoError(store.Remove("s1"))

	entries, err := store.All()
	a.NoError(err)
	a.Len(entries, 1)
	a.Equal("s2", entries[0].ShadowID)
}

func TestTrackingStore_AllOnMissingFileReturnsEmpty(t *testing.T) {
	a := assert.New(t)
	store := newTrackingStore(filepath.Join(t.TempDir(), "tracking.json"), time.Second)

	entries, err := store.All()
	a.NoError(err)
	a.Empty(entries)
}
