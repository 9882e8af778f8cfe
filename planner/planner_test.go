package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashgrove/replistore/orchestrator"
)

type fakeLister struct {
	entries []ListEntry
}

func (f *fakeLister) List(path string) ([]ListEntry, error) { return f.entries, nil }

func TestProfiler_ProfileAggregatesAndCaches(t *testing.T) {
	a := assert.New(t)
	lister := &fakeLister{entries: []ListEntry{
		{Path: "/src/a.txt", Size: 10},
		{Path: "/src/b.txt", Size: 20},
		{Path: "/src/sub", IsDir: true},
	}}
	p := NewProfiler(lister)

	result, err := p.Profile("/src")
	a.NoError(err)
	a.Equal(int64(30), result.TotalBytes)
	a.Equal(int64(2), result.FileCount)
	a.Equal(int64(1), result.DirCount)

	// second call must be served from cache, not re-list
	lister.entries = nil
	cached, err := p.Profile("/src")
	a.NoError(err)
	a.Equal(int64(30), cached.TotalBytes)
}

func TestChunkPlanner_SmartModeEmitsOneChunkWhenWholeTreeFits(t *testing.T) {
	a := assert.New(t)
	lister := &fakeLister{entries: []ListEntry{
		{Path: "/src/a.txt", Size: 10},
		{Path: "/src/sub", IsDir: true},
		{Path: "/src/sub/b.txt", Size: 20},
	}}
	cp := NewChunkPlanner(NewProfiler(lister))

	profile := orchestrator.Profile{
		SourcePath:      "/src",
		DestinationPath: "/dst",
		ScanMode:        orchestrator.EScanMode.Smart(),
		ChunkMaxBytes:   1000,
		ChunkMaxFiles:   100,
		ChunkMaxDepth:   5,
	}

	chunks, err := cp.Plan(profile, nil)
	a.NoError(err)
	a.Len(chunks, 1)
	a.Equal(int64(30), chunks[0].EstimatedBytes)
	a.Equal("/dst", chunks[0].DestinationPath)
}

func TestChunkPlanner_SmartModeRecursesWhenOverLimit(t *testing.T) {
	a := assert.New(t)
	lister := &fakeLister{entries: []ListEntry{
		{Path: "/src/big.txt", Size: 900},
		{Path: "/src/sub", IsDir: true},
		{Path: "/src/sub/small.txt", Size: 10},
	}}
	cp := NewChunkPlanner(NewProfiler(lister))

	profile := orchestrator.Profile{
		SourcePath:      "/src",
		DestinationPath: "/dst",
		ScanMode:        orchestrator.EScanMode.Smart(),
		ChunkMaxBytes:   100,
		ChunkMaxFiles:   100,
		ChunkMaxDepth:   5,
	}

	chunks, err := cp.Plan(profile, nil)
	a.NoError(err)
	// sub/ fits (10 bytes) and gets its own chunk; root's loose big.txt stays
	// at the root after sub/ is exploded, so it gets its own loose-files chunk
	a.Len(chunks, 2)
}

func TestChunkPlanner_FlatModeChunksAtExactDepth(t *testing.T) {
	a := assert.New(t)
	lister := &fakeLister{entries: []ListEntry{
		{Path: "/src/a", IsDir: true},
		{Path: "/src/a/file.txt", Size: 1},
		{Path: "/src/b", IsDir: true},
		{Path: "/src/b/file.txt", Size: 1},
	}}
	cp := NewChunkPlanner(NewProfiler(lister))

	profile := orchestrator.Profile{
		SourcePath:      "/src",
		DestinationPath: "/dst",
		ScanMode:        orchestrator.EScanMode.Flat(),
		ChunkMaxDepth:   1,
	}

	chunks, err := cp.Plan(profile, nil)
	a.NoError(err)
	a.Len(chunks, 2)
}
