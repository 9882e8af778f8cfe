package planner

import (
	"time"

	"github.com/ashgrove/replistore/common"
)

// DirProfile is one subtree's profiling result.
type DirProfile struct {
	TotalBytes  int64
	FileCount   int64
	DirCount    int64
	Files       []ListEntry
	LastScanned time.Time
}

// Profiler wraps a Lister with the process-wide cache described in the
// Directory Profiler contract: canonical (case-insensitive) path keys, a
// default 24h TTL, and capacity-triggered eviction of the oldest 10% by
// LastScanned -- all carried by common.ProfileCache, cleared at the start of
// every run via Reset.
type Profiler struct {
	lister Lister
	cache  *common.ProfileCache
}

func NewProfiler(lister Lister) *Profiler {
	return &Profiler{
		lister: lister,
		cache:  common.NewProfileCache(common.DefaultProfileCacheCapacity, common.DefaultProfileCacheTTL),
	}
}

// Reset clears the cache; called once at the start of every run so a prior
// run's profiling results never leak into a new one.
func (p *Profiler) Reset() {
	p.cache.Clear()
}

// Profile returns (totalBytes, fileCount, dirCount, files, lastScanned) for
// path, serving from cache when a fresh-enough entry exists.
func (p *Profiler) Profile(path string) (DirProfile, error) {
	if cached, ok := p.cache.Get(path); ok {
		return DirProfile{
			TotalBytes:  cached.TotalBytes,
			FileCount:   cached.FileCount,
			DirCount:    cached.DirCount,
			LastScanned: cached.LastScanned,
		}, nil
	}

	entries, err := p.lister.List(path)
	if err != nil {
		return DirProfile{}, err
	}

	profile := DirProfile{Files: entries, LastScanned: time.Now()}
	for _, e := range entries {
		if e.IsDir {
			profile.DirCount++
			continue
		}
		profile.FileCount++
		profile.TotalBytes += e.Size
	}

	p.cache.Set(path, common.ProfileCacheEntry{
		TotalBytes:  profile.TotalBytes,
		FileCount:   profile.FileCount,
		DirCount:    profile.DirCount,
		LastScanned: profile.LastScanned,
	})

	return profile, nil
}
