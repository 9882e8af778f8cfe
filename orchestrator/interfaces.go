package orchestrator

// CopyEngine adapts an external, black-box copy process per chunk. Concrete
// implementations live outside this package (see copyengine) so the scheduler
// never depends on how the process is actually spawned or parsed.
type CopyEngine interface {
	// Start spawns one copy-engine invocation for chunk and returns a handle
	// the scheduler polls via JobProcessHandle.TryWait.
	Start(chunk Chunk, logPath string, threadsPerJob int, options CopyEngineOptions, dryRun bool, verboseLogging bool, rateMbps int64) (JobProcessHandle, error)
	// Classify turns a finished process's exit into a retry/severity verdict.
	Classify(result ExitResult, options CopyEngineOptions) Classification
	// Progress best-effort samples an in-flight job's log tail. A nil result
	// with a nil error means "nothing new to report yet".
	Progress(job *Job) (*JobProgress, error)
}

// SnapshotProvider adapts an external point-in-time snapshot facility.
type SnapshotProvider interface {
	IsSupported(sourceVolume string) bool
	Create(sourceVolume string) (*Snapshot, error)
	TranslatePath(snap *Snapshot, sourcePath string) (string, error)
	Remove(snap *Snapshot) error
	EnumerateOrphans() ([]Snapshot, error)
}

// CheckpointStore persists and restores run progress across restarts.
type CheckpointStore interface {
	Load(sessionID string) (*Checkpoint, error)
	Save(cp Checkpoint) error
	// Delete removes the checkpoint file; called once a run finishes with no
	// profiles left to attempt (§4.6 step 4: "no more profiles: delete the
	// checkpoint... set phase=Complete").
	Delete() error
}

// ChunkPlanner turns one profile (optionally against a snapshot's translated
// path) into a deterministic, pre-order sequence of chunks.
type ChunkPlanner interface {
	Plan(profile Profile, snap *Snapshot) ([]Chunk, error)
}

// CacheResetter is implemented by a ChunkPlanner that owns a process-wide
// directory-profiling cache needing to be cleared at the start of every run
// (§4.7 step 4: "reset circuit breaker, clear profiler cache, reset chunk-id
// counter"). StartReplicationRun type-asserts for it rather than requiring
// every ChunkPlanner to carry a no-op ResetCache.
type CacheResetter interface {
	ResetCache()
}
