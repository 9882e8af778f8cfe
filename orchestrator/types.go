package orchestrator

import (
	"time"

	"github.com/ashgrove/replistore/common"
)

// CopyEngineOptions are the per-profile switches passed through to the copy
// engine adapter at Start -- never interpreted by the scheduler itself.
type CopyEngineOptions struct {
	ExcludedFiles     []string
	ExcludedDirs      []string
	RetryCount        int
	RetryWait         time.Duration
	MismatchSeverity  *ExitSeverity // nil means "use the engine's own classification"
	MirrorDelete      bool
}

// Profile is a (source, destination, options) pairing executed end-to-end
// before the next profile begins.
type Profile struct {
	Name               string // stable, unique within a run
	SourcePath         string
	DestinationPath    string
	ScanMode           ScanMode
	ChunkMaxBytes      int64
	ChunkMaxFiles      int
	ChunkMaxDepth      int
	UseSnapshot        bool
	CopyEngineOptions  CopyEngineOptions
	ScheduleDescriptor any // opaque to the core; carried through for an external scheduler integration
}

// Chunk is a bounded unit of work: one directory subtree planned for a single
// copy-engine invocation.
type Chunk struct {
	ChunkID          common.ChunkID
	SourcePath       string
	DestinationPath  string
	EstimatedBytes   int64
	EstimatedFiles   int64
	Depth            int
	Status           ChunkStatus
	RetryCount       int
	RetryAfter       *time.Time
	LastExitCode     int
	LastErrorMessage string
}

// JobProgress is a best-effort in-flight sample parsed from a running job's log tail.
type JobProgress struct {
	BytesCopied int64
	FilesCopied int64
	SpeedBps    int64
}

// Job is one in-flight copy-engine invocation for one chunk.
type Job struct {
	JobID     common.JobID
	Chunk     Chunk
	Process   JobProcessHandle
	LogPath   string
	StartTime time.Time
	Progress  *JobProgress
}

// JobProcessHandle abstracts the part of *os.Process the scheduler needs, so
// tests can fake process exit without actually spawning anything.
type JobProcessHandle interface {
	// TryWait reports whether the process has exited and, if so, its ExitResult.
	TryWait() (exited bool, result ExitResult)
	// Kill terminates the process, then waits up to timeout for its exit to be observed.
	Kill(timeout time.Duration) error
}

// ExitResult is what Complete(job) needs to classify an exited job.
type ExitResult struct {
	ExitCode      int
	FilesCopied   int64
	BytesCopied   int64
	ErrorMessages []string
}

// Classification is the copy engine adapter's verdict on one job's exit.
type Classification struct {
	Severity    ExitSeverity
	ShouldRetry bool
	Message     string
}

// Snapshot is a read-only, point-in-time image of a source volume, owned by
// exactly one profile run at a time.
type Snapshot struct {
	ShadowID         string
	ShadowDevicePath string
	SourceVolume     string
	CreatedAt        time.Time
}

// Checkpoint is the persistent record of completed chunks enabling resume.
type Checkpoint struct {
	SchemaVersion        string          `json:"schemaVersion"`
	SessionID            string          `json:"sessionId"`
	SavedAt              time.Time       `json:"savedAt"`
	ProfileIndex         int             `json:"profileIndex"`
	CurrentProfileName   string          `json:"currentProfileName"`
	CompletedSourcePaths map[string]bool `json:"completedSourcePaths"` // case-insensitive keys
	CompletedCount       int64           `json:"completedCount"`
	FailedCount          int64           `json:"failedCount"`
	BytesComplete        int64           `json:"bytesComplete"`
	StartTime            time.Time       `json:"startTime"`
}

const CheckpointSchemaVersion = "1.0"

// ProfileResult is the outcome of one profile's complete run, appended to
// OrchestrationState.profileResults when the profile finalizes.
type ProfileResult struct {
	ProfileName    string
	Status         ProfileResultStatus
	ChunksComplete int64
	ChunksFailed   int64
	ChunksSkipped  int64
	BytesComplete  int64
	Errors         []string // "chunk <id>: <sourcePath>"
	StartTime      time.Time
	EndTime        time.Time
}

// RunSettings configure one StartReplicationRun invocation.
type RunSettings struct {
	Profiles                []Profile
	MaxConcurrentJobs       int // in [1, 128]
	AggregateBandwidthMbps  int64 // 0 = unlimited
	DryRun                  bool
	VerboseLogging          bool
	IgnoreCheckpoint        bool
	SkipInitialization      bool // attach to RunDependencies.PresetState instead of resetting fresh state
	MaxChunkRetries         int
	CheckpointSaveFrequency int
	CircuitBreakerThreshold int
	ProcessStopTimeout      time.Duration
	HealthWriteInterval     time.Duration
}

// WithDefaults fills zero-valued tunables with the documented defaults.
func (s RunSettings) WithDefaults() RunSettings {
	if s.MaxConcurrentJobs <= 0 {
		s.MaxConcurrentJobs = 1
	}
	if s.MaxConcurrentJobs > 128 {
		s.MaxConcurrentJobs = 128
	}
	if s.MaxChunkRetries <= 0 {
		s.MaxChunkRetries = common.DefaultMaxChunkRetries
	}
	if s.CheckpointSaveFrequency <= 0 {
		s.CheckpointSaveFrequency = common.DefaultCheckpointSaveFrequency
	}
	if s.CircuitBreakerThreshold <= 0 {
		s.CircuitBreakerThreshold = common.DefaultCircuitBreakerThreshold
	}
	if s.ProcessStopTimeout <= 0 {
		s.ProcessStopTimeout = common.DefaultProcessStopTimeoutMillis * time.Millisecond
	}
	if s.HealthWriteInterval <= 0 {
		s.HealthWriteInterval = common.DefaultHealthWriteIntervalSecs * time.Second
	}
	return s
}

// OrchestrationStatus is the read-only snapshot GetOrchestrationStatus returns to observers.
type OrchestrationStatus struct {
	Phase           RunPhase
	CurrentProfile  string
	ProfileProgress float64
	OverallProgress float64
	BytesComplete   int64
	Elapsed         time.Duration
	ETA             time.Duration
	ChunksComplete  int64
	ChunksTotal     int64
	ChunksFailed    int64
}
