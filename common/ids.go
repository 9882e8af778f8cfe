package common

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// SessionID identifies one invocation of the orchestrator, used to namespace
// log files, checkpoint files, and tracked snapshot shadow ids.
type SessionID uuid.UUID

func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

func (s SessionID) String() string {
	return uuid.UUID(s).String()
}

// ChunkID is a monotonic, per-run identifier assigned by the chunk planner.
// It is never reused within a run, so it is safe as a correlation id in log
// lines across retries (activeJobs is keyed by JobID instead).
type ChunkID uint64

func (c ChunkID) String() string {
	return fmt.Sprintf("chunk-%d", uint64(c))
}

// chunkIDGenerator hands out ChunkIDs starting at 1 for a single run.
// Reset() is called at orchestrator bootstrap so ids restart at 1 per run,
// matching the planner's requirement for deterministic, stable chunk ids.
type chunkIDGenerator struct {
	next atomic.Uint64
}

func (g *chunkIDGenerator) Reset() {
	g.next.Store(0)
}

func (g *chunkIDGenerator) Next() ChunkID {
	return ChunkID(g.next.Add(1))
}

var ChunkIDGenerator chunkIDGenerator

// JobID identifies one in-flight copy-engine invocation for one chunk.
type JobID uuid.UUID

func NewJobID() JobID {
	return JobID(uuid.New())
}

func (j JobID) String() string {
	return uuid.UUID(j).String()
}
