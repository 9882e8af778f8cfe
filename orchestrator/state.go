package orchestrator

import (
	"sync"
	"time"

	"github.com/ashgrove/replistore/common"
)

// OrchestrationState is the single source of truth the scheduler writes and
// observers (UI thread, health writer) read concurrently. Scalar fields that
// travel together are behind one mutex; counters and flags are atomics;
// collections are internally synchronized. No field here is ever replaced
// wholesale -- ClearChunkCollections drains in place so an observer mid-
// ToArray() over an older generation is never handed a stale reference that
// silently diverges from what's "current".
type OrchestrationState struct {
	nocopy common.NoCopy

	mu sync.RWMutex
	// scalar group, guarded by mu
	phase                  RunPhase
	profileIndex           int
	currentProfile         *Profile
	totalChunks            int64
	totalBytes             int64
	startTime              time.Time
	profileStartTime       time.Time
	currentSnapshot        *Snapshot
	currentCopyEngineOpts  CopyEngineOptions

	// atomic counters
	CompletedCount      common.AtomicCounter
	BytesComplete       common.AtomicCounter
	CompletedChunkBytes common.AtomicCounter
	CompletedChunkFiles common.AtomicCounter
	SkippedChunkCount   common.AtomicCounter
	SkippedChunkBytes   common.AtomicCounter
	ProfileStartFiles   common.AtomicCounter

	// atomic flags
	StopRequested  common.AtomicBool
	PauseRequested common.AtomicBool

	// concurrency-safe collections
	PendingQueue   *common.ConcurrentQueue[Chunk]
	ActiveJobs     *common.ConcurrentMap[common.JobID, *Job]
	CompletedQueue *common.ConcurrentQueue[Chunk]
	FailedQueue    *common.ConcurrentQueue[Chunk]
	ProfileResults *common.ConcurrentQueue[ProfileResult]
	ErrorMessages  *common.ConcurrentQueue[string]
	LogMessages    *common.ConcurrentQueue[string]
}

func NewOrchestrationState() *OrchestrationState {
	s := &OrchestrationState{}
	s.initCollections()
	return s
}

func (s *OrchestrationState) initCollections() {
	s.PendingQueue = common.NewConcurrentQueue[Chunk]()
	s.ActiveJobs = common.NewConcurrentMap[common.JobID, *Job]()
	s.CompletedQueue = common.NewConcurrentQueue[Chunk]()
	s.FailedQueue = common.NewConcurrentQueue[Chunk]()
	s.ProfileResults = common.NewConcurrentQueue[ProfileResult]()
	s.ErrorMessages = common.NewConcurrentQueue[string]()
	s.LogMessages = common.NewConcurrentQueue[string]()
}

// Reset returns the state to Idle at the start of a fresh run. Collections
// are drained in place (see ClearChunkCollections), never replaced.
func (s *OrchestrationState) Reset() {
	s.nocopy.Check()
	s.mu.Lock()
	s.phase = ERunPhase.Idle()
	s.profileIndex = 0
	s.currentProfile = nil
	s.totalChunks = 0
	s.totalBytes = 0
	s.startTime = time.Now()
	s.profileStartTime = time.Time{}
	s.currentSnapshot = nil
	s.currentCopyEngineOpts = CopyEngineOptions{}
	s.mu.Unlock()

	s.CompletedCount.Reset()
	s.BytesComplete.Reset()
	s.CompletedChunkBytes.Reset()
	s.CompletedChunkFiles.Reset()
	s.SkippedChunkCount.Reset()
	s.SkippedChunkBytes.Reset()
	s.ProfileStartFiles.Reset()
	s.StopRequested.Set(false)
	s.PauseRequested.Set(false)

	s.ClearChunkCollections()
	s.ProfileResults.Clear()
	s.ErrorMessages.Clear()
	s.LogMessages.Clear()
}

// ResetForNewProfile clears per-profile counters and chunk collections while
// preserving run-level state (phase, profileIndex, accumulated profileResults).
func (s *OrchestrationState) ResetForNewProfile(profile Profile) {
	s.mu.Lock()
	s.currentProfile = &profile
	s.profileStartTime = time.Now()
	s.totalChunks = 0
	s.totalBytes = 0
	s.currentCopyEngineOpts = profile.CopyEngineOptions
	s.mu.Unlock()

	s.ProfileStartFiles.Store(s.CompletedCount.Load())
	s.ClearChunkCollections()
}

// ClearChunkCollections drains pendingQueue/completedQueue/failedQueue in
// place. It must NOT swap in new collection objects: a concurrent ToArray()
// snapshot taken just before this call remains valid and simply describes the
// prior generation, rather than becoming a dangling reference to nothing.
func (s *OrchestrationState) ClearChunkCollections() {
	s.PendingQueue.Clear()
	s.FailedQueue.Clear()
	s.CompletedQueue.Clear()
	// activeJobs is drained by the scheduler's own reap/stop path, not here --
	// clearing it blindly here could race with an in-flight TryRemove claim.
}

func (s *OrchestrationState) SetPhase(p RunPhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

func (s *OrchestrationState) Phase() RunPhase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

func (s *OrchestrationState) SetTotals(chunks int64, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalChunks = chunks
	s.totalBytes = bytes
}

func (s *OrchestrationState) Totals() (chunks int64, bytes int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalChunks, s.totalBytes
}

func (s *OrchestrationState) SetProfileIndex(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileIndex = i
}

func (s *OrchestrationState) ProfileIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profileIndex
}

func (s *OrchestrationState) CurrentProfile() *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentProfile
}

func (s *OrchestrationState) SetCurrentSnapshot(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentSnapshot = snap
}

func (s *OrchestrationState) CurrentSnapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSnapshot
}

func (s *OrchestrationState) CurrentCopyEngineOptions() CopyEngineOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentCopyEngineOpts
}

func (s *OrchestrationState) StartTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startTime
}

func (s *OrchestrationState) ProfileStartTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profileStartTime
}

// GetOrchestrationStatus computes the read-only status view observers poll.
func (s *OrchestrationState) GetOrchestrationStatus() OrchestrationStatus {
	s.nocopy.Check()
	phase := s.Phase()
	totalChunks, totalBytes := s.Totals()
	completed := s.CompletedCount.Load()
	bytesComplete := s.BytesComplete.Load()
	failed := int64(s.FailedQueue.Len())

	profileName := ""
	if p := s.CurrentProfile(); p != nil {
		profileName = p.Name
	}

	profileProgress := 100.0
	if totalChunks > 0 {
		profileProgress = 100.0 * float64(completed) / float64(totalChunks)
	}

	elapsed := time.Since(s.StartTime())
	var eta time.Duration
	if completed > 0 && profileProgress > 0 && profileProgress < 100 {
		eta = time.Duration(float64(elapsed) * (100.0/profileProgress - 1.0))
	}

	return OrchestrationStatus{
		Phase:           phase,
		CurrentProfile:  profileName,
		ProfileProgress: profileProgress,
		OverallProgress: profileProgress, // equals the current profile's progress; no cross-profile weighting is applied
		BytesComplete:   bytesComplete,
		Elapsed:         elapsed,
		ETA:             eta,
		ChunksComplete:  completed,
		ChunksTotal:     totalChunks,
		ChunksFailed:    failed,
	}
}
