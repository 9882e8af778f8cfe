package orchestrator

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/ashgrove/replistore/common"
	"github.com/ashgrove/replistore/pacer"
)

// Scheduler drives one replication run's tick loop. It owns no goroutine of
// its own -- the Run's owner calls Run.Tick repeatedly (cmd's run loop does), which
// keeps every state mutation synchronous and lets tests drive it step by step
// without a real clock.
type Scheduler struct {
	State      *OrchestrationState
	Breaker    *CircuitBreaker
	Pacer      *pacer.Governor
	CopyEngine CopyEngine
	Checkpoint CheckpointStore
	Settings   RunSettings
	LogDir     string
	// ResumeSet holds canonical (lowercased) source paths already completed in
	// a prior run, per the loaded checkpoint. Checked at dispatch time (not at
	// planning time) so a resumed chunk still passes through the same Skipped
	// bookkeeping path the scheduler uses for any other terminal chunk status.
	ResumeSet map[string]bool

	tickCount         int64
	lastCheckpointAt  time.Time
	lastHealthWriteAt time.Time
}

func NewScheduler(state *OrchestrationState, breaker *CircuitBreaker, governor *pacer.Governor, engine CopyEngine, checkpoints CheckpointStore, settings RunSettings, logDir string) *Scheduler {
	return &Scheduler{
		State:      state,
		Breaker:    breaker,
		Pacer:      governor,
		CopyEngine: engine,
		Checkpoint: checkpoints,
		Settings:   settings,
		LogDir:     logDir,
	}
}

// Tick executes one pass of the scheduler's five-step order: control checks,
// reap completions, dispatch new jobs, profile completion check, then emit
// progress. Returns profileDone=true once every chunk in the current profile
// has reached a terminal status with no jobs left in flight.
func (sch *Scheduler) Tick() (profileDone bool, err error) {
	sch.tickCount++

	// 1. control checks
	if sch.State.StopRequested.Get() {
		sch.StopAllJobs()
		sch.State.SetPhase(ERunPhase.Stopped())
		sch.maybeWriteHealth(true) // forced: terminal phase transition
		return true, nil
	}
	if sch.State.PauseRequested.Get() {
		return false, nil // neither reap nor dispatch runs; running jobs are reaped after resume
	}

	// 2. reap completions
	sch.reapCompletions()

	// 3. dispatch new jobs, unless the breaker has tripped
	if !sch.Breaker.Tripped() {
		sch.dispatchNewJobs()
	}

	// 4. profile completion check: no pending work, nothing active
	pendingEmpty := sch.State.PendingQueue.Len() == 0
	activeEmpty := sch.State.ActiveJobs.Len() == 0
	profileDone = pendingEmpty && activeEmpty

	// 5. checkpoint + progress emission
	sch.maybeCheckpoint(profileDone)
	sch.maybeWriteHealth(false)

	return profileDone, nil
}

// StopAllJobs terminates every active process with a bounded wait, releasing
// its governor slot regardless of whether the kill itself succeeded -- a
// stuck process must never hold activeJobs open forever.
func (sch *Scheduler) StopAllJobs() {
	for _, job := range sch.State.ActiveJobs.ToSlice() {
		if !sch.State.ActiveJobs.Delete(job.JobID) {
			continue
		}
		if err := job.Process.Kill(sch.Settings.ProcessStopTimeout); err != nil {
			sch.State.ErrorMessages.Enqueue(fmt.Sprintf("failed to stop job %s: %v", job.JobID.String(), err))
		}
		sch.Pacer.JobFinished()
	}
}

func (sch *Scheduler) reapCompletions() {
	for _, job := range sch.State.ActiveJobs.ToSlice() {
		exited, result := job.Process.TryWait()
		if !exited {
			continue
		}
		// claim the job before anyone else can double-reap it
		if !sch.State.ActiveJobs.Delete(job.JobID) {
			continue
		}
		sch.Pacer.JobFinished()
		sch.completeChunk(job, result)
	}
}

func (sch *Scheduler) completeChunk(job *Job, result ExitResult) {
	chunk := job.Chunk
	chunk.LastExitCode = result.ExitCode
	if len(result.ErrorMessages) > 0 {
		chunk.LastErrorMessage = result.ErrorMessages[len(result.ErrorMessages)-1]
	}

	classification := sch.CopyEngine.Classify(result, sch.State.CurrentCopyEngineOptions())

	switch classification.Severity {
	case EExitSeverity.Success():
		chunk.Status = EChunkStatus.CompleteOk()
	case EExitSeverity.Warning():
		chunk.Status = EChunkStatus.CompleteWithWarnings()
	default:
		chunk.Status = EChunkStatus.Failed()
	}

	if chunk.Status.IsTerminal() && chunk.Status != EChunkStatus.Failed() {
		sch.Breaker.RecordSuccess()
		sch.State.CompletedCount.Add(1)
		sch.State.BytesComplete.Add(result.BytesCopied)
		sch.State.CompletedChunkBytes.Add(chunk.EstimatedBytes)
		sch.State.CompletedChunkFiles.Add(result.FilesCopied)
		sch.State.CompletedQueue.Enqueue(chunk)
		return
	}

	// failed: retry unless exhausted or the classifier says don't bother.
	// RetryCount is incremented first so the exhaustion check sees the
	// post-increment value -- with MaxChunkRetries=3 the chunk is retried
	// after RetryCount becomes 1 and 2, and the exit that pushes RetryCount to
	// 3 (equal to MaxChunkRetries) goes to Failed instead.
	chunk.RetryCount++
	if classification.ShouldRetry && chunk.RetryCount < sch.Settings.MaxChunkRetries {
		delay := common.ChunkRetryBackoff(chunk.RetryCount, common.DefaultRetryBackoffBase*time.Second, common.DefaultRetryBackoffMaxSeconds*time.Second, common.DefaultRetryBackoffMultiplier)
		retryAt := time.Now().Add(delay)
		chunk.RetryAfter = &retryAt
		chunk.Status = EChunkStatus.Pending()
		sch.State.PendingQueue.Enqueue(chunk)
		return
	}

	chunk.Status = EChunkStatus.Failed()
	sch.State.CompletedCount.Add(1)
	sch.State.FailedQueue.Enqueue(chunk)
	sch.State.ErrorMessages.Enqueue(fmt.Sprintf("chunk %s: %s", chunk.ChunkID.String(), chunk.LastErrorMessage))
	sch.recordBreakerFailure(classification.Message)
}

// recordBreakerFailure feeds one terminal failure to the circuit breaker and,
// if that trips it, raises stopRequested so the next Tick enters the stop
// path -- a trip is a request to stop the whole run, not just this chunk.
func (sch *Scheduler) recordBreakerFailure(reason string) {
	if sch.Breaker.RecordFailure(reason) {
		sch.State.LogMessages.Enqueue(fmt.Sprintf("circuit breaker tripped: %s", reason))
		sch.State.ErrorMessages.Enqueue(fmt.Sprintf("circuit breaker tripped: %s", reason))
		sch.State.StopRequested.Set(true)
	}
}

func (sch *Scheduler) dispatchNewJobs() {
	now := time.Now()
	capacity := sch.Settings.MaxConcurrentJobs - sch.State.ActiveJobs.Len()
	if capacity <= 0 {
		return
	}

	// Drain every chunk currently in the queue up front: each one is either
	// dispatched (consuming capacity) or re-enqueued at the tail (a deferred
	// retry). A partial drain-and-requeue is safe only because Tick is
	// single-threaded -- nothing else enqueues or dequeues between here and
	// the final re-enqueue loop below.
	pendingCount := sch.State.PendingQueue.Len()
	deferred := make([]Chunk, 0)

	for i := 0; i < pendingCount; i++ {
		chunk, ok := sch.State.PendingQueue.Dequeue()
		if !ok {
			break
		}

		if capacity <= 0 {
			deferred = append(deferred, chunk)
			continue
		}
		if chunk.RetryAfter != nil && now.Before(*chunk.RetryAfter) {
			deferred = append(deferred, chunk)
			continue
		}

		if sch.ResumeSet != nil && sch.ResumeSet[strings.ToLower(chunk.SourcePath)] {
			chunk.Status = EChunkStatus.Skipped()
			sch.State.SkippedChunkCount.Add(1)
			sch.State.SkippedChunkBytes.Add(chunk.EstimatedBytes)
			sch.State.CompletedCount.Add(1)
			continue
		}

		jobID := common.NewJobID()
		logPath := fmt.Sprintf("%s/%s.log", sch.LogDir, jobID.String())

		sch.Pacer.JobStarted()
		rate := sch.Pacer.PerJobRateMbps()

		handle, err := sch.CopyEngine.Start(chunk, logPath, sch.threadsPerJob(), sch.State.CurrentCopyEngineOptions(), sch.Settings.DryRun, sch.Settings.VerboseLogging, rate)
		if err != nil {
			sch.Pacer.JobFinished()
			chunk.Status = EChunkStatus.Failed()
			chunk.LastErrorMessage = err.Error()
			sch.State.CompletedCount.Add(1)
			sch.State.FailedQueue.Enqueue(chunk)
			sch.State.ErrorMessages.Enqueue(fmt.Sprintf("chunk %s failed to start: %v", chunk.ChunkID.String(), err))
			sch.recordBreakerFailure(err.Error())
			continue
		}

		chunk.Status = EChunkStatus.Running()
		job := &Job{
			JobID:     jobID,
			Chunk:     chunk,
			Process:   handle,
			LogPath:   logPath,
			StartTime: now,
		}
		sch.State.ActiveJobs.Set(jobID, job)
		capacity--
	}

	for _, chunk := range deferred {
		sch.State.PendingQueue.Enqueue(chunk)
	}
}

func (sch *Scheduler) threadsPerJob() int {
	return common.ComputeDefaultThreadsPerJob(runtime.NumCPU())
}

// maybeCheckpoint saves on the first completion, every Kth completion, every
// tick while failedQueue is non-empty, and always at profile boundary. A
// retryable failure that goes back to pendingQueue does not by itself
// trigger a save. It
// snapshots completed/failed chunks via ToArray so a save never blocks the
// tick loop's own mutation of those queues.
func (sch *Scheduler) maybeCheckpoint(profileDone bool) {
	if sch.Checkpoint == nil {
		return
	}

	completed := sch.State.CompletedCount.Load()
	frequency := int64(sch.Settings.CheckpointSaveFrequency)
	dueByFrequency := frequency > 0 && completed > 0 && completed%frequency == 0
	dueByFirstSuccess := completed == 1
	dueByFailure := sch.State.FailedQueue.Len() > 0 && sch.tickCount != 0

	if !(dueByFrequency || dueByFirstSuccess || dueByFailure || profileDone) {
		return
	}

	completedPaths := map[string]bool{}
	for _, chunk := range sch.State.CompletedQueue.ToArray() {
		completedPaths[chunk.SourcePath] = true
	}

	cp := Checkpoint{
		SchemaVersion:        CheckpointSchemaVersion,
		SavedAt:              time.Now(),
		ProfileIndex:         sch.State.ProfileIndex(),
		CompletedSourcePaths: completedPaths,
		CompletedCount:       completed,
		FailedCount:          int64(sch.State.FailedQueue.Len()),
		BytesComplete:        sch.State.BytesComplete.Load(),
		StartTime:            sch.State.StartTime(),
	}
	if p := sch.State.CurrentProfile(); p != nil {
		cp.CurrentProfileName = p.Name
	}

	if err := sch.Checkpoint.Save(cp); err != nil {
		sch.State.ErrorMessages.Enqueue(fmt.Sprintf("checkpoint save failed: %v", err))
	}
	sch.lastCheckpointAt = time.Now()
}
