package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ashgrove/replistore/common"
	"github.com/ashgrove/replistore/pacer"
)

type fakeProcessHandle struct {
	exited bool
	result ExitResult
}

func (f *fakeProcessHandle) TryWait() (bool, ExitResult)     { return f.exited, f.result }
func (f *fakeProcessHandle) Kill(timeout time.Duration) error { return nil }

type fakeCopyEngine struct {
	startErr      error
	nextHandle    *fakeProcessHandle
	classifyFixed *Classification
}

func (e *fakeCopyEngine) Start(chunk Chunk, logPath string, threadsPerJob int, options CopyEngineOptions, dryRun bool, verboseLogging bool, rateMbps int64) (JobProcessHandle, error) {
	if e.startErr != nil {
		return nil, e.startErr
	}
	if e.nextHandle != nil {
		return e.nextHandle, nil
	}
	return &fakeProcessHandle{exited: true, result: ExitResult{ExitCode: 0}}, nil
}

func (e *fakeCopyEngine) Classify(result ExitResult, options CopyEngineOptions) Classification {
	if e.classifyFixed != nil {
		return *e.classifyFixed
	}
	if result.ExitCode == 0 {
		return Classification{Severity: EExitSeverity.Success()}
	}
	return Classification{Severity: EExitSeverity.Error(), ShouldRetry: true, Message: "nonzero exit"}
}

func (e *fakeCopyEngine) Progress(job *Job) (*JobProgress, error) { return nil, nil }

type fakeCheckpointStore struct {
	saved   []Checkpoint
	deleted bool
}

func (f *fakeCheckpointStore) Load(sessionID string) (*Checkpoint, error) { return nil, nil }
func (f *fakeCheckpointStore) Save(cp Checkpoint) error {
	f.saved = append(f.saved, cp)
	return nil
}
func (f *fakeCheckpointStore) Delete() error {
	f.deleted = true
	return nil
}

func newTestScheduler(t *testing.T, engine *fakeCopyEngine, ckpt *fakeCheckpointStore) *Scheduler {
	t.Helper()
	state := NewOrchestrationState()
	state.Reset()
	breaker := NewCircuitBreaker(10)
	governor := pacer.NewGovernor(0)
	settings := RunSettings{MaxConcurrentJobs: 2, MaxChunkRetries: 3, CheckpointSaveFrequency: 1}.WithDefaults()
	return NewScheduler(state, breaker, governor, engine, ckpt, settings, t.TempDir())
}

func TestScheduler_DispatchesAndCompletesSuccessfulChunk(t *testing.T) {
	a := assert.New(t)
	engine := &fakeCopyEngine{}
	ckpt := &fakeCheckpointStore{}
	sch := newTestScheduler(t, engine, ckpt)

	sch.State.PendingQueue.Enqueue(Chunk{ChunkID: common.ChunkID(1), SourcePath: "a"})

	// Reap runs before dispatch, so the job started on the first tick is
	// reaped on the second.
	done, err := sch.Tick()
	a.NoError(err)
	a.False(done)
	done, err = sch.Tick()
	a.NoError(err)
	a.True(done)
	a.Equal(int64(1), sch.State.CompletedCount.Load())
	a.Equal(0, sch.State.FailedQueue.Len())
}

func TestScheduler_RequeuesRetryableFailureWithBackoff(t *testing.T) {
	a := assert.New(t)
	engine := &fakeCopyEngine{nextHandle: &fakeProcessHandle{exited: true, result: ExitResult{ExitCode: 1}}}
	ckpt := &fakeCheckpointStore{}
	sch := newTestScheduler(t, engine, ckpt)

	sch.State.PendingQueue.Enqueue(Chunk{ChunkID: common.ChunkID(1), SourcePath: "a"})

	sch.Tick() // dispatches the chunk
	sch.Tick() // reaps the failed exit and re-enqueues the chunk
	a.Equal(1, sch.State.PendingQueue.Len())
	peek := sch.State.PendingQueue.ToArray()[0]
	a.Equal(1, peek.RetryCount)
	a.NotNil(peek.RetryAfter)
}

// Matches the literal scenario in spec §8 #3: three consecutive retryable
// exits, RetryCounts observed 1,2,3; with MaxChunkRetries=3 the third
// terminal failure moves the chunk to Failed rather than re-enqueuing it.
func TestScheduler_ExhaustsRetriesOnThirdExitWithMaxChunkRetriesThree(t *testing.T) {
	a := assert.New(t)
	engine := &fakeCopyEngine{}
	ckpt := &fakeCheckpointStore{}
	sch := newTestScheduler(t, engine, ckpt) // MaxChunkRetries: 3

	chunk := Chunk{ChunkID: common.ChunkID(1), SourcePath: "a"}

	// completeChunk is exercised directly so each exit is independent of the
	// retryAfter delay dispatchNewJobs would otherwise enforce between ticks.
	for _, want := range []int{1, 2} {
		sch.completeChunk(&Job{Chunk: chunk}, ExitResult{ExitCode: 1})
		a.Equal(1, sch.State.PendingQueue.Len())
		chunk = sch.State.PendingQueue.ToArray()[0]
		a.Equal(want, chunk.RetryCount)
		a.Equal(EChunkStatus.Pending(), chunk.Status)
		sch.State.PendingQueue.Dequeue()
	}

	// third exit: RetryCount becomes 3, which is no longer < MaxChunkRetries(3)
	sch.completeChunk(&Job{Chunk: chunk}, ExitResult{ExitCode: 1})
	a.Equal(0, sch.State.PendingQueue.Len())
	a.Equal(1, sch.State.FailedQueue.Len())
	failed := sch.State.FailedQueue.ToArray()[0]
	a.Equal(3, failed.RetryCount)
	a.Equal(EChunkStatus.Failed(), failed.Status)
	a.Equal(int64(1), sch.Breaker.ConsecutiveFailures())
	a.False(sch.Breaker.Tripped())
}

func TestScheduler_TripsBreakerAfterConsecutiveStartFailures(t *testing.T) {
	a := assert.New(t)
	engine := &fakeCopyEngine{startErr: assertError("boom")}
	ckpt := &fakeCheckpointStore{}
	sch := newTestScheduler(t, engine, ckpt)
	sch.Breaker = NewCircuitBreaker(2)

	sch.State.PendingQueue.Enqueue(Chunk{ChunkID: common.ChunkID(1), SourcePath: "a"})
	sch.State.PendingQueue.Enqueue(Chunk{ChunkID: common.ChunkID(2), SourcePath: "b"})

	sch.Tick()
	a.True(sch.Breaker.Tripped())
}

func TestScheduler_StopRequestEndsRunImmediately(t *testing.T) {
	a := assert.New(t)
	engine := &fakeCopyEngine{}
	ckpt := &fakeCheckpointStore{}
	sch := newTestScheduler(t, engine, ckpt)
	sch.State.StopRequested.Set(true)

	done, err := sch.Tick()
	a.NoError(err)
	a.True(done)
	a.Equal(ERunPhase.Stopped(), sch.State.Phase())
}

func TestScheduler_StopRequestKillsActiveJobs(t *testing.T) {
	a := assert.New(t)
	engine := &fakeCopyEngine{nextHandle: &fakeProcessHandle{exited: false}}
	ckpt := &fakeCheckpointStore{}
	sch := newTestScheduler(t, engine, ckpt)

	sch.State.PendingQueue.Enqueue(Chunk{ChunkID: common.ChunkID(1), SourcePath: "a"})
	sch.Tick() // dispatches the job, which never reports exited
	a.Equal(1, sch.State.ActiveJobs.Len())

	sch.State.StopRequested.Set(true)
	done, err := sch.Tick()
	a.NoError(err)
	a.True(done)
	a.Equal(0, sch.State.ActiveJobs.Len())
	a.Equal(ERunPhase.Stopped(), sch.State.Phase())
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func assertError(msg string) error { return simpleErr(msg) }
