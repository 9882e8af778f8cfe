package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ashgrove/replistore/common"
	"github.com/ashgrove/replistore/pacer"
)

// Run owns everything StartReplicationRun wires together: the shared state an
// observer reads, the scheduler that drives it, and the external adapters the
// scheduler calls out to. A Run is built once per invocation of
// StartReplicationRun and is the thing a CLI or other caller holds onto to
// call Tick, RequestStop, RequestPause/Resume, and GetOrchestrationStatus.
type Run struct {
	State    *OrchestrationState
	Breaker  *CircuitBreaker
	Pacer    *pacer.Governor
	Sched    *Scheduler
	Settings RunSettings
	SessionID common.SessionID

	planner    ChunkPlanner
	snapshots  SnapshotProvider
	checkpoint CheckpointStore
	engine     CopyEngine
	logDir     string

	resumeSet map[string]bool
}

// RunDependencies bundles the external collaborators StartReplicationRun
// wires into a Run. Any of Snapshots/Checkpoint may be nil when a profile
// doesn't use them (UseSnapshot=false) or the caller passed IgnoreCheckpoint.
type RunDependencies struct {
	Planner    ChunkPlanner
	Snapshots  SnapshotProvider
	Checkpoint CheckpointStore
	Engine     CopyEngine
	LogDir     string

	// PresetState, combined with RunSettings.SkipInitialization, lets a caller
	// that already owns an initialized OrchestrationState (e.g. one restored
	// by an external scheduler integration) hand it to StartReplicationRun
	// directly instead of having it build and Reset a fresh one (§4.7 step 3,
	// §6.6). Ignored when SkipInitialization is false.
	PresetState *OrchestrationState
}

// StartReplicationRun executes the run-level bootstrap (§ the run-level
// sequence): validate settings, reset the chunk-id counter and profiler cache,
// load or discard a checkpoint, build the shared state and scheduler, clear
// orphaned snapshots, then hand back a Run
// the caller drives to completion with repeated Tick calls across profiles.
func StartReplicationRun(settings RunSettings, deps RunDependencies) (*Run, error) {
	settings = settings.WithDefaults()

	if len(settings.Profiles) == 0 {
		return nil, common.EReplicationError.ConfigLoadFailure().WithInfo("no profiles configured")
	}
	if deps.Engine == nil {
		return nil, common.EReplicationError.FatalInfrastructureFailure().WithInfo("no copy engine adapter supplied")
	}

	// Bootstrap (§4.7 step 4): reset the circuit breaker (a fresh one below is
	// already reset), clear the profiler cache, and restart the chunk-id
	// counter so nothing from a prior run leaks into this one.
	common.ChunkIDGenerator.Reset()
	if resetter, ok := deps.Planner.(CacheResetter); ok {
		resetter.ResetCache()
	}

	sessionID := common.NewSessionID()

	var state *OrchestrationState
	if settings.SkipInitialization && deps.PresetState != nil {
		// §4.7 step 3, §6.6: attach to the caller's already-initialized state
		// instead of discarding it with a fresh Reset.
		state = deps.PresetState
	} else {
		state = NewOrchestrationState()
		state.Reset()
	}

	breaker := NewCircuitBreaker(settings.CircuitBreakerThreshold)
	governor := pacer.NewGovernor(settings.AggregateBandwidthMbps)

	run := &Run{
		State:      state,
		Breaker:    breaker,
		Pacer:      governor,
		Settings:   settings,
		SessionID:  sessionID,
		planner:    deps.Planner,
		snapshots:  deps.Snapshots,
		checkpoint: deps.Checkpoint,
		engine:     deps.Engine,
		logDir:     deps.LogDir,
		resumeSet:  map[string]bool{},
	}

	if !settings.IgnoreCheckpoint && deps.Checkpoint != nil {
		if cp, err := deps.Checkpoint.Load(sessionID.String()); err == nil && cp != nil {
			if cp.SchemaVersion != CheckpointSchemaVersion {
				state.ErrorMessages.Enqueue(fmt.Sprintf("checkpoint schema mismatch (%s != %s): starting fresh", cp.SchemaVersion, CheckpointSchemaVersion))
			} else {
				for path := range cp.CompletedSourcePaths {
					run.resumeSet[strings.ToLower(path)] = true
				}
				state.CompletedCount.Store(cp.CompletedCount)
				state.BytesComplete.Store(cp.BytesComplete)
				state.SetProfileIndex(cp.ProfileIndex)
			}
		}
	}

	run.Sched = NewScheduler(state, breaker, governor, deps.Engine, deps.Checkpoint, settings, deps.LogDir)
	run.Sched.ResumeSet = run.resumeSet

	if deps.Snapshots != nil {
		run.clearOrphanSnapshots()
	}

	state.SetPhase(ERunPhase.Replicating())

	return run, nil
}

// clearOrphanSnapshots enumerates shadow ids tracked by a prior run that
// never got removed (crash, kill, power loss) and removes them now, so a
// long-lived host doesn't accumulate orphaned volume shadows run over run.
// Failures here are logged, never fatal to starting this run.
func (r *Run) clearOrphanSnapshots() {
	orphans, err := r.snapshots.EnumerateOrphans()
	if err != nil {
		r.State.ErrorMessages.Enqueue(fmt.Sprintf("orphan snapshot enumeration failed: %v", err))
		return
	}
	for _, orphan := range orphans {
		orphan := orphan
		if err := r.snapshots.Remove(&orphan); err != nil {
			r.State.ErrorMessages.Enqueue(fmt.Sprintf("failed to remove orphan snapshot %s: %v", orphan.ShadowID, err))
		}
	}
}

// BeginProfile runs the per-profile bootstrap: preflight the source path,
// acquire a snapshot when requested, plan chunks against the (possibly
// translated) source path, and seed pendingQueue. Resume-set filtering
// happens later, at dispatch time (see Scheduler.dispatchNewJobs), so a
// resumed chunk passes through the same Skipped bookkeeping as any other
// terminal chunk outcome instead of being silently dropped here.
func (r *Run) BeginProfile(index int) error {
	if index < 0 || index >= len(r.Settings.Profiles) {
		return common.EReplicationError.ConfigLoadFailure().WithInfo("profile index out of range")
	}
	profile := r.Settings.Profiles[index]
	r.State.SetProfileIndex(index)
	r.State.ResetForNewProfile(profile)

	if err := preflightProfile(profile, r.State); err != nil {
		return common.EReplicationError.ProfilePreflightFailure().WithCause(err).WithInfo(profile.SourcePath)
	}

	var snap *Snapshot
	if profile.UseSnapshot {
		if r.snapshots == nil || !r.snapshots.IsSupported(profile.SourcePath) {
			r.State.ErrorMessages.Enqueue(fmt.Sprintf("profile %q: %v: proceeding without snapshot isolation", profile.Name, common.EReplicationError.SnapshotUnavailable().WithInfo(profile.SourcePath)))
		} else if created, err := common.WithRetry(context.Background(), nil, "snapshot create",
			common.IsTransientProviderError,
			func() (*Snapshot, error) { return r.snapshots.Create(profile.SourcePath) },
		); err != nil {
			r.State.ErrorMessages.Enqueue(fmt.Sprintf("profile %q: %v: proceeding without snapshot isolation", profile.Name, common.EReplicationError.SnapshotUnavailable().WithCause(err)))
		} else {
			snap = created
			r.State.SetCurrentSnapshot(snap)
			if translated, err := r.snapshots.TranslatePath(snap, profile.SourcePath); err == nil {
				profile.SourcePath = translated
			} else {
				r.State.ErrorMessages.Enqueue(fmt.Sprintf("profile %q: snapshot path translation failed, planning on the live source: %v", profile.Name, err))
			}
		}
	}

	if r.planner == nil {
		r.releaseSnapshot(profile.Name)
		return common.EReplicationError.ConfigLoadFailure().WithInfo("no chunk planner supplied")
	}
	chunks, err := r.planner.Plan(profile, snap)
	if err != nil {
		// A snapshot acquired above must never outlive this failed profile
		// start -- release it here rather than waiting for a FinishProfile
		// that, on this error path, the caller never calls.
		r.releaseSnapshot(profile.Name)
		return common.EReplicationError.FatalInfrastructureFailure().WithCause(err)
	}

	var totalBytes int64
	for _, chunk := range chunks {
		totalBytes += chunk.EstimatedBytes
		r.State.PendingQueue.Enqueue(chunk)
	}
	r.State.SetTotals(int64(len(chunks)), totalBytes)

	return nil
}

// FinishProfile finalizes the current profile's ProfileResult and, when a
// snapshot was acquired for it, releases the snapshot back to the provider.
func (r *Run) FinishProfile() {
	profile := r.State.CurrentProfile()
	name := ""
	if profile != nil {
		name = profile.Name
	}

	completed := r.State.CompletedQueue.ToArray()
	failed := r.State.FailedQueue.ToArray()

	var bytesComplete int64
	for _, c := range completed {
		bytesComplete += c.EstimatedBytes
	}

	status := EProfileResultStatus.Success()
	var errs []string
	for _, c := range failed {
		status = EProfileResultStatus.Warning()
		errs = append(errs, fmt.Sprintf("chunk %s: %s", c.ChunkID.String(), c.SourcePath))
	}

	r.State.ProfileResults.Enqueue(ProfileResult{
		ProfileName:    name,
		Status:         status,
		ChunksComplete: int64(len(completed)),
		ChunksFailed:   int64(len(failed)),
		ChunksSkipped:  r.State.SkippedChunkCount.Load(),
		BytesComplete:  bytesComplete,
		Errors:         errs,
		StartTime:      r.State.ProfileStartTime(),
		EndTime:        time.Now(),
	})

	r.releaseSnapshot(name)
}

// releaseSnapshot removes the profile's current snapshot, if any, and clears
// it from state. Safe to call whether or not a snapshot was ever acquired.
func (r *Run) releaseSnapshot(profileName string) {
	snap := r.State.CurrentSnapshot()
	if snap == nil || r.snapshots == nil {
		return
	}
	if err := r.snapshots.Remove(snap); err != nil {
		r.State.ErrorMessages.Enqueue(fmt.Sprintf("snapshot cleanup failed for %s: %v", profileName, err))
	}
	r.State.SetCurrentSnapshot(nil)
}

// Tick delegates to the scheduler. See Scheduler.Tick for the five-step order.
func (r *Run) Tick() (profileDone bool, err error) { return r.Sched.Tick() }

// Finish closes out a run once the caller's profile loop has no more
// profiles left to attempt (§4.6 step 4: "no more profiles: delete the
// checkpoint, write a final health record, set phase=Complete"). A run that
// ended via StopRequested is left alone -- the Stopped path already
// force-wrote a health record, and the checkpoint stays in place for a
// future resume rather than being deleted.
func (r *Run) Finish() {
	if r.State.StopRequested.Get() {
		return
	}

	if r.checkpoint != nil {
		if err := r.checkpoint.Delete(); err != nil {
			r.State.ErrorMessages.Enqueue(fmt.Sprintf("checkpoint delete failed: %v", err))
		}
	}

	r.State.SetPhase(ERunPhase.Complete())
	r.Sched.maybeWriteHealth(true)
	removeHealthFile(r.Sched.LogDir)
}

// RequestStop, RequestPause, and RequestResume flip the corresponding atomic
// flag and leave a timestamped RunControlMsg in LogMessages so an operator
// reviewing the run log afterward can see who asked for what and when --
// the flags alone don't say whether a stop was operator-requested or came
// from the circuit breaker tripping.
func (r *Run) RequestStop() {
	r.State.StopRequested.Set(true)
	r.State.LogMessages.Enqueue(common.NewRunControlMsg(common.ERunControlMsgType.Stop(), "").String())
}

func (r *Run) RequestPause() {
	r.State.PauseRequested.Set(true)
	r.State.LogMessages.Enqueue(common.NewRunControlMsg(common.ERunControlMsgType.Pause(), "").String())
}

func (r *Run) RequestResume() {
	r.State.PauseRequested.Set(false)
	r.State.LogMessages.Enqueue(common.NewRunControlMsg(common.ERunControlMsgType.Resume(), "").String())
}

func (r *Run) GetOrchestrationStatus() OrchestrationStatus { return r.State.GetOrchestrationStatus() }
