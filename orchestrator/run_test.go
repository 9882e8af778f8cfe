package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashgrove/replistore/common"
)

type fakePlanner struct {
	chunks  []Chunk
	planErr error
}

func (p *fakePlanner) Plan(profile Profile, snap *Snapshot) ([]Chunk, error) {
	if p.planErr != nil {
		return nil, p.planErr
	}
	return p.chunks, nil
}

// fakeResettingPlanner additionally implements CacheResetter so
// StartReplicationRun's bootstrap reset can be exercised.
type fakeResettingPlanner struct {
	fakePlanner
	resetCalls int
}

func (p *fakeResettingPlanner) ResetCache() { p.resetCalls++ }

type fakeSnapshotProvider struct {
	orphans     []Snapshot
	removed     []string
	enumerateErr error
}

func (f *fakeSnapshotProvider) IsSupported(sourceVolume string) bool { return true }
func (f *fakeSnapshotProvider) Create(sourceVolume string) (*Snapshot, error) {
	return &Snapshot{ShadowID: "s1", SourceVolume: sourceVolume}, nil
}
func (f *fakeSnapshotProvider) TranslatePath(snap *Snapshot, sourcePath string) (string, error) {
	return sourcePath, nil
}
func (f *fakeSnapshotProvider) Remove(snap *Snapshot) error {
	f.removed = append(f.removed, snap.ShadowID)
	return nil
}
func (f *fakeSnapshotProvider) EnumerateOrphans() ([]Snapshot, error) {
	return f.orphans, f.enumerateErr
}

func TestStartReplicationRun_RejectsEmptyProfiles(t *testing.T) {
	a := assert.New(t)
	_, err := StartReplicationRun(RunSettings{}, RunDependencies{Engine: &fakeCopyEngine{}})
	a.Error(err)
}

func TestStartReplicationRun_RejectsMissingEngine(t *testing.T) {
	a := assert.New(t)
	settings := RunSettings{Profiles: []Profile{{Name: "p1"}}}
	_, err := StartReplicationRun(settings, RunDependencies{})
	a.Error(err)
}

func TestBeginProfile_SeedsPendingQueueAndDispatchSkipsResumedChunks(t *testing.T) {
	a := assert.New(t)
	srcDir := t.TempDir()
	settings := RunSettings{Profiles: []Profile{{Name: "p1", SourcePath: srcDir}}, MaxConcurrentJobs: 2}
	planner := &fakePlanner{chunks: []Chunk{
		{SourcePath: "/src/a", EstimatedBytes: 100},
		{SourcePath: "/src/b", EstimatedBytes: 200},
	}}
	run, err := StartReplicationRun(settings, RunDependencies{Engine: &fakeCopyEngine{}, Planner: planner})
	a.NoError(err)

	run.resumeSet["/src/a"] = true
	run.Sched.ResumeSet = run.resumeSet
	a.NoError(run.BeginProfile(0))

	a.Equal(2, run.State.PendingQueue.Len())

	_, err = run.Tick()
	a.NoError(err)
	a.Equal(int64(1), run.State.SkippedChunkCount.Load())
}

func TestStartReplicationRun_ClearsOrphanSnapshotsAtBootstrap(t *testing.T) {
	a := assert.New(t)
	settings := RunSettings{Profiles: []Profile{{Name: "p1"}}}
	snaps := &fakeSnapshotProvider{orphans: []Snapshot{{ShadowID: "orphan-1"}, {ShadowID: "orphan-2"}}}

	_, err := StartReplicationRun(settings, RunDependencies{Engine: &fakeCopyEngine{}, Planner: &fakePlanner{}, Snapshots: snaps})
	a.NoError(err)
	a.ElementsMatch([]string{"orphan-1", "orphan-2"}, snaps.removed)
}

func TestBeginProfile_ReleasesSnapshotWhenPlanFails(t *testing.T) {
	a := assert.New(t)
	settings := RunSettings{Profiles: []Profile{{Name: "p1", SourcePath: t.TempDir(), UseSnapshot: true}}}
	snaps := &fakeSnapshotProvider{}
	planner := &fakePlanner{planErr: assertError("plan boom")}

	run, err := StartReplicationRun(settings, RunDependencies{Engine: &fakeCopyEngine{}, Planner: planner, Snapshots: snaps})
	a.NoError(err)

	err = run.BeginProfile(0)
	a.Error(err)
	a.Nil(run.State.CurrentSnapshot())
	a.Equal([]string{"s1"}, snaps.removed)
}

func TestStartReplicationRun_ResetsChunkIDGeneratorAndProfilerCache(t *testing.T) {
	a := assert.New(t)
	common.ChunkIDGenerator.Next()
	common.ChunkIDGenerator.Next()

	settings := RunSettings{Profiles: []Profile{{Name: "p1"}}}
	planner := &fakeResettingPlanner{}

	_, err := StartReplicationRun(settings, RunDependencies{Engine: &fakeCopyEngine{}, Planner: planner})
	a.NoError(err)
	a.Equal(1, planner.resetCalls)
	a.Equal(common.ChunkID(1), common.ChunkIDGenerator.Next())
}

func TestStartReplicationRun_SkipInitializationAttachesPresetState(t *testing.T) {
	a := assert.New(t)
	preset := NewOrchestrationState()
	preset.Reset()
	preset.CompletedCount.Store(42)

	settings := RunSettings{Profiles: []Profile{{Name: "p1"}}, SkipInitialization: true}
	run, err := StartReplicationRun(settings, RunDependencies{Engine: &fakeCopyEngine{}, Planner: &fakePlanner{}, PresetState: preset})
	a.NoError(err)

	a.Same(preset, run.State)
	a.Equal(int64(42), run.State.CompletedCount.Load())
}

func TestStartReplicationRun_SkipInitializationIgnoredWithoutPresetState(t *testing.T) {
	a := assert.New(t)
	settings := RunSettings{Profiles: []Profile{{Name: "p1"}}, SkipInitialization: true}
	run, err := StartReplicationRun(settings, RunDependencies{Engine: &fakeCopyEngine{}, Planner: &fakePlanner{}})
	a.NoError(err)
	a.NotNil(run.State)
}

func TestRunFinish_DeletesCheckpointAndMarksComplete(t *testing.T) {
	a := assert.New(t)
	settings := RunSettings{Profiles: []Profile{{Name: "p1", SourcePath: t.TempDir()}}}
	ckpt := &fakeCheckpointStore{}
	run, err := StartReplicationRun(settings, RunDependencies{Engine: &fakeCopyEngine{}, Planner: &fakePlanner{}, Checkpoint: ckpt, LogDir: t.TempDir()})
	a.NoError(err)

	run.Finish()

	a.True(ckpt.deleted)
	a.Equal(ERunPhase.Complete(), run.State.Phase())
}

func TestRunFinish_LeavesCheckpointWhenStopped(t *testing.T) {
	a := assert.New(t)
	settings := RunSettings{Profiles: []Profile{{Name: "p1", SourcePath: t.TempDir()}}}
	ckpt := &fakeCheckpointStore{}
	run, err := StartReplicationRun(settings, RunDependencies{Engine: &fakeCopyEngine{}, Planner: &fakePlanner{}, Checkpoint: ckpt, LogDir: t.TempDir()})
	a.NoError(err)
	run.State.StopRequested.Set(true)

	run.Finish()

	a.False(ckpt.deleted)
	a.NotEqual(ERunPhase.Complete(), run.State.Phase())
}

func TestFinishProfile_RecordsProfileResult(t *testing.T) {
	a := assert.New(t)
	settings := RunSettings{Profiles: []Profile{{Name: "p1", SourcePath: t.TempDir()}}}
	run, err := StartReplicationRun(settings, RunDependencies{Engine: &fakeCopyEngine{}, Planner: &fakePlanner{}})
	a.NoError(err)
	a.NoError(run.BeginProfile(0))

	run.FinishProfile()

	a.Equal(1, run.State.ProfileResults.Len())
	result := run.State.ProfileResults.ToArray()[0]
	a.Equal("p1", result.ProfileName)
	a.Equal(EProfileResultStatus.Success(), result.Status)
}
