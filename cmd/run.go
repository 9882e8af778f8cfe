package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashgrove/replistore/checkpoint"
	"github.com/ashgrove/replistore/common"
	"github.com/ashgrove/replistore/copyengine"
	"github.com/ashgrove/replistore/orchestrator"
	"github.com/ashgrove/replistore/planner"
	"github.com/ashgrove/replistore/snapshot"
)

// raw* fields hold the flags exactly as cobra parsed them; cook() below
// translates them into the typed orchestrator.RunSettings the run actually
// uses, mirroring the teacher's raw-args-then-cook split for its commands.
type rawRunCmdArgs struct {
	configPath string

	copyEngineCommand     string
	snapshotHelperCommand string
	snapshotTrackingFile  string

	maxConcurrentJobs       int
	bandwidthMbps           int64
	maxChunkRetries         int
	checkpointSaveFrequency int
	circuitBreakerThreshold int
	processStopTimeoutMs    int64
	tickInterval            time.Duration

	dryRun           bool
	verboseLogging   bool
	ignoreCheckpoint bool
}

func (raw rawRunCmdArgs) cook() (orchestrator.RunSettings, orchestrator.RunDependencies, error) {
	settings, err := loadRunConfig(raw.configPath)
	if err != nil {
		return orchestrator.RunSettings{}, orchestrator.RunDependencies{}, err
	}

	settings.MaxConcurrentJobs = raw.maxConcurrentJobs
	settings.AggregateBandwidthMbps = raw.bandwidthMbps
	settings.DryRun = raw.dryRun
	settings.VerboseLogging = raw.verboseLogging
	settings.IgnoreCheckpoint = raw.ignoreCheckpoint
	settings.MaxChunkRetries = raw.maxChunkRetries
	settings.CheckpointSaveFrequency = raw.checkpointSaveFrequency
	settings.CircuitBreakerThreshold = raw.circuitBreakerThreshold
	if raw.processStopTimeoutMs > 0 {
		settings.ProcessStopTimeout = time.Duration(raw.processStopTimeoutMs) * time.Millisecond
	}

	if raw.copyEngineCommand == "" {
		return orchestrator.RunSettings{}, orchestrator.RunDependencies{}, fmt.Errorf("--copy-engine-command is required")
	}

	engine := copyengine.NewEngine(raw.copyEngineCommand)
	chunkPlanner := planner.NewChunkPlanner(planner.NewProfiler(engine))
	checkpointStore := checkpoint.NewStore(appCheckpointFolder)

	var snapshotProvider orchestrator.SnapshotProvider
	if raw.snapshotHelperCommand != "" {
		trackingFile := raw.snapshotTrackingFile
		if trackingFile == "" {
			trackingFile = filepath.Join(appCheckpointFolder, "snapshot-tracking.json")
		}
		snapshotProvider = snapshot.NewProvider(raw.snapshotHelperCommand, trackingFile)
	}

	deps := orchestrator.RunDependencies{
		Planner:    chunkPlanner,
		Snapshots:  snapshotProvider,
		Checkpoint: checkpointStore,
		Engine:     engine,
		LogDir:     appLogPathFolder,
	}

	return settings, deps, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every profile in a config file to completion, checkpointing as it goes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return rawArgs.process()
	},
}

var rawArgs rawRunCmdArgs

func init() {
	runCmd.PersistentFlags().StringVar(&rawArgs.configPath, "config", "", "Path to a JSON file listing the profiles to replicate.")
	runCmd.PersistentFlags().StringVar(&rawArgs.copyEngineCommand, "copy-engine-command", "", "Path to the external copy engine executable.")
	runCmd.PersistentFlags().StringVar(&rawArgs.snapshotHelperCommand, "snapshot-helper-command", "", "Path to the external snapshot helper executable. Omit to disable snapshot support entirely.")
	runCmd.PersistentFlags().StringVar(&rawArgs.snapshotTrackingFile, "snapshot-tracking-file", "", "Path to the sidecar file tracking live shadow ids across runs. Defaults under --checkpoint-folder.")
	runCmd.PersistentFlags().IntVar(&rawArgs.maxConcurrentJobs, "max-concurrent-jobs", 4, "Maximum number of copy-engine processes running at once.")
	runCmd.PersistentFlags().Int64Var(&rawArgs.bandwidthMbps, "cap-mbps", 0, "Caps the aggregate transfer rate, in megabits per second. Zero means unlimited.")
	runCmd.PersistentFlags().IntVar(&rawArgs.maxChunkRetries, "max-chunk-retries", 0, "Maximum retry attempts per chunk before it's marked Failed. Zero uses the documented default.")
	runCmd.PersistentFlags().IntVar(&rawArgs.checkpointSaveFrequency, "checkpoint-save-frequency", 0, "Save a checkpoint every N completed chunks. Zero uses the documented default.")
	runCmd.PersistentFlags().IntVar(&rawArgs.circuitBreakerThreshold, "circuit-breaker-threshold", 0, "Consecutive chunk failures that trip the circuit breaker. Zero uses the documented default.")
	runCmd.PersistentFlags().Int64Var(&rawArgs.processStopTimeoutMs, "process-stop-timeout-ms", 0, "How long to wait for a killed copy-engine process to exit before giving up. Zero uses the documented default.")
	runCmd.PersistentFlags().DurationVar(&rawArgs.tickInterval, "tick-interval", 250*time.Millisecond, "How often the scheduler ticks while work is outstanding.")
	runCmd.PersistentFlags().BoolVar(&rawArgs.dryRun, "dry-run", false, "Pass list-only mode through to the copy engine instead of actually copying.")
	runCmd.PersistentFlags().BoolVar(&rawArgs.verboseLogging, "verbose", false, "Pass verbose logging through to the copy engine.")
	runCmd.PersistentFlags().BoolVar(&rawArgs.ignoreCheckpoint, "ignore-checkpoint", false, "Start fresh instead of resuming from a saved checkpoint.")

	rootCmd.AddCommand(runCmd)
}

// process cooks the raw flags, starts the run, and drives it to completion
// with repeated Tick calls -- one profile at a time, the way BeginProfile's
// doc comment describes the run-level sequence.
func (raw rawRunCmdArgs) process() error {
	settings, deps, err := raw.cook()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(appLogPathFolder, 0o755); err != nil {
		return fmt.Errorf("create log folder: %w", err)
	}
	if err := os.MkdirAll(appCheckpointFolder, 0o755); err != nil {
		return fmt.Errorf("create checkpoint folder: %w", err)
	}

	run, err := orchestrator.StartReplicationRun(settings, deps)
	if err != nil {
		return err
	}

	logger := common.NewRunLogger(run.SessionID, parseLogLevel(logVerbosity), appLogPathFolder)
	logger.OpenLog()
	common.CurrentRunLogger = logger
	defer logger.CloseLog()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-interrupt
		glcm.Warn("stop requested, draining in-flight jobs before exiting")
		run.RequestStop()
	}()
	defer signal.Stop(interrupt)

	for i := range settings.Profiles {
		if run.State.StopRequested.Get() {
			break
		}
		if err := run.BeginProfile(i); err != nil {
			common.LogToRunLogWithPrefix(fmt.Sprintf("profile %q failed to start: %v", settings.Profiles[i].Name, err), common.ELogLevel.Error())
			continue
		}

		for {
			done, err := run.Tick()
			if err != nil {
				common.LogToRunLogWithPrefix(fmt.Sprintf("tick error: %v", err), common.ELogLevel.Error())
			}
			if done {
				break
			}
			time.Sleep(raw.tickInterval)
		}

		run.FinishProfile()

		status := run.GetOrchestrationStatus()
		glcm.Info(fmt.Sprintf("profile %q finished: %d/%d chunks complete, %d failed",
			settings.Profiles[i].Name, status.ChunksComplete, status.ChunksTotal, status.ChunksFailed))

		if run.State.StopRequested.Get() {
			break
		}
	}

	run.Finish()

	return nil
}
