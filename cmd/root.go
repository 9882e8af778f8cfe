// Package cmd wires the orchestrator, planner, checkpoint, snapshot, and
// copyengine packages into a small command-line front end.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashgrove/replistore/common"
)

var (
	appLogPathFolder    string
	appCheckpointFolder string
	logVerbosity        string
)

// glcm mirrors the teacher's pattern of a single process-wide output sink
// that commands write to instead of calling fmt.Println directly, so the
// output channel can be swapped (e.g. for a quieter test harness) in one place.
var glcm = common.GetLifecycleMgr()

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "replistore",
	Short: "Drive directory replication runs against an external copy engine",
	Long: "replistore plans, schedules, and checkpoints directory replication runs. " +
		"It owns no file transfer logic itself -- every byte moves through an external copy engine process.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appLogPathFolder == "" || appCheckpointFolder == "" {
			common.InitializeFolders()
			if appLogPathFolder == "" {
				appLogPathFolder = common.LogPathFolder
			}
			if appCheckpointFolder == "" {
				appCheckpointFolder = common.CheckpointFolder
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and runs it. Called
// once from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	glcm.Info = func(msg string) { fmt.Println(msg) }
	glcm.Warn = func(msg string) { fmt.Fprintln(os.Stderr, "warning:", msg) }

	rootCmd.PersistentFlags().StringVar(&appLogPathFolder, "log-folder", "", "Folder where per-run job logs and the run log are written. Defaults to REPLISTORE_LOG_LOCATION or ~/.replistore.")
	rootCmd.PersistentFlags().StringVar(&appCheckpointFolder, "checkpoint-folder", "", "Folder where checkpoint files are saved and loaded. Defaults to REPLISTORE_CHECKPOINT_LOCATION or ~/.replistore/checkpoints.")
	rootCmd.PersistentFlags().StringVar(&logVerbosity, "log-level", "info", "Minimum severity written to the run log: none, fatal, error, warning, info, debug.")
}

func parseLogLevel(raw string) common.LogLevel {
	switch raw {
	case "none":
		return common.ELogLevel.None()
	case "fatal":
		return common.ELogLevel.Fatal()
	case "error":
		return common.ELogLevel.Error()
	case "warning":
		return common.ELogLevel.Warning()
	case "debug":
		return common.ELogLevel.Debug()
	default:
		return common.ELogLevel.Info()
	}
}
