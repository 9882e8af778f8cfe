package common

import (
	"log"
	"os"
	"path"
)

var LogPathFolder string
var CheckpointFolder string

// InitializeFolders resolves the log and checkpoint directories, preferring
// user-specified env vars and falling back to a module-owned app folder under
// the user's home directory, the same layout convention the teacher CLI uses
// for its own job-plan folder.
func InitializeFolders() {
	LogPathFolder = os.Getenv("REPLISTORE_LOG_LOCATION")
	CheckpointFolder = os.Getenv("REPLISTORE_CHECKPOINT_LOCATION")

	appPathFolder := getAppPath()

	if LogPathFolder == "" {
		LogPathFolder = appPathFolder
	}
	if err := os.MkdirAll(LogPathFolder, os.ModeDir|os.ModePerm); err != nil && !os.IsExist(err) {
		log.Fatalf("problem making log directory. try setting REPLISTORE_LOG_LOCATION: %v", err)
	}

	if CheckpointFolder == "" {
		if err := os.MkdirAll(appPathFolder, os.ModeDir); err != nil && !os.IsExist(err) {
			log.Fatalf("problem making app directory. try setting REPLISTORE_CHECKPOINT_LOCATION: %v", err)
		}
		CheckpointFolder = path.Join(appPathFolder, "checkpoints")
	}

	if err := os.MkdirAll(CheckpointFolder, os.ModeDir|os.ModePerm); err != nil && !os.IsExist(err) {
		log.Fatalf("problem making checkpoint directory. try setting REPLISTORE_CHECKPOINT_LOCATION: %v", err)
	}
}

func getAppPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return path.Join(home, ".replistore")
}
