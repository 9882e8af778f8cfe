package copyengine

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProcessHandle_KillTerminatesLongRunningProcess(t *testing.T) {
	a := assert.New(t)
	if runtime.GOOS == "windows" {
		t.Skip("uses a unix sleep command")
	}

	logPath := filepath.Join(t.TempDir(), "job.log")
	logFile, err := os.Create(logPath)
	a.NoError(err)

	cmd := exec.Command("sleep", "30")
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	handle, err := startProcessHandle(cmd, logPath, logFile)
	a.NoError(err)

	exited, _ := handle.TryWait()
	a.False(exited)

	a.NoError(handle.Kill(2 * time.Second))

	exited, _ = handle.TryWait()
	a.True(exited)
}

func TestProcessHandle_TryWaitReportsExitResultAfterNaturalExit(t *testing.T) {
	a := assert.New(t)
	if runtime.GOOS == "windows" {
		t.Skip("uses a unix true command")
	}

	logPath := filepath.Join(t.TempDir(), "job.log")
	logFile, err := os.Create(logPath)
	a.NoError(err)

	cmd := exec.Command("true")
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	handle, err := startProcessHandle(cmd, logPath, logFile)
	a.NoError(err)

	deadline := time.Now().Add(2 * time.Second)
	var exited bool
	for time.Now().Before(deadline) {
		exited, _ = handle.TryWait()
		if exited {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	a.True(exited)
}
