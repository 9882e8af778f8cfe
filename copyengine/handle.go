package copyengine

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ashgrove/replistore/orchestrator"
)

var errTimedOutWaitingForExit = errors.New("process did not exit within the stop timeout")

// processHandle adapts a started *exec.Cmd into orchestrator.JobProcessHandle.
// cmd.Wait blocks, but the scheduler's TryWait must never block -- so Wait
// runs once in a background goroutine started alongside the process, and
// TryWait just reads whatever that goroutine has published so far.
type processHandle struct {
	cmd     *exec.Cmd
	logPath string
	logFile *os.File

	mu     sync.Mutex
	exited bool
	result orchestrator.ExitResult
	done   chan struct{}
}

func startProcessHandle(cmd *exec.Cmd, logPath string, logFile *os.File) (*processHandle, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	h := &processHandle{cmd: cmd, logPath: logPath, logFile: logFile, done: make(chan struct{})}
	go h.awaitExit()
	return h, nil
}

func (h *processHandle) awaitExit() {
	waitErr := h.cmd.Wait()
	if h.logFile != nil {
		_ = h.logFile.Close()
	}

	exitCode := 0
	if waitErr != nil {
		if ee, ok := waitErr.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		} else {
			exitCode = -1 // process never ran to an exit code we can read (e.g. killed before start completed)
		}
	}

	stats, _ := parseCompletionLog(h.logPath) // a log read failure just yields zero counters

	h.mu.Lock()
	h.exited = true
	h.result = orchestrator.ExitResult{
		ExitCode:      exitCode,
		FilesCopied:   stats.FilesCopied,
		BytesCopied:   stats.BytesCopied,
		ErrorMessages: stats.ErrorMessages,
	}
	h.mu.Unlock()
	close(h.done)
}

// TryWait is the non-blocking poll the scheduler's reap step calls every
// tick -- it must never wait on the child process itself.
func (h *processHandle) TryWait() (bool, orchestrator.ExitResult) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return true, h.result
	default:
		return false, orchestrator.ExitResult{}
	}
}

// Kill terminates the process and waits up to timeout for awaitExit to
// observe it, so a caller that immediately reads ActiveJobs after Kill sees
// a consistent "no longer running" state rather than racing the reaper.
func (h *processHandle) Kill(timeout time.Duration) error {
	select {
	case <-h.done:
		return nil // already exited on its own
	default:
	}

	killErr := h.cmd.Process.Kill()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.done:
		return killErr
	case <-timer.C:
		if killErr != nil {
			return killErr
		}
		return errTimedOutWaitingForExit
	}
}
