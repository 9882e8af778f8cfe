package copyengine

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ashgrove/replistore/orchestrator"
	"github.com/ashgrove/replistore/planner"
)

// Exit codes the external copier is expected to use. These are adapter-
// private: nothing outside this package interprets a raw exit code.
const (
	exitSuccess  = 0
	exitWarning  = 1
	exitError    = 2
	exitFatal    = 3
	exitMismatch = 4 // "destination has extra files" -- reclassified by MismatchSeverity
)

// Engine drives commandPath as an external per-chunk copier, building its
// argument list the way the e2e test runner builds azcopy's: a flat set of
// "--flag=value" pairs computed once per invocation, never hand-assembled
// inline at each call site.
type Engine struct {
	commandPath string
}

func NewEngine(commandPath string) *Engine {
	return &Engine{commandPath: commandPath}
}

func (e *Engine) buildArgs(chunk orchestrator.Chunk, threadsPerJob int, options orchestrator.CopyEngineOptions, dryRun bool, verboseLogging bool, rateMbps int64) []string {
	args := []string{"copy", chunk.SourcePath, chunk.DestinationPath}
	args = append(args, fmt.Sprintf("--threads=%d", threadsPerJob))
	if dryRun {
		args = append(args, "--list-only")
	}
	if verboseLogging {
		args = append(args, "--verbose")
	}
	if rateMbps > 0 {
		args = append(args, fmt.Sprintf("--cap-mbps=%d", rateMbps))
	}
	if options.RetryCount > 0 {
		args = append(args, fmt.Sprintf("--retry-count=%d", options.RetryCount))
	}
	if options.RetryWait > 0 {
		args = append(args, fmt.Sprintf("--retry-wait=%s", options.RetryWait))
	}
	if len(options.ExcludedFiles) > 0 {
		args = append(args, "--exclude-pattern="+strings.Join(options.ExcludedFiles, ";"))
	}
	if len(options.ExcludedDirs) > 0 {
		args = append(args, "--exclude-path="+strings.Join(options.ExcludedDirs, ";"))
	}
	if options.MirrorDelete {
		args = append(args, "--mirror-delete")
	}
	return args
}

// Start launches one chunk's copy as a child process, redirecting its
// stdout/stderr into logPath -- the adapter owns that file's lifecycle, not
// the external command.
func (e *Engine) Start(chunk orchestrator.Chunk, logPath string, threadsPerJob int, options orchestrator.CopyEngineOptions, dryRun bool, verboseLogging bool, rateMbps int64) (orchestrator.JobProcessHandle, error) {
	args := e.buildArgs(chunk, threadsPerJob, options, dryRun, verboseLogging, rateMbps)
	cmd := exec.Command(e.commandPath, args...)

	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("create job log %s: %w", logPath, err)
	}
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	handle, err := startProcessHandle(cmd, logPath, logFile)
	if err != nil {
		_ = logFile.Close()
		return nil, err
	}
	return handle, nil
}

// Classify maps one job's exit into the four-severity taxonomy, honoring a
// per-run override for the "destination has extra files" mismatch code --
// a caller may want that treated as a clean success, a warning, or an error
// depending on the profile's intent.
func (e *Engine) Classify(result orchestrator.ExitResult, options orchestrator.CopyEngineOptions) orchestrator.Classification {
	message := "completed"
	if len(result.ErrorMessages) > 0 {
		message = result.ErrorMessages[len(result.ErrorMessages)-1]
	}

	switch result.ExitCode {
	case exitSuccess:
		return orchestrator.Classification{Severity: orchestrator.EExitSeverity.Success(), Message: message}
	case exitMismatch:
		// MismatchSeverity applies strictly to the mismatch code range: an exit
		// that also carries real error messages is classified by the error and
		// never downgraded by the override, even though its exit code is
		// exitMismatch. Only a mismatch-only exit (no accompanying errors)
		// honors the override.
		if len(result.ErrorMessages) > 0 {
			return orchestrator.Classification{Severity: orchestrator.EExitSeverity.Error(), ShouldRetry: true, Message: message}
		}
		severity := orchestrator.EExitSeverity.Warning()
		if options.MismatchSeverity != nil {
			severity = *options.MismatchSeverity
		}
		return orchestrator.Classification{Severity: severity, ShouldRetry: false, Message: "destination has extra files not present at source"}
	case exitWarning:
		return orchestrator.Classification{Severity: orchestrator.EExitSeverity.Warning(), ShouldRetry: false, Message: message}
	case exitError:
		return orchestrator.Classification{Severity: orchestrator.EExitSeverity.Error(), ShouldRetry: true, Message: message}
	case exitFatal:
		return orchestrator.Classification{Severity: orchestrator.EExitSeverity.Fatal(), ShouldRetry: false, Message: message}
	default:
		return orchestrator.Classification{Severity: orchestrator.EExitSeverity.Error(), ShouldRetry: true, Message: fmt.Sprintf("unrecognized exit code %d: %s", result.ExitCode, message)}
	}
}

// Progress best-effort samples a running job's log tail. A log that can't be
// read (not yet created, mid-write) yields (nil, nil) rather than an error --
// progress sampling is advisory and must never be mistaken for a terminal
// outcome.
func (e *Engine) Progress(job *orchestrator.Job) (*orchestrator.JobProgress, error) {
	bytesCopied, ok := tailLastProgressLine(job.LogPath)
	if !ok {
		return nil, nil
	}
	elapsed := time.Since(job.StartTime)
	var speedBps int64
	if elapsed > 0 {
		speedBps = int64(float64(bytesCopied) / elapsed.Seconds())
	}
	return &orchestrator.JobProgress{BytesCopied: bytesCopied, SpeedBps: speedBps}, nil
}

// List runs the engine synchronously in list-only mode and parses its
// "<size> <path>" lines, implementing planner.Lister so the Directory
// Profiler and Chunk Planner reuse the exact same enumeration the copy
// engine itself would walk.
func (e *Engine) List(path string) ([]planner.ListEntry, error) {
	cmd := exec.Command(e.commandPath, "copy", path, os.DevNull, "--list-only")
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("list %s: %w: %s", path, err, strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	return parseListOutput(string(out)), nil
}

// parseListOutput parses "<size> <path>" lines; a path ending in the OS
// separator denotes a directory, per the list-only contract.
func parseListOutput(output string) []planner.ListEntry {
	var entries []planner.ListEntry
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			continue
		}
		size, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		rawPath := fields[1]
		isDir := strings.HasSuffix(rawPath, "/") || strings.HasSuffix(rawPath, string(os.PathSeparator))
		entries = append(entries, planner.ListEntry{
			Path:  strings.TrimRight(rawPath, "/"+string(os.PathSeparator)),
			Size:  size,
			IsDir: isDir,
		})
	}
	return entries
}
