package copyengine

import (
	"bufio"
	"encoding/json"
	"os"
)

// completionStats is what parseCompletionLog extracts once a job's process
// has exited: the summary line's counters plus every error line seen, in the
// order they were written.
type completionStats struct {
	FilesCopied   int64
	BytesCopied   int64
	ErrorMessages []string
}

// parseCompletionLog reads a finished job's log end to end. It tolerates a
// log with no summary line (the process may have died before writing one) by
// returning zero counters rather than failing the whole parse -- a dead
// process with a useless log is still a terminal outcome the scheduler must
// be able to classify.
func parseCompletionLog(logPath string) (completionStats, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return completionStats{}, err
	}
	defer f.Close()

	var stats completionStats
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line logLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue // a non-JSON line (stray stderr output) is not fatal to parsing
		}
		switch line.Type {
		case logLineTypeSummary:
			stats.FilesCopied = line.FilesCopied
			stats.BytesCopied = line.BytesCopied
		case logLineTypeError:
			stats.ErrorMessages = append(stats.ErrorMessages, line.Message)
		}
	}
	return stats, scanner.Err()
}

// tailLastProgressLine returns the most recent "progress" line's byte count,
// read by scanning the whole file -- logs are small enough per chunk that a
// full scan is simpler and safer than seek-from-end heuristics, and this is
// already documented as best-effort.
func tailLastProgressLine(logPath string) (int64, bool) {
	f, err := os.Open(logPath)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	var lastBytes int64
	found := false
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line logLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		if line.Type == logLineTypeProgress {
			lastBytes = line.BytesCopied
			found = true
		}
	}
	return lastBytes, found
}
