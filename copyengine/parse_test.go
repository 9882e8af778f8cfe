package copyengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.log")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestParseCompletionLog_ExtractsSummaryAndErrors(t *testing.T) {
	a := assert.New(t)
	path := writeLog(t,
		`{"type":"progress","bytesCopied":10}`,
		`{"type":"error","message":"permission denied: /src/locked.txt"}`,
		`{"type":"summary","filesCopied":5,"bytesCopied":500}`,
	)

	stats, err := parseCompletionLog(path)
	a.NoError(err)
	a.Equal(int64(5), stats.FilesCopied)
	a.Equal(int64(500), stats.BytesCopied)
	a.Equal([]string{"permission denied: /src/locked.txt"}, stats.ErrorMessages)
}

func TestParseCompletionLog_TolerantOfNonJSONLines(t *testing.T) {
	a := assert.New(t)
	path := writeLog(t, "not json", `{"type":"summary","filesCopied":1,"bytesCopied":10}`)

	stats, err := parseCompletionLog(path)
	a.NoError(err)
	a.Equal(int64(1), stats.FilesCopied)
}

func TestParseCompletionLog_MissingSummaryYieldsZeroCounters(t *testing.T) {
	a := assert.New(t)
	path := writeLog(t, `{"type":"error","message":"crashed before summary"}`)

	stats, err := parseCompletionLog(path)
	a.NoError(err)
	a.Equal(int64(0), stats.FilesCopied)
	a.Equal([]string{"crashed before summary"}, stats.ErrorMessages)
}

func TestTailLastProgressLine_ReturnsMostRecentValue(t *testing.T) {
	a := assert.New(t)
	path := writeLog(t,
		`{"type":"progress","bytesCopied":10}`,
		`{"type":"progress","bytesCopied":40}`,
		`{"type":"progress","bytesCopied":90}`,
	)

	bytesCopied, ok := tailLastProgressLine(path)
	a.True(ok)
	a.Equal(int64(90), bytesCopied)
}

func TestTailLastProgressLine_MissingFileReturnsNotFound(t *testing.T) {
	a := assert.New(t)
	_, ok := tailLastProgressLine(filepath.Join(t.TempDir(), "does-not-exist.log"))
	a.False(ok)
}
