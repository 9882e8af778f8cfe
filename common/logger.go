// Copyright © 2017 Microsoft <wastore@microsoft.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package common

import (
	"fmt"
	"io"
	"log"
	"path"
	"runtime"
	"strings"
	"time"
)

var CurrentRunLogger ILoggerResetable

// LogToRunLogWithPrefix logs to the currently-installed run logger, if any.
func LogToRunLogWithPrefix(msg string, level LogLevel) {
	if CurrentRunLogger != nil {
		prefix := ""
		if level <= LogWarning {
			prefix = fmt.Sprintf("%s: ", level) // so readers can find serious ones, but info still looks uncluttered without a prefix
		}
		CurrentRunLogger.Log(level, prefix+msg)
	}
}

type ILogger interface {
	ShouldLog(level LogLevel) bool
	Log(level LogLevel, msg string)
	Panic(err error)
}

type ILoggerCloser interface {
	ILogger
	CloseLog()
}

type ILoggerResetable interface {
	OpenLog()
	MinimumLogLevel() LogLevel
	ILoggerCloser
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

type LogLevelOverrideLogger struct {
	ILoggerResetable
	MinimumLevelToLog LogLevel
}

func (l LogLevelOverrideLogger) MinimumLogLevel() LogLevel {
	return l.MinimumLevelToLog
}

func (l LogLevelOverrideLogger) ShouldLog(level LogLevel) bool {
	if level == LogNone {
		return false
	}
	return level <= l.MinimumLevelToLog
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////////////////

const maxLogSize = 500 * 1024 * 1024

// runLogger is the one log file for a whole replication run (as opposed to a
// per-chunk copy-engine log, which the copy engine writes itself and the
// adapter only parses). Grounded on the teacher's per-job logger, generalized
// from "one log per job" to "one log per run" since the core now supervises
// many short-lived external processes rather than owning the transfer itself.
type runLogger struct {
	sessionID         SessionID
	minimumLevelToLog LogLevel
	file              io.WriteCloser
	logFileFolder     string
	logger            *log.Logger
	sanitizer         LogSanitizer
}

func NewRunLogger(sessionID SessionID, minimumLevelToLog LogLevel, logFileFolder string) ILoggerResetable {
	return &runLogger{
		sessionID:         sessionID,
		minimumLevelToLog: minimumLevelToLog,
		logFileFolder:     logFileFolder,
		sanitizer:         NewLogSanitizer(),
	}
}

func (rl *runLogger) OpenLog() {
	if rl.minimumLevelToLog == LogNone {
		return
	}

	file, err := NewRotatingWriter(path.Join(rl.logFileFolder, rl.sessionID.String()+".log"), maxLogSize)
	PanicIfErr(err)

	rl.file = file

	flags := log.LstdFlags | log.LUTC
	utcMessage := fmt.Sprintf("Log times are in UTC. Local time is %s", time.Now().Format("2 Jan 2006 15:04:05"))

	rl.logger = log.New(rl.file, "", flags)
	rl.logger.Println("ModuleVersion", ModuleVersion)
	rl.logger.Println("OS-Environment", runtime.GOOS)
	rl.logger.Println("OS-Architecture", runtime.GOARCH)
	rl.logger.Println(utcMessage)
}

func (rl *runLogger) MinimumLogLevel() LogLevel {
	return rl.minimumLevelToLog
}

func (rl *runLogger) ShouldLog(level LogLevel) bool {
	if level == LogNone {
		return false
	}
	return level <= rl.minimumLevelToLog
}

func (rl *runLogger) CloseLog() {
	if rl.minimumLevelToLog == LogNone {
		return
	}
	rl.logger.Println("Closing Log")
	_ = rl.file.Close() // if it was already closed, that's fine -- we wanted it closed anyway
}

func (rl runLogger) Log(loglevel LogLevel, msg string) {
	msg = rl.sanitizer.SanitizeLogMessage(msg)

	if lineEnding != "\n" {
		msg = strings.Replace(msg, "\n", lineEnding, -1)
	}
	if rl.ShouldLog(loglevel) {
		rl.logger.Println(msg)
	}
}

func (rl runLogger) Panic(err error) {
	rl.logger.Println(err) // record the error in the run log before panicking
	panic(err)
	// we should never reach this line of code!
}

func IsForceLoggingDisabled() bool {
	return GetLifecycleMgr().IsForceLoggingDisabled()
}

type causer interface {
	Cause() error
}

// Cause walks all the preceding errors and returns the originating error.
func Cause(err error) error {
	for err != nil {
		cause, ok := err.(causer)
		if !ok {
			break
		}
		err = cause.Cause()
	}
	return err
}
