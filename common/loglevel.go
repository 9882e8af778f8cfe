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

import "reflect"

// LogLevel mirrors the severities a run logger or health probe cares about.
// Lower values are more severe; ShouldLog treats the configured minimum as a ceiling.
type LogLevel uint8

var ELogLevel = LogLevel(0)

func (LogLevel) None() LogLevel    { return LogLevel(0) }
func (LogLevel) Fatal() LogLevel   { return LogLevel(1) }
func (LogLevel) Panic() LogLevel   { return LogLevel(2) }
func (LogLevel) Error() LogLevel   { return LogLevel(3) }
func (LogLevel) Warning() LogLevel { return LogLevel(4) }
func (LogLevel) Info() LogLevel    { return LogLevel(5) }
func (LogLevel) Debug() LogLevel   { return LogLevel(6) }

const (
	LogNone    = LogLevel(0)
	LogFatal   = LogLevel(1)
	LogPanic   = LogLevel(2)
	LogError   = LogLevel(3)
	LogWarning = LogLevel(4)
	LogInfo    = LogLevel(5)
	LogDebug   = LogLevel(6)
)

func (l LogLevel) String() string {
	return EnumHelper{}.StringInteger(l, reflect.TypeOf(l))
}

func (l *LogLevel) Parse(s string) error {
	val, err := EnumHelper{}.Parse(reflect.TypeOf(l), s, true)
	if err == nil {
		*l = val.(LogLevel)
	}
	return err
}
