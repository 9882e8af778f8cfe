// Copyright Microsoft <wastore@microsoft.com>
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
	"regexp"
	"strings"
)

// LogSanitizer performs string-replacement based log redaction. This serves
// as a backstop to make sure that secrets that leak into copy-engine stderr
// or snapshot-provider error text (for example embedded in a mapped-drive
// credential URL) don't end up verbatim in the run log.
type LogSanitizer interface {
	SanitizeLogMessage(raw string) string
}

type replicationLogSanitizer struct{}

func NewLogSanitizer() LogSanitizer {
	return &replicationLogSanitizer{}
}

// credentialLikePattern matches "key=value"-shaped substrings whose key looks
// like a credential (password, token, secret, sig, apikey, api_key),
// case-insensitive.
var credentialLikePattern = regexp.MustCompile(`(?i)(password|token|secret|sig|apikey|api_key)=[^&\s]+`)

// SanitizeLogMessage redacts credential-like "key=value" fragments, replacing
// the value with "REDACTED" while preserving the key for diagnosability.
func (s *replicationLogSanitizer) SanitizeLogMessage(raw string) string {
	return credentialLikePattern.ReplaceAllStringFunc(raw, func(match string) string {
		idx := strings.IndexByte(match, '=')
		if idx < 0 {
			return match
		}
		return match[:idx+1] + "REDACTED"
	})
}
