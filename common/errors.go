// Copyright © Microsoft <wastore@microsoft.com>
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
	"github.com/pkg/errors"
)

// ReplicationError carries a stable numeric code alongside the usual message,
// so callers (and tests) can branch on "what kind of failure" without string
// matching, while still composing with pkg/errors' Wrap/Cause chains.
type ReplicationError struct {
	code           uint64
	msg            string
	additionalInfo string
	cause          error
}

func (e ReplicationError) ErrorCode() uint64 { return e.code }

func (lhs ReplicationError) Equals(rhs ReplicationError) bool { return lhs.code == rhs.code }

func (e ReplicationError) Error() string {
	if e.additionalInfo != "" {
		return e.msg + ": " + e.additionalInfo
	}
	return e.msg
}

func (e ReplicationError) Cause() error { return e.cause }

// WithInfo attaches caller-supplied context to a base ReplicationError.
func (e ReplicationError) WithInfo(additionalInfo string) ReplicationError {
	e.additionalInfo = additionalInfo
	return e
}

// WithCause wraps an underlying error (e.g. an os.PathError) via pkg/errors so
// %+v printing retains a stack trace at the wrap site.
func (e ReplicationError) WithCause(cause error) ReplicationError {
	e.cause = errors.WithStack(cause)
	return e
}

var EReplicationError ReplicationError

// Taxonomy from the error handling design: each constructor names one outcome
// a caller can test for with Equals, independent of message text.
func (ReplicationError) ProfilePreflightFailure() ReplicationError {
	return ReplicationError{code: 1, msg: "profile preflight failed: source path inaccessible"}
}

func (ReplicationError) SnapshotUnavailable() ReplicationError {
	return ReplicationError{code: 2, msg: "snapshot unavailable for profile"}
}

func (ReplicationError) BreakerTripped() ReplicationError {
	return ReplicationError{code: 3, msg: "circuit breaker tripped"}
}

func (ReplicationError) FatalInfrastructureFailure() ReplicationError {
	return ReplicationError{code: 4, msg: "copy engine is not invocable"}
}

func (ReplicationError) CheckpointSchemaMismatch() ReplicationError {
	return ReplicationError{code: 5, msg: "checkpoint schema version mismatch"}
}

func (ReplicationError) CheckpointCorrupt() ReplicationError {
	return ReplicationError{code: 6, msg: "checkpoint file is corrupt"}
}

func (ReplicationError) ConfigLoadFailure() ReplicationError {
	return ReplicationError{code: 7, msg: "invalid run configuration"}
}

func (ReplicationError) SnapshotProviderBusy() ReplicationError {
	return ReplicationError{code: 8, msg: "snapshot provider reported a transient failure"}
}
