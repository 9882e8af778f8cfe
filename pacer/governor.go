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

// Package pacer implements the Bandwidth Governor: it turns an aggregate
// bandwidth cap and a live active-job count into a per-job pacing parameter
// handed to the copy engine at spawn time. Unlike a request-level pacer that
// can repitch an in-flight HTTP body, the copy engine is an opaque external
// process whose pacing cannot be adjusted once started -- so the governor
// only ever influences jobs at the moment they are dispatched.
package pacer

import "sync/atomic"

// Governor computes each newly-dispatched job's fair share of an aggregate
// bandwidth cap, given how many jobs are already running. A cap of 0 disables
// pacing entirely -- PerJobRateMbps then returns 0, which the copy engine
// adapter must treat as "unbounded" rather than "stalled".
type Governor struct {
	aggregateCapMbps int64
	activeJobCount   atomic.Int64
}

func NewGovernor(aggregateCapMbps int64) *Governor {
	return &Governor{aggregateCapMbps: aggregateCapMbps}
}

// JobStarted must be called exactly once per dispatched job, before
// PerJobRateMbps is read for that job, so n already includes it.
func (g *Governor) JobStarted() {
	g.activeJobCount.Add(1)
}

// JobFinished must be called exactly once per job that leaves activeJobs
// (on any terminal outcome), so future dispatches see a fresher, fairer share.
func (g *Governor) JobFinished() {
	for {
		cur := g.activeJobCount.Load()
		if cur == 0 {
			return // defensive: never go negative on a double-reported finish
		}
		if g.activeJobCount.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// PerJobRateMbps returns the pacing parameter to hand the copy engine for a
// job about to be dispatched, given the active-job count as of JobStarted's
// most recent call (n already includes the job being dispatched, per §4.9:
// "n . perJobRate ~= B"). 0 means "no cap" and is returned only when B=0; a
// zero recorded active-job count is treated as n=1, so the whole cap goes to
// the one job.
func (g *Governor) PerJobRateMbps() int64 {
	if g.aggregateCapMbps <= 0 {
		return 0
	}
	n := g.activeJobCount.Load()
	if n <= 0 {
		n = 1
	}
	perJob := g.aggregateCapMbps / n
	if perJob < 1 {
		// Never round down to 0 and accidentally stall a job when the cap is
		// merely thin relative to job count; 1 Mbps is effectively a floor.
		perJob = 1
	}
	return perJob
}

// ActiveJobCount reports the governor's current view of active jobs, mainly for tests and health reporting.
func (g *Governor) ActiveJobCount() int64 {
	return g.activeJobCount.Load()
}

// SetAggregateCapMbps changes the cap for jobs dispatched from this point
// forward; already-running jobs keep whatever rate they were started with,
// since the copy engine cannot be repitched after start.
func (g *Governor) SetAggregateCapMbps(capMbps int64) {
	g.aggregateCapMbps = capMbps
}
