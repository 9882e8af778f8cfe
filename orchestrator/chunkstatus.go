package orchestrator

import (
	"reflect"

	"github.com/ashgrove/replistore/common"
)

// ChunkStatus is a chunk's position in the state machine: Pending -> Running
// -> {CompleteOk, CompleteWithWarnings, Failed, Skipped}, with a failing
// Running chunk allowed back to Pending (retryCount+1) up to MaxChunkRetries.
type ChunkStatus uint8

var EChunkStatus = ChunkStatus(0)

func (ChunkStatus) Pending() ChunkStatus              { return ChunkStatus(0) }
func (ChunkStatus) Running() ChunkStatus              { return ChunkStatus(1) }
func (ChunkStatus) CompleteOk() ChunkStatus            { return ChunkStatus(2) }
func (ChunkStatus) CompleteWithWarnings() ChunkStatus { return ChunkStatus(3) }
func (ChunkStatus) Failed() ChunkStatus               { return ChunkStatus(4) }
func (ChunkStatus) Skipped() ChunkStatus              { return ChunkStatus(5) }

func (s ChunkStatus) String() string {
	return common.EnumHelper{}.StringInteger(s, reflect.TypeOf(s))
}

func (s ChunkStatus) IsTerminal() bool {
	switch s {
	case EChunkStatus.CompleteOk(), EChunkStatus.CompleteWithWarnings(), EChunkStatus.Failed(), EChunkStatus.Skipped():
		return true
	default:
		return false
	}
}

// ScanMode selects the chunk planner's algorithm.
type ScanMode uint8

var EScanMode = ScanMode(0)

func (ScanMode) Smart() ScanMode { return ScanMode(0) }
func (ScanMode) Flat() ScanMode  { return ScanMode(1) }

func (m ScanMode) String() string {
	return common.EnumHelper{}.StringInteger(m, reflect.TypeOf(m))
}

// ExitSeverity is the copy engine's classification of one job's exit.
type ExitSeverity uint8

var EExitSeverity = ExitSeverity(0)

func (ExitSeverity) Success() ExitSeverity { return ExitSeverity(0) }
func (ExitSeverity) Warning() ExitSeverity { return ExitSeverity(1) }
func (ExitSeverity) Error() ExitSeverity   { return ExitSeverity(2) }
func (ExitSeverity) Fatal() ExitSeverity   { return ExitSeverity(3) }

func (s ExitSeverity) String() string {
	return common.EnumHelper{}.StringInteger(s, reflect.TypeOf(s))
}

// ProfileResultStatus summarizes how one profile's run ended.
type ProfileResultStatus uint8

var EProfileResultStatus = ProfileResultStatus(0)

func (ProfileResultStatus) Success() ProfileResultStatus { return ProfileResultStatus(0) }
func (ProfileResultStatus) Warning() ProfileResultStatus { return ProfileResultStatus(1) }

func (s ProfileResultStatus) String() string {
	return common.EnumHelper{}.StringInteger(s, reflect.TypeOf(s))
}
