package orchestrator

import (
	"reflect"

	"github.com/ashgrove/replistore/common"
)

// RunPhase tracks the coarse lifecycle of a replication run, following the
// enum idiom used throughout the ambient stack: a zero-arg method per symbol,
// reflection-driven String()/Parse().
type RunPhase uint8

var ERunPhase = RunPhase(0)

func (RunPhase) Idle() RunPhase        { return RunPhase(0) }
func (RunPhase) Replicating() RunPhase { return RunPhase(1) }
func (RunPhase) Stopped() RunPhase     { return RunPhase(2) }
func (RunPhase) Complete() RunPhase    { return RunPhase(3) }

func (p RunPhase) String() string {
	return common.EnumHelper{}.StringInteger(p, reflect.TypeOf(p))
}
