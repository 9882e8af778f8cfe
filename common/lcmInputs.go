package common

import (
	"fmt"
	"time"
)

// RunControlMsgType enumerates the control signals that may be raised from
// any thread against a running orchestrator (see RequestStop/RequestPause/
// RequestResume). ThroughputAdjustment has no Run method that raises it.
type RunControlMsgType uint16

var ERunControlMsgType RunControlMsgType

func (RunControlMsgType) Invalid() RunControlMsgType              { return RunControlMsgType(0) }
func (RunControlMsgType) Stop() RunControlMsgType                 { return RunControlMsgType(1) }
func (RunControlMsgType) Pause() RunControlMsgType                { return RunControlMsgType(2) }
func (RunControlMsgType) Resume() RunControlMsgType                { return RunControlMsgType(3) }
func (RunControlMsgType) ThroughputAdjustment() RunControlMsgType { return RunControlMsgType(4) }

var RunControlMsgTypeMap = map[string]RunControlMsgType{
	"Invalid":              ERunControlMsgType.Invalid(),
	"Stop":                 ERunControlMsgType.Stop(),
	"Pause":                ERunControlMsgType.Pause(),
	"Resume":               ERunControlMsgType.Resume(),
	"ThroughputAdjustment": ERunControlMsgType.ThroughputAdjustment(),
}

// RunControlMsg is a single timestamped control signal, logged alongside the
// run log so an operator can reconstruct why a run stopped or slowed down.
type RunControlMsg struct {
	TimeStamp time.Time `json:"timeStamp"`
	MsgType   string    `json:"messageType"`
	Value     string    `json:"value"`
}

// NewRunControlMsg stamps a control signal with the current time. Value is
// free-form context (e.g. the reason a stop was requested); callers pass ""
// when there's nothing more to say than the message type itself.
func NewRunControlMsg(t RunControlMsgType, value string) RunControlMsg {
	name := "Unknown"
	for k, v := range RunControlMsgTypeMap {
		if v == t {
			name = k
			break
		}
	}
	return RunControlMsg{TimeStamp: time.Now(), MsgType: name, Value: value}
}

func (m RunControlMsg) String() string {
	if m.Value == "" {
		return fmt.Sprintf("[%s] %s", m.TimeStamp.Format(time.RFC3339), m.MsgType)
	}
	return fmt.Sprintf("[%s] %s: %s", m.TimeStamp.Format(time.RFC3339), m.MsgType, m.Value)
}
