package common

// OutputSink defines a small set of function callbacks that control how the
// CLI surfaces informational and warning text to the console, independent of
// the run log.
//
// This is implemented as a struct of function fields rather than an
// interface, so that safe no-op defaults can be provided: callers override
// only the 1-2 callbacks they care about instead of implementing all of them.
//
// Example:
//
//	s := NewOutputSink()
//	s.Warn = func(msg string) { fmt.Println("warning:", msg) }
type OutputSink struct {
	Info                func(string)
	Warn                func(string)
	forceLoggingDisable bool
}

func NewOutputSink() *OutputSink {
	return &OutputSink{
		Info: func(msg string) {},
		Warn: func(msg string) {},
	}
}

func (s *OutputSink) IsForceLoggingDisabled() bool {
	return s.forceLoggingDisable
}

func (s *OutputSink) SetForceLoggingDisabled(disabled bool) {
	s.forceLoggingDisable = disabled
}

var lcm *OutputSink = NewOutputSink()

func GetLifecycleMgr() *OutputSink {
	return lcm
}

func SetOutputSink(sink *OutputSink) {
	lcm = sink
}

// PanicIfErr captures the common logic of exiting if there's an unexpected error.
func PanicIfErr(err error) {
	if err != nil {
		panic(err)
	}
}
