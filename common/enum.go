package common

import (
	"reflect"

	"github.com/JeffreyRichter/enum/enum"
)

// EnumHelper adapts github.com/JeffreyRichter/enum/enum's free functions to a
// value-receiver method set, so every "E<Type>" enum in this module (RunPhase,
// ChunkStatus, ScanMode, ExitSeverity, ProfileResultStatus, LogLevel, ...)
// can write the single call EnumHelper{}.StringInteger(v, reflect.TypeOf(v))
// for its String method.
type EnumHelper struct{}

// StringInteger returns the matching method-symbol name for intValue on
// enumType, or its decimal value if no symbol matches.
func (EnumHelper) StringInteger(intValue interface{}, enumType reflect.Type) string {
	return enum.StringInt(intValue, enumType)
}

// Parse finds an enum symbol method on *enumTypePtr named s.
func (EnumHelper) Parse(enumTypePtr reflect.Type, s string, caseInsensitive bool) (interface{}, error) {
	return enum.Parse(enumTypePtr, s, caseInsensitive)
}

// ParseInteger is like Parse but falls back to parsing s as a plain integer
// of the enum's underlying width when no symbol matches and strict is false.
func (EnumHelper) ParseInteger(enumTypePtr reflect.Type, s string, caseInsensitive bool, strict bool) (interface{}, error) {
	return enum.ParseInt(enumTypePtr, s, caseInsensitive, strict)
}
