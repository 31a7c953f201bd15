package redeliver

import "strings"

// Value is anything that can travel between an item and a handler. Its
// String form is the canonical representation used for matching.
type Value interface {
	String() string
}

type Command = Value
type State = Value

type StringType string

func (s StringType) String() string {
	return string(s)
}

type OnOffType bool

const (
	On  OnOffType = true
	Off OnOffType = false
)

func (o OnOffType) String() string {
	if o {
		return "ON"
	}

	return "OFF"
}

type UnDefType int

const (
	Undef UnDefType = iota
	Null
)

func (u UnDefType) String() string {
	if u == Null {
		return "NULL"
	}

	return "UNDEF"
}

// Parse turns a wire payload into the narrowest known value type. Surrounding
// whitespace is not part of the value.
func Parse(s string) Value {
	s = strings.TrimSpace(s)

	switch s {
	case "ON":
		return On
	case "OFF":
		return Off
	case "UNDEF":
		return Undef
	case "NULL":
		return Null
	default:
		return StringType(s)
	}
}

// Matches reports whether state confirms command. The comparison is purely
// textual so that values of different types with the same text match.
func Matches(command Command, state State) bool {
	if command == nil || state == nil {
		return false
	}

	return command.String() == state.String()
}
