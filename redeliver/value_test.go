package redeliver

import "testing"

func TestParse(t *testing.T) {
	for in, expected := range map[string]Value{
		"ON":      On,
		"OFF":     Off,
		"UNDEF":   Undef,
		"NULL":    Null,
		" ON\n":   On,
		"42":      StringType("42"),
		"42\n":    StringType("42"),
		" 21 ":    StringType("21"),
		"on":      StringType("on"),
		"":        StringType(""),
		"OPEN":    StringType("OPEN"),
		"21.5 °C": StringType("21.5 °C"),
	} {
		if got := Parse(in); got != expected {
			t.Fatalf("Parse(%q) = %#v, expected %#v", in, got, expected)
		}
	}
}

func TestMatches(t *testing.T) {
	for _, tc := range []struct {
		command Command
		state   State
		match   bool
	}{
		{On, On, true},
		{On, StringType("ON"), true},
		{StringType("OFF"), Off, true},
		{On, Off, false},
		{On, Undef, false},
		{StringType("42"), StringType("42.0"), false},
		{nil, On, false},
		{On, nil, false},
	} {
		if got := Matches(tc.command, tc.state); got != tc.match {
			t.Fatalf("Matches(%v, %v) = %v, expected %v", tc.command, tc.state, got, tc.match)
		}
	}
}

func TestParsedPayloadsMatchRegardlessOfWhitespace(t *testing.T) {
	if !Matches(Parse("42\n"), Parse("42")) {
		t.Fatal("Expected payloads differing only in whitespace to match")
	}
}
