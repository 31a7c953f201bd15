package kafka

import (
	"errors"
	"testing"

	ck "github.com/confluentinc/confluent-kafka-go/kafka"
)

func TestSearchHeaderValue(t *testing.T) {
	headers := []ck.Header{
		{Key: "message-id", Value: []byte("abc")},
		{Key: "kind", Value: []byte("command")},
	}

	if v := SearchHeaderValue(headers, "kind"); string(v) != "command" {
		t.Fatalf("Unexpected header value %q", v)
	}

	if v := SearchHeaderValue(headers, "missing"); v != nil {
		t.Fatalf("Expected nil for a missing header, got %q", v)
	}
}

func TestIsReadTimeout(t *testing.T) {
	if IsReadTimeout(nil, nil) {
		t.Fatal("nil error is not a read timeout")
	}

	if IsReadTimeout(nil, errors.New("other")) {
		t.Fatal("plain error is not a read timeout")
	}

	if !IsReadTimeout(nil, ck.NewError(ck.ErrTimedOut, "read message timeout", false)) {
		t.Fatal("Expected a read timeout")
	}
}
