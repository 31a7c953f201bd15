package bridge

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/go-cmp/cmp"
	"github.com/peaceman/redeliver-go/redeliver"
)

type recordingSink struct {
	mu       sync.Mutex
	commands []string
	updates  []string
}

func (s *recordingSink) HandleCommand(c redeliver.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commands = append(s.commands, c.String())
}

func (s *recordingSink) SendUpdate(st redeliver.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates = append(s.updates, st.String())
}

type fixture struct {
	dispatcher *Dispatcher
	sinks      map[string]*recordingSink
}

func newFixture() *fixture {
	f := &fixture{sinks: make(map[string]*recordingSink)}
	f.dispatcher = &Dispatcher{
		Topics: topicConfig,
		Factory: func(key string) (*redeliver.Controller, error) {
			sink := &recordingSink{}
			f.sinks[key] = sink

			return redeliver.New(sink, redeliver.Config{MaxRedeliveries: 1, Delay: time.Hour}, redeliver.WithKey(key))
		},
	}

	return f
}

func message(topic string, key string, value string) *ck.Message {
	return &ck.Message{
		TopicPartition: ck.TopicPartition{Topic: &topic},
		Key:            []byte(key),
		Value:          []byte(value),
	}
}

func (f *fixture) handle(t *testing.T, topic string, key string, value string) {
	t.Helper()

	if err := f.dispatcher.Handle(message(topic, key, value)); err != nil {
		t.Fatalf("Failed to handle message: %v", err)
	}
}

func TestDispatcher_RoutesTopicsToEntryPoints(t *testing.T) {
	f := newFixture()
	defer f.dispatcher.Close()

	f.handle(t, topicConfig.ItemCommand, "lamp", "ON")
	f.handle(t, topicConfig.HandlerState, "lamp", "UNDEF")
	f.handle(t, topicConfig.HandlerCommand, "lamp", "REFRESH")

	sink := f.sinks["lamp"]
	if !cmp.Equal([]string{"ON", "REFRESH"}, sink.commands) {
		t.Fatalf("Unexpected commands %v", sink.commands)
	}

	if !cmp.Equal([]string{"UNDEF"}, sink.updates) {
		t.Fatalf("Unexpected updates %v", sink.updates)
	}

	controller, _ := f.dispatcher.controller("lamp")
	if command, _, ok := controller.Pending(); !ok || command != redeliver.On {
		t.Fatalf("Expected ON to be pending, got %v (%v)", command, ok)
	}

	f.handle(t, topicConfig.HandlerState, "lamp", "ON")
	if _, _, ok := controller.Pending(); ok {
		t.Fatal("Matching handler state did not confirm the command")
	}
}

func TestDispatcher_ItemStateCancelsRedelivery(t *testing.T) {
	f := newFixture()
	defer f.dispatcher.Close()

	f.handle(t, topicConfig.ItemCommand, "lamp", "ON")
	f.handle(t, topicConfig.ItemState, "lamp", "OFF")

	controller, _ := f.dispatcher.controller("lamp")
	if _, _, ok := controller.Pending(); ok {
		t.Fatal("Item state did not cancel the redelivery")
	}

	if len(f.sinks["lamp"].updates) != 0 {
		t.Fatalf("Item state must not be forwarded, got %v", f.sinks["lamp"].updates)
	}
}

func TestDispatcher_OneControllerPerKey(t *testing.T) {
	f := newFixture()
	defer f.dispatcher.Close()

	f.handle(t, topicConfig.ItemCommand, "lamp", "ON")
	f.handle(t, topicConfig.ItemCommand, "heater", "21")
	f.handle(t, topicConfig.ItemCommand, "lamp", "OFF")

	keys := f.dispatcher.Keys()
	sort.Strings(keys)

	if !cmp.Equal([]string{"heater", "lamp"}, keys) {
		t.Fatalf("Unexpected keys %v", keys)
	}

	if !cmp.Equal([]string{"ON", "OFF"}, f.sinks["lamp"].commands) {
		t.Fatalf("Unexpected lamp commands %v", f.sinks["lamp"].commands)
	}

	if !cmp.Equal([]string{"21"}, f.sinks["heater"].commands) {
		t.Fatalf("Unexpected heater commands %v", f.sinks["heater"].commands)
	}
}

func TestDispatcher_SkipsUnroutableMessages(t *testing.T) {
	f := newFixture()
	defer f.dispatcher.Close()

	f.handle(t, "unrelated", "lamp", "ON")
	f.handle(t, topicConfig.ItemCommand, "", "ON")

	if err := f.dispatcher.Handle(&ck.Message{Key: []byte("lamp")}); err != nil {
		t.Fatalf("Message without topic was not skipped: %v", err)
	}

	if len(f.dispatcher.Keys()) != 0 {
		t.Fatalf("Controllers were created for unroutable messages: %v", f.dispatcher.Keys())
	}
}

func TestDispatcher_FactoryErrorsAreReturned(t *testing.T) {
	dispatcher := &Dispatcher{
		Topics: topicConfig,
		Factory: func(key string) (*redeliver.Controller, error) {
			return nil, errors.New("forced error")
		},
	}

	if err := dispatcher.Handle(message(topicConfig.ItemCommand, "lamp", "ON")); err == nil {
		t.Fatal("Factory error was not returned")
	}
}

func TestDispatcher_Close(t *testing.T) {
	f := newFixture()

	f.handle(t, topicConfig.ItemCommand, "lamp", "ON")
	f.dispatcher.Close()

	controller := f.dispatcher.controllers["lamp"]
	if _, _, ok := controller.Pending(); ok {
		t.Fatal("Close did not cancel pending redeliveries")
	}

	if err := f.dispatcher.Route("lamp", ItemCommand, "OFF"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Expected ErrClosed, got %v", err)
	}
}

func TestDispatcher_UnknownSource(t *testing.T) {
	f := newFixture()
	defer f.dispatcher.Close()

	if err := f.dispatcher.Route("lamp", Source(42), "ON"); err == nil {
		t.Fatal("Expected an error for an unknown source")
	}
}

func TestParseSource(t *testing.T) {
	for _, src := range []Source{ItemCommand, ItemState, HandlerCommand, HandlerState} {
		parsed, ok := ParseSource(src.String())
		if !ok || parsed != src {
			t.Fatalf("ParseSource(%q) = %v, %v", src.String(), parsed, ok)
		}
	}

	if _, ok := ParseSource("nope"); ok {
		t.Fatal("Expected unknown source to fail parsing")
	}
}
