package redeliver

import (
	"context"
	"sync"
	"time"
)

type recordingSink struct {
	mu       sync.Mutex
	commands []string
	updates  []string

	OnHandleCommand func(Command)
}

func (s *recordingSink) HandleCommand(c Command) {
	s.mu.Lock()
	s.commands = append(s.commands, c.String())
	s.mu.Unlock()

	if s.OnHandleCommand != nil {
		s.OnHandleCommand(c)
	}
}

func (s *recordingSink) SendUpdate(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates = append(s.updates, st.String())
}

func (s *recordingSink) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.commands...)
}

func (s *recordingSink) Updates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.updates...)
}

type fakeTask struct {
	initial     time.Duration
	period      time.Duration
	run         func()
	cancelled   bool
	cancelCalls int
}

// fakeScheduler never fires on its own; tests fire tasks with Tick.
type fakeScheduler struct {
	mu    sync.Mutex
	now   time.Time
	tasks []*fakeTask
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{now: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *fakeScheduler) SchedulePeriodic(initial, period time.Duration, task func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &fakeTask{initial: initial, period: period, run: task}
	s.tasks = append(s.tasks, t)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		t.cancelled = true
		t.cancelCalls++
	}
}

func (s *fakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.now
}

func (s *fakeScheduler) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.now = now
}

// Tick fires every task that has not been cancelled and reports how many ran.
func (s *fakeScheduler) Tick() int {
	s.mu.Lock()
	var active []*fakeTask
	for _, t := range s.tasks {
		if !t.cancelled {
			active = append(active, t)
		}
	}
	s.mu.Unlock()

	for _, t := range active {
		t.run()
	}

	return len(active)
}

// TickN calls Tick n times.
func (s *fakeScheduler) TickN(n int) {
	for i := 0; i < n; i++ {
		s.Tick()
	}
}

func (s *fakeScheduler) Task(i int) *fakeTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i >= len(s.tasks) {
		return nil
	}

	return s.tasks[i]
}

func (s *fakeScheduler) Scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.tasks)
}

func (s *fakeScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.tasks {
		if !t.cancelled {
			n++
		}
	}

	return n
}

type outcome struct {
	key     string
	command string
	success bool
}

type mockOutcomeStorage struct {
	mu       sync.Mutex
	failed   map[string]bool
	outcomes chan outcome

	HasFailedFn   func(context.Context, string, string) (bool, error)
	MarkFailureFn func(context.Context, string, string) error
	MarkSuccessFn func(context.Context, string, string) error
}

func newMockOutcomeStorage() *mockOutcomeStorage {
	return &mockOutcomeStorage{
		failed:   make(map[string]bool),
		outcomes: make(chan outcome, 16),
	}
}

func (s *mockOutcomeStorage) HasFailed(ctx context.Context, key string, command string) (bool, error) {
	if s.HasFailedFn != nil {
		return s.HasFailedFn(ctx, key, command)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.failed[key+"/"+command], nil
}

func (s *mockOutcomeStorage) MarkFailure(ctx context.Context, key string, command string) error {
	s.mu.Lock()
	s.failed[key+"/"+command] = true
	s.mu.Unlock()

	s.outcomes <- outcome{key: key, command: command}

	if s.MarkFailureFn != nil {
		return s.MarkFailureFn(ctx, key, command)
	}

	return nil
}

func (s *mockOutcomeStorage) MarkSuccess(ctx context.Context, key string, command string) error {
	s.mu.Lock()
	delete(s.failed, key+"/"+command)
	s.mu.Unlock()

	s.outcomes <- outcome{key: key, command: command, success: true}

	if s.MarkSuccessFn != nil {
		return s.MarkSuccessFn(ctx, key, command)
	}

	return nil
}
