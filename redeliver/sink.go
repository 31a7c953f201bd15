package redeliver

import "time"

// CommandSink delivers commands toward the handler and state updates further
// downstream. Implementations are expected to return promptly. A sink may
// report handler states synchronously but must not feed item commands back
// into the controller from within HandleCommand.
type CommandSink interface {
	HandleCommand(Command)
	SendUpdate(State)
}

type SinkFuncs struct {
	HandleCommandFn func(Command)
	SendUpdateFn    func(State)
}

func (s SinkFuncs) HandleCommand(c Command) {
	if s.HandleCommandFn != nil {
		s.HandleCommandFn(c)
	}
}

func (s SinkFuncs) SendUpdate(st State) {
	if s.SendUpdateFn != nil {
		s.SendUpdateFn(st)
	}
}

// Scheduler runs a task first after initial and then every period until the
// returned cancel func is called. Cancel must be safe to call more than once
// and concurrently with a running task.
type Scheduler interface {
	SchedulePeriodic(initial, period time.Duration, task func()) (cancel func())
	Now() time.Time
}
