package schedule

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ClockScheduler runs periodic tasks on timers of the wrapped clock. A mock
// clock makes the schedule fully controllable from tests.
type ClockScheduler struct {
	Clock clock.Clock
}

func New(clk clock.Clock) *ClockScheduler {
	if clk == nil {
		clk = clock.New()
	}

	return &ClockScheduler{Clock: clk}
}

func (s *ClockScheduler) Now() time.Time {
	return s.Clock.Now()
}

// SchedulePeriodic runs task after initial and then every period. The timer
// is re-armed before task runs, so a slow task does not shift the schedule.
// A non-positive period runs the task back to back until cancelled.
//
// The returned cancel func never waits for a running task.
func (s *ClockScheduler) SchedulePeriodic(initial, period time.Duration, task func()) func() {
	stop := make(chan struct{})
	var once sync.Once

	timer := s.Clock.Timer(nonNegative(initial))
	go s.run(timer, period, task, stop)

	return func() {
		once.Do(func() {
			close(stop)
		})
	}
}

func (s *ClockScheduler) run(timer *clock.Timer, period time.Duration, task func(), stop <-chan struct{}) {
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
		}

		if stopped(stop) {
			return
		}

		timer.Reset(nonNegative(period))
		task()
	}
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}

	return d
}
