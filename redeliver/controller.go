package redeliver

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrNoSink = errors.New("redeliver: command sink is required")

const outcomeTimeout = 5 * time.Second

// Controller redelivers the last command received from an item until the
// handler reports a matching state or the configured redeliveries are used up.
type Controller struct {
	sink      CommandSink
	config    Config
	key       string
	logger    *zap.Logger
	scheduler Scheduler
	metrics   *Metrics
	counters  counters
	outcomes  OutcomeStorage

	// deliverMu orders item command forwards against redeliveries, so a
	// redelivery never reaches the sink after a newer command. Taken before mu.
	deliverMu sync.Mutex

	mu      sync.Mutex
	session *session
	lastID  uint64
	closed  bool
}

type session struct {
	id        uint64
	command   Command
	issuedAt  time.Time
	attempts  int
	confirmed bool
	cancel    func()
}

// stop cancels the redelivery timer of the session and resets its counter.
// Callers hold the controller mutex.
func (s *session) stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.attempts = 0
}

func New(sink CommandSink, config Config, opts ...Option) (*Controller, error) {
	if sink == nil {
		return nil, ErrNoSink
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		sink:   sink,
		config: config,
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.scheduler == nil {
		c.scheduler = defaultScheduler()
	}

	if c.key != "" {
		c.logger = c.logger.With(zap.String("key", c.key))
	}

	c.counters = c.metrics.bind(c.key)
	c.logger.Debug("Configuring redelivery", zap.Stringer("config", config))

	return c, nil
}

func (c *Controller) OnCommandFromItem(command Command) {
	c.logger.Debug("Received command from item", zap.Stringer("command", command))

	c.deliverMu.Lock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.sink.HandleCommand(command)
		c.deliverMu.Unlock()
		return
	}

	c.cancelLocked()
	c.lastID++
	s := &session{
		id:       c.lastID,
		command:  command,
		issuedAt: c.scheduler.Now(),
	}
	c.session = s
	c.mu.Unlock()

	c.counters.commands.Inc()

	// Some handlers report their state synchronously from within HandleCommand,
	// which confirms the session before any redelivery is scheduled.
	c.sink.HandleCommand(command)
	c.deliverMu.Unlock()

	if c.config.MaxRedeliveries == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.session != s || s.confirmed {
		return
	}

	c.logger.Debug(
		"Scheduling redelivery",
		zap.Stringer("command", command),
		zap.Int("maxRedeliveries", c.config.MaxRedeliveries),
		zap.Duration("delay", c.config.Delay),
	)

	id := s.id
	s.cancel = c.scheduler.SchedulePeriodic(c.config.Delay, c.config.Delay, func() {
		c.redeliver(id)
	})
}

func (c *Controller) OnCommandFromHandler(command Command) {
	c.sink.HandleCommand(command)
}

func (c *Controller) OnStateUpdateFromItem(state State) {
	c.logger.Debug("Received state update from item", zap.Stringer("state", state))

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
}

func (c *Controller) OnStateUpdateFromHandler(state State) {
	c.logger.Debug("Received state update from handler", zap.Stringer("state", state))

	var confirmed Command
	var attempts int

	c.mu.Lock()
	s := c.session
	if s != nil && !s.confirmed && c.isAfterCommand(s) && Matches(s.command, state) {
		confirmed, attempts = s.command, s.attempts
		s.confirmed = true
		s.stop()
	}
	c.mu.Unlock()

	if confirmed != nil {
		c.counters.confirmations.Inc()
		c.logger.Debug(
			"Command confirmed by handler",
			zap.Stringer("command", confirmed),
			zap.Int("redeliveries", attempts),
		)
		c.recordOutcome(confirmed, true)
	}

	c.sink.SendUpdate(state)
}

// Pending returns the command that is currently being redelivered and the
// number of redeliveries fired so far.
func (c *Controller) Pending() (Command, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || s.confirmed {
		return nil, 0, false
	}

	return s.command, s.attempts, true
}

// Close cancels the active session. Commands received afterwards are still
// forwarded but never redelivered.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
	c.closed = true
}

func (c *Controller) redeliver(id uint64) {
	c.mu.Lock()

	s := c.session
	if c.closed || s == nil || s.id != id || s.confirmed {
		c.mu.Unlock()
		return
	}

	s.attempts++
	attempt, limit := s.attempts, c.config.MaxRedeliveries

	if attempt > limit {
		s.stop()
		c.session = nil
		c.mu.Unlock()

		c.logger.Warn("Delivering command to handler failed", zap.Stringer("command", s.command))
		c.counters.failures.Inc()
		c.recordOutcome(s.command, false)

		return
	}
	c.mu.Unlock()

	if attempt < limit {
		c.logger.Info(
			"Retrying command to handler",
			zap.Stringer("command", s.command),
			zap.Int("retry", attempt),
			zap.Int("maxRedeliveries", limit),
		)
	} else {
		c.logger.Info(
			"Retrying command to handler, this is the final attempt",
			zap.Stringer("command", s.command),
			zap.Int("retry", attempt),
		)
	}

	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	if !c.current(id) {
		c.logger.Debug("Dropping redelivery of a finished session", zap.Stringer("command", s.command))
		return
	}

	c.counters.redeliveries.Inc()
	c.sink.HandleCommand(s.command)
}

// current reports whether the session with the given id is still waiting
// for its confirmation.
func (c *Controller) current(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	return !c.closed && s != nil && s.id == id && !s.confirmed
}

// cancelLocked drops the active session. Its generation is retired so a
// timer tick that is already on its way is rejected by redeliver.
func (c *Controller) cancelLocked() {
	s := c.session
	if s == nil {
		return
	}

	if s.cancel != nil {
		c.counters.cancellations.Inc()
	}

	s.stop()
	c.session = nil
}

func (c *Controller) isAfterCommand(s *session) bool {
	return !c.scheduler.Now().Before(s.issuedAt)
}

func (c *Controller) recordOutcome(command Command, success bool) {
	if c.outcomes == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), outcomeTimeout)
		defer cancel()

		var err error
		if success {
			err = c.clearFailure(ctx, command)
		} else {
			err = c.outcomes.MarkFailure(ctx, c.key, command.String())
		}

		if err != nil {
			c.logger.Error(
				"Failed to record delivery outcome",
				zap.Stringer("command", command),
				zap.Bool("success", success),
				zap.Error(err),
			)
		}
	}()
}

// clearFailure removes an earlier recorded failure of a command that has now
// been confirmed. Commands that never failed leave the storage untouched.
func (c *Controller) clearFailure(ctx context.Context, command Command) error {
	failed, err := c.outcomes.HasFailed(ctx, c.key, command.String())
	if err != nil {
		return err
	}

	if !failed {
		return nil
	}

	c.logger.Info("Previously failed command was confirmed", zap.Stringer("command", command))

	return c.outcomes.MarkSuccess(ctx, c.key, command.String())
}
