package redeliver

import (
	"github.com/benbjohnson/clock"
	"github.com/peaceman/redeliver-go/schedule"
	"go.uber.org/zap"
)

type Option func(*Controller)

// WithKey names the channel the controller serves. The key labels metrics,
// log lines and outcome records.
func WithKey(key string) Option {
	return func(c *Controller) {
		c.key = key
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		if s != nil {
			c.scheduler = s
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func WithOutcomeStorage(s OutcomeStorage) Option {
	return func(c *Controller) {
		c.outcomes = s
	}
}

func defaultScheduler() Scheduler {
	return schedule.New(clock.New())
}
