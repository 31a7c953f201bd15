package redeliver

import (
	"fmt"
	"time"
)

type Config struct {
	MaxRedeliveries int
	Delay           time.Duration
}

// NewConfig builds a Config from the raw integer parameters.
func NewConfig(maxRedeliveries, delayMillis int) (Config, error) {
	c := Config{
		MaxRedeliveries: maxRedeliveries,
		Delay:           time.Duration(delayMillis) * time.Millisecond,
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

func (c Config) Validate() error {
	if c.MaxRedeliveries < 0 {
		return &ConfigError{Field: "maxRedeliveries", Value: int64(c.MaxRedeliveries)}
	}

	if c.Delay < 0 {
		return &ConfigError{Field: "delayMillis", Value: c.Delay.Milliseconds()}
	}

	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("maxRedeliveries=%d, delay=%v", c.MaxRedeliveries, c.Delay)
}

type ConfigError struct {
	Field string
	Value int64
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s has to be a non-negative integer but was '%d'", e.Field, e.Value)
}
