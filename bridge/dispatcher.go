package bridge

import (
	"errors"
	"fmt"
	"sync"

	ck "github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/peaceman/redeliver-go/redeliver"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("dispatcher is closed")

// Factory creates the controller of a channel key.
type Factory func(key string) (*redeliver.Controller, error)

// Dispatcher keeps one redelivery controller per channel key and routes
// incoming values to the matching entry point.
type Dispatcher struct {
	Topics  TopicConfig
	Factory Factory
	Logger  *zap.Logger

	mu          sync.Mutex
	controllers map[string]*redeliver.Controller
	closed      bool
}

func (d *Dispatcher) Handle(msg *ck.Message) error {
	var topic string
	if msg.TopicPartition.Topic != nil {
		topic = *msg.TopicPartition.Topic
	}

	source, ok := d.Topics.source(topic)
	if !ok {
		d.logger().Debug("Ignoring message from unknown topic", zap.String("topic", topic))
		return nil
	}

	if len(msg.Key) == 0 {
		d.logger().Warn("Message without channel key; skipping message", zap.String("topic", topic))
		return nil
	}

	return d.Route(string(msg.Key), source, string(msg.Value))
}

func (d *Dispatcher) Route(key string, source Source, payload string) error {
	controller, err := d.controller(key)
	if err != nil {
		return err
	}

	value := redeliver.Parse(payload)

	switch source {
	case ItemCommand:
		controller.OnCommandFromItem(value)
	case ItemState:
		controller.OnStateUpdateFromItem(value)
	case HandlerCommand:
		controller.OnCommandFromHandler(value)
	case HandlerState:
		controller.OnStateUpdateFromHandler(value)
	default:
		return fmt.Errorf("unknown source %v", source)
	}

	return nil
}

// Keys returns the channel keys that have a controller.
func (d *Dispatcher) Keys() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := make([]string, 0, len(d.controllers))
	for k := range d.controllers {
		keys = append(keys, k)
	}

	return keys
}

func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, c := range d.controllers {
		if command, attempts, ok := c.Pending(); ok {
			d.logger().Info(
				"Dropping pending redelivery",
				zap.String("key", key),
				zap.Stringer("command", command),
				zap.Int("redeliveries", attempts),
			)
		}

		c.Close()
	}

	d.closed = true
}

func (d *Dispatcher) controller(key string) (*redeliver.Controller, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}

	if c, ok := d.controllers[key]; ok {
		return c, nil
	}

	c, err := d.Factory(key)
	if err != nil {
		return nil, fmt.Errorf("create controller for %q: %w", key, err)
	}

	if d.controllers == nil {
		d.controllers = make(map[string]*redeliver.Controller)
	}
	d.controllers[key] = c

	return c, nil
}

func (d *Dispatcher) logger() *zap.Logger {
	if d.Logger != nil {
		return d.Logger
	}

	return zap.NewNop()
}
