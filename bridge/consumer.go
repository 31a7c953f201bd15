package bridge

import (
	"sync"
	"time"

	"github.com/peaceman/redeliver-go/kafka"
	"go.uber.org/zap"
)

const readTimeout = 100 * time.Millisecond

// Consumer reads the subscribed topics and hands every message to the
// MessageHandler. Messages are committed once handled and rewound when the
// handler fails.
type Consumer struct {
	Topics         TopicConfig
	Consumer       kafka.Consumer
	MessageHandler MessageHandler
	Logger         *zap.Logger

	initOnce sync.Once
	stopOnce sync.Once
	stop     chan struct{}
}

func (c *Consumer) Start() (<-chan struct{}, error) {
	if err := c.Consumer.SubscribeTopics(c.Topics.names(), nil); err != nil {
		return nil, err
	}

	c.init()
	doneChan := make(chan struct{})
	logger := c.logger()

	go func() {
		defer close(doneChan)

		for !c.stopped() {
			msg, err := c.Consumer.ReadMessage(readTimeout)
			if kafka.IsReadTimeout(msg, err) {
				continue
			}

			if err != nil {
				logger.Warn("Consumer error", zap.Error(err), zap.Any("message", msg))
				continue
			}

			if err := c.MessageHandler.Handle(msg); err != nil {
				logger.Error("Failed to handle message", zap.Any("message", msg), zap.Error(err))
				c.Consumer.Seek(msg.TopicPartition, 0)
			} else {
				c.Consumer.CommitMessage(msg)
			}
		}
	}()

	return doneChan, nil
}

func (c *Consumer) Stop() {
	c.init()
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Consumer) init() {
	c.initOnce.Do(func() {
		c.stop = make(chan struct{})
	})
}

func (c *Consumer) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *Consumer) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return zap.NewNop()
}
