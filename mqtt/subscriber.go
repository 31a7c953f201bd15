package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/peaceman/redeliver-go/bridge"
	"go.uber.org/zap"
)

type Router interface {
	Route(key string, source bridge.Source, payload string) error
}

// Subscriber feeds values published under the topic prefix into a Router.
type Subscriber struct {
	Client      SubscribeClient
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
	Router      Router
	Logger      *zap.Logger
}

func (s *Subscriber) Start() error {
	for _, source := range sources {
		topic := subscriptionTopic(s.TopicPrefix, source)

		if err := wait(s.Client.Subscribe(topic, s.QoS, s.handle), s.Timeout); err != nil {
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}
	}

	return nil
}

func (s *Subscriber) Stop() error {
	topics := make([]string, 0, len(sources))
	for _, source := range sources {
		topics = append(topics, subscriptionTopic(s.TopicPrefix, source))
	}

	return wait(s.Client.Unsubscribe(topics...), s.Timeout)
}

func (s *Subscriber) handle(_ paho.Client, msg paho.Message) {
	key, source, ok := parseTopic(s.TopicPrefix, msg.Topic())
	if !ok {
		s.logger().Warn("Ignoring message on unexpected topic", zap.String("topic", msg.Topic()))
		return
	}

	if err := s.Router.Route(key, source, string(msg.Payload())); err != nil {
		s.logger().Error(
			"Failed to route message",
			zap.String("topic", msg.Topic()),
			zap.Error(err),
		)
	}
}

func (s *Subscriber) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}

	return zap.NewNop()
}
