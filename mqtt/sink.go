package mqtt

import (
	"time"

	"github.com/peaceman/redeliver-go/redeliver"
	"go.uber.org/zap"
)

const (
	KindCommand = "command"
	KindState   = "state"
)

// Sink publishes the commands and state updates of one channel to the broker.
type Sink struct {
	Client      Publisher
	Key         string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
	Logger      *zap.Logger
}

var _ redeliver.CommandSink = (*Sink)(nil)

func (s *Sink) HandleCommand(command redeliver.Command) {
	s.publish(KindCommand, command)
}

func (s *Sink) SendUpdate(state redeliver.State) {
	s.publish(KindState, state)
}

// publish hands the value to the client and waits for the acknowledgement in
// the background. The sink is called from paho's message callbacks, which must
// not block on a token.
func (s *Sink) publish(kind string, value redeliver.Value) {
	topic := deliveryTopic(s.TopicPrefix, s.Key, kind)
	token := s.Client.Publish(topic, s.QoS, false, value.String())

	go func() {
		if err := wait(token, s.Timeout); err != nil {
			s.logger().Warn(
				"Failed to publish value",
				zap.String("topic", topic),
				zap.Stringer("value", value),
				zap.Error(err),
			)
		}
	}()
}

func (s *Sink) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}

	return zap.NewNop()
}
