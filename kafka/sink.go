package kafka

import (
	"errors"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
	"github.com/peaceman/redeliver-go/redeliver"
	"go.uber.org/zap"
)

const (
	KindCommand = "command"
	KindState   = "state"
)

type HeaderNameConfig struct {
	MessageId string
	Kind      string
}

// ProducerSink publishes the commands and state updates of one channel to
// kafka. The channel key is used as message key so that all values of a
// channel stay ordered within their partition.
type ProducerSink struct {
	Producer              Producer
	Key                   string
	CommandTopic          string
	StateTopic            string
	HeaderNames           HeaderNameConfig
	DeliveryReportTimeout time.Duration
	Logger                *zap.Logger
}

var _ redeliver.CommandSink = (*ProducerSink)(nil)

func (s *ProducerSink) HandleCommand(command redeliver.Command) {
	s.produce(s.CommandTopic, KindCommand, command, "Failed to deliver command")
}

func (s *ProducerSink) SendUpdate(state redeliver.State) {
	s.produce(s.StateTopic, KindState, state, "Failed to send state update")
}

// produce enqueues the value and awaits its delivery report in the
// background, failures end up in the log only.
func (s *ProducerSink) produce(topic string, kind string, value redeliver.Value, failureMessage string) {
	fail := func(err error) {
		s.logger().Warn(
			failureMessage,
			zap.String("topic", topic),
			zap.String("kind", kind),
			zap.Stringer("value", value),
			zap.Error(err),
		)
	}

	msg := &ck.Message{
		TopicPartition: ck.TopicPartition{
			Topic:     &topic,
			Partition: ck.PartitionAny,
		},
		Key:   []byte(s.Key),
		Value: []byte(value.String()),
	}

	if s.HeaderNames.MessageId != "" {
		msg.Headers = append(msg.Headers, ck.Header{
			Key:   s.HeaderNames.MessageId,
			Value: []byte(uuid.New().String()),
		})
	}

	if s.HeaderNames.Kind != "" {
		msg.Headers = append(msg.Headers, ck.Header{
			Key:   s.HeaderNames.Kind,
			Value: []byte(kind),
		})
	}

	deliveryChan := make(chan ck.Event, 1)
	if err := s.Producer.Produce(msg, deliveryChan); err != nil {
		fail(err)
		return
	}

	go func() {
		if err := awaitDeliveryReport(deliveryChan, s.DeliveryReportTimeout); err != nil {
			fail(err)
		}
	}()
}

func awaitDeliveryReport(deliveryChan <-chan ck.Event, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case deliveryReport := <-deliveryChan:
		deliveryMessage, ok := deliveryReport.(*ck.Message)
		if !ok {
			return errors.New("unexpected delivery report")
		}

		return deliveryMessage.TopicPartition.Error
	case <-timer.C:
		return errors.New("waiting for the delivery report timed out")
	}
}

func (s *ProducerSink) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}

	return zap.NewNop()
}
