package kafka

import (
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/kafka"
)

// Consumer is the subset of *ck.Consumer the bridge relies on.
type Consumer interface {
	ReadMessage(time.Duration) (*ck.Message, error)
	SubscribeTopics(topics []string, rebalanceCb ck.RebalanceCb) (err error)
	Seek(partition ck.TopicPartition, timeoutMs int) error
	CommitMessage(*ck.Message) ([]ck.TopicPartition, error)
	Close() error
}
