package kafka

import ck "github.com/confluentinc/confluent-kafka-go/kafka"

// Producer is the subset of *ck.Producer the sink relies on.
type Producer interface {
	Close()
	Produce(*ck.Message, chan ck.Event) error
}
