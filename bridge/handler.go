package bridge

import ck "github.com/confluentinc/confluent-kafka-go/kafka"

type MessageHandler interface {
	Handle(*ck.Message) error
}

type MessageHandlerFunc func(*ck.Message) error

func (fn MessageHandlerFunc) Handle(m *ck.Message) error {
	return fn(m)
}
