package kafka

import (
	"errors"

	ck "github.com/confluentinc/confluent-kafka-go/kafka"
)

func SearchHeaderValue(headers []ck.Header, key string) []byte {
	for _, h := range headers {
		if h.Key == key {
			return h.Value
		}
	}

	return nil
}

func IsReadTimeout(msg *ck.Message, err error) bool {
	if err == nil {
		return false
	}

	var kafkaError ck.Error
	if !errors.As(err, &kafkaError) {
		return false
	}

	return kafkaError.Code() == ck.ErrTimedOut
}
