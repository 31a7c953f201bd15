package mock

import (
	"sync"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/kafka"
)

func CreateReadMessageFnFromMessageQueue(
	mq []*ck.Message,
) (func(time.Duration) (*ck.Message, error), *sync.WaitGroup) {
	wg := &sync.WaitGroup{}
	wg.Add(len(mq))

	var mu sync.Mutex

	return func(d time.Duration) (*ck.Message, error) {
		mu.Lock()
		defer mu.Unlock()

		if len(mq) == 0 {
			return nil, NewReadTimeoutError()
		}

		m := mq[0]
		mq = mq[1:]

		wg.Done()

		return m, nil
	}, wg
}

type KafkaConsumer struct {
	mu sync.Mutex

	ReadMessageFn      func(time.Duration) (*ck.Message, error)
	ReadMessageInvoked bool

	SubscribeTopicsFn      func([]string, ck.RebalanceCb) error
	SubscribeTopicsInvoked bool

	SeekFn      func(ck.TopicPartition, int) error
	SeekInvoked bool

	CommitMessageFn      func(*ck.Message) ([]ck.TopicPartition, error)
	CommitMessageInvoked bool

	CloseFn      func() error
	CloseInvoked bool
}

func (c *KafkaConsumer) ReadMessage(timeout time.Duration) (*ck.Message, error) {
	c.invoked(&c.ReadMessageInvoked)

	return c.ReadMessageFn(timeout)
}

func (c *KafkaConsumer) SubscribeTopics(topics []string, rebalanceCb ck.RebalanceCb) error {
	c.invoked(&c.SubscribeTopicsInvoked)

	return c.SubscribeTopicsFn(topics, rebalanceCb)
}

func (c *KafkaConsumer) Seek(topicPartition ck.TopicPartition, timeoutMs int) error {
	c.invoked(&c.SeekInvoked)

	if c.SeekFn != nil {
		return c.SeekFn(topicPartition, timeoutMs)
	} else {
		return nil
	}
}

func (c *KafkaConsumer) CommitMessage(msg *ck.Message) ([]ck.TopicPartition, error) {
	c.invoked(&c.CommitMessageInvoked)

	if c.CommitMessageFn != nil {
		return c.CommitMessageFn(msg)
	} else {
		return make([]ck.TopicPartition, 0), nil
	}
}

func (c *KafkaConsumer) Close() error {
	c.invoked(&c.CloseInvoked)

	return c.CloseFn()
}

// Invoked reads an Invoked flag under the consumer lock, the flags are set
// from the consumer goroutine.
func (c *KafkaConsumer) Invoked(flag *bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return *flag
}

func (c *KafkaConsumer) invoked(flag *bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	*flag = true
}

func NewKafkaConsumer() *KafkaConsumer {
	return &KafkaConsumer{
		ReadMessageFn: func(d time.Duration) (*ck.Message, error) {
			return nil, NewReadTimeoutError()
		},
		SubscribeTopicsFn: func(s []string, rc ck.RebalanceCb) error {
			return nil
		},
		CloseFn: func() error {
			return nil
		},
	}
}

func NewReadTimeoutError() error {
	return ck.NewError(ck.ErrTimedOut, "read message timeout", false)
}
