package mock

import (
	"sync"

	ck "github.com/confluentinc/confluent-kafka-go/kafka"
)

type KafkaProducer struct {
	mu       sync.Mutex
	produced []*ck.Message

	CloseFn      func()
	CloseInvoked bool

	ProduceFn      func(*ck.Message, chan ck.Event) error
	ProduceInvoked bool
}

func (p *KafkaProducer) Close() {
	p.CloseInvoked = true

	if p.CloseFn != nil {
		p.CloseFn()
	}
}

func (p *KafkaProducer) Produce(m *ck.Message, reportChan chan ck.Event) error {
	p.mu.Lock()
	p.ProduceInvoked = true
	p.produced = append(p.produced, m)
	p.mu.Unlock()

	if p.ProduceFn != nil {
		return p.ProduceFn(m, reportChan)
	} else {
		go func() {
			reportChan <- &ck.Message{
				TopicPartition: ck.TopicPartition{},
			}
		}()

		return nil
	}
}

// Produced returns every message handed to Produce so far.
func (p *KafkaProducer) Produced() []*ck.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]*ck.Message(nil), p.produced...)
}
