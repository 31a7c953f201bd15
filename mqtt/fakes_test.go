package mqtt

import (
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap/zaptest/observer"
)

type fakeToken struct {
	err      error
	timedOut bool
}

func (t *fakeToken) Wait() bool {
	return true
}

func (t *fakeToken) WaitTimeout(time.Duration) bool {
	return !t.timedOut
}

func (t *fakeToken) Done() <-chan struct{} {
	done := make(chan struct{})
	close(done)

	return done
}

func (t *fakeToken) Error() error {
	return t.err
}

// pendingToken completes once release is closed.
type pendingToken struct {
	release chan struct{}
}

func (t *pendingToken) Wait() bool {
	<-t.release
	return true
}

func (t *pendingToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.release:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *pendingToken) Done() <-chan struct{} {
	return t.release
}

func (t *pendingToken) Error() error {
	return nil
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

type publication struct {
	topic   string
	qos     byte
	payload string
}

type fakeClient struct {
	mu            sync.Mutex
	published     []publication
	subscriptions map[string]paho.MessageHandler
	unsubscribed  []string

	PublishToken   paho.Token
	SubscribeToken *fakeToken
}

func newFakeClient() *fakeClient {
	return &fakeClient{subscriptions: make(map[string]paho.MessageHandler)}
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.published = append(c.published, publication{topic: topic, qos: qos, payload: payload.(string)})

	if c.PublishToken != nil {
		return c.PublishToken
	}

	return &fakeToken{}
}

func (c *fakeClient) Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SubscribeToken != nil {
		return c.SubscribeToken
	}

	c.subscriptions[topic] = callback

	return &fakeToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.unsubscribed = append(c.unsubscribed, topics...)

	return &fakeToken{}
}

func (c *fakeClient) Published() []publication {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]publication(nil), c.published...)
}

// Deliver hands a message to the callback of the subscription pattern.
func (c *fakeClient) Deliver(pattern string, topic string, payload string) {
	c.mu.Lock()
	callback := c.subscriptions[pattern]
	c.mu.Unlock()

	callback(nil, &fakeMessage{topic: topic, payload: []byte(payload)})
}

func waitForLog(t *testing.T, logs *observer.ObservedLogs, message string) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for logs.FilterMessage(message).Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected log message %q", message)
		}

		time.Sleep(time.Millisecond)
	}
}
