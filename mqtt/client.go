package mqtt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/peaceman/redeliver-go/bridge"
)

// Publisher is the subset of paho.Client the sink relies on.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// SubscribeClient is the subset of paho.Client the subscriber relies on.
type SubscribeClient interface {
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
}

var errTimeout = errors.New("timed out waiting for the broker")

var sources = []bridge.Source{
	bridge.ItemCommand,
	bridge.ItemState,
	bridge.HandlerCommand,
	bridge.HandlerState,
}

func wait(token paho.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return errTimeout
	}

	return token.Error()
}

// Topics are laid out as $prefix/$key/$source for inbound values and
// $prefix/$key/command resp. $prefix/$key/state for delivered values.
func deliveryTopic(prefix string, key string, kind string) string {
	return fmt.Sprintf("%s/%s/%s", prefix, key, kind)
}

func subscriptionTopic(prefix string, source bridge.Source) string {
	return fmt.Sprintf("%s/+/%s", prefix, source)
}

func parseTopic(prefix string, topic string) (string, bridge.Source, bool) {
	rest := strings.TrimPrefix(topic, prefix+"/")
	if rest == topic {
		return "", 0, false
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", 0, false
	}

	source, ok := bridge.ParseSource(parts[1])
	if !ok {
		return "", 0, false
	}

	return parts[0], source, true
}
