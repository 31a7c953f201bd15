package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/peaceman/redeliver-go/redeliver"
	"gopkg.in/yaml.v3"
)

const (
	TransportKafka = "kafka"
	TransportMQTT  = "mqtt"
)

// Config holds all configuration of the redelivery daemon. Values are read
// from an optional yaml file and may be overridden by REDELIVER_* variables.
type Config struct {
	Transport  string           `yaml:"transport" env:"TRANSPORT"`
	Redelivery RedeliveryConfig `yaml:"redelivery" envPrefix:"REDELIVERY_"`
	Kafka      KafkaConfig      `yaml:"kafka" envPrefix:"KAFKA_"`
	MQTT       MQTTConfig       `yaml:"mqtt" envPrefix:"MQTT_"`
	Redis      RedisConfig      `yaml:"redis" envPrefix:"REDIS_"`
	Log        LogConfig        `yaml:"log" envPrefix:"LOG_"`
	Metrics    MetricsConfig    `yaml:"metrics" envPrefix:"METRICS_"`
}

type RedeliveryConfig struct {
	MaxRedeliveries int `yaml:"max_redeliveries" env:"MAX_REDELIVERIES"`
	DelayMillis     int `yaml:"delay_millis" env:"DELAY_MILLIS"`
}

type KafkaConfig struct {
	Brokers               string        `yaml:"brokers" env:"BROKERS"`
	ConsumerGroupId       string        `yaml:"consumer_group_id" env:"CONSUMER_GROUP_ID"`
	DeliveryReportTimeout time.Duration `yaml:"delivery_report_timeout" env:"DELIVERY_REPORT_TIMEOUT"`
	Topics                TopicConfig   `yaml:"topics" envPrefix:"TOPIC_"`
	HeaderNames           HeaderConfig  `yaml:"header_names" envPrefix:"HEADER_"`
}

type TopicConfig struct {
	ItemCommand    string `yaml:"item_command" env:"ITEM_COMMAND"`
	ItemState      string `yaml:"item_state" env:"ITEM_STATE"`
	HandlerCommand string `yaml:"handler_command" env:"HANDLER_COMMAND"`
	HandlerState   string `yaml:"handler_state" env:"HANDLER_STATE"`
	// Commands are delivered to the handler on DeliverCommand, state updates
	// are sent downstream on DeliverState.
	DeliverCommand string `yaml:"deliver_command" env:"DELIVER_COMMAND"`
	DeliverState   string `yaml:"deliver_state" env:"DELIVER_STATE"`
}

type HeaderConfig struct {
	MessageId string `yaml:"message_id" env:"MESSAGE_ID"`
	Kind      string `yaml:"kind" env:"KIND"`
}

type MQTTConfig struct {
	Broker      string        `yaml:"broker" env:"BROKER"`
	ClientID    string        `yaml:"client_id" env:"CLIENT_ID"`
	QoS         byte          `yaml:"qos" env:"QOS"`
	TopicPrefix string        `yaml:"topic_prefix" env:"TOPIC_PREFIX"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type RedisConfig struct {
	Enabled    bool          `yaml:"enabled" env:"ENABLED"`
	Addr       string        `yaml:"addr" env:"ADDR"`
	KeyPrefix  string        `yaml:"key_prefix" env:"KEY_PREFIX"`
	FailureTTL time.Duration `yaml:"failure_ttl" env:"FAILURE_TTL"`
}

type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Addr    string `yaml:"addr" env:"ADDR"`
}

func Default() *Config {
	return &Config{
		Transport: TransportKafka,
		Redelivery: RedeliveryConfig{
			MaxRedeliveries: 3,
			DelayMillis:     1000,
		},
		Kafka: KafkaConfig{
			Brokers:               "localhost:9092",
			ConsumerGroupId:       "redeliver",
			DeliveryReportTimeout: 5 * time.Second,
			Topics: TopicConfig{
				ItemCommand:    "item-commands",
				ItemState:      "item-states",
				HandlerCommand: "handler-commands",
				HandlerState:   "handler-states",
				DeliverCommand: "handler-inbox",
				DeliverState:   "item-inbox",
			},
			HeaderNames: HeaderConfig{
				MessageId: "message-id",
				Kind:      "kind",
			},
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			QoS:         1,
			TopicPrefix: "redeliver",
			Timeout:     5 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Load reads the yaml file at filename over the defaults, applies the
// environment overrides and validates the result. An empty filename skips
// the file.
func Load(filename string) (*Config, error) {
	cfg := Default()

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "REDELIVER_"}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := c.Redelivery.Config(); err != nil {
		return fmt.Errorf("redelivery: %w", err)
	}

	switch c.Transport {
	case TransportKafka:
		if c.Kafka.Brokers == "" {
			return errors.New("kafka: brokers must be set")
		}

		if c.Kafka.Topics.ItemCommand == "" || c.Kafka.Topics.HandlerState == "" {
			return errors.New("kafka: item_command and handler_state topics must be set")
		}

		if c.Kafka.Topics.DeliverCommand == "" || c.Kafka.Topics.DeliverState == "" {
			return errors.New("kafka: deliver_command and deliver_state topics must be set")
		}

		if err := c.Kafka.Topics.validateDeliveryTopics(); err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
	case TransportMQTT:
		if c.MQTT.Broker == "" {
			return errors.New("mqtt: broker must be set")
		}

		if c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt: qos must be 0, 1 or 2 but was %d", c.MQTT.QoS)
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis: addr must be set when enabled")
	}

	return nil
}

// Config converts the raw parameters into a validated redelivery config.
func (c RedeliveryConfig) Config() (redeliver.Config, error) {
	return redeliver.NewConfig(c.MaxRedeliveries, c.DelayMillis)
}

// validateDeliveryTopics rejects delivery topics that are also consumed, the
// daemon would read back its own deliveries.
func (c TopicConfig) validateDeliveryTopics() error {
	consumed := map[string]string{
		c.ItemCommand:    "item_command",
		c.ItemState:      "item_state",
		c.HandlerCommand: "handler_command",
		c.HandlerState:   "handler_state",
	}

	for name, topic := range map[string]string{
		"deliver_command": c.DeliverCommand,
		"deliver_state":   c.DeliverState,
	} {
		if source, ok := consumed[topic]; ok && topic != "" {
			return fmt.Errorf("%s topic %q is also consumed as %s", name, topic, source)
		}
	}

	if c.DeliverCommand == c.DeliverState {
		return fmt.Errorf("deliver_command and deliver_state must differ but both are %q", c.DeliverCommand)
	}

	return nil
}
