// Package main runs the redelivery daemon between items and their handlers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/kafka"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/peaceman/redeliver-go/bridge"
	"github.com/peaceman/redeliver-go/config"
	"github.com/peaceman/redeliver-go/kafka"
	"github.com/peaceman/redeliver-go/mqtt"
	"github.com/peaceman/redeliver-go/redeliver"
	redisstorage "github.com/peaceman/redeliver-go/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configFile := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Redelivery daemon failed", zap.Error(err))
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zapConfig.Level = level

	return zapConfig.Build()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	redeliveryConfig, err := cfg.Redelivery.Config()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics, err := redeliver.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	if cfg.Metrics.Enabled {
		server := serveMetrics(cfg.Metrics.Addr, registry, logger)
		defer shutdown(server, logger)
	}

	opts := []redeliver.Option{redeliver.WithMetrics(metrics)}
	var failures failureLister

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}

		storage := &redisstorage.RedisOutcomeStorage{
			Redis: client,
			Config: &redisstorage.RedisOutcomeStorageConfig{
				KeyPrefix:  cfg.Redis.KeyPrefix,
				FailureTTL: cfg.Redis.FailureTTL,
			},
		}
		failures = storage
		opts = append(opts, redeliver.WithOutcomeStorage(storage))
	}

	logger.Info(
		"Starting redelivery daemon",
		zap.String("transport", cfg.Transport),
		zap.Stringer("redelivery", redeliveryConfig),
		zap.Bool("redis", cfg.Redis.Enabled),
	)

	factory := factoryBuilder(func(newSink func(key string) redeliver.CommandSink) bridge.Factory {
		return func(key string) (*redeliver.Controller, error) {
			controllerOpts := make([]redeliver.Option, 0, len(opts)+2)
			controllerOpts = append(controllerOpts, opts...)
			controllerOpts = append(controllerOpts, redeliver.WithKey(key), redeliver.WithLogger(logger))

			if failures != nil {
				go logFailures(failures, key, logger)
			}

			return redeliver.New(newSink(key), redeliveryConfig, controllerOpts...)
		}
	})

	switch cfg.Transport {
	case config.TransportKafka:
		return runKafka(ctx, cfg.Kafka, factory, logger)
	case config.TransportMQTT:
		return runMQTT(ctx, cfg.MQTT, factory, logger)
	default:
		return fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

type factoryBuilder func(newSink func(key string) redeliver.CommandSink) bridge.Factory

func runKafka(ctx context.Context, cfg config.KafkaConfig, factory factoryBuilder, logger *zap.Logger) error {
	producer, err := ck.NewProducer(&ck.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
	})
	if err != nil {
		return fmt.Errorf("create producer: %w", err)
	}
	defer producer.Close()

	consumer, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":  cfg.Brokers,
		"group.id":           cfg.ConsumerGroupId,
		"auto.offset.reset":  "latest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	defer consumer.Close()

	topics := bridge.TopicConfig{
		ItemCommand:    cfg.Topics.ItemCommand,
		ItemState:      cfg.Topics.ItemState,
		HandlerCommand: cfg.Topics.HandlerCommand,
		HandlerState:   cfg.Topics.HandlerState,
	}

	dispatcher := &bridge.Dispatcher{
		Topics: topics,
		Factory: factory(func(key string) redeliver.CommandSink {
			return &kafka.ProducerSink{
				Producer:     producer,
				Key:          key,
				CommandTopic: cfg.Topics.DeliverCommand,
				StateTopic:   cfg.Topics.DeliverState,
				HeaderNames: kafka.HeaderNameConfig{
					MessageId: cfg.HeaderNames.MessageId,
					Kind:      cfg.HeaderNames.Kind,
				},
				DeliveryReportTimeout: cfg.DeliveryReportTimeout,
				Logger:                logger.With(zap.String("key", key)),
			}
		}),
		Logger: logger,
	}
	defer dispatcher.Close()

	c := &bridge.Consumer{
		Topics:         topics,
		Consumer:       consumer,
		MessageHandler: dispatcher,
		Logger:         logger,
	}

	done, err := c.Start()
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
		c.Stop()
		<-done
	case <-done:
	}

	return nil
}

func runMQTT(ctx context.Context, cfg config.MQTTConfig, factory factoryBuilder, logger *zap.Logger) error {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "redeliver-" + uuid.NewString()
	}

	dispatcher := &bridge.Dispatcher{Logger: logger}
	subscriber := &mqtt.Subscriber{
		TopicPrefix: cfg.TopicPrefix,
		QoS:         cfg.QoS,
		Timeout:     cfg.Timeout,
		Router:      dispatcher,
		Logger:      logger,
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetWriteTimeout(cfg.Timeout).
		SetOnConnectHandler(func(paho.Client) {
			// subscriptions are lost with a clean session, renew them on every connect
			if err := subscriber.Start(); err != nil {
				logger.Error("Failed to subscribe", zap.Error(err))
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("Lost connection to broker", zap.Error(err))
		})

	client := paho.NewClient(opts)
	subscriber.Client = client

	dispatcher.Factory = factory(func(key string) redeliver.CommandSink {
		return &mqtt.Sink{
			Client:      client,
			Key:         key,
			TopicPrefix: cfg.TopicPrefix,
			QoS:         cfg.QoS,
			Timeout:     cfg.Timeout,
			Logger:      logger.With(zap.String("key", key)),
		}
	})
	defer dispatcher.Close()

	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return errors.New("timed out connecting to mqtt broker")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to mqtt broker: %w", err)
	}
	defer client.Disconnect(250)

	<-ctx.Done()
	logger.Info("Shutting down")

	if err := subscriber.Stop(); err != nil {
		logger.Warn("Failed to unsubscribe", zap.Error(err))
	}

	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Serving metrics", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return server
}

func shutdown(server *http.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("Failed to shut down metrics server", zap.Error(err))
	}
}
