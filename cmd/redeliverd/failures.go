package main

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const failureLookupTimeout = 5 * time.Second

type failureLister interface {
	Failures(ctx context.Context, key string) ([]string, error)
}

// logFailures reports the commands of a channel that were left undelivered,
// usually by an earlier run of the daemon.
func logFailures(storage failureLister, key string, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), failureLookupTimeout)
	defer cancel()

	failures, err := storage.Failures(ctx, key)
	if err != nil {
		logger.Warn("Failed to look up undelivered commands", zap.String("key", key), zap.Error(err))
		return
	}

	if len(failures) == 0 {
		return
	}

	logger.Info(
		"Channel has undelivered commands",
		zap.String("key", key),
		zap.Strings("commands", failures),
	)
}
