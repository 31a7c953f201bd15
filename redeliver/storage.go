package redeliver

import "context"

// OutcomeStorage remembers which commands could not be delivered to a
// channel, keyed by the channel key.
type OutcomeStorage interface {
	HasFailed(ctx context.Context, key string, command string) (bool, error)
	MarkFailure(ctx context.Context, key string, command string) error
	MarkSuccess(ctx context.Context, key string, command string) error
}
