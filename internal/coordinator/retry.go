package coordinator

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

// retry runs an idempotent shard operation with bounded exponential backoff.
// Game errors are returned as is and never retried.
func (c *Coordinator) retry(ctx context.Context, column int, op func(context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.RetryBase
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.cfg.RetryAttempts-1)), ctx)

	err := backoff.Retry(func() error {
		err := c.attempt(ctx, op)
		if err != nil && domain.IsDomainError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	return c.shardError(column, err)
}

// once runs a shard operation that must not be repeated blindly, such as an
// undo or a block tick. Drops go through landDrop instead.
func (c *Coordinator) once(ctx context.Context, column int, op func(context.Context) error) error {
	return c.shardError(column, c.attempt(ctx, op))
}

func (c *Coordinator) attempt(ctx context.Context, op func(context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.ShardTimeout)
	defer cancel()
	return op(opCtx)
}

func (c *Coordinator) shardError(column int, err error) error {
	if err == nil || domain.IsDomainError(err) {
		return err
	}
	c.metrics.ShardFailed(column)
	c.log.Warn().Err(err).Int("column", column).Msg("shard call failed")
	return fmt.Errorf("column %d: %w", column, domain.ErrShardUnavailable)
}
