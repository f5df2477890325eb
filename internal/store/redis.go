package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Redis stores groups as hashes and notifies via PUBLISH. Batches run inside
// MULTI/EXEC.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a store for the server at addr.
func NewRedis(addr string, db int) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:        addr,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})}
}

// Ping verifies the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping error: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, group, field, def string) string {
	value, err := r.client.HGet(ctx, group, field).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithError(err).WithFields(log.Fields{"group": group, "field": field}).Debug("HGET failed, using default")
		}
		return def
	}
	if value == "" {
		return def
	}
	return value
}

func (r *Redis) Begin(ctx context.Context) Batch {
	return &redisBatch{ctx: ctx, pipe: r.client.TxPipeline()}
}

type redisBatch struct {
	ctx  context.Context
	pipe redis.Pipeliner
	done bool
}

func (b *redisBatch) Set(group, field, value string) {
	b.pipe.HSet(b.ctx, group, field, value)
}

func (b *redisBatch) Notify(group, field string) {
	b.pipe.Publish(b.ctx, group, field)
}

func (b *redisBatch) Len() int {
	return b.pipe.Len()
}

func (b *redisBatch) Commit() error {
	if b.done {
		return errors.New("batch already finished")
	}
	b.done = true
	if b.pipe.Len() == 0 {
		return nil
	}
	if _, err := b.pipe.Exec(b.ctx); err != nil {
		return fmt.Errorf("redis transaction failed: %w", err)
	}
	return nil
}

func (b *redisBatch) Discard() {
	if b.done {
		return
	}
	b.done = true
	b.pipe.Discard()
}
