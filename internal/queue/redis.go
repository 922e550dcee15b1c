package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eargollo/docqueue/internal/document"
)

// Redis is a queue backed by a Redis list, so producers and consumers in
// different processes share one logical queue. Documents are stored as JSON.
type Redis struct {
	client   *redis.Client
	name     string
	capacity int
	closed   atomic.Bool
}

// NewRedis wraps an open client. The queue owns the client from here on and
// closes it on Close.
func NewRedis(client *redis.Client, name string, capacity int) *Redis {
	if name == "" {
		name = DefaultName
	}
	return &Redis{client: client, name: name, capacity: capacity}
}

// Name implements Queue.
func (q *Redis) Name() string { return q.name }

// classify turns a client error into a queue Error. Context errors pass
// through untouched so callers can tell cancellation from outages.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, redis.ErrClosed) {
		return closedError(op)
	}
	return unavailableError(op, err)
}

// Put implements Queue. With a capacity set, Put waits while the list is at
// or above it, re-checking the length with a growing delay.
func (q *Redis) Put(ctx context.Context, doc document.Document) error {
	if q.closed.Load() {
		return closedError("put")
	}
	if q.capacity > 0 {
		if err := q.waitForRoom(ctx); err != nil {
			return err
		}
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("queue put: encode %q: %w", doc.Path, err)
	}
	if err := q.client.RPush(ctx, q.name, payload).Err(); err != nil {
		return classify("put", err)
	}
	return nil
}

func (q *Redis) waitForRoom(ctx context.Context) error {
	delay := 50 * time.Millisecond
	for {
		n, err := q.client.LLen(ctx, q.name).Result()
		if err != nil {
			return classify("put", err)
		}
		if n < int64(q.capacity) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if q.closed.Load() {
			return closedError("put")
		}
		if delay < time.Second {
			delay *= 2
		}
	}
}

// Poll implements Queue. A positive timeout uses BLPOP, which counts in
// whole seconds, so the wait is rounded up to the next second. Zero pops
// without blocking.
func (q *Redis) Poll(ctx context.Context, timeout time.Duration) (document.Document, bool, error) {
	if q.closed.Load() {
		return document.Document{}, false, closedError("poll")
	}

	var raw string
	if timeout > 0 {
		res, err := q.client.BLPop(ctx, blockTimeout(timeout), q.name).Result()
		if errors.Is(err, redis.Nil) {
			return document.Document{}, false, nil
		}
		if err != nil {
			return document.Document{}, false, classify("poll", err)
		}
		raw = res[1]
	} else {
		res, err := q.client.LPop(ctx, q.name).Result()
		if errors.Is(err, redis.Nil) {
			return document.Document{}, false, nil
		}
		if err != nil {
			return document.Document{}, false, classify("poll", err)
		}
		raw = res
	}

	var doc document.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return document.Document{}, false, fmt.Errorf("queue poll: decode: %w", err)
	}
	return doc, true, nil
}

// blockTimeout rounds a positive wait up to whole seconds.
func blockTimeout(d time.Duration) time.Duration {
	return (d + time.Second - 1).Truncate(time.Second)
}

// Size implements Queue. Under concurrent mutation the value is a snapshot.
func (q *Redis) Size(ctx context.Context) (int64, error) {
	if q.closed.Load() {
		return 0, closedError("size")
	}
	n, err := q.client.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, classify("size", err)
	}
	return n, nil
}

// Close implements Queue. Items already pushed stay in Redis for other
// consumers; this handle releases its connection.
func (q *Redis) Close() error {
	if !q.closed.CompareAndSwap(false, true) {
		return nil
	}
	return q.client.Close()
}
