package queue

import (
	"context"
	"sync"
	"time"

	"github.com/eargollo/docqueue/internal/document"
)

// Memory is an in-process queue, bounded when capacity > 0.
//
// Items live in a slice consumed from head; the backing array is compacted
// once enough of it has been consumed.
type Memory struct {
	name     string
	capacity int

	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []document.Document
	head     int
	closed   bool
}

// NewMemory returns an empty Memory queue.
func NewMemory(name string, capacity int) *Memory {
	if name == "" {
		name = DefaultName
	}
	q := &Memory{name: name, capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Name implements Queue.
func (q *Memory) Name() string { return q.name }

func (q *Memory) length() int { return len(q.items) - q.head }

// wake broadcasts on both conditions; used by context and timer callbacks.
func (q *Memory) wake() {
	q.mu.Lock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	q.mu.Unlock()
}

// Put implements Queue. On a full bounded queue it blocks until a consumer
// makes room, ctx is done, or the queue is closed.
func (q *Memory) Put(ctx context.Context, doc document.Document) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return closedError("put")
	}
	if q.capacity > 0 && q.length() >= q.capacity {
		stop := context.AfterFunc(ctx, q.wake)
		defer stop()
		for !q.closed && q.length() >= q.capacity && ctx.Err() == nil {
			q.notFull.Wait()
		}
		if q.closed {
			return closedError("put")
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	q.items = append(q.items, doc)
	q.notEmpty.Signal()
	return nil
}

// Poll implements Queue. Items queued before Close remain available; once
// the queue is closed and drained Poll returns immediately with ok=false.
func (q *Memory) Poll(ctx context.Context, timeout time.Duration) (document.Document, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.length() == 0 && !q.closed && timeout > 0 {
		expired := false
		timer := time.AfterFunc(timeout, func() {
			q.mu.Lock()
			expired = true
			q.notEmpty.Broadcast()
			q.mu.Unlock()
		})
		defer timer.Stop()
		stop := context.AfterFunc(ctx, q.wake)
		defer stop()

		for q.length() == 0 && !q.closed && !expired && ctx.Err() == nil {
			q.notEmpty.Wait()
		}
	}

	if q.length() == 0 {
		if err := ctx.Err(); err != nil {
			return document.Document{}, false, err
		}
		return document.Document{}, false, nil
	}

	doc := q.items[q.head]
	q.items[q.head] = document.Document{}
	q.head++
	if q.head >= 1000 && q.head >= len(q.items)/2 {
		q.items = append(q.items[:0], q.items[q.head:]...)
		q.head = 0
	}
	q.notFull.Signal()
	return doc, true, nil
}

// Size implements Queue. The count is exact.
func (q *Memory) Size(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(q.length()), nil
}

// Close implements Queue.
func (q *Memory) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
	return nil
}
