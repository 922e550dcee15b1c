// Package queue hands documents from the scanner to extraction workers.
// Backends are in-process memory or a Redis list shared across hosts.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eargollo/docqueue/internal/document"
	"github.com/eargollo/docqueue/internal/rdb"
)

// Queue is a FIFO-per-producer hand-off of documents. Implementations are
// safe for concurrent use by multiple producers and consumers.
type Queue interface {
	// Put enqueues doc. It may block while a bounded backend is full.
	Put(ctx context.Context, doc document.Document) error
	// Poll removes the next document, waiting up to timeout. ok is false
	// when nothing arrived in time.
	Poll(ctx context.Context, timeout time.Duration) (doc document.Document, ok bool, err error)
	// Size is exact for memory backends and approximate for shared ones.
	Size(ctx context.Context) (int64, error)
	// Close is idempotent. Later Puts fail with ErrClosed.
	Close() error
	// Name is the logical queue name.
	Name() string
}

// ErrorKind is the closed set of queue failures.
type ErrorKind string

const (
	KindClosed      ErrorKind = "closed"
	KindUnavailable ErrorKind = "unavailable"
)

var (
	// ErrClosed matches any Error raised because the queue was closed.
	ErrClosed = &Error{Kind: KindClosed}
	// ErrUnavailable matches any Error raised because the backend could not be reached.
	ErrUnavailable = &Error{Kind: KindUnavailable}
	// ErrUnknownBackend is returned by New for an unrecognised backend type.
	ErrUnknownBackend = errors.New("unknown queue backend")
)

// Error is returned by Put and Poll. Callers decide whether to retry.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("queue %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("queue %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so errors.Is(err, ErrClosed) works for any op.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func closedError(op string) error {
	return &Error{Kind: KindClosed, Op: op}
}

func unavailableError(op string, err error) error {
	return &Error{Kind: KindUnavailable, Op: op, Err: err}
}

// Backend types accepted by New.
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// DefaultName is the logical queue name when none is configured.
const DefaultName = "extract:queue"

// Config selects and addresses a backend.
type Config struct {
	Type     string
	Name     string
	Address  string
	Password string
	DB       int
	// Capacity bounds the queue; 0 means unbounded.
	Capacity int
}

// Validate reports configuration errors without connecting.
func (c Config) Validate() error {
	switch strings.ToLower(c.Type) {
	case "", TypeMemory, TypeRedis:
	default:
		return fmt.Errorf("%w %q", ErrUnknownBackend, c.Type)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("queue capacity must be >= 0, got %d", c.Capacity)
	}
	return nil
}

// New builds the configured backend. The caller owns the returned Queue and
// must Close it.
func New(ctx context.Context, cfg Config) (Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	name := cfg.Name
	if name == "" {
		name = DefaultName
	}

	switch strings.ToLower(cfg.Type) {
	case TypeRedis:
		client, err := rdb.Open(ctx, rdb.Options{Address: cfg.Address, Password: cfg.Password, DB: cfg.DB})
		if err != nil {
			return nil, unavailableError("open", err)
		}
		return NewRedis(client, name, cfg.Capacity), nil
	default:
		return NewMemory(name, cfg.Capacity), nil
	}
}
