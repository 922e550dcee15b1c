// Package report records the extraction outcome of every document so that
// interrupted or repeated runs can skip what is already done.
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/eargollo/docqueue/internal/document"
	"github.com/eargollo/docqueue/internal/rdb"
)

// Entry is one document and its recorded status.
type Entry struct {
	Document document.Document
	Status   Status
}

// Report maps documents, keyed by identity, to their latest status.
// Implementations are safe for concurrent use.
type Report interface {
	// Put records status for doc, replacing any earlier status.
	Put(ctx context.Context, doc document.Document, status Status) error
	// Get returns the recorded status, ok=false when doc has none.
	Get(ctx context.Context, doc document.Document) (status Status, ok bool, err error)
	// Entries yields every entry once per call. The order is stable within
	// one pass.
	Entries(ctx context.Context) iter.Seq2[Entry, error]
	// Len returns the number of entries.
	Len(ctx context.Context) (int64, error)
	Close() error
}

// Backend types accepted by New.
const (
	TypeMemory = "memory"
	TypeSQLite = "sqlite"
	TypeRedis  = "redis"
)

// DefaultName is the logical report name when none is configured.
const DefaultName = "extract:report"

// ErrUnknownBackend is returned by New for an unrecognised backend type.
var ErrUnknownBackend = errors.New("unknown report backend")

// Config selects and addresses a backend.
type Config struct {
	Type     string
	Name     string
	Address  string
	Password string
	DB       int
}

// Validate reports configuration errors without connecting.
func (c Config) Validate() error {
	switch strings.ToLower(c.Type) {
	case "", TypeMemory, TypeSQLite, TypeRedis:
		return nil
	}
	return fmt.Errorf("%w %q", ErrUnknownBackend, c.Type)
}

// New builds the configured backend. database is required for the sqlite
// backend and is not closed by the report.
func New(ctx context.Context, cfg Config, database *sql.DB) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	name := cfg.Name
	if name == "" {
		name = DefaultName
	}

	switch strings.ToLower(cfg.Type) {
	case TypeSQLite:
		if database == nil {
			return nil, errors.New("sqlite report: no database")
		}
		return NewSQLite(database, name), nil
	case TypeRedis:
		client, err := rdb.Open(ctx, rdb.Options{Address: cfg.Address, Password: cfg.Password, DB: cfg.DB})
		if err != nil {
			return nil, fmt.Errorf("redis report: %w", err)
		}
		return NewRedis(client, name), nil
	default:
		return NewMemory(), nil
	}
}
