package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/redis/go-redis/v9"

	"github.com/eargollo/docqueue/internal/document"
)

// Redis stores the report in a hash keyed by document id, shared by every
// process pointed at the same server and name.
type Redis struct {
	client *redis.Client
	name   string
}

// record is the hash value stored per document.
type record struct {
	Path    string `json:"path"`
	Charset string `json:"charset"`
	Status  int    `json:"status"`
}

// NewRedis wraps an open client; Close closes it.
func NewRedis(client *redis.Client, name string) *Redis {
	return &Redis{client: client, name: name}
}

// Put implements Report. HSET replaces the field atomically.
func (r *Redis) Put(ctx context.Context, doc document.Document, status Status) error {
	b, err := json.Marshal(record{Path: doc.Path, Charset: doc.Charset, Status: status.Code()})
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.name, doc.ID, b).Err(); err != nil {
		return fmt.Errorf("report put %q: %w", doc.Path, err)
	}
	return nil
}

// Get implements Report.
func (r *Redis) Get(ctx context.Context, doc document.Document) (Status, bool, error) {
	raw, err := r.client.HGet(ctx, r.name, doc.ID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("report get %q: %w", doc.Path, err)
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return 0, false, fmt.Errorf("report get %q: decode: %w", doc.Path, err)
	}
	return Status(rec.Status), true, nil
}

// Entries implements Report using HSCAN. HSCAN can return a field more than
// once, so fields already yielded in this pass are skipped.
func (r *Redis) Entries(ctx context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		seen := make(map[string]struct{})
		var cursor uint64
		for {
			kv, next, err := r.client.HScan(ctx, r.name, cursor, "", 500).Result()
			if err != nil {
				yield(Entry{}, fmt.Errorf("report entries: %w", err))
				return
			}
			for i := 0; i+1 < len(kv); i += 2 {
				id := kv[i]
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}

				var rec record
				if err := json.Unmarshal([]byte(kv[i+1]), &rec); err != nil {
					if !yield(Entry{}, fmt.Errorf("report entries: decode %s: %w", id, err)) {
						return
					}
					continue
				}
				e := Entry{
					Document: document.Document{Path: rec.Path, ID: id, Charset: rec.Charset},
					Status:   Status(rec.Status),
				}
				if !yield(e, nil) {
					return
				}
			}
			cursor = next
			if cursor == 0 {
				return
			}
		}
	}
}

// Len implements Report.
func (r *Redis) Len(ctx context.Context) (int64, error) {
	n, err := r.client.HLen(ctx, r.name).Result()
	if err != nil {
		return 0, fmt.Errorf("report len: %w", err)
	}
	return n, nil
}

// Close implements Report.
func (r *Redis) Close() error {
	return r.client.Close()
}
