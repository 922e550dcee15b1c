package scan

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	internaldb "github.com/eargollo/docqueue/internal/db"
	"github.com/eargollo/docqueue/internal/document"
	"github.com/eargollo/docqueue/internal/queue"
)

// mustOpenDB opens a temp file SQLite database with the full schema applied.
func mustOpenDB(tb testing.TB) *sql.DB {
	tb.Helper()
	db, err := internaldb.OpenAndMigrate(filepath.Join(tb.TempDir(), "test.db"))
	if err != nil {
		tb.Fatalf("open test DB: %v", err)
	}
	tb.Cleanup(func() { db.Close() })
	return db
}

// mustFactory returns a path-identity factory.
func mustFactory(tb testing.TB) *document.Factory {
	tb.Helper()
	f, err := document.NewFactory(document.Options{})
	if err != nil {
		tb.Fatalf("new factory: %v", err)
	}
	return f
}

// mustScanner builds a Scanner over a fresh in-memory queue.
func mustScanner(tb testing.TB, opts Options) (*Scanner, *queue.Memory) {
	tb.Helper()
	q := queue.NewMemory("test", 0)
	s, err := New(mustFactory(tb), q, nil, opts)
	if err != nil {
		tb.Fatalf("new scanner: %v", err)
	}
	return s, q
}

// writeFiles creates every relative path under root with small content.
// Paths ending in "/" become empty directories.
func writeFiles(tb testing.TB, root string, paths ...string) {
	tb.Helper()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		if p[len(p)-1] == '/' {
			if err := os.MkdirAll(full, 0o755); err != nil {
				tb.Fatalf("mkdir %q: %v", full, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			tb.Fatalf("mkdir %q: %v", full, err)
		}
		if err := os.WriteFile(full, []byte("content of "+p), 0o644); err != nil {
			tb.Fatalf("write %q: %v", full, err)
		}
	}
}

// drain polls every document currently on q and returns their paths
// relative to root, sorted.
func drain(tb testing.TB, q queue.Queue, root string) []string {
	tb.Helper()
	root, _ = filepath.Abs(root)
	var got []string
	for {
		doc, ok, err := q.Poll(context.Background(), 0)
		if err != nil {
			tb.Fatalf("poll: %v", err)
		}
		if !ok {
			break
		}
		rel, err := filepath.Rel(root, doc.Path)
		if err != nil {
			tb.Fatalf("rel %q: %v", doc.Path, err)
		}
		got = append(got, filepath.ToSlash(rel))
	}
	sort.Strings(got)
	return got
}

// noErrors is an ErrorReporter that fails the test if invoked.
func noErrors(tb testing.TB) ErrorReporter {
	return func(path, stage, errMsg string) {
		tb.Errorf("unexpected scan error: path=%q stage=%q err=%q", path, stage, errMsg)
	}
}

// errorLog collects reported errors.
type errorLog struct {
	mu    sync.Mutex
	paths []string
}

func (l *errorLog) report(path, stage, errMsg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, path)
}

func (l *errorLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.paths)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
