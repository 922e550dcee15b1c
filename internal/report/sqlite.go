package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/eargollo/docqueue/internal/document"
)

// pageSize is the number of rows fetched per query while iterating. Paging
// keeps the single SQLite connection free between pages.
const pageSize = 500

// SQLite persists the report in the report table, so entries survive a
// restart of the writing process.
type SQLite struct {
	db   *sql.DB
	name string
}

// NewSQLite returns a report stored under name in db. The schema comes from
// the db package migrations.
func NewSQLite(db *sql.DB, name string) *SQLite {
	return &SQLite{db: db, name: name}
}

// Put implements Report as a single atomic upsert.
func (s *SQLite) Put(ctx context.Context, doc document.Document, status Status) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report (name, id, path, charset, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name, id) DO UPDATE SET
			path       = excluded.path,
			charset    = excluded.charset,
			status     = excluded.status,
			updated_at = excluded.updated_at`,
		s.name, doc.ID, doc.Path, doc.Charset, status.Code(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("report put %q: %w", doc.Path, err)
	}
	return nil
}

// Get implements Report.
func (s *SQLite) Get(ctx context.Context, doc document.Document) (Status, bool, error) {
	var code int
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM report WHERE name = ? AND id = ?`, s.name, doc.ID,
	).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("report get %q: %w", doc.Path, err)
	}
	return Status(code), true, nil
}

// Entries implements Report, ordered by path then id.
func (s *SQLite) Entries(ctx context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		var lastPath, lastID string
		first := true
		for {
			page, err := s.page(ctx, first, lastPath, lastID)
			if err != nil {
				yield(Entry{}, err)
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			last := page[len(page)-1]
			lastPath, lastID, first = last.Document.Path, last.Document.ID, false
		}
	}
}

func (s *SQLite) page(ctx context.Context, first bool, afterPath, afterID string) ([]Entry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if first {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, path, charset, status FROM report
			WHERE name = ?
			ORDER BY path, id
			LIMIT ?`, s.name, pageSize)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, path, charset, status FROM report
			WHERE name = ? AND (path > ? OR (path = ? AND id > ?))
			ORDER BY path, id
			LIMIT ?`, s.name, afterPath, afterPath, afterID, pageSize)
	}
	if err != nil {
		return nil, fmt.Errorf("report entries: %w", err)
	}
	defer rows.Close()

	page := make([]Entry, 0, pageSize)
	for rows.Next() {
		var e Entry
		var code int
		if err := rows.Scan(&e.Document.ID, &e.Document.Path, &e.Document.Charset, &code); err != nil {
			return nil, fmt.Errorf("report entries: scan row: %w", err)
		}
		e.Status = Status(code)
		page = append(page, e)
	}
	return page, rows.Err()
}

// Len implements Report.
func (s *SQLite) Len(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM report WHERE name = ?`, s.name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("report len: %w", err)
	}
	return n, nil
}

// Close implements Report. The database belongs to the caller.
func (s *SQLite) Close() error { return nil }
