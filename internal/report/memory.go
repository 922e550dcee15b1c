package report

import (
	"context"
	"iter"
	"sync"

	"github.com/eargollo/docqueue/internal/document"
)

// Memory is a process-local report. Entries iterate in first-insertion order.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
}

// NewMemory returns an empty Memory report.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*Entry)}
}

// Put implements Report.
func (m *Memory) Put(_ context.Context, doc document.Document, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[doc.ID]; ok {
		e.Document = doc
		e.Status = status
		return nil
	}
	m.entries[doc.ID] = &Entry{Document: doc, Status: status}
	m.order = append(m.order, doc.ID)
	return nil
}

// Get implements Report.
func (m *Memory) Get(_ context.Context, doc document.Document) (Status, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[doc.ID]
	if !ok {
		return 0, false, nil
	}
	return e.Status, true, nil
}

// Entries implements Report. Each pass iterates a snapshot taken when the
// pass starts.
func (m *Memory) Entries(ctx context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		m.mu.RLock()
		snap := make([]Entry, 0, len(m.order))
		for _, id := range m.order {
			snap = append(snap, *m.entries[id])
		}
		m.mu.RUnlock()

		for _, e := range snap {
			if err := ctx.Err(); err != nil {
				yield(Entry{}, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Len implements Report.
func (m *Memory) Len(context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.order)), nil
}

// Close implements Report.
func (m *Memory) Close() error { return nil }
