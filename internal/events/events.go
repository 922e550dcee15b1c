// Package events carries progress notifications from the scanner and the
// report serializer to whoever is watching.
package events

import (
	"sync"
	"sync/atomic"
)

// Monitorable is a component that emits notifications.
type Monitorable interface {
	Name() string
}

// Listener receives notifications. Notify is called once per step; payload
// is an optional human-readable detail and may be nil.
type Listener interface {
	Notify(source Monitorable, payload any)
	HintRemaining(total int)
}

// Notifiable is the producer side: components advance it once per unit of
// work and it fans out to listeners.
type Notifiable interface {
	NotifyListeners(payload any)
	HintRemaining(total int)
}

// Monitor is the standard Notifiable. Listeners are dispatched synchronously
// on the caller's goroutine, so a slow listener slows the producer.
// The listener set is append-only.
type Monitor struct {
	name      string
	mu        sync.RWMutex
	listeners []Listener
	steps     atomic.Int64
}

// NewMonitor returns a Monitor that identifies itself as name.
func NewMonitor(name string, listeners ...Listener) *Monitor {
	m := &Monitor{name: name}
	m.listeners = append(m.listeners, listeners...)
	return m
}

// Name implements Monitorable.
func (m *Monitor) Name() string { return m.name }

// AddListener registers l for all future notifications.
func (m *Monitor) AddListener(l Listener) {
	if l == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

// NotifyListeners advances the step counter and dispatches to every listener.
func (m *Monitor) NotifyListeners(payload any) {
	m.steps.Add(1)
	for _, l := range m.snapshot() {
		l.Notify(m, payload)
	}
}

// HintRemaining forwards a total-count hint to every listener.
func (m *Monitor) HintRemaining(total int) {
	for _, l := range m.snapshot() {
		l.HintRemaining(total)
	}
}

// Steps returns how many notifications have been dispatched.
func (m *Monitor) Steps() int64 { return m.steps.Load() }

func (m *Monitor) snapshot() []Listener {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listeners[:len(m.listeners):len(m.listeners)]
}

// FuncListener adapts a plain function to Listener. HintRemaining is ignored.
type FuncListener func(source Monitorable, payload any)

// Notify implements Listener.
func (f FuncListener) Notify(source Monitorable, payload any) { f(source, payload) }

// HintRemaining implements Listener.
func (f FuncListener) HintRemaining(int) {}
