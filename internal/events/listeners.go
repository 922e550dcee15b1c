package events

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pterm/pterm"
)

// LogListener writes every notification to slog at debug level.
type LogListener struct {
	Logger *slog.Logger
}

func (l LogListener) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Notify implements Listener.
func (l LogListener) Notify(source Monitorable, payload any) {
	name := ""
	if source != nil {
		name = source.Name()
	}
	l.logger().Debug("progress", "source", name, "payload", payload)
}

// HintRemaining implements Listener.
func (l LogListener) HintRemaining(total int) {
	l.logger().Debug("progress: total hint", "total", total)
}

// ConsoleListener renders notifications as a terminal progress bar.
// The bar starts lazily on the first notification or hint. Elapsed time is
// off: pterm redraws it from its own goroutine, which reads Total unlocked.
type ConsoleListener struct {
	// Writer receives the bar; nil means pterm's default (stdout).
	Writer io.Writer
	title  string
	mu     sync.Mutex
	bar    *pterm.ProgressbarPrinter
	hinted bool
}

// NewConsoleListener returns a ConsoleListener titled title.
func NewConsoleListener(title string) *ConsoleListener {
	return &ConsoleListener{title: title}
}

func (c *ConsoleListener) ensure(total int) {
	if c.bar != nil {
		return
	}
	printer := pterm.DefaultProgressbar.
		WithTitle(c.title).
		WithTotal(total).
		WithShowCount(true).
		WithShowElapsedTime(false).
		WithRemoveWhenDone(false)
	if c.Writer != nil {
		printer = printer.WithWriter(c.Writer)
	}
	bar, err := printer.Start()
	if err != nil {
		return
	}
	c.bar = bar
}

// Notify implements Listener.
func (c *ConsoleListener) Notify(_ Monitorable, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensure(0)
	if c.bar == nil {
		return
	}
	if payload != nil {
		c.bar.UpdateTitle(fmt.Sprint(payload))
	}
	// pterm stops a bar once Current reaches Total, so without a hint the
	// total is kept one step ahead.
	if !c.hinted || c.bar.Current+1 > c.bar.Total {
		c.bar.Total = c.bar.Current + 2
	}
	c.bar.Increment()
}

// HintRemaining implements Listener.
func (c *ConsoleListener) HintRemaining(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensure(total)
	if c.bar != nil && total > c.bar.Current {
		c.bar.Total = total
		c.hinted = true
	}
}

// Stop finishes the progress bar.
func (c *ConsoleListener) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bar != nil {
		c.bar.Stop()
		c.bar = nil
	}
}
