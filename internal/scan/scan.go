package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/eargollo/docqueue/internal/document"
	"github.com/eargollo/docqueue/internal/events"
	"github.com/eargollo/docqueue/internal/metrics"
	"github.com/eargollo/docqueue/internal/queue"
)

// DefaultParallelism is the number of roots walked at the same time.
const DefaultParallelism = 4

var (
	// ErrNoPaths is returned when a scan is requested without any root.
	ErrNoPaths = errors.New("scan: no paths given")
	// ErrShutdown is returned by Scan once the scanner has been shut down.
	ErrShutdown = errors.New("scan: scanner is shut down")
)

// Options tunes which entries a Scanner visits.
type Options struct {
	Include        string // glob, files only
	Exclude        string // glob, prunes directories too
	FollowSymlinks bool
	IncludeHidden  bool
	IncludeOSFiles bool
	MaxDepth       int // 0 means unbounded, 1 means direct children only
	Parallelism    int
	OnError        ErrorReporter
}

// Scanner walks roots and puts one Document per eligible file on a queue.
// A Scanner is safe for concurrent use. Each root runs as its own unit of
// work; a failure in one root never affects another.
type Scanner struct {
	factory *document.Factory
	queue   queue.Queue
	monitor events.Notifiable
	opts    Options
	filter  *filter

	sem      *semaphore.Weighted
	progress *Progress

	mu       sync.Mutex
	shutdown bool
	stopped  chan struct{}   // closed by the first Shutdown
	ctx      context.Context // parent of every unit, cancelled by ShutdownNow
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a Scanner. monitor may be nil.
func New(factory *document.Factory, q queue.Queue, monitor events.Notifiable, opts Options) (*Scanner, error) {
	if factory == nil {
		return nil, errors.New("scan: nil document factory")
	}
	if q == nil {
		return nil, errors.New("scan: nil queue")
	}
	if opts.MaxDepth < 0 {
		return nil, fmt.Errorf("scan: negative max depth %d", opts.MaxDepth)
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	f, err := newFilter(opts)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scanner{
		factory:  factory,
		queue:    q,
		monitor:  monitor,
		opts:     opts,
		filter:   f,
		sem:      semaphore.NewWeighted(int64(opts.Parallelism)),
		progress: &Progress{},
		stopped:  make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Scan submits one unit of work per root and returns immediately. The
// returned futures complete when their root has been fully walked.
func (s *Scanner) Scan(ctx context.Context, roots ...string) ([]*Future, error) {
	if len(roots) == 0 {
		return nil, ErrNoPaths
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return nil, ErrShutdown
	}

	futures := make([]*Future, 0, len(roots))
	for _, root := range roots {
		unitCtx, cancel := context.WithCancel(ctx)
		stop := context.AfterFunc(s.ctx, cancel)
		f := &Future{root: root, done: make(chan struct{}), cancel: cancel}
		futures = append(futures, f)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer stop()
			defer cancel()
			f.complete(s.run(unitCtx, root))
		}()
	}
	return futures, nil
}

// run waits for an executor slot, then walks root.
func (s *Scanner) run(ctx context.Context, root string) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)

	slog.Debug("scan: root started", "root", root)
	start := time.Now()
	err := s.walkRoot(ctx, root)
	if err != nil {
		s.progress.FailedRoots.Add(1)
		slog.Warn("scan: root failed", "root", root, "error", err)
		return err
	}
	slog.Info("scan: root finished", "root", root, "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// reportError records a per-entry failure and moves on.
func (s *Scanner) reportError(path, stage string, err error) {
	s.progress.Errors.Add(1)
	metrics.ScanErrors.WithLabelValues(stage).Inc()
	slog.Warn("scan: entry skipped", "path", path, "stage", stage, "error", err)
	if s.opts.OnError != nil {
		s.opts.OnError(path, stage, err.Error())
	}
	if s.monitor != nil {
		s.monitor.NotifyListeners(&EntryError{Path: path, Stage: stage, Err: err})
	}
}

// Shutdown stops accepting new roots. Units already submitted keep running.
// Calling it more than once is harmless.
func (s *Scanner) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.shutdown {
		s.shutdown = true
		close(s.stopped)
	}
}

// ShutdownNow stops accepting roots and cancels every running unit.
func (s *Scanner) ShutdownNow() {
	s.Shutdown()
	s.cancel()
}

// AwaitTermination blocks until the scanner has been shut down and every
// submitted unit has finished, or timeout elapses. It reports whether the
// scanner terminated. Without a Shutdown it always times out.
func (s *Scanner) AwaitTermination(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.stopped:
	case <-timer.C:
		return false
	}

	// No unit can be added once stopped is closed.
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// Queued returns the number of documents put on the queue so far.
func (s *Scanner) Queued() int64 { return s.progress.Queued.Load() }

// Progress exposes the live counters.
func (s *Scanner) Progress() *Progress { return s.progress }

// Future is the handle for one root's unit of work.
type Future struct {
	root   string
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

func (f *Future) complete(err error) {
	f.err = err
	close(f.done)
}

// Root returns the path the unit was submitted with.
func (f *Future) Root() string { return f.root }

// Done is closed when the unit has finished.
func (f *Future) Done() <-chan struct{} { return f.done }

// Err returns the unit's outcome. It is only meaningful once Done is closed.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the unit finishes or ctx is done, and returns the root
// together with the unit's error.
func (f *Future) Wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.root, f.err
	case <-ctx.Done():
		return f.root, ctx.Err()
	}
}

// Cancel asks the unit to stop at the next entry boundary.
func (f *Future) Cancel() { f.cancel() }
