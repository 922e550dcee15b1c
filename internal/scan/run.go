package scan

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// terminationTimeout bounds how long Run waits for the executor to drain
// after every future has completed.
const terminationTimeout = time.Minute

// Run scans paths, waits for every root, and returns the number of documents
// queued. Root failures are joined into the returned error; the count still
// covers the roots that succeeded.
func Run(ctx context.Context, s *Scanner, paths []string) (int64, error) {
	if len(paths) == 0 {
		return 0, ErrNoPaths
	}

	futures, err := s.Scan(ctx, paths...)
	if err != nil {
		return 0, err
	}

	var errs []error
	for _, f := range futures {
		if _, err := f.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	s.Shutdown()
	if !s.AwaitTermination(terminationTimeout) {
		slog.Warn("scan: executor did not terminate in time", "timeout", terminationTimeout)
	}

	queued := s.Queued()
	slog.Info("scan: finished", "roots", len(paths), "failed", len(errs), "queued", queued)
	return queued, errors.Join(errs...)
}
