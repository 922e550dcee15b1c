package scan

import "sync/atomic"

// Progress holds live counters updated by the walkers.
// All fields are atomic so they can be written from walker goroutines and
// read from the HTTP handler without locks.
type Progress struct {
	FilesDiscovered atomic.Int64 // regular files seen, before include filtering
	Queued          atomic.Int64 // documents successfully put on the queue
	Skipped         atomic.Int64 // entries filtered out
	DirsVisited     atomic.Int64
	Errors          atomic.Int64 // per-entry failures
	FailedRoots     atomic.Int64
}

// ErrorReporter records a per-entry scan error. stage names the step that
// failed ("walk", "stat", "identity").
type ErrorReporter func(path, stage, errMsg string)

// EntryError is the notification payload sent to listeners when an entry is
// skipped because of an error.
type EntryError struct {
	Path  string
	Stage string
	Err   error
}

func (e *EntryError) Error() string {
	return e.Stage + " " + e.Path + ": " + e.Err.Error()
}

func (e *EntryError) Unwrap() error { return e.Err }
