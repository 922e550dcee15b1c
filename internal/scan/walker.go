package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/eargollo/docqueue/internal/metrics"
)

// dirItem is a directory waiting to be read, with its depth below the root
// (the root itself is depth 0).
type dirItem struct {
	path  string
	depth int
}

// walker enumerates one root sequentially. Directories are kept on an
// explicit stack, so traversal is depth-first.
type walker struct {
	s       *Scanner
	root    string
	stack   []dirItem
	visited map[string]struct{} // real paths of directories, only when following symlinks
}

// walkRoot walks one root and submits every eligible file. Errors on the root
// itself, and queue failures, are returned; anything else is reported per
// entry and skipped.
func (s *Scanner) walkRoot(ctx context.Context, root string) error {
	norm, err := absPath(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(norm)
	if err != nil {
		return fmt.Errorf("scan root %q: %w", root, err)
	}

	w := &walker{s: s, root: norm}

	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			return fmt.Errorf("scan root %q: not a regular file or directory", root)
		}
		name := filepath.Base(norm)
		if s.filter.skip(name, name) || !s.filter.accept(name) {
			s.progress.Skipped.Add(1)
			return nil
		}
		s.progress.FilesDiscovered.Add(1)
		return w.submit(ctx, norm)
	}

	// The root must be readable: failing here fails the whole unit.
	entries, err := os.ReadDir(norm)
	if err != nil {
		return fmt.Errorf("scan root %q: %w", root, err)
	}
	if s.opts.FollowSymlinks {
		w.visited = make(map[string]struct{})
		if real, err := filepath.EvalSymlinks(norm); err == nil {
			w.visited[real] = struct{}{}
		}
	}

	s.progress.DirsVisited.Add(1)
	if err := w.visitEntries(ctx, dirItem{path: norm}, entries); err != nil {
		return err
	}

	for len(w.stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]

		entries, err := os.ReadDir(dir.path)
		if err != nil {
			s.reportError(dir.path, "walk", err)
			// ReadDir returns what it managed to read before failing.
			if len(entries) == 0 {
				continue
			}
		}
		s.progress.DirsVisited.Add(1)
		if err := w.visitEntries(ctx, dir, entries); err != nil {
			return err
		}
	}
	return nil
}

// visitEntries handles the children of dir. Sub-directories are pushed in
// reverse so they pop in directory order.
func (w *walker) visitEntries(ctx context.Context, dir dirItem, entries []fs.DirEntry) error {
	s := w.s
	depth := dir.depth + 1
	var subdirs []dirItem

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := entry.Name()
		path := filepath.Join(dir.path, name)
		rel := w.rel(path)

		if s.filter.skip(rel, name) {
			s.progress.Skipped.Add(1)
			continue
		}

		mode := entry.Type()
		if mode&fs.ModeSymlink != 0 {
			if !s.opts.FollowSymlinks {
				s.progress.Skipped.Add(1)
				continue
			}
			info, err := os.Stat(path)
			if err != nil {
				s.reportError(path, "stat", err)
				continue
			}
			mode = info.Mode().Type()
		}

		if mode.IsDir() {
			if s.opts.MaxDepth > 0 && depth >= s.opts.MaxDepth {
				continue
			}
			if w.visited != nil {
				real, err := filepath.EvalSymlinks(path)
				if err != nil {
					s.reportError(path, "stat", err)
					continue
				}
				if _, seen := w.visited[real]; seen {
					slog.Debug("scan: directory already visited", "path", path, "target", real)
					continue
				}
				w.visited[real] = struct{}{}
			}
			subdirs = append(subdirs, dirItem{path: path, depth: depth})
			continue
		}

		if !mode.IsRegular() {
			s.progress.Skipped.Add(1)
			continue
		}

		s.progress.FilesDiscovered.Add(1)
		if !s.filter.accept(rel) {
			s.progress.Skipped.Add(1)
			continue
		}
		if err := w.submit(ctx, path); err != nil {
			return err
		}
	}

	for i := len(subdirs) - 1; i >= 0; i-- {
		w.stack = append(w.stack, subdirs[i])
	}
	return nil
}

// submit builds the document for path and puts it on the queue. Identity
// failures are per-entry; queue failures abort the walk.
func (w *walker) submit(ctx context.Context, path string) error {
	s := w.s
	doc, err := s.factory.Create(path)
	if err != nil {
		s.reportError(path, "identity", err)
		return nil
	}
	if err := s.queue.Put(ctx, doc); err != nil {
		return fmt.Errorf("queue %q: %w", path, err)
	}
	s.progress.Queued.Add(1)
	metrics.DocumentsQueued.Inc()
	if s.monitor != nil {
		s.monitor.NotifyListeners(doc.Path)
	}
	return nil
}

func (w *walker) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("scan root %q: %w", p, err)
	}
	return filepath.Clean(abs), nil
}
