package scan

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// osFiles are names generated by common operating systems. The list does
// not depend on the host OS.
var osFiles = map[string]struct{}{
	".DS_Store":                 {},
	".Spotlight-V100":           {},
	".Trashes":                  {},
	".fseventsd":                {},
	".TemporaryItems":           {},
	".DocumentRevisions-V100":   {},
	"__MACOSX":                  {},
	"Icon\r":                    {},
	"Thumbs.db":                 {},
	"ehthumbs.db":               {},
	"desktop.ini":               {},
	"$RECYCLE.BIN":              {},
	"System Volume Information": {},
}

// isOSFile reports whether name is on the OS-generated denylist. AppleDouble
// resource forks ("._name") are included.
func isOSFile(name string) bool {
	if _, ok := osFiles[name]; ok {
		return true
	}
	return strings.HasPrefix(name, "._")
}

func isHidden(name string) bool {
	return len(name) > 1 && name[0] == '.' && name != ".."
}

// filter decides which entries the walker visits. Paths given to it are
// slash-separated and relative to the scan root.
type filter struct {
	include        string
	exclude        string
	includeHidden  bool
	includeOSFiles bool
}

func newFilter(opts Options) (*filter, error) {
	for _, p := range []string{opts.Include, opts.Exclude} {
		if p != "" && !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return &filter{
		include:        trimDirSuffix(opts.Include),
		exclude:        trimDirSuffix(opts.Exclude),
		includeHidden:  opts.IncludeHidden,
		includeOSFiles: opts.IncludeOSFiles,
	}, nil
}

// trimDirSuffix drops a trailing "/" so "sub/" names the directory sub.
func trimDirSuffix(pattern string) string {
	for len(pattern) > 1 && strings.HasSuffix(pattern, "/") {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	return pattern
}

// match tests rel against pattern. Patterns without a separator also match
// the base name, so "*.pdf" selects PDFs at any depth.
func match(pattern, rel string) bool {
	if ok, _ := doublestar.Match(pattern, rel); ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		ok, _ := doublestar.Match(pattern, path.Base(rel))
		return ok
	}
	return false
}

// skip reports whether an entry (file or directory) is filtered out before
// anything else happens to it. For directories this prunes the subtree.
func (f *filter) skip(rel, name string) bool {
	if !f.includeHidden && isHidden(name) {
		return true
	}
	if !f.includeOSFiles && isOSFile(name) {
		return true
	}
	return f.exclude != "" && match(f.exclude, rel)
}

// accept reports whether a file that survived skip should be queued.
func (f *filter) accept(rel string) bool {
	return f.include == "" || match(f.include, rel)
}
