// Package document defines the reference handed from the scanner to the
// extraction workers, and the identity schemes used to key it.
package document

import (
	"fmt"
	"path/filepath"
)

// Document identifies one file to be processed. It is a value type and is
// never mutated after the Factory builds it.
type Document struct {
	Path    string `json:"path"`
	ID      string `json:"id"`
	Charset string `json:"charset"`
}

// String returns the document path. Reports are serialized keyed by it.
func (d Document) String() string {
	return d.Path
}

// ParentPath returns the directory that contains the document.
func (d Document) ParentPath() string {
	return filepath.Dir(d.Path)
}

// NormalizePath returns the absolute, cleaned form of path.
func NormalizePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("normalize %q: %w", path, err)
	}
	return filepath.Clean(abs), nil
}
