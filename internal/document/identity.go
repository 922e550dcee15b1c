package document

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strconv"
	"strings"

	"lukechampine.com/blake3"
)

// IDMethod selects how a document identity is derived.
type IDMethod string

const (
	// IDMethodPath derives the identity from the normalized path. No I/O.
	IDMethodPath IDMethod = "path"
	// IDMethodDigest derives the identity from a digest of the file.
	IDMethodDigest IDMethod = "digest"
)

// DigestInput selects what the digest method hashes.
type DigestInput string

const (
	// DigestContent hashes the file bytes.
	DigestContent DigestInput = "content"
	// DigestMetadata hashes path, size and modification time.
	DigestMetadata DigestInput = "metadata"
)

// DefaultAlgorithm is used when no digest algorithm is configured.
const DefaultAlgorithm = "sha256"

// ParseIDMethod maps a configuration value to an IDMethod. Empty selects path.
func ParseIDMethod(s string) (IDMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(IDMethodPath):
		return IDMethodPath, nil
	case string(IDMethodDigest), "tika-digest":
		return IDMethodDigest, nil
	}
	return "", fmt.Errorf("unknown id method %q", s)
}

// ParseDigestInput maps a configuration value to a DigestInput. Empty selects content.
func ParseDigestInput(s string) (DigestInput, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(DigestContent):
		return DigestContent, nil
	case string(DigestMetadata):
		return DigestMetadata, nil
	}
	return "", fmt.Errorf("unknown digest input %q", s)
}

// IdentityErrorKind is the closed set of identity failures.
type IdentityErrorKind string

const (
	KindUnreadable           IdentityErrorKind = "unreadable"
	KindUnsupportedAlgorithm IdentityErrorKind = "unsupported_algorithm"
)

var (
	// ErrUnreadable matches an IdentityError raised because the file could not be read.
	ErrUnreadable = &IdentityError{Kind: KindUnreadable}
	// ErrUnsupportedAlgorithm matches an IdentityError for an unknown digest algorithm.
	ErrUnsupportedAlgorithm = &IdentityError{Kind: KindUnsupportedAlgorithm}
)

// IdentityError reports why an identity could not be computed.
type IdentityError struct {
	Kind      IdentityErrorKind
	Path      string
	Algorithm string
	Err       error
}

func (e *IdentityError) Error() string {
	switch e.Kind {
	case KindUnsupportedAlgorithm:
		return fmt.Sprintf("identity: unsupported digest algorithm %q", e.Algorithm)
	default:
		if e.Err != nil {
			return fmt.Sprintf("identity: %s %q: %v", e.Kind, e.Path, e.Err)
		}
		return fmt.Sprintf("identity: %s %q", e.Kind, e.Path)
	}
}

func (e *IdentityError) Unwrap() error { return e.Err }

// Is reports kind equality so callers can match against ErrUnreadable and
// ErrUnsupportedAlgorithm.
func (e *IdentityError) Is(target error) bool {
	var t *IdentityError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// canonicalAlgorithm folds "SHA-256", "sha_256" and "sha256" together.
func canonicalAlgorithm(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer("-", "", "_", "").Replace(name)
	if name == "" {
		return DefaultAlgorithm
	}
	return name
}

// NewHash returns a fresh hash for the named algorithm.
func NewHash(algorithm string) (hash.Hash, error) {
	switch canonicalAlgorithm(algorithm) {
	case "md5":
		return md5.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "sha256":
		return sha256.New(), nil
	case "sha384":
		return sha512.New384(), nil
	case "sha512":
		return sha512.New(), nil
	case "blake3":
		return blake3.New(32, nil), nil
	}
	return nil, &IdentityError{Kind: KindUnsupportedAlgorithm, Algorithm: algorithm}
}

// ComputeID derives the identity of the file at path. path must already be
// normalized. The path method never fails; the digest method reads the file
// (or stats it, for metadata input).
func ComputeID(path string, method IDMethod, algorithm string, input DigestInput) (string, error) {
	switch method {
	case IDMethodPath, "":
		sum := sha256.Sum256([]byte(path))
		return hex.EncodeToString(sum[:]), nil
	case IDMethodDigest:
		h, err := NewHash(algorithm)
		if err != nil {
			return "", err
		}
		if input == DigestMetadata {
			err = digestMetadata(h, path)
		} else {
			err = digestContent(h, path)
		}
		if err != nil {
			return "", &IdentityError{Kind: KindUnreadable, Path: path, Algorithm: algorithm, Err: err}
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	}
	return "", fmt.Errorf("unknown id method %q", method)
}

func digestContent(h hash.Hash, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(h, f)
	return err
}

func digestMetadata(h hash.Hash, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	io.WriteString(h, path)
	h.Write([]byte{0})
	io.WriteString(h, strconv.FormatInt(info.Size(), 10))
	h.Write([]byte{0})
	io.WriteString(h, strconv.FormatInt(info.ModTime().UnixNano(), 10))
	return nil
}
