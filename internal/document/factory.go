package document

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// DefaultCharset is declared on documents when none is configured.
const DefaultCharset = "UTF-8"

// Options configures a Factory.
type Options struct {
	Method    IDMethod
	Algorithm string
	Input     DigestInput
	Charset   string
}

// Factory builds Documents with one identity scheme and charset. It is safe
// for concurrent use.
type Factory struct {
	method    IDMethod
	algorithm string
	input     DigestInput
	charset   string
}

// NewFactory validates opts and returns a Factory. Every configuration error
// is reported here, before any file is touched.
func NewFactory(opts Options) (*Factory, error) {
	method := opts.Method
	if method == "" {
		method = IDMethodPath
	}
	if method != IDMethodPath && method != IDMethodDigest {
		return nil, fmt.Errorf("unknown id method %q", method)
	}

	algorithm := opts.Algorithm
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	if _, err := NewHash(algorithm); err != nil {
		return nil, err
	}

	input := opts.Input
	if input == "" {
		input = DigestContent
	}
	if input != DigestContent && input != DigestMetadata {
		return nil, fmt.Errorf("unknown digest input %q", input)
	}

	charset, err := CanonicalCharset(opts.Charset)
	if err != nil {
		return nil, err
	}

	return &Factory{
		method:    method,
		algorithm: canonicalAlgorithm(algorithm),
		input:     input,
		charset:   charset,
	}, nil
}

// CanonicalCharset resolves name against the IANA registry and returns the
// registered name. Empty selects DefaultCharset.
func CanonicalCharset(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultCharset, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return "", fmt.Errorf("unknown charset %q: %w", name, err)
	}
	if enc == nil {
		// Registered but without a decoder; the name is still meaningful to
		// downstream consumers.
		return strings.ToUpper(name), nil
	}
	if canonical, err := ianaindex.MIME.Name(enc); err == nil {
		return canonical, nil
	}
	if canonical, err := ianaindex.IANA.Name(enc); err == nil {
		return canonical, nil
	}
	return strings.ToUpper(name), nil
}

// Method returns the configured identity method.
func (f *Factory) Method() IDMethod { return f.method }

// Algorithm returns the configured digest algorithm.
func (f *Factory) Algorithm() string { return f.algorithm }

// Charset returns the charset stamped on every document.
func (f *Factory) Charset() string { return f.charset }

// Create builds the Document for path. With the digest method this reads the
// file, and an unreadable file yields an *IdentityError.
func (f *Factory) Create(path string) (Document, error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return Document{}, err
	}
	id, err := ComputeID(norm, f.method, f.algorithm, f.input)
	if err != nil {
		return Document{}, err
	}
	return Document{Path: norm, ID: id, Charset: f.charset}, nil
}

// FromRecord rebuilds a Document from a stored path and id without I/O.
// A missing id is recomputed only when the path method makes that free.
func (f *Factory) FromRecord(path, id string) Document {
	if id == "" && f.method == IDMethodPath {
		id, _ = ComputeID(path, IDMethodPath, "", "")
	}
	return Document{Path: path, ID: id, Charset: f.charset}
}
