package document

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(tb testing.TB, dir, name, content string) string {
	tb.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		tb.Fatalf("write %q: %v", p, err)
	}
	return p
}

// TestComputeIDDeterministic verifies every method/algorithm pair returns the
// same id across repeated calls on an unchanged file.
func TestComputeIDDeterministic(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.txt", "hello world")

	cases := []struct {
		method    IDMethod
		algorithm string
		input     DigestInput
	}{
		{IDMethodPath, "", ""},
		{IDMethodDigest, "md5", DigestContent},
		{IDMethodDigest, "SHA-1", DigestContent},
		{IDMethodDigest, "sha256", DigestContent},
		{IDMethodDigest, "sha384", DigestContent},
		{IDMethodDigest, "sha-512", DigestContent},
		{IDMethodDigest, "blake3", DigestContent},
		{IDMethodDigest, "sha256", DigestMetadata},
	}
	for _, tc := range cases {
		first, err := ComputeID(p, tc.method, tc.algorithm, tc.input)
		if err != nil {
			t.Fatalf("%s/%s: %v", tc.method, tc.algorithm, err)
		}
		for i := 0; i < 3; i++ {
			again, err := ComputeID(p, tc.method, tc.algorithm, tc.input)
			if err != nil {
				t.Fatalf("%s/%s: %v", tc.method, tc.algorithm, err)
			}
			if again != first {
				t.Errorf("%s/%s/%s: id changed from %q to %q", tc.method, tc.algorithm, tc.input, first, again)
			}
		}
	}
}

// TestComputeIDPathNeedsNoFile verifies the path method succeeds for a path
// that does not exist.
func TestComputeIDPathNeedsNoFile(t *testing.T) {
	id, err := ComputeID("/nonexistent/file.pdf", IDMethodPath, "", "")
	if err != nil {
		t.Fatalf("ComputeID: %v", err)
	}
	if len(id) != 64 {
		t.Errorf("expected 64 hex chars, got %d (%q)", len(id), id)
	}
}

// TestComputeIDContentDigestDedups verifies two files with identical bytes
// share a content digest but not a path id.
func TestComputeIDContentDigestDedups(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "same")
	b := writeFile(t, dir, "b.txt", "same")

	da, _ := ComputeID(a, IDMethodDigest, "sha256", DigestContent)
	db, _ := ComputeID(b, IDMethodDigest, "sha256", DigestContent)
	if da != db {
		t.Errorf("content digests differ for identical files: %q vs %q", da, db)
	}

	pa, _ := ComputeID(a, IDMethodPath, "", "")
	pb, _ := ComputeID(b, IDMethodPath, "", "")
	if pa == pb {
		t.Error("path ids collide for distinct paths")
	}
}

func TestComputeIDUnreadable(t *testing.T) {
	_, err := ComputeID(filepath.Join(t.TempDir(), "missing.bin"), IDMethodDigest, "sha256", DigestContent)
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
	if errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Error("unreadable error must not match ErrUnsupportedAlgorithm")
	}
	var idErr *IdentityError
	if !errors.As(err, &idErr) || !errors.Is(idErr.Err, os.ErrNotExist) {
		t.Errorf("expected wrapped os.ErrNotExist, got %v", err)
	}
}

func TestComputeIDUnsupportedAlgorithm(t *testing.T) {
	p := writeFile(t, t.TempDir(), "a.txt", "x")
	_, err := ComputeID(p, IDMethodDigest, "crc32", DigestContent)
	if !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Fatalf("expected ErrUnsupportedAlgorithm, got %v", err)
	}
}

func TestParseIDMethod(t *testing.T) {
	for in, want := range map[string]IDMethod{"": IDMethodPath, "PATH": IDMethodPath, "digest": IDMethodDigest} {
		got, err := ParseIDMethod(in)
		if err != nil || got != want {
			t.Errorf("ParseIDMethod(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseIDMethod("uuid"); err == nil {
		t.Error("expected error for unknown method")
	}
}
