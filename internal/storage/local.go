package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local stores uploads under a root directory.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at root, creating it if needed.
func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute storage root.
func (l *Local) Root() string {
	return l.root
}

// Put writes r to a new file and returns its path.
func (l *Local) Put(ctx context.Context, name string, r io.Reader, _ int64) (string, error) {
	full := filepath.Join(l.root, filepath.FromSlash(uploadKey(name)))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close upload file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		os.Remove(full)
		return "", err
	}
	return full, nil
}

// Open opens ref, which must resolve inside the root. Relative references
// are taken relative to the root.
func (l *Local) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	full, err := l.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", ref, err)
	}
	return f, nil
}

func (l *Local) resolve(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("open file: no file provided")
	}
	full := ref
	if !filepath.IsAbs(full) {
		full = filepath.Join(l.root, full)
	}
	full = filepath.Clean(full)

	rel, err := filepath.Rel(l.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("open file %s: outside storage root", ref)
	}
	return full, nil
}
