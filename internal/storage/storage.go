// Package storage moves uploaded files in and out of the backing store.
//
// Uploads are written once with Put and later opened by reference when a
// handler validates or processes them. References are opaque to callers:
// local paths for Local, "s3://bucket/key" for MinIO.
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Store saves and opens upload files.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader, size int64) (ref string, err error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// uploadKey builds a collision-free key that keeps the original file name,
// so extension-based handler matching still works on the reference.
func uploadKey(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	return path.Join("uploads", uuid.NewString(), base)
}
