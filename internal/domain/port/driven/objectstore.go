package driven

import (
	"context"
	"io"
)

// ObjectStore defines the driven port for binary media storage.
type ObjectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}
