package storage

import (
	"context"
	"io"
)

// Provider 存储提供者接口
// Object keys are slash-separated ({rapport}/{category}/{file}); providers
// must treat them as opaque apart from that hierarchy. Upload is assumed
// all-or-nothing per call, and a saved object must be retrievable through
// PublicURL immediately after Save returns.
type Provider interface {
	// Save writes one object. size may be -1 when unknown.
	Save(ctx context.Context, key string, file io.Reader, size int64, contentType string) error

	// Get opens one object for reading.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the given objects; missing objects are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Exists checks a single object.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all object keys under prefix (recursive).
	List(ctx context.Context, prefix string) ([]string, error)

	// PublicURL returns the retrievable URL for an object key.
	PublicURL(key string) string

	// Health checks the backing store.
	Health(ctx context.Context) error

	// Name returns the provider name.
	Name() string
}
