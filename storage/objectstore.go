package storage

import (
	"bytes"
	"context"

	"github.com/dr-electrique/rapport-server/internal/photo"
)

// objectStore adapts a Provider to the photo pipeline's narrow client.
type objectStore struct {
	provider Provider
}

// AsObjectStore exposes a provider as the photo pipeline's object store.
func AsObjectStore(p Provider) photo.ObjectStore {
	return &objectStore{provider: p}
}

func (o *objectStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	return o.provider.Save(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
}

func (o *objectStore) PublicURL(key string) string {
	return o.provider.PublicURL(key)
}

func (o *objectStore) Remove(ctx context.Context, keys []string) error {
	return o.provider.Delete(ctx, keys...)
}
