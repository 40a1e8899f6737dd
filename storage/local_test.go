package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) Provider {
	t.Helper()
	provider, err := NewLocalStorage(LocalConfig{
		Path:          t.TempDir(),
		PublicBaseURL: "http://localhost:8080/photos",
	})
	require.NoError(t, err)
	return provider
}

func TestLocalStorage_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	provider := newTestLocal(t)

	key := "rap-1/generales/1700000000000_site.jpg"
	content := []byte("jpeg-bytes")

	require.NoError(t, provider.Save(ctx, key, bytes.NewReader(content), int64(len(content)), "image/jpeg"))

	exists, err := provider.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	reader, err := provider.Get(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, content, got)

	require.NoError(t, provider.Delete(ctx, key))
	exists, err = provider.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_DeleteMissingIsNoError(t *testing.T) {
	provider := newTestLocal(t)
	assert.NoError(t, provider.Delete(context.Background(), "rap-1/generales/none.jpg"))
}

func TestLocalStorage_List(t *testing.T) {
	ctx := context.Background()
	provider := newTestLocal(t)

	for _, key := range []string{
		"rap-1/generales/a.jpg",
		"rap-1/avant/b.jpg",
		"rap-2/apres/c.jpg",
	} {
		require.NoError(t, provider.Save(ctx, key, bytes.NewReader([]byte("x")), 1, "image/jpeg"))
	}

	keys, err := provider.List(ctx, "")
	require.NoError(t, err)
	sort.Strings(keys)
	assert.Equal(t, []string{"rap-1/avant/b.jpg", "rap-1/generales/a.jpg", "rap-2/apres/c.jpg"}, keys)

	keys, err = provider.List(ctx, "rap-1/")
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	provider := newTestLocal(t)
	err := provider.Save(context.Background(), "../escape.jpg", bytes.NewReader([]byte("x")), 1, "image/jpeg")
	assert.Error(t, err)
}

func TestLocalStorage_PublicURL(t *testing.T) {
	provider := newTestLocal(t)
	assert.Equal(t,
		"http://localhost:8080/photos/rap-1/avant/b.jpg",
		provider.PublicURL("rap-1/avant/b.jpg"))
}

func TestFactory_DefaultSelection(t *testing.T) {
	factory, err := NewFactory(Config{
		Type: "local",
		Settings: map[string]interface{}{
			"local": map[string]interface{}{
				"path":            t.TempDir(),
				"public_base_url": "http://localhost:8080/photos",
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "local", factory.GetDefault().Name())
	_, err = factory.Get("minio")
	assert.Error(t, err)
}

func TestFactory_UnavailableDefault(t *testing.T) {
	_, err := NewFactory(Config{
		Type: "minio",
		Settings: map[string]interface{}{
			"local": map[string]interface{}{
				"path": t.TempDir(),
			},
		},
	})
	assert.Error(t, err)
}
