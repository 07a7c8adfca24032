package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBlobStore(t *testing.T) {
	root := t.TempDir()
	store := NewLocalBlobStore(root)
	ctx := context.Background()

	key := "snapshots/items-0002.json"
	require.NoError(t, store.Put(ctx, key, strings.NewReader(`[{"id":"milk"}]`)))
	_, err := os.Stat(filepath.Join(root, "snapshots", "items-0002.json"))
	require.NoError(t, err)

	reader, err := store.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	reader.Close()
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"milk"}]`, string(data))

	// Put replaces.
	require.NoError(t, store.Put(ctx, key, strings.NewReader(`[]`)))
	reader, err = store.Get(ctx, key)
	require.NoError(t, err)
	data, _ = io.ReadAll(reader)
	reader.Close()
	assert.Equal(t, `[]`, string(data))

	require.NoError(t, store.Put(ctx, "snapshots/items-0001.json", strings.NewReader("[]")))
	keys, err := store.List(ctx, "snapshots")
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshots/items-0001.json", "snapshots/items-0002.json"}, keys)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(store.Delete(ctx, key), ErrNotFound))

	keys, err = store.List(ctx, "snapshots")
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshots/items-0001.json"}, keys)
}

func TestLocalBlobStore_ListMissingPrefix(t *testing.T) {
	keys, err := NewLocalBlobStore(t.TempDir()).List(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestLocalBlobStore_RejectsEscapingKeys(t *testing.T) {
	store := NewLocalBlobStore(t.TempDir())
	ctx := context.Background()
	for _, key := range []string{"", ".", "..", "../outside", "a/../../b"} {
		err := store.Put(ctx, key, strings.NewReader("x"))
		assert.True(t, errors.Is(err, ErrInvalidKey), "key %q", key)
	}
}
