package cache_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polysubml/polysubml/internal/cache"
)

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := cache.Open("")
	require.NotNil(t, err)
}

func TestPutGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.sqlite")
	store, err := cache.Open(path)
	require.Nil(t, err)
	defer store.Close()

	_, ok, err := store.Get("let x = 1")
	require.Nil(t, err)
	require.False(t, ok)

	require.Nil(t, store.Put("let x = 1", "let x = 1n;"))

	target, ok, err := store.Get("let x = 1")
	require.Nil(t, err)
	require.True(t, ok)
	require.Equal(t, "let x = 1n;", target)
}

func TestPutOverwritesExistingEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.sqlite")
	store, err := cache.Open(path)
	require.Nil(t, err)
	defer store.Close()

	require.Nil(t, store.Put("src", "first"))
	require.Nil(t, store.Put("src", "second"))

	target, ok, err := store.Get("src")
	require.Nil(t, err)
	require.True(t, ok)
	require.Equal(t, "second", target)
}

func TestKeyIsStableAndContentAddressed(t *testing.T) {
	require.Equal(t, cache.Key("abc"), cache.Key("abc"))
	require.NotEqual(t, cache.Key("abc"), cache.Key("abd"))
}
