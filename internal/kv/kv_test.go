package kv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	bg, err := OpenBadgerInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { bg.Close() })

	return map[string]Store{
		"sqlite": sq,
		"badger": bg,
		"memory": NewMemory(),
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			v, ok, err := s.Get("missing")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Empty(t, v)
		})
	}
}

func TestStore_SetGetOverwrite(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set("k", "one"))
			v, ok, err := s.Get("k")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "one", v)

			require.NoError(t, s.Set("k", "two"))
			v, _, err = s.Get("k")
			require.NoError(t, err)
			assert.Equal(t, "two", v)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set("k", "v"))
			require.NoError(t, s.Delete("k"))

			_, ok, err := s.Get("k")
			require.NoError(t, err)
			assert.False(t, ok)

			// Deleting a missing key is not an error.
			require.NoError(t, s.Delete("k"))
		})
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")

	s1, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s1.Set("be_better_token", "abc"))
	require.NoError(t, s1.Close())

	s2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s2.Close()

	v, ok, err := s2.Get("be_better_token")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestBadger_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "badger")

	b1, err := OpenBadger(dir)
	require.NoError(t, err)
	require.NoError(t, b1.Set("k", "v"))
	require.NoError(t, b1.Close())

	b2, err := OpenBadger(dir)
	require.NoError(t, err)
	defer b2.Close()

	v, ok, err := b2.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestOpen_Backends(t *testing.T) {
	dir := t.TempDir()

	s, err := Open("", dir)
	require.NoError(t, err)
	_, isSQLite := s.(*SQLite)
	assert.True(t, isSQLite, "empty backend defaults to sqlite")
	require.NoError(t, s.Close())

	m, err := Open(BackendMemory, dir)
	require.NoError(t, err)
	_, isMemory := m.(*Memory)
	assert.True(t, isMemory)

	_, err = Open("redis", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")
}

func TestMemory_FailWrites(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Set("k", "v"))

	m.FailWrites = true
	assert.ErrorIs(t, m.Set("k", "w"), ErrWriteFailed)
	assert.ErrorIs(t, m.Delete("k"), ErrWriteFailed)

	v, ok, err := m.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, []string{"k"}, m.Keys())
}
