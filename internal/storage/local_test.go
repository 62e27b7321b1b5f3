package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Store("sweep-2025-06-01.json", []byte(`{"alerts":[]}`)))

	data, err := s.Retrieve("sweep-2025-06-01.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"alerts":[]}`), data)
}

func TestLocalStorage_RetrieveMissing(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Retrieve("nope.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_ListByPrefix(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Store("sweep-b.json", []byte("b")))
	require.NoError(t, s.Store("sweep-a.json", []byte("a")))
	require.NoError(t, s.Store("pref-brand", []byte("x")))

	names, err := s.List("sweep-")
	require.NoError(t, err)
	assert.Equal(t, []string{"sweep-a.json", "sweep-b.json"}, names)
}

func TestLocalStorage_DeleteMissingIsNoop(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, s.Delete("nope.json"))
}

func TestLocalStorage_NameCannotEscapeDir(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)

	require.NoError(t, s.Store("../escape.json", []byte("x")))

	data, err := s.Retrieve("escape.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}
