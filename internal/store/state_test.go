package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStateStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := NewSQLiteStateStore(path)
	require.NoError(t, err)
	defer s.Close()

	missing, err := s.GetState("predictive_history")
	require.NoError(t, err)
	assert.Nil(t, missing, "missing key must read as (nil, nil)")

	require.NoError(t, s.SetState("predictive_history", []byte(`{"a":1}`)))
	got, err := s.GetState("predictive_history")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), got)

	// Upsert replaces.
	require.NoError(t, s.SetState("predictive_history", []byte(`{"a":2}`)))
	got, err = s.GetState("predictive_history")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":2}`), got)
}

func TestSQLiteStateStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.db")

	s1, err := NewSQLiteStateStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.SetState("k", []byte("v")))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStateStore(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetState("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryStateStore(t *testing.T) {
	s := NewMemoryStateStore()

	missing, err := s.GetState("k")
	require.NoError(t, err)
	assert.Nil(t, missing)

	value := []byte("hello")
	require.NoError(t, s.SetState("k", value))

	// Mutating the caller's slice must not affect the stored copy.
	value[0] = 'X'
	got, err := s.GetState("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}
