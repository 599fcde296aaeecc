package settings

import (
	"path/filepath"
	"testing"

	"github.com/hkdb/tuvicore/internal/database"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	handle, err := database.NewStore(path).Create("test-password")
	require.NoError(t, err)
	db, err := handle.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })
	return db
}

func TestGetNetworkCounter_DefaultsToZero(t *testing.T) {
	s := NewStore(newTestDB(t))
	counter, err := s.GetNetworkCounter("network-one")
	require.NoError(t, err)
	require.Zero(t, counter)
}

func TestNextNetworkCounter_IncrementsPerNetworkIndependently(t *testing.T) {
	s := NewStore(newTestDB(t))

	n1, err := s.NextNetworkCounter("network-one")
	require.NoError(t, err)
	require.Equal(t, 1, n1)

	n2, err := s.NextNetworkCounter("network-one")
	require.NoError(t, err)
	require.Equal(t, 2, n2)

	other, err := s.NextNetworkCounter("network-two")
	require.NoError(t, err)
	require.Equal(t, 1, other)

	counters, err := s.ListNetworkCounters()
	require.NoError(t, err)
	require.Equal(t, map[string]int{"network-one": 2, "network-two": 1}, counters)
}

func TestSetNetworkCounter_Overwrites(t *testing.T) {
	s := NewStore(newTestDB(t))
	require.NoError(t, s.SetNetworkCounter("network-one", 7))

	got, err := s.GetNetworkCounter("network-one")
	require.NoError(t, err)
	require.Equal(t, 7, got)
}
