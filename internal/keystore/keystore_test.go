package keystore

import (
	"path/filepath"
	"testing"

	"github.com/hkdb/tuvicore/internal/database"
	"github.com/hkdb/tuvicore/internal/errs"
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

func TestMasterKey_RoundTrips(t *testing.T) {
	s := NewStore(newTestDB(t))

	_, err := s.GetMasterKey()
	require.True(t, errs.Is(err, errs.NotFound))

	require.NoError(t, s.SetMasterKey([]byte("a-32-byte-ish-master-key-value!")))

	got, err := s.GetMasterKey()
	require.NoError(t, err)
	require.Equal(t, []byte("a-32-byte-ish-master-key-value!"), got)
}

func TestEnsureMasterKey_GeneratesOnceAndPersists(t *testing.T) {
	s := NewStore(newTestDB(t))

	first, err := s.EnsureMasterKey()
	require.NoError(t, err)
	require.Len(t, first, masterKeySize)

	second, err := s.EnsureMasterKey()
	require.NoError(t, err)
	require.Equal(t, first, second, "a second call must return the already-persisted key, not a new one")
}

func TestDeleteAll_ClearsMasterKey(t *testing.T) {
	s := NewStore(newTestDB(t))
	require.NoError(t, s.SetMasterKey([]byte("a-32-byte-ish-master-key-value!")))

	require.NoError(t, s.DeleteAll())

	_, err := s.GetMasterKey()
	require.True(t, errs.Is(err, errs.NotFound))
}
