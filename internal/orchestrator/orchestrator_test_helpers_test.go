package orchestrator

import (
	"path/filepath"
	"testing"

	"github.com/hkdb/tuvicore/internal/account"
	"github.com/hkdb/tuvicore/internal/database"
	"github.com/hkdb/tuvicore/internal/folder"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	handle, err := database.NewStore(path).Create("test-password")
	require.NoError(t, err)
	db, err := handle.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })
	return New(db)
}

func mustAddAccount(t *testing.T, o *Orchestrator, typ account.Type) *account.Account {
	t.Helper()
	a := &account.Account{Address: "alice@example.test", AccountType: typ}
	require.NoError(t, o.AddAccount(a))
	return a
}

func mustCreateFolder(t *testing.T, o *Orchestrator, accountID int64, path string, roles folder.Role) *folder.Folder {
	t.Helper()
	f := &folder.Folder{AccountID: accountID, Path: path, Roles: roles}
	require.NoError(t, o.folders.Create(f))
	return f
}
