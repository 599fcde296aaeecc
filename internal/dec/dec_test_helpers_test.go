package dec

import (
	"path/filepath"
	"testing"

	"github.com/hkdb/tuvicore/internal/account"
	"github.com/hkdb/tuvicore/internal/database"
	"github.com/hkdb/tuvicore/internal/folder"
	"github.com/hkdb/tuvicore/internal/message"
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

func newTestStores(t *testing.T) (*message.Store, *folder.Store, *account.Store) {
	t.Helper()
	db := newTestDB(t)
	folders := folder.NewStore(db)
	messages := message.NewStore(db, folders)
	accounts := account.NewStore(db, folders)
	return messages, folders, accounts
}

func mustAddAccount(t *testing.T, accounts *account.Store) *account.Account {
	t.Helper()
	a := &account.Account{Address: "alice@example.test", AccountType: account.TypeDecentralized}
	require.NoError(t, accounts.Add(a))
	return a
}

func mustCreateFolder(t *testing.T, folders *folder.Store, accountID int64, path string, roles folder.Role) *folder.Folder {
	t.Helper()
	f := &folder.Folder{AccountID: accountID, Path: path, Roles: roles}
	require.NoError(t, folders.Create(f))
	return f
}
