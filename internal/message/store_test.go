package message

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/hkdb/tuvicore/internal/database"
	"github.com/hkdb/tuvicore/internal/folder"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *folder.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	handle, err := database.NewStore(path).Create("test-password")
	require.NoError(t, err)
	db, err := handle.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = handle.Close() })

	// folders.account_id is an enforced foreign key, so the owning account
	// row (id 1) has to exist before the folder can be created.
	_, err = db.Exec(`INSERT INTO accounts (address, address_key, account_type) VALUES ('owner@example.test', 'owner@EXAMPLE.TEST', 'classic')`)
	require.NoError(t, err)

	folders := folder.NewStore(db)
	f := &folder.Folder{AccountID: 1, Path: "INBOX", Roles: folder.RoleInbox}
	require.NoError(t, folders.Create(f))

	return NewStore(db, folders), folders
}

// TestGetList_ExternalIDRange reproduces the three worked examples: external
// ids [1,3,5,7,8], range(1,9)/(9,1) both return every message descending,
// range(3,7) returns only the half-open [3,7) members, and range(7,7) is
// empty since the range contains nothing.
func TestGetList_ExternalIDRange(t *testing.T) {
	store, folders := newTestStore(t)
	f, err := folders.GetByPath(1, "INBOX")
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []uint32{1, 3, 5, 7, 8} {
		m := &Message{
			FolderID:   f.ID,
			ExternalID: id,
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.AddOne(m, true))
	}

	externalIDs := func(msgs []*Message) []uint32 {
		ids := make([]uint32, len(msgs))
		for i, m := range msgs {
			ids[i] = m.ExternalID
		}
		return ids
	}

	list, err := store.GetList(f.ID, 1, 9)
	require.NoError(t, err)
	require.Equal(t, []uint32{8, 7, 5, 3, 1}, externalIDs(list))

	list, err = store.GetList(f.ID, 9, 1)
	require.NoError(t, err)
	require.Equal(t, []uint32{8, 7, 5, 3, 1}, externalIDs(list))

	list, err = store.GetList(f.ID, 3, 7)
	require.NoError(t, err)
	require.Equal(t, []uint32{5, 3}, externalIDs(list))

	list, err = store.GetList(f.ID, 7, 7)
	require.NoError(t, err)
	require.Empty(t, list)
}
