package orchestrator

import (
	"testing"

	"github.com/hkdb/tuvicore/internal/account"
	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/folder"
	"github.com/stretchr/testify/require"
)

func TestCreateFolder_ClassicAllowed(t *testing.T) {
	o := newTestOrchestrator(t)
	a := mustAddAccount(t, o, account.TypeClassic)

	var got []Event
	o.Subscribe(func(ev Event) { got = append(got, ev) })

	err := o.CreateFolder(a.ID, &folder.Folder{Path: "Projects", Roles: folder.RoleOther})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, EventFolderCreated, got[0].Type)
}

func TestCreateFolder_ProtonNotSupported(t *testing.T) {
	o := newTestOrchestrator(t)
	a := mustAddAccount(t, o, account.TypeProton)

	err := o.CreateFolder(a.ID, &folder.Folder{Path: "Projects", Roles: folder.RoleOther})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.NotSupported))
}

func TestCreateFolder_DecentralizedNotSupported(t *testing.T) {
	o := newTestOrchestrator(t)
	a := mustAddAccount(t, o, account.TypeDecentralized)

	err := o.CreateFolder(a.ID, &folder.Folder{Path: "Projects", Roles: folder.RoleOther})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.NotSupported))
}

func TestDeleteFolder_SpecialFolderAlwaysInvalidOperation(t *testing.T) {
	o := newTestOrchestrator(t)
	a := mustAddAccount(t, o, account.TypeClassic)
	inbox := mustCreateFolder(t, o, a.ID, "Inbox", folder.RoleInbox)

	err := o.DeleteFolder(a.ID, inbox.ID)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.InvalidOperation), "deleting a special folder is invalid for every account type")
}

func TestDeleteFolder_OrdinaryFolderClassicAllowed(t *testing.T) {
	o := newTestOrchestrator(t)
	a := mustAddAccount(t, o, account.TypeClassic)
	f := mustCreateFolder(t, o, a.ID, "Projects", folder.RoleOther)

	var got []Event
	o.Subscribe(func(ev Event) { got = append(got, ev) })

	require.NoError(t, o.DeleteFolder(a.ID, f.ID))
	require.Len(t, got, 1)
	require.Equal(t, EventFolderDeleted, got[0].Type)
}

func TestDeleteFolder_OrdinaryFolderDecentralizedNotSupported(t *testing.T) {
	o := newTestOrchestrator(t)
	a := mustAddAccount(t, o, account.TypeDecentralized)
	f := mustCreateFolder(t, o, a.ID, "Projects", folder.RoleOther)

	err := o.DeleteFolder(a.ID, f.ID)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.NotSupported))
}

func TestRenameFolder_ClassicAllowed(t *testing.T) {
	o := newTestOrchestrator(t)
	a := mustAddAccount(t, o, account.TypeClassic)
	mustCreateFolder(t, o, a.ID, "Projects", folder.RoleOther)

	var got []Event
	o.Subscribe(func(ev Event) { got = append(got, ev) })

	result, err := o.RenameFolder(a.ID, "Projects", "Archive")
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, got, 1)
	require.Equal(t, EventFolderRenamed, got[0].Type)
}

func TestCompositeFolders_AggregatesAcrossAccounts(t *testing.T) {
	o := newTestOrchestrator(t)
	a1 := mustAddAccount(t, o, account.TypeClassic)
	a2 := &account.Account{Address: "second@example.test", AccountType: account.TypeClassic}
	require.NoError(t, o.AddAccount(a2))

	mustCreateFolder(t, o, a1.ID, "Inbox", folder.RoleInbox)
	mustCreateFolder(t, o, a2.ID, "Inbox", folder.RoleInbox)
	mustCreateFolder(t, o, a1.ID, "Sent", folder.RoleSent)

	inboxes, err := o.CompositeFolders(folder.RoleInbox)
	require.NoError(t, err)
	require.Len(t, inboxes, 2)
}
