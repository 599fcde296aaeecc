package orchestrator

import (
	"testing"

	"github.com/hkdb/tuvicore/internal/account"
	"github.com/hkdb/tuvicore/internal/folder"
	"github.com/stretchr/testify/require"
)

func TestAddAccount_EmitsAccountAdded(t *testing.T) {
	o := newTestOrchestrator(t)

	var got []Event
	o.Subscribe(func(ev Event) { got = append(got, ev) })

	a := &account.Account{Address: "bob@example.test", AccountType: account.TypeClassic}
	require.NoError(t, o.AddAccount(a))

	require.Len(t, got, 1)
	require.Equal(t, EventAccountAdded, got[0].Type)
}

func TestUpdateAccount_MissingIsSilentNoOp(t *testing.T) {
	o := newTestOrchestrator(t)

	var got []Event
	o.Subscribe(func(ev Event) { got = append(got, ev) })

	err := o.UpdateAccount(&account.Account{ID: 999, Address: "ghost@example.test", AccountType: account.TypeClassic})
	require.NoError(t, err, "updating a non-existent account is a silent no-op")
	require.Empty(t, got, "no event on a no-op update")
}

func TestUpdateAccount_EmitsAccountUpdatedOnSuccess(t *testing.T) {
	o := newTestOrchestrator(t)
	a := mustAddAccount(t, o, account.TypeClassic)

	var got []Event
	o.Subscribe(func(ev Event) { got = append(got, ev) })

	a.DisplayName = "Alice"
	require.NoError(t, o.UpdateAccount(a))

	require.Len(t, got, 1)
	require.Equal(t, EventAccountUpdated, got[0].Type)
}

func TestAddAccount_DecentralizedAssignsDerivationIndexPerNetwork(t *testing.T) {
	o := newTestOrchestrator(t)

	first := &account.Account{Address: "alice@example.test", AccountType: account.TypeDecentralized, NetworkTag: "network-one"}
	require.NoError(t, o.AddAccount(first))
	second := &account.Account{Address: "bob@example.test", AccountType: account.TypeDecentralized, NetworkTag: "network-one"}
	require.NoError(t, o.AddAccount(second))
	otherNetwork := &account.Account{Address: "carol@example.test", AccountType: account.TypeDecentralized, NetworkTag: "network-two"}
	require.NoError(t, o.AddAccount(otherNetwork))

	require.Equal(t, 1, first.DerivationIndex)
	require.Equal(t, 2, second.DerivationIndex)
	require.Equal(t, 1, otherNetwork.DerivationIndex, "a different network counts from its own sequence")
}

func TestAssembleDecentralizedIdentity_IsStableAcrossCalls(t *testing.T) {
	o := newTestOrchestrator(t)
	a := mustAddAccount(t, o, account.TypeDecentralized)
	mustCreateFolder(t, o, a.ID, "Inbox", folder.RoleInbox)

	first, err := o.AssembleDecentralizedIdentity(a.ID)
	require.NoError(t, err)
	second, err := o.AssembleDecentralizedIdentity(a.ID)
	require.NoError(t, err)

	require.Equal(t, first.PublicKeyBase32E, second.PublicKeyBase32E)
	require.Equal(t, first.PrivateArmored, second.PrivateArmored)
	require.NotEmpty(t, first.PublicKeyBase32E)
}

func TestDeleteAccount_EmitsAccountDeletedAndForgetsLock(t *testing.T) {
	o := newTestOrchestrator(t)
	a := mustAddAccount(t, o, account.TypeClassic)

	var got []Event
	o.Subscribe(func(ev Event) { got = append(got, ev) })

	require.NoError(t, o.DeleteAccount(a.ID))

	require.Len(t, got, 1)
	require.Equal(t, EventAccountDeleted, got[0].Type)

	_, ok := o.drivers[a.ID]
	require.False(t, ok)
}
