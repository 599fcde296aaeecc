package foldersync

import (
	"testing"

	"github.com/hkdb/tuvicore/internal/message"
	"github.com/stretchr/testify/require"
)

func localMsg(externalID uint32, read, flagged bool) *message.Message {
	return &message.Message{ExternalID: externalID, IsRead: read, IsFlagged: flagged}
}

func TestReconcile_NoOpWhenUnchanged(t *testing.T) {
	local := []*message.Message{localMsg(10, true, false), localMsg(9, false, false)}
	remote := []RemoteMessage{{ExternalID: 10, IsRead: true}, {ExternalID: 9, IsRead: false}}
	bound := &Bound{OldestExternalID: 9, NewestExternalID: 10}

	result := Reconcile(local, remote, bound)

	require.Empty(t, result.Deleted)
	require.Empty(t, result.Updated)
	require.Empty(t, result.Added)
	require.ElementsMatch(t, []uint32{10, 9}, result.LocalIDSet)
}

func TestReconcile_FlagChangeIsUpdate(t *testing.T) {
	local := []*message.Message{localMsg(10, false, false)}
	remote := []RemoteMessage{{ExternalID: 10, IsRead: true, IsFlagged: true}}

	result := Reconcile(local, remote, &Bound{OldestExternalID: 10, NewestExternalID: 10})

	require.Len(t, result.Updated, 1)
	require.Equal(t, uint32(10), result.Updated[0].ExternalID)
	require.True(t, result.Updated[0].IsRead)
	require.True(t, result.Updated[0].IsFlagged)
	require.Empty(t, result.Deleted)
	require.Empty(t, result.Added)
}

func TestReconcile_LocalOnlyIsDeleted(t *testing.T) {
	local := []*message.Message{localMsg(10, false, false), localMsg(9, false, false)}
	remote := []RemoteMessage{{ExternalID: 10}}

	result := Reconcile(local, remote, &Bound{OldestExternalID: 9, NewestExternalID: 10})

	require.Equal(t, []uint32{9}, result.Deleted)
	require.ElementsMatch(t, []uint32{10}, result.LocalIDSet)
}

func TestReconcile_RemoteOnlyWithinRangeIsNoOp(t *testing.T) {
	local := []*message.Message{localMsg(10, false, false)}
	remote := []RemoteMessage{{ExternalID: 10}, {ExternalID: 9}}

	result := Reconcile(local, remote, &Bound{OldestExternalID: 10, NewestExternalID: 10})

	require.Empty(t, result.Added, "id 9 falls inside the loaded local range and must not be treated as new")
}

func TestReconcile_RemoteOnlyOutsideRangeIsAdded(t *testing.T) {
	local := []*message.Message{localMsg(10, false, false)}
	remote := []RemoteMessage{{ExternalID: 10}, {ExternalID: 11}}

	result := Reconcile(local, remote, &Bound{OldestExternalID: 10, NewestExternalID: 10})

	require.Len(t, result.Added, 1)
	require.Equal(t, uint32(11), result.Added[0].ExternalID)
	require.Contains(t, result.LocalIDSet, uint32(11))
}

func TestReconcile_NilBoundTreatsAllRemoteAsNew(t *testing.T) {
	result := Reconcile(nil, []RemoteMessage{{ExternalID: 1}, {ExternalID: 2}}, nil)

	require.ElementsMatch(t, []uint32{1, 2}, result.LocalIDSet)
	require.Len(t, result.Added, 2)
}
