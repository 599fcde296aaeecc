package orchestrator

import (
	"context"
	"testing"

	"github.com/hkdb/tuvicore/internal/account"
	"github.com/hkdb/tuvicore/internal/folder"
	"github.com/hkdb/tuvicore/internal/message"
	"github.com/stretchr/testify/require"
)

func TestAddMessages_BatchCountsEveryUnreadMessagePerAddress(t *testing.T) {
	o := newTestOrchestrator(t)
	a := mustAddAccount(t, o, account.TypeClassic)
	inbox := mustCreateFolder(t, o, a.ID, "Inbox", folder.RoleInbox)

	m1 := inboundMessage("frank@example.test", false)
	m2 := inboundMessage("frank@example.test", false)
	require.NoError(t, o.AddMessages(a.ID, inbox.ID, []*message.Message{m1, m2}))

	c, err := o.contacts.Get("frank@example.test")
	require.NoError(t, err)
	require.Equal(t, 2, c.UnreadCount, "two unread messages from the same contact both count")
}

func TestReplaceMessage_DoesNotRunContactDerivation(t *testing.T) {
	o := newTestOrchestrator(t)
	a := mustAddAccount(t, o, account.TypeClassic)
	inbox := mustCreateFolder(t, o, a.ID, "Inbox", folder.RoleInbox)

	m := inboundMessage("gina@example.test", false)
	require.NoError(t, o.AddMessage(a.ID, inbox.ID, m))

	var got []Event
	o.Subscribe(func(ev Event) { got = append(got, ev) })

	m.Subject = "edited"
	require.NoError(t, o.ReplaceMessage(a.ID, m))

	for _, ev := range got {
		require.NotEqual(t, EventContactAdded, ev.Type)
		require.NotEqual(t, EventContactChanged, ev.Type)
	}
}

func TestMoveMessages_RelocatesLocally(t *testing.T) {
	o := newTestOrchestrator(t)
	a := mustAddAccount(t, o, account.TypeClassic)
	inbox := mustCreateFolder(t, o, a.ID, "Inbox", folder.RoleInbox)
	archive := mustCreateFolder(t, o, a.ID, "Archive", folder.RoleOther)

	m := inboundMessage("hank@example.test", false)
	require.NoError(t, o.AddMessage(a.ID, inbox.ID, m))

	require.NoError(t, o.MoveMessages(context.Background(), a.ID, inbox.ID, archive.ID, []int64{m.ID}))

	moved, err := o.messages.GetByID(m.ID)
	require.NoError(t, err)
	require.Equal(t, archive.ID, moved.FolderID)
}
