package orchestrator

import (
	"bytes"
	"context"
	"encoding/base32"
	"fmt"
	"testing"

	"github.com/hkdb/tuvicore/internal/account"
	"github.com/hkdb/tuvicore/internal/dec"
	"github.com/hkdb/tuvicore/internal/folder"
	"github.com/hkdb/tuvicore/internal/message"
	"github.com/hkdb/tuvicore/internal/pgp"
	"github.com/stretchr/testify/require"
)

// loopbackStorageClient is a single-process in-memory StorageClient used to
// exercise the orchestrator's decentralized send/receive path without a real
// transport.
type loopbackStorageClient struct {
	blobs  map[string][]byte
	queues map[string][]string
}

func newLoopbackStorageClient() *loopbackStorageClient {
	return &loopbackStorageClient{blobs: map[string][]byte{}, queues: map[string][]string{}}
}

func (c *loopbackStorageClient) Put(ctx context.Context, data []byte) (string, error) {
	hash := fmt.Sprintf("hash-%d", len(c.blobs))
	c.blobs[hash] = data
	return hash, nil
}

func (c *loopbackStorageClient) Send(ctx context.Context, mailboxID, contentHash string) error {
	c.queues[mailboxID] = append(c.queues[mailboxID], contentHash)
	return nil
}

func (c *loopbackStorageClient) List(ctx context.Context, mailboxID string) ([]string, error) {
	return append([]string(nil), c.queues[mailboxID]...), nil
}

func (c *loopbackStorageClient) Get(ctx context.Context, contentHash string) ([]byte, error) {
	data, ok := c.blobs[contentHash]
	if !ok {
		return nil, fmt.Errorf("no such content hash")
	}
	return data, nil
}

func (c *loopbackStorageClient) ClaimName(ctx context.Context, canonicalName, pubKey, signature string) (string, error) {
	return pubKey, nil
}

func decIdentityFixture(t *testing.T, o *Orchestrator, accountID int64, inbox, sent, trash *folder.Folder) dec.Identity {
	t.Helper()
	publicArmored, privateArmored, err := pgp.GenerateKeyPair("self@example.test")
	require.NoError(t, err)

	entities, err := pgp.ParseArmoredKey(publicArmored)
	require.NoError(t, err)
	var raw bytes.Buffer
	require.NoError(t, entities[0].Serialize(&raw))
	base32E := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw.Bytes())

	return dec.Identity{
		AccountID:        accountID,
		PublicKeyBase32E: base32E,
		PublicArmored:    publicArmored,
		PrivateArmored:   privateArmored,
		InboxFolderID:    inbox.ID,
		SentFolderID:     sent.ID,
		TrashFolderID:    trash.ID,
	}
}

func TestSendAndReceiveDecentralized_RoundTripsThroughOrchestrator(t *testing.T) {
	o := newTestOrchestrator(t)
	a := mustAddAccount(t, o, account.TypeDecentralized)
	inbox := mustCreateFolder(t, o, a.ID, "Inbox", folder.RoleInbox)
	sent := mustCreateFolder(t, o, a.ID, "Sent", folder.RoleSent)
	trash := mustCreateFolder(t, o, a.ID, "Trash", folder.RoleTrash)

	client := newLoopbackStorageClient()
	mb := dec.NewMailbox([]dec.StorageClient{client}, o.messages, o.folders)
	o.RegisterDecentralizedMailbox(a.ID, mb)

	id := decIdentityFixture(t, o, a.ID, inbox, sent, trash)

	m := &message.Message{
		Subject:  "self note",
		TextBody: "sent to my own mailbox",
		Addresses: []message.Address{
			{Kind: message.AddressFrom, Email: "me@example.test"},
			{Kind: message.AddressTo, Email: id.PublicKeyBase32E + "@network-one"},
		},
	}

	require.NoError(t, o.SendDecentralized(context.Background(), a.ID, id, m))

	n, err := o.ReceiveNewDecentralized(context.Background(), a.ID, id)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	stored, err := o.messages.GetEarlier(inbox.ID, nil, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "self note", stored[0].Subject)
}
