package dec

import (
	"bytes"
	"context"
	"encoding/base32"
	"fmt"
	"sync"
	"testing"

	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/folder"
	"github.com/hkdb/tuvicore/internal/message"
	"github.com/hkdb/tuvicore/internal/pgp"
	"github.com/stretchr/testify/require"
)

// testIdentityHalf is one side of a generated test keypair: the armored
// form for pgp.Encrypt/Decrypt, and (for the public half) the raw-binary
// Base32E encoding a decentralized address's local part carries.
type testIdentityHalf struct {
	armored string
	base32E string
}

// generateTestIdentity builds a fresh keypair and derives the Base32E public
// key the same way a decentralized address's local part would carry it: the
// binary (non-armored) serialized OpenPGP public key, Base32E-encoded.
func generateTestIdentity(t *testing.T) (pub, priv testIdentityHalf, err error) {
	t.Helper()
	publicArmored, privateArmored, err := pgp.GenerateKeyPair("test@example.test")
	if err != nil {
		return testIdentityHalf{}, testIdentityHalf{}, err
	}
	entities, err := pgp.ParseArmoredKey(publicArmored)
	if err != nil {
		return testIdentityHalf{}, testIdentityHalf{}, err
	}
	var raw bytes.Buffer
	if err := entities[0].Serialize(&raw); err != nil {
		return testIdentityHalf{}, testIdentityHalf{}, err
	}
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw.Bytes())
	return testIdentityHalf{armored: publicArmored, base32E: encoded},
		testIdentityHalf{armored: privateArmored}, nil
}

// testMessage builds a minimal decentralized message addressed to the given
// Base32E public key, the shape Mailbox.Send expects.
func testMessage(recipientBase32E string) *message.Message {
	return &message.Message{
		Subject:  "hello",
		TextBody: "a decentralized test message",
		Addresses: []message.Address{
			{Kind: message.AddressFrom, Email: "sender@example.test"},
			{Kind: message.AddressTo, Email: recipientBase32E + "@network-one"},
		},
	}
}

// fakeStorageClient is an in-memory StorageClient. When alwaysFail is set
// every method fails with a transport error, modeling one of the "two
// always throw" clients from §8's fan-out partial-failure scenario.
type fakeStorageClient struct {
	mu         sync.Mutex
	alwaysFail bool
	blobs      map[string][]byte
	queues     map[string][]string

	calls int
}

func newFakeStorageClient(alwaysFail bool) *fakeStorageClient {
	return &fakeStorageClient{alwaysFail: alwaysFail, blobs: map[string][]byte{}, queues: map[string][]string{}}
}

func (c *fakeStorageClient) Put(ctx context.Context, data []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.alwaysFail {
		return "", fmt.Errorf("simulated transport failure")
	}
	hash := fmt.Sprintf("hash-%d", len(c.blobs))
	c.blobs[hash] = data
	return hash, nil
}

func (c *fakeStorageClient) Send(ctx context.Context, mailboxID, contentHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.alwaysFail {
		return fmt.Errorf("simulated transport failure")
	}
	c.queues[mailboxID] = append(c.queues[mailboxID], contentHash)
	return nil
}

func (c *fakeStorageClient) List(ctx context.Context, mailboxID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.alwaysFail {
		return nil, fmt.Errorf("simulated transport failure")
	}
	return append([]string(nil), c.queues[mailboxID]...), nil
}

func (c *fakeStorageClient) Get(ctx context.Context, contentHash string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.alwaysFail {
		return nil, fmt.Errorf("simulated transport failure")
	}
	data, ok := c.blobs[contentHash]
	if !ok {
		return nil, fmt.Errorf("no such content hash")
	}
	return data, nil
}

func (c *fakeStorageClient) ClaimName(ctx context.Context, canonicalName, pubKey, signature string) (string, error) {
	if c.alwaysFail {
		return "", fmt.Errorf("simulated transport failure")
	}
	return pubKey, nil
}

func TestMailbox_FanOutPartialFailure(t *testing.T) {
	messages, folders, accounts := newTestStores(t)
	a := mustAddAccount(t, accounts)
	sent := mustCreateFolder(t, folders, a.ID, "Sent", folder.RoleSent)
	inbox := mustCreateFolder(t, folders, a.ID, "Inbox", folder.RoleInbox)
	trash := mustCreateFolder(t, folders, a.ID, "Trash", folder.RoleTrash)

	unhealthy1 := newFakeStorageClient(true)
	unhealthy2 := newFakeStorageClient(true)
	healthy := newFakeStorageClient(false)

	mb := NewMailbox([]StorageClient{unhealthy1, unhealthy2, healthy}, messages, folders)

	pub, priv, err := generateTestIdentity(t)
	require.NoError(t, err)

	id := Identity{
		AccountID:        a.ID,
		PublicKeyBase32E: pub.base32E,
		PublicArmored:    pub.armored,
		PrivateArmored:   priv.armored,
		InboxFolderID:    inbox.ID,
		SentFolderID:     sent.ID,
		TrashFolderID:    trash.ID,
	}

	msg := testMessage(pub.base32E)

	err = mb.Send(context.Background(), id, msg)
	require.NoError(t, err, "at least one healthy client must make send succeed")

	inserted, err := mb.ReceiveNew(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, inserted, 1, "exactly one locally stored inbox row")

	require.Greater(t, healthy.calls, 0, "the healthy client's methods must be called at least once")
	require.Greater(t, unhealthy1.calls, 0, "failing clients are still attempted, not skipped")
	require.Greater(t, unhealthy2.calls, 0, "failing clients are still attempted, not skipped")
}

func TestMailbox_AllClientsFail(t *testing.T) {
	messages, folders, accounts := newTestStores(t)
	a := mustAddAccount(t, accounts)
	sent := mustCreateFolder(t, folders, a.ID, "Sent", folder.RoleSent)
	inbox := mustCreateFolder(t, folders, a.ID, "Inbox", folder.RoleInbox)
	trash := mustCreateFolder(t, folders, a.ID, "Trash", folder.RoleTrash)

	clients := []StorageClient{newFakeStorageClient(true), newFakeStorageClient(true), newFakeStorageClient(true)}
	mb := NewMailbox(clients, messages, folders)

	pub, priv, err := generateTestIdentity(t)
	require.NoError(t, err)

	id := Identity{
		PublicKeyBase32E: pub.base32E,
		PublicArmored:    pub.armored,
		PrivateArmored:   priv.armored,
		InboxFolderID:    inbox.ID,
		SentFolderID:     sent.ID,
		TrashFolderID:    trash.ID,
	}

	err = mb.Send(context.Background(), id, testMessage(pub.base32E))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.DecentralizedTransport))

	_, err = mb.ReceiveNew(context.Background(), id)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.DecentralizedTransport))
}
