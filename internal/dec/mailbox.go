package dec

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/folder"
	"github.com/hkdb/tuvicore/internal/logging"
	"github.com/hkdb/tuvicore/internal/message"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Identity is the material a decentralized account's mailbox operates
// under: its own public/private keypair (armored, per pgp.GenerateKeyPair)
// and the local folder ids the fan-out writes into.
type Identity struct {
	AccountID        int64
	PublicKeyBase32E string
	PublicArmored    string
	PrivateArmored   string
	InboxFolderID    int64
	SentFolderID     int64
	TrashFolderID    int64
}

// Mailbox is the DEC mailbox component (§4.3): per-recipient encryption,
// mailbox-id routing, and list-then-fetch receive, fanned out across every
// configured storage client with partial-failure tolerance.
type Mailbox struct {
	clients  []StorageClient
	messages *message.Store
	folders  *folder.Store
	log      zerolog.Logger
}

// NewMailbox builds a Mailbox over the given storage clients. At least one
// client is required; the fan-out tolerates any subset of them failing at
// call time, not an empty set declared up front.
func NewMailbox(clients []StorageClient, messages *message.Store, folders *folder.Store) *Mailbox {
	return &Mailbox{clients: clients, messages: messages, folders: folders, log: logging.WithComponent("dec-mailbox")}
}

// Send encrypts m for every decentralized recipient in {to, cc, bcc},
// concurrently puts the ciphertext on every storage client, and routes the
// resulting content hash to each recipient's mailbox id (§4.3). It also
// stores the sent message locally, marked read and decentralized.
func (mb *Mailbox) Send(ctx context.Context, id Identity, m *message.Message) error {
	recipients := decentralizedRecipients(m)
	if len(recipients) == 0 {
		return errs.New(errs.InvalidArgument, "message has no decentralized recipients")
	}

	blob, err := EncodeWireBlob(m)
	if err != nil {
		return err
	}

	pubKeys := make([]string, 0, len(recipients))
	for _, addr := range recipients {
		pk, err := ExtractPublicKey(addr)
		if err != nil {
			return err
		}
		pubKeys = append(pubKeys, pk)
	}

	sealed, err := EncryptForRecipients(pubKeys, blob)
	if err != nil {
		return err
	}

	correlationID := uuid.New().String()
	for _, pk := range pubKeys {
		mailboxID, err := DeriveMailboxID(pk)
		if err != nil {
			return err
		}
		if err := mb.putAndRoute(ctx, correlationID, mailboxID, sealed); err != nil {
			return err
		}
	}

	m.IsRead = true
	m.IsDecentralized = true
	m.FolderID = id.SentFolderID
	return mb.messages.AddOne(m, true)
}

// putAndRoute puts sealed on every client concurrently and sends the
// resulting content hash to mailboxID's queue on the same client it was
// stored on, tolerating any subset of clients failing (§4.3 fan-out policy).
// correlationID ties every client attempt for this one logical send together
// in the logs, since the fan-out otherwise gives no way to tell which
// warnings belong to the same call.
func (mb *Mailbox) putAndRoute(ctx context.Context, correlationID, mailboxID string, sealed []byte) error {
	g, gctx := errgroup.WithContext(ctx)
	var successes int32
	var mu sync.Mutex

	for _, client := range mb.clients {
		client := client
		g.Go(func() error {
			hash, err := client.Put(gctx, sealed)
			if err != nil {
				mb.log.Warn().Str("correlation_id", correlationID).Err(err).Msg("storage client put failed")
				return nil
			}
			if err := client.Send(gctx, mailboxID, hash); err != nil {
				mb.log.Warn().Str("correlation_id", correlationID).Err(err).Msg("storage client send failed")
				return nil
			}
			mu.Lock()
			successes++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errs.FromContext(ctx)
	}
	if successes == 0 {
		return errs.Newf(errs.DecentralizedTransport, "all storage clients failed (correlation_id=%s)", correlationID)
	}
	return nil
}

// ReceiveNew lists content hashes queued for the account's own mailbox id
// across every storage client, deduplicates, fetches and decrypts any hash
// not already present locally, and inserts the result into Inbox (§4.3
// list-then-fetch). It returns the newly inserted messages so a caller (the
// orchestrator) can run contact derivation over them.
func (mb *Mailbox) ReceiveNew(ctx context.Context, id Identity) ([]*message.Message, error) {
	mailboxID, err := DeriveMailboxID(id.PublicKeyBase32E)
	if err != nil {
		return nil, err
	}

	hashes, err := mb.listAll(ctx, mailboxID)
	if err != nil {
		return nil, err
	}

	var inserted []*message.Message
	for hash := range hashes {
		externalID := contentHashExternalID(hash)

		inInbox, err := mb.messages.Exists(id.InboxFolderID, externalID)
		if err != nil {
			return inserted, err
		}
		inTrash, err := mb.messages.Exists(id.TrashFolderID, externalID)
		if err != nil {
			return inserted, err
		}
		if inInbox || inTrash {
			continue
		}

		data, err := mb.getAny(ctx, hash)
		if err != nil {
			mb.log.Warn().Str("content_hash", hash).Err(err).Msg("no storage client had the content for a queued hash")
			continue
		}
		plaintext, err := DecryptOwn(id.PrivateArmored, data)
		if err != nil {
			mb.log.Warn().Str("content_hash", hash).Err(err).Msg("failed to decrypt decentralized message")
			continue
		}
		m, err := DecodeWireBlob(plaintext)
		if err != nil {
			mb.log.Warn().Str("content_hash", hash).Err(err).Msg("failed to decode decentralized message")
			continue
		}
		m.FolderID = id.InboxFolderID
		m.IsDecentralized = true
		m.ExternalID = externalID
		if err := mb.messages.AddOne(m, true); err != nil {
			return inserted, err
		}
		inserted = append(inserted, m)
	}
	return inserted, nil
}

func (mb *Mailbox) listAll(ctx context.Context, mailboxID string) (map[string]bool, error) {
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var successes int32
	hashes := make(map[string]bool)

	for _, client := range mb.clients {
		client := client
		g.Go(func() error {
			list, err := client.List(gctx, mailboxID)
			if err != nil {
				mb.log.Warn().Err(err).Msg("storage client list failed")
				return nil
			}
			mu.Lock()
			successes++
			for _, h := range list {
				hashes[h] = true
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errs.FromContext(ctx)
	}
	if successes == 0 {
		return nil, errs.New(errs.DecentralizedTransport, "all storage clients failed")
	}
	return hashes, nil
}

func (mb *Mailbox) getAny(ctx context.Context, contentHash string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	results := make(chan result, len(mb.clients))

	g, gctx := errgroup.WithContext(ctx)
	for _, client := range mb.clients {
		client := client
		g.Go(func() error {
			data, err := client.Get(gctx, contentHash)
			results <- result{data: data, err: err}
			return nil
		})
	}
	g.Wait()
	close(results)

	for r := range results {
		if r.err == nil {
			return r.data, nil
		}
	}
	return nil, errs.New(errs.DecentralizedTransport, "no storage client had the requested content")
}

func decentralizedRecipients(m *message.Message) []string {
	var out []string
	for _, a := range m.Addresses {
		switch a.Kind {
		case message.AddressTo, message.AddressCc, message.AddressBcc:
			if ValidateBase32E(extractLocalPart(a.Email)) {
				out = append(out, a.Email)
			}
		}
	}
	return out
}

func extractLocalPart(address string) string {
	for i := 0; i < len(address); i++ {
		if address[i] == '@' {
			return address[:i]
		}
	}
	return address
}

// contentHashExternalID derives a deterministic external id from a content
// hash (FNV-1a truncated to 32 bits) so repeat delivery of the same hash
// collides on the folder's unique (folder, external_id) constraint instead
// of inserting a second copy. A zero result is nudged to 1 since external
// id 0 is reserved as "unset" elsewhere in the store.
func contentHashExternalID(contentHash string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(contentHash); i++ {
		h ^= uint32(contentHash[i])
		h *= 16777619
	}
	if h == 0 {
		return 1
	}
	return h
}
