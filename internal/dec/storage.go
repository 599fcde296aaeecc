package dec

import "context"

// StorageClient is the external collaborator a decentralized account's
// transport plugs in (§6). Every method is content-addressed or
// mailbox-id-addressed; the concrete HTTP transport to a given network is
// out of this module's scope.
type StorageClient interface {
	// Put stores bytes and returns its content hash.
	Put(ctx context.Context, data []byte) (contentHash string, err error)

	// Send publishes a content hash to a mailbox id's queue.
	Send(ctx context.Context, mailboxID, contentHash string) error

	// List returns the content hashes currently queued for a mailbox id.
	List(ctx context.Context, mailboxID string) ([]string, error)

	// Get fetches the bytes for a content hash.
	Get(ctx context.Context, contentHash string) ([]byte, error)

	// ClaimName submits a name claim and returns the public key the
	// resolver has bound to canonicalName, which the caller compares
	// against its own to detect a successful claim.
	ClaimName(ctx context.Context, canonicalName, pubKey, signature string) (boundPubKey string, err error)
}
