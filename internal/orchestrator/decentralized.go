package orchestrator

import (
	"context"

	"github.com/hkdb/tuvicore/internal/dec"
	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/message"
)

// SendDecentralized encrypts and routes m through the account's registered
// DEC mailbox, then runs contact derivation over the locally stored Sent
// copy the same way a classic send would (§4.4/§4.5).
func (o *Orchestrator) SendDecentralized(ctx context.Context, accountID int64, identity dec.Identity, m *message.Message) error {
	mb, ok := o.decMailboxes[accountID]
	if !ok {
		return errs.New(errs.NotSupported, "no decentralized mailbox registered for this account")
	}
	a, err := o.accounts.Get(accountID)
	if err != nil {
		return err
	}
	sentFolder, err := o.folders.Get(identity.SentFolderID)
	if err != nil {
		return err
	}

	return o.withAccountWrite(accountID, func() error {
		if err := mb.Send(ctx, identity, m); err != nil {
			return err
		}
		return o.deriveIngress(a.Address, sentFolder.Roles, []*message.Message{m})
	})
}

// ReceiveNewDecentralized lists and fetches new decentralized mail for the
// account, inserts it into Inbox, and runs contact derivation over the
// inserted batch (§4.3/§4.4).
func (o *Orchestrator) ReceiveNewDecentralized(ctx context.Context, accountID int64, identity dec.Identity) (int, error) {
	mb, ok := o.decMailboxes[accountID]
	if !ok {
		return 0, errs.New(errs.NotSupported, "no decentralized mailbox registered for this account")
	}
	a, err := o.accounts.Get(accountID)
	if err != nil {
		return 0, err
	}
	inbox, err := o.folders.Get(identity.InboxFolderID)
	if err != nil {
		return 0, err
	}

	var inserted []*message.Message
	lockErr := o.withAccountWrite(accountID, func() error {
		var err error
		inserted, err = mb.ReceiveNew(ctx, identity)
		if err != nil {
			return err
		}
		return o.deriveIngress(a.Address, inbox.Roles, inserted)
	})
	return len(inserted), lockErr
}

// ClaimDecentralizedName delegates to the DEC name resolver via a storage
// client, restricted by the caller to the first network variant of a
// decentralized account (§4.4).
func (o *Orchestrator) ClaimDecentralizedName(ctx context.Context, client dec.StorageClient, privateArmored, pubKeyBase32E, name string) (string, error) {
	return dec.ClaimName(ctx, client, privateArmored, pubKeyBase32E, name)
}
