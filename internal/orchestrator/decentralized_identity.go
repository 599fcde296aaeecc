package orchestrator

import (
	"github.com/hkdb/tuvicore/internal/account"
	"github.com/hkdb/tuvicore/internal/dec"
	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/folder"
	"github.com/hkdb/tuvicore/internal/pgp"
)

// AssembleDecentralizedIdentity derives a decentralized account's mailbox
// identity from the vault's master key and the account's own derivation
// index (§4.3), rather than generating a fresh, unrelated keypair on every
// call. Re-assembling the identity for the same account always reproduces
// the same keys, so the caller never loses access to an existing mailbox.
func (o *Orchestrator) AssembleDecentralizedIdentity(accountID int64) (dec.Identity, error) {
	a, err := o.accounts.Get(accountID)
	if err != nil {
		return dec.Identity{}, err
	}
	if a.AccountType != account.TypeDecentralized {
		return dec.Identity{}, errs.New(errs.NotSupported, "account is not decentralized")
	}

	masterKey, err := o.keystore.EnsureMasterKey()
	if err != nil {
		return dec.Identity{}, err
	}

	publicArmored, privateArmored, err := pgp.DeriveKeyPair(masterKey, a.DerivationIndex, a.Address)
	if err != nil {
		return dec.Identity{}, errs.Wrap(errs.InvalidOperation, err, "derive decentralized identity keypair")
	}
	pubKeyBase32E, err := dec.EncodePublicKey(publicArmored)
	if err != nil {
		return dec.Identity{}, err
	}

	folders, err := o.folders.List(accountID)
	if err != nil {
		return dec.Identity{}, err
	}
	id := dec.Identity{
		AccountID:        accountID,
		PublicKeyBase32E: pubKeyBase32E,
		PublicArmored:    publicArmored,
		PrivateArmored:   privateArmored,
	}
	for _, f := range folders {
		switch {
		case f.Roles&folder.RoleInbox != 0:
			id.InboxFolderID = f.ID
		case f.Roles&folder.RoleSent != 0:
			id.SentFolderID = f.ID
		case f.Roles&folder.RoleTrash != 0:
			id.TrashFolderID = f.ID
		}
	}
	return id, nil
}
