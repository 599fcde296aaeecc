package orchestrator

import (
	"github.com/hkdb/tuvicore/internal/account"
	"github.com/hkdb/tuvicore/internal/folder"
)

// AddAccount persists a new account and emits account-added. Decentralized
// accounts are assigned the next derivation index for their network before
// being persisted (§4.3: "key derivation from master + account index"), so
// AssembleDecentralizedIdentity can later derive their keypair from it.
func (o *Orchestrator) AddAccount(a *account.Account) error {
	if a.AccountType == account.TypeDecentralized {
		idx, err := o.settings.NextNetworkCounter(a.NetworkTag)
		if err != nil {
			return err
		}
		a.DerivationIndex = idx
	}
	if err := o.accounts.Add(a); err != nil {
		return err
	}
	o.updateIdleConns()
	o.events.emit(Event{Type: EventAccountAdded, Payload: a})
	return nil
}

// updateIdleConns rescales the data store's idle-connection pool to the
// current number of accounts (§12's supplemented idle-connection scaling).
func (o *Orchestrator) updateIdleConns() {
	accounts, err := o.accounts.List()
	if err != nil {
		o.log.Warn().Err(err).Msg("failed to count accounts for idle-connection scaling")
		return
	}
	o.db.UpdateIdleConns(len(accounts))
}

// UpdateAccount overwrites an account's mutable fields and emits
// account-updated. Updating a non-existent account is a silent no-op
// (§9 Open Question: "kept as contract").
func (o *Orchestrator) UpdateAccount(a *account.Account) error {
	var err error
	lockErr := o.withAccountWrite(a.ID, func() error {
		err = o.accounts.Update(a)
		return err
	})
	if lockErr != nil {
		return lockErr
	}
	if err != nil {
		return err
	}
	o.events.emit(Event{Type: EventAccountUpdated, Payload: a})
	return nil
}

// UpdateFolderStructure reconciles an account's folder tree against the
// desired set (§3: "updated on ... folder structure change"). It emits at
// most one folder-created, one folder-renamed (for updated folders) and one
// folder-deleted event, each only when that count is non-zero and each with
// the account id as payload, not one event per affected folder.
func (o *Orchestrator) UpdateFolderStructure(accountID int64, desired []folder.Folder) (created, updated, deleted int, err error) {
	lockErr := o.withAccountWrite(accountID, func() error {
		created, updated, deleted, err = o.accounts.UpdateFolderStructure(accountID, desired)
		return err
	})
	if lockErr != nil {
		return 0, 0, 0, lockErr
	}
	if err != nil {
		return 0, 0, 0, err
	}
	if created > 0 {
		o.events.emit(Event{Type: EventFolderCreated, Payload: accountID})
	}
	if updated > 0 {
		o.events.emit(Event{Type: EventFolderRenamed, Payload: accountID})
	}
	if deleted > 0 {
		o.events.emit(Event{Type: EventFolderDeleted, Payload: accountID})
	}
	return created, updated, deleted, nil
}

// DeleteAccount removes an account and every folder/message cascading from
// it, and emits account-deleted. If the removed account was decentralized
// and no decentralized account remains, the vault's master key is cleared
// too, since nothing derives from it anymore.
func (o *Orchestrator) DeleteAccount(id int64) error {
	deleted, err := o.accounts.Get(id)
	if err != nil {
		return err
	}

	lockErr := o.withAccountWrite(id, func() error {
		err = o.accounts.Delete(id)
		return err
	})
	if lockErr != nil {
		return lockErr
	}
	if err != nil {
		return err
	}
	o.locks.Forget(id)
	delete(o.drivers, id)
	delete(o.decMailboxes, id)
	o.updateIdleConns()

	if deleted.AccountType == account.TypeDecentralized {
		if err := o.forgetMasterKeyIfUnused(); err != nil {
			o.log.Warn().Err(err).Msg("failed to clear master key after last decentralized account was removed")
		}
	}

	o.events.emit(Event{Type: EventAccountDeleted, Payload: id})
	return nil
}

// forgetMasterKeyIfUnused clears the vault's master key once no
// decentralized account remains to derive from it.
func (o *Orchestrator) forgetMasterKeyIfUnused() error {
	accounts, err := o.accounts.List()
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if a.AccountType == account.TypeDecentralized {
			return nil
		}
	}
	return o.keystore.DeleteAll()
}

// Account retrieves a single account by id.
func (o *Orchestrator) Account(id int64) (*account.Account, error) {
	return o.accounts.Get(id)
}

// CompositeAccounts returns every account, the basis for the composite
// account view (§4.4).
func (o *Orchestrator) CompositeAccounts() ([]*account.Account, error) {
	return o.accounts.List()
}
