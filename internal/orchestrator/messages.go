package orchestrator

import (
	"context"
	"database/sql"

	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/foldersync"
	"github.com/hkdb/tuvicore/internal/mailbox"
	"github.com/hkdb/tuvicore/internal/message"
)

// AddMessage inserts a single message into folderID and runs contact
// derivation on ingress (§4.4/§4.5).
func (o *Orchestrator) AddMessage(accountID, folderID int64, m *message.Message) error {
	return o.AddMessages(accountID, folderID, []*message.Message{m})
}

// AddMessages batch-inserts messages into folderID and runs contact
// derivation over the whole batch in one pass (§4.5: "data store applies
// duplicate-skipping and counter rules; contact engine ... runs in the same
// logical transaction").
func (o *Orchestrator) AddMessages(accountID, folderID int64, msgs []*message.Message) error {
	a, err := o.accounts.Get(accountID)
	if err != nil {
		return err
	}
	f, err := o.folders.Get(folderID)
	if err != nil {
		return err
	}

	return o.withAccountWrite(accountID, func() error {
		for _, m := range msgs {
			m.FolderID = folderID
		}
		if _, err := o.messages.AddBatch(folderID, msgs, true); err != nil {
			return err
		}
		return o.deriveIngress(a.Address, f.Roles, msgs)
	})
}

// ReplaceMessage overwrites a message's mutable fields. §4.4's "add/replace"
// operation pair; replace does not re-run contact derivation, which is
// defined only for ingress and delete.
func (o *Orchestrator) ReplaceMessage(accountID int64, m *message.Message) error {
	return o.withAccountWrite(accountID, func() error {
		return o.messages.UpdateOne(m, true)
	})
}

// DeleteMessage removes a message and runs the symmetric counter
// decrement of contact derivation (§4.4).
func (o *Orchestrator) DeleteMessage(accountID, messageID int64) error {
	return o.withAccountWrite(accountID, func() error {
		m, err := o.messages.GetByID(messageID)
		if err != nil {
			return err
		}
		f, err := o.folders.Get(m.FolderID)
		if err != nil {
			return err
		}
		if err := o.messages.DeleteOne(messageID, true); err != nil {
			return err
		}
		return o.deriveDelete(f.Roles, m)
	})
}

// MoveMessages relocates messages between two folders of the same account,
// driving the external mailbox when one is registered.
func (o *Orchestrator) MoveMessages(ctx context.Context, accountID int64, fromFolderID, toFolderID int64, messageIDs []int64) error {
	return o.withAccountWrite(accountID, func() error {
		from, err := o.folders.Get(fromFolderID)
		if err != nil {
			return err
		}
		to, err := o.folders.Get(toFolderID)
		if err != nil {
			return err
		}

		var externalIDs []uint32
		for _, id := range messageIDs {
			m, err := o.messages.GetByID(id)
			if err != nil {
				return err
			}
			externalIDs = append(externalIDs, m.ExternalID)
			m.FolderID = toFolderID
			if err := o.messages.UpdateOne(m, false); err != nil {
				return err
			}
		}

		if d, ok := o.drivers[accountID]; ok {
			if err := d.Move(ctx, from.Path, to.Path, externalIDs); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReceiveEarlier pages older messages for folderID from the account's
// registered mailbox driver, appends them locally, and runs contact
// derivation (§4.4 "receive earlier").
func (o *Orchestrator) ReceiveEarlier(ctx context.Context, accountID, folderID int64, limit int) (int, error) {
	d, ok := o.drivers[accountID]
	if !ok {
		return 0, errs.New(errs.NotSupported, "no mailbox driver registered for this account")
	}
	a, err := o.accounts.Get(accountID)
	if err != nil {
		return 0, err
	}
	f, err := o.folders.Get(folderID)
	if err != nil {
		return 0, err
	}

	oldest, err := o.oldestLocal(folderID)
	if err != nil {
		return 0, err
	}

	var inserted int
	lockErr := o.withAccountWrite(accountID, func() error {
		msgs, err := d.GetMessages(ctx, f.Path, oldest, limit)
		if err != nil {
			return errs.Wrap(errs.Connection, err, "fetch earlier messages")
		}
		for _, m := range msgs {
			m.FolderID = folderID
		}
		n, err := o.messages.AddBatch(folderID, msgs, true)
		if err != nil {
			return err
		}
		inserted = n
		return o.deriveIngress(a.Address, f.Roles, msgs)
	})
	return inserted, lockErr
}

func (o *Orchestrator) oldestLocal(folderID int64) (mailbox.Sentinel, error) {
	var id int64
	err := o.db.QueryRow(`SELECT id FROM messages WHERE folder_id = ? ORDER BY timestamp ASC, id ASC LIMIT 1`, folderID).Scan(&id)
	if err == sql.ErrNoRows {
		return mailbox.Sentinel{}, nil
	}
	if err != nil {
		return mailbox.Sentinel{}, errs.Wrap(errs.Database, err, "find oldest local message")
	}
	oldest, err := o.messages.GetByID(id)
	if err != nil {
		return mailbox.Sentinel{}, err
	}
	return mailbox.Sentinel{Timestamp: oldest.Timestamp, ExternalID: oldest.ExternalID}, nil
}

// SyncFolder reconciles folderID's local messages (its most recent `limit`,
// by GetEarlier's ordering) against the account's driver using the generic
// reconciliation algorithm (§4.2), applying deletes, then updates, then
// adds, with counter updates suppressed during sync (§4.2:
// "update_unread_and_total = false").
func (o *Orchestrator) SyncFolder(ctx context.Context, accountID, folderID int64, limit int) error {
	d, ok := o.drivers[accountID]
	if !ok {
		return errs.New(errs.NotSupported, "no mailbox driver registered for this account")
	}
	f, err := o.folders.Get(folderID)
	if err != nil {
		return err
	}

	return o.withAccountWrite(accountID, func() error {
		local, err := o.messages.GetEarlier(folderID, nil, limit)
		if err != nil {
			return err
		}
		remoteMsgs, err := d.GetMessages(ctx, f.Path, mailbox.Sentinel{}, limit)
		if err != nil {
			return errs.Wrap(errs.Connection, err, "fetch folder for sync")
		}
		remote := make([]foldersync.RemoteMessage, 0, len(remoteMsgs))
		for _, m := range remoteMsgs {
			remote = append(remote, foldersync.RemoteMessage{ExternalID: m.ExternalID, IsRead: m.IsRead, IsFlagged: m.IsFlagged})
		}

		var bound *foldersync.Bound
		if len(local) > 0 {
			lo, hi := local[len(local)-1].ExternalID, local[0].ExternalID
			bound = &foldersync.Bound{OldestExternalID: lo, NewestExternalID: hi}
		}

		result := foldersync.Reconcile(local, remote, bound)

		localByExternal := make(map[uint32]*message.Message, len(local))
		for _, m := range local {
			localByExternal[m.ExternalID] = m
		}

		for _, externalID := range result.Deleted {
			if m, ok := localByExternal[externalID]; ok {
				if err := o.messages.DeleteOne(m.ID, false); err != nil {
					return err
				}
			}
		}
		for _, r := range result.Updated {
			m := localByExternal[r.ExternalID]
			m.IsRead, m.IsFlagged = r.IsRead, r.IsFlagged
			if err := o.messages.UpdateOne(m, false); err != nil {
				return err
			}
		}
		for _, r := range result.Added {
			m := &message.Message{FolderID: folderID, ExternalID: r.ExternalID, IsRead: r.IsRead, IsFlagged: r.IsFlagged}
			if err := o.messages.AddOne(m, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetDraft stores or replaces a draft via the account's registered mailbox
// driver and mirrors it locally in the Drafts folder (§4.4 "set/replace
// draft").
func (o *Orchestrator) SetDraft(ctx context.Context, accountID, draftsFolderID int64, m *message.Message) error {
	d, ok := o.drivers[accountID]
	if !ok {
		return errs.New(errs.NotSupported, "no mailbox driver registered for this account")
	}
	return o.withAccountWrite(accountID, func() error {
		externalID, err := d.AppendDraft(ctx, m)
		if err != nil {
			return errs.Wrap(errs.Connection, err, "append draft")
		}
		m.FolderID = draftsFolderID
		m.ExternalID = externalID
		exists, err := o.messages.Exists(draftsFolderID, externalID)
		if err != nil {
			return err
		}
		if exists {
			return o.messages.UpdateOne(m, false)
		}
		return o.messages.AddOne(m, false)
	})
}
