// Package orchestrator implements the mail-core façade (§4.4): the single
// entry point the outer application drives, wiring the data store, the
// contact-derivation engine, the mailbox driver per account, and the DEC
// mailbox together behind capability-gated operations and ordered events.
package orchestrator

import (
	"context"

	"github.com/hkdb/tuvicore/internal/account"
	"github.com/hkdb/tuvicore/internal/contact"
	"github.com/hkdb/tuvicore/internal/database"
	"github.com/hkdb/tuvicore/internal/dec"
	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/folder"
	"github.com/hkdb/tuvicore/internal/keystore"
	"github.com/hkdb/tuvicore/internal/logging"
	"github.com/hkdb/tuvicore/internal/mailbox"
	"github.com/hkdb/tuvicore/internal/message"
	"github.com/hkdb/tuvicore/internal/settings"
	"github.com/rs/zerolog"
)

// Orchestrator is the Mail-core orchestrator (§4.4): a façade over every
// store plus the external mailbox drivers and DEC transport, serializing
// writes per account and emitting events in commit order.
type Orchestrator struct {
	db       *database.DB
	locks    *database.AccountLocks
	accounts *account.Store
	folders  *folder.Store
	messages *message.Store
	contacts *contact.Store
	settings *settings.Store
	keystore *keystore.Store
	events   *eventBus
	log      zerolog.Logger

	// drivers maps an account id to the mailbox driver the caller has
	// registered for it (classic/proton accounts); decentralized accounts
	// are driven by decMailboxes instead.
	drivers      map[int64]mailbox.Driver
	decMailboxes map[int64]*dec.Mailbox
}

// New builds an Orchestrator over an already-opened database. The caller is
// responsible for registering a mailbox.Driver or dec.Mailbox per account
// via RegisterDriver/RegisterDecentralizedMailbox before driving any
// account-specific operation.
func New(db *database.DB) *Orchestrator {
	folders := folder.NewStore(db)
	return &Orchestrator{
		db:           db,
		locks:        database.NewAccountLocks(),
		accounts:     account.NewStore(db, folders),
		folders:      folders,
		messages:     message.NewStore(db, folders),
		contacts:     contact.NewStore(db),
		settings:     settings.NewStore(db),
		keystore:     keystore.NewStore(db),
		events:       newEventBus(logging.WithComponent("orchestrator")),
		log:          logging.WithComponent("orchestrator"),
		drivers:      make(map[int64]mailbox.Driver),
		decMailboxes: make(map[int64]*dec.Mailbox),
	}
}

// Subscribe registers an event listener; see Listener's doc for panic
// handling. The returned func removes the listener.
func (o *Orchestrator) Subscribe(l Listener) (unsubscribe func()) {
	return o.events.Subscribe(l)
}

// RegisterDriver associates a mailbox driver with a classic or proton
// account id.
func (o *Orchestrator) RegisterDriver(accountID int64, d mailbox.Driver) {
	o.drivers[accountID] = d
}

// RegisterDecentralizedMailbox associates a DEC mailbox with a decentralized
// account id.
func (o *Orchestrator) RegisterDecentralizedMailbox(accountID int64, mb *dec.Mailbox) {
	o.decMailboxes[accountID] = mb
}

// capability gates a folder mutation by account type (§4.4's table):
// classic accounts may create/rename/delete folders, proton and
// decentralized accounts may not; no account type may delete a special
// folder (inbox/sent/drafts/trash/junk/important/all).
func (o *Orchestrator) capability(a *account.Account, op string, roles folder.Role) error {
	if op == "delete" && roles.Special() {
		return errs.New(errs.InvalidOperation, "cannot delete a special folder")
	}
	switch a.AccountType {
	case account.TypeClassic:
		return nil
	case account.TypeProton, account.TypeDecentralized:
		return errs.Newf(errs.NotSupported, "%s folder operation is not supported for %s accounts", op, a.AccountType)
	default:
		return errs.Newf(errs.NotSupported, "unknown account type %q", a.AccountType)
	}
}

func (o *Orchestrator) withAccountWrite(accountID int64, fn func() error) error {
	return o.locks.WithWrite(accountID, fn)
}

func (o *Orchestrator) withAccountRead(accountID int64, fn func() error) error {
	return o.locks.WithRead(accountID, fn)
}

// StartMaintenance runs the data store's periodic WAL checkpoint in the
// background until ctx is done (§12's supplemented idle-maintenance
// behavior). The caller decides when the orchestrator's lifetime starts;
// this is not started implicitly by New.
func (o *Orchestrator) StartMaintenance(ctx context.Context) {
	go o.db.StartCheckpointRoutine(ctx)
}
