// Package mailbox declares the mailbox driver boundary (§6): the interface
// the orchestrator drives per account, implemented by the concrete IMAP/
// SMTP/Proton protocol drivers that live outside this module's scope.
package mailbox

import (
	"context"
	"time"

	"github.com/hkdb/tuvicore/internal/folder"
	"github.com/hkdb/tuvicore/internal/message"
)

// Sentinel identifies a point in a folder's message sequence to page from.
// A zero value means "start from the newest message".
type Sentinel struct {
	Timestamp time.Time
	ExternalID uint32
}

// Driver is the external collaborator a classic or Proton-style account
// plugs in. Folder mutation methods are capability-gated by the orchestrator
// per account type (§4.4), not by the driver itself.
type Driver interface {
	// ListFolders returns the account's current remote folder tree.
	ListFolders(ctx context.Context) ([]folder.Folder, error)

	// DefaultInbox returns the path of the account's inbox folder.
	DefaultInbox(ctx context.Context) (string, error)

	// HasFolderCounters reports whether the remote protocol exposes
	// authoritative total/unread counters for a folder (e.g. IMAP STATUS),
	// or whether the orchestrator must derive them locally instead.
	HasFolderCounters() bool

	// GetMessages pages backward from sentinel (exclusive); a zero Sentinel
	// starts from the newest message.
	GetMessages(ctx context.Context, folderPath string, sentinel Sentinel, limit int) ([]*message.Message, error)

	// SendMessage transmits a composed message through this account.
	SendMessage(ctx context.Context, m *message.Message) error

	// AppendDraft stores or replaces the draft for m in the account's Drafts
	// folder, returning the driver's external id for the stored draft.
	AppendDraft(ctx context.Context, m *message.Message) (externalID uint32, err error)

	// CreateFolder, RenameFolder and DeleteFolder are capability-gated per
	// account type (§4.4); a driver for an account type that forbids them is
	// never called for these methods.
	CreateFolder(ctx context.Context, path string) error
	RenameFolder(ctx context.Context, oldPath, newPath string) error
	DeleteFolder(ctx context.Context, path string) error

	// Flag, Unflag, MarkRead and MarkUnread update remote flag state for the
	// given external ids within folderPath.
	Flag(ctx context.Context, folderPath string, externalIDs []uint32) error
	Unflag(ctx context.Context, folderPath string, externalIDs []uint32) error
	MarkRead(ctx context.Context, folderPath string, externalIDs []uint32) error
	MarkUnread(ctx context.Context, folderPath string, externalIDs []uint32) error

	// Move relocates messages between two remote folders.
	Move(ctx context.Context, fromFolderPath, toFolderPath string, externalIDs []uint32) error
}
