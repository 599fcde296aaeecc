// Package message persists the Message entity (§3): envelope, body, address
// lists, attachments, protection metadata and signatures, denormalized under
// its owning folder for range queries that never need a join.
package message

import "time"

// AddressKind discriminates the role an Address plays on a Message.
type AddressKind string

const (
	AddressFrom    AddressKind = "from"
	AddressTo      AddressKind = "to"
	AddressCc      AddressKind = "cc"
	AddressBcc     AddressKind = "bcc"
	AddressReplyTo AddressKind = "reply_to"
)

// Address is one named participant on a message.
type Address struct {
	Kind  AddressKind
	Name  string
	Email string
}

// ProtectionType names the cryptographic treatment applied to a message's
// body, set when a message arrives over the decentralized transport or was
// PGP-protected over classic transport.
type ProtectionType string

const (
	ProtectionNone      ProtectionType = ""
	ProtectionEncrypted ProtectionType = "encrypted"
	ProtectionSigned    ProtectionType = "signed"
)

// Attachment is a binary part carried by a message.
type Attachment struct {
	ID          int64
	MessageID   int64
	Filename    string
	ContentType string
	Content     []byte
}

// Message is the persisted message record. ExternalID is the mailbox
// driver's (or DEC mailbox's) own identifier for the message within its
// folder, unique alongside FolderID but otherwise opaque to this package.
type Message struct {
	ID              int64
	FolderID        int64
	FolderPath      string // denormalized copy of the owning folder's path
	ExternalID      uint32
	Timestamp       time.Time
	Subject         string
	Preview         string
	TextBody        string
	HTMLBody        string
	IsRead          bool
	IsFlagged       bool
	IsDecentralized bool

	Addresses  []Address
	Protection ProtectionType
	Signatures [][]byte // detached signature blobs, stored and loaded as-is; the store does not verify them
	Attachments []Attachment
}

// From returns the message's sole "from" address, or the zero Address if
// none is recorded.
func (m *Message) From() Address {
	for _, a := range m.Addresses {
		if a.Kind == AddressFrom {
			return a
		}
	}
	return Address{}
}

// Recipients returns every address of the given kind.
func (m *Message) Recipients(kind AddressKind) []Address {
	var out []Address
	for _, a := range m.Addresses {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}
