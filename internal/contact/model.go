// Package contact persists the Contact entity (§3): identity is a
// normalized address, cross-referenced from messages by address-set
// membership rather than a foreign key.
package contact

import "time"

// LastMessage points at the most recent message a contact participated in.
type LastMessage struct {
	AccountAddress string
	MessageID      int64
	Timestamp      time.Time
}

// Contact is the persisted contact record.
type Contact struct {
	AddressKey  string // normalized address, primary key
	Address     string // display form
	DisplayName string
	Avatar      []byte
	AvatarWidth int
	AvatarHeight int
	LastMessage LastMessage
	UnreadCount int
}
