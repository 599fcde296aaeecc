package orchestrator

import (
	"github.com/hkdb/tuvicore/internal/account"
	"github.com/hkdb/tuvicore/internal/contact"
	"github.com/hkdb/tuvicore/internal/folder"
	"github.com/hkdb/tuvicore/internal/message"
)

// contactAddresses returns the distinct {from, to, cc, bcc} addresses a
// message contributes to contact derivation (§4.4); reply-to is excluded.
func contactAddresses(m *message.Message) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range m.Addresses {
		switch a.Kind {
		case message.AddressFrom, message.AddressTo, message.AddressCc, message.AddressBcc:
		default:
			continue
		}
		key := account.NormalizeAddress(a.Email)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a.Email)
	}
	return out
}

// deriveIngress runs the contact-derivation engine on a batch of newly
// ingested messages (§4.4). Messages in an ineligible folder (junk/trash/
// important/all) contribute nothing.
func (o *Orchestrator) deriveIngress(accountAddress string, roles folder.Role, msgs []*message.Message) error {
	if !roles.Eligible() {
		return nil
	}
	for _, m := range msgs {
		for _, addr := range contactAddresses(m) {
			added, err := o.contacts.TryAdd(&contact.Contact{Address: addr})
			if err != nil {
				return err
			}
			if added {
				o.events.emit(Event{Type: EventContactAdded, Payload: addr})
			}

			changed, err := o.contacts.UpdateLastMessage(addr, accountAddress, m.ID, m.Timestamp)
			if err != nil {
				return err
			}
			if changed {
				o.events.emit(Event{Type: EventContactChanged, Payload: addr})
			}

			if !m.IsRead {
				if err := o.contacts.AdjustUnread(addr, 1); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// deriveDelete reverses deriveIngress's unread-counter contribution when an
// eligible-folder message is deleted (§4.4: "counters are decremented
// symmetrically"). It does not retract a contact-added or move the
// last-message pointer backward; a changed pointer after delete would
// require scanning for the new latest message, which the caller (not this
// narrow symmetric-decrement step) is responsible for if it cares to.
func (o *Orchestrator) deriveDelete(roles folder.Role, m *message.Message) error {
	if !roles.Eligible() {
		return nil
	}
	if m.IsRead {
		return nil
	}
	for _, addr := range contactAddresses(m) {
		if err := o.contacts.AdjustUnread(addr, -1); err != nil {
			return err
		}
	}
	return nil
}

// SetContactName sets a contact's display name and emits contact-changed.
func (o *Orchestrator) SetContactName(address, displayName string) error {
	c, err := o.contacts.Get(address)
	if err != nil {
		return err
	}
	c.DisplayName = displayName
	if err := o.contacts.Update(c); err != nil {
		return err
	}
	o.events.emit(Event{Type: EventContactChanged, Payload: address})
	return nil
}

// SetContactAvatar sets a contact's avatar and emits contact-changed.
func (o *Orchestrator) SetContactAvatar(address string, avatar []byte, width, height int) error {
	if err := o.contacts.SetAvatar(address, avatar, width, height); err != nil {
		return err
	}
	o.events.emit(Event{Type: EventContactChanged, Payload: address})
	return nil
}

// RemoveContact deletes a contact and emits contact-deleted.
func (o *Orchestrator) RemoveContact(address string) error {
	if err := o.contacts.Remove(address); err != nil {
		return err
	}
	o.events.emit(Event{Type: EventContactDeleted, Payload: address})
	return nil
}
