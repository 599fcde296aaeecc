package contact

import (
	"database/sql"
	"strings"
	"time"

	"github.com/hkdb/tuvicore/internal/account"
	"github.com/hkdb/tuvicore/internal/database"
	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/logging"
	"github.com/rs/zerolog"
)

// Store provides contact persistence operations.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// NewStore creates a new contact store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, log: logging.WithComponent("contact-store")}
}

func scanContact(row interface{ Scan(...any) error }) (*Contact, error) {
	c := &Contact{}
	var (
		avatarWidth, avatarHeight sql.NullInt64
		lastAddr                  sql.NullString
		lastMessageID             sql.NullInt64
		lastTimestamp             sql.NullString
	)
	err := row.Scan(
		&c.AddressKey, &c.Address, &c.DisplayName, &c.Avatar, &avatarWidth, &avatarHeight,
		&lastAddr, &lastMessageID, &lastTimestamp, &c.UnreadCount,
	)
	if err != nil {
		return nil, err
	}
	c.AvatarWidth = int(avatarWidth.Int64)
	c.AvatarHeight = int(avatarHeight.Int64)
	c.LastMessage.AccountAddress = lastAddr.String
	c.LastMessage.MessageID = lastMessageID.Int64
	if lastTimestamp.Valid {
		c.LastMessage.Timestamp, _ = time.Parse(time.RFC3339Nano, lastTimestamp.String)
	}
	return c, nil
}

const contactColumns = `
	address_key, address, display_name, avatar, avatar_width, avatar_height,
	last_message_address, last_message_id, last_message_timestamp, unread_count`

// Add inserts a new contact. Fails with errs.InvalidArgument if address is
// empty, and errs.Duplicate if the normalized address is already a contact.
func (s *Store) Add(c *Contact) error {
	if c.Address == "" {
		return errs.New(errs.InvalidArgument, "contact requires an address")
	}
	c.AddressKey = account.NormalizeAddress(c.Address)

	_, err := s.db.Exec(`
		INSERT INTO contacts (address_key, address, display_name, avatar, avatar_width, avatar_height, unread_count)
		VALUES (?, ?, ?, ?, ?, ?, 0)`,
		c.AddressKey, c.Address, c.DisplayName, c.Avatar, nullIfZero(c.AvatarWidth), nullIfZero(c.AvatarHeight),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.New(errs.Duplicate, "contact already exists")
		}
		return errs.Wrap(errs.Database, err, "add contact")
	}
	return nil
}

// TryAdd adds a contact and reports whether it was newly created, swallowing
// the duplicate-add error (§3: "try-add returns a boolean").
func (s *Store) TryAdd(c *Contact) (bool, error) {
	err := s.Add(c)
	if err == nil {
		return true, nil
	}
	if errs.Is(err, errs.Duplicate) {
		return false, nil
	}
	return false, err
}

// Get retrieves a contact by address.
func (s *Store) Get(address string) (*Contact, error) {
	row := s.db.QueryRow(`SELECT `+contactColumns+` FROM contacts WHERE address_key = ?`, account.NormalizeAddress(address))
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.NotFound, "contact not found")
	}
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "get contact")
	}
	return c, nil
}

// List returns every contact, ordered by display name then address.
func (s *Store) List() ([]*Contact, error) {
	rows, err := s.db.Query(`SELECT ` + contactColumns + ` FROM contacts ORDER BY display_name, address`)
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "list contacts")
	}
	defer rows.Close()

	var out []*Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, errs.Wrap(errs.Database, err, "scan contact")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ExistsByAddress reports whether a contact with the normalized address
// already exists.
func (s *Store) ExistsByAddress(address string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM contacts WHERE address_key = ?`, account.NormalizeAddress(address)).Scan(&n)
	if err != nil {
		return false, errs.Wrap(errs.Database, err, "check contact existence")
	}
	return n > 0, nil
}

// Update overwrites a contact's display name.
func (s *Store) Update(c *Contact) error {
	_, err := s.db.Exec(`UPDATE contacts SET display_name = ? WHERE address_key = ?`, c.DisplayName, c.AddressKey)
	if err != nil {
		return errs.Wrap(errs.Database, err, "update contact")
	}
	return nil
}

// SetAvatar sets a contact's avatar image.
func (s *Store) SetAvatar(address string, avatar []byte, width, height int) error {
	_, err := s.db.Exec(`UPDATE contacts SET avatar = ?, avatar_width = ?, avatar_height = ? WHERE address_key = ?`,
		avatar, nullIfZero(width), nullIfZero(height), account.NormalizeAddress(address))
	if err != nil {
		return errs.Wrap(errs.Database, err, "set contact avatar")
	}
	return nil
}

// RemoveAvatar clears a contact's avatar image.
func (s *Store) RemoveAvatar(address string) error {
	_, err := s.db.Exec(`UPDATE contacts SET avatar = NULL, avatar_width = NULL, avatar_height = NULL WHERE address_key = ?`,
		account.NormalizeAddress(address))
	if err != nil {
		return errs.Wrap(errs.Database, err, "remove contact avatar")
	}
	return nil
}

// Remove deletes a contact.
func (s *Store) Remove(address string) error {
	_, err := s.db.Exec(`DELETE FROM contacts WHERE address_key = ?`, account.NormalizeAddress(address))
	if err != nil {
		return errs.Wrap(errs.Database, err, "remove contact")
	}
	return nil
}

// UnreadCount returns a single contact's unread counter.
func (s *Store) UnreadCount(address string) (int, error) {
	c, err := s.Get(address)
	if err != nil {
		return 0, err
	}
	return c.UnreadCount, nil
}

// UnreadByContact returns every contact's unread counter keyed by address.
func (s *Store) UnreadByContact() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT address_key, unread_count FROM contacts`)
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "list contact unread counts")
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, errs.Wrap(errs.Database, err, "scan contact unread count")
		}
		out[key] = count
	}
	return out, rows.Err()
}

// AdjustUnread shifts a contact's unread counter by delta, used by the
// orchestrator's contact derivation engine (§4.4) on message ingress/delete.
func (s *Store) AdjustUnread(address string, delta int) error {
	_, err := s.db.Exec(`UPDATE contacts SET unread_count = unread_count + ? WHERE address_key = ?`,
		delta, account.NormalizeAddress(address))
	if err != nil {
		return errs.Wrap(errs.Database, err, "adjust contact unread count")
	}
	return nil
}

// UpdateLastMessage sets a contact's last-message pointer iff (timestamp, id)
// is strictly greater than the stored one, reporting whether it changed.
func (s *Store) UpdateLastMessage(address, accountAddress string, messageID int64, timestamp time.Time) (bool, error) {
	key := account.NormalizeAddress(address)

	var curID sql.NullInt64
	var curTS sql.NullString
	err := s.db.QueryRow(`SELECT last_message_id, last_message_timestamp FROM contacts WHERE address_key = ?`, key).
		Scan(&curID, &curTS)
	if err == sql.ErrNoRows {
		return false, errs.New(errs.NotFound, "contact not found")
	}
	if err != nil {
		return false, errs.Wrap(errs.Database, err, "read contact last message")
	}

	if curTS.Valid {
		parsed, _ := time.Parse(time.RFC3339Nano, curTS.String)
		newer := timestamp.After(parsed) || (timestamp.Equal(parsed) && messageID > curID.Int64)
		if !newer {
			return false, nil
		}
	}

	_, err = s.db.Exec(`UPDATE contacts SET last_message_address = ?, last_message_id = ?, last_message_timestamp = ? WHERE address_key = ?`,
		accountAddress, messageID, timestamp.Format(time.RFC3339Nano), key)
	if err != nil {
		return false, errs.Wrap(errs.Database, err, "update contact last message")
	}
	return true, nil
}

func nullIfZero(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToUpper(err.Error()), "UNIQUE CONSTRAINT")
}
