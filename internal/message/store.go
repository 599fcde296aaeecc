package message

import (
	"database/sql"
	"strings"
	"time"

	"github.com/hkdb/tuvicore/internal/database"
	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/folder"
	"github.com/hkdb/tuvicore/internal/logging"
	"github.com/rs/zerolog"
)

// Store provides message persistence operations, including the counter
// discipline shared with the owning folder (§4.1).
type Store struct {
	db      *database.DB
	folders *folder.Store
	log     zerolog.Logger
}

// NewStore creates a new message store bound to db, applying folder counter
// adjustments through folders.
func NewStore(db *database.DB, folders *folder.Store) *Store {
	return &Store{db: db, folders: folders, log: logging.WithComponent("message-store")}
}

const messageColumns = `
	id, folder_id, folder_path, external_id, timestamp, subject, preview,
	text_body, html_body, is_read, is_flagged, is_decentralized`

func scanMessage(row interface{ Scan(...any) error }) (*Message, error) {
	m := &Message{}
	var ts string
	err := row.Scan(
		&m.ID, &m.FolderID, &m.FolderPath, &m.ExternalID, &ts, &m.Subject, &m.Preview,
		&m.TextBody, &m.HTMLBody, &m.IsRead, &m.IsFlagged, &m.IsDecentralized,
	)
	if err != nil {
		return nil, err
	}
	m.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	return m, nil
}

func (s *Store) hydrate(tx queryer, m *Message) error {
	rows, err := tx.Query(`SELECT kind, name, email FROM message_addresses WHERE message_id = ?`, m.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.Kind, &a.Name, &a.Email); err != nil {
			return err
		}
		m.Addresses = append(m.Addresses, a)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	var protection sql.NullString
	err = tx.QueryRow(`SELECT type FROM message_protection WHERE message_id = ?`, m.ID).Scan(&protection)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	m.Protection = ProtectionType(protection.String)

	sigRows, err := tx.Query(`SELECT signature FROM message_signatures WHERE message_id = ?`, m.ID)
	if err != nil {
		return err
	}
	defer sigRows.Close()
	for sigRows.Next() {
		var sig []byte
		if err := sigRows.Scan(&sig); err != nil {
			return err
		}
		m.Signatures = append(m.Signatures, sig)
	}
	if err := sigRows.Err(); err != nil {
		return err
	}

	attRows, err := tx.Query(`SELECT id, message_id, filename, content_type, content FROM attachments WHERE message_id = ?`, m.ID)
	if err != nil {
		return err
	}
	defer attRows.Close()
	for attRows.Next() {
		var a Attachment
		if err := attRows.Scan(&a.ID, &a.MessageID, &a.Filename, &a.ContentType, &a.Content); err != nil {
			return err
		}
		m.Attachments = append(m.Attachments, a)
	}
	return attRows.Err()
}

// queryer is the subset of *sql.DB / *sql.Tx this store needs, so hydrate
// works against either a standalone connection or an in-flight transaction.
type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func insertChildRows(tx *sql.Tx, m *Message) error {
	for _, a := range m.Addresses {
		if _, err := tx.Exec(`INSERT INTO message_addresses (message_id, kind, name, email) VALUES (?, ?, ?, ?)`,
			m.ID, string(a.Kind), a.Name, a.Email); err != nil {
			return err
		}
	}
	if m.Protection != ProtectionNone {
		if _, err := tx.Exec(`INSERT INTO message_protection (message_id, type) VALUES (?, ?)`, m.ID, string(m.Protection)); err != nil {
			return err
		}
	}
	for _, sig := range m.Signatures {
		if _, err := tx.Exec(`INSERT INTO message_signatures (message_id, signature) VALUES (?, ?)`, m.ID, sig); err != nil {
			return err
		}
	}
	for i := range m.Attachments {
		res, err := tx.Exec(`INSERT INTO attachments (message_id, filename, content_type, content) VALUES (?, ?, ?, ?)`,
			m.ID, m.Attachments[i].Filename, m.Attachments[i].ContentType, m.Attachments[i].Content)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		m.Attachments[i].ID = id
		m.Attachments[i].MessageID = m.ID
	}
	return nil
}

func deleteChildRows(tx *sql.Tx, messageID int64) error {
	if _, err := tx.Exec(`DELETE FROM message_addresses WHERE message_id = ?`, messageID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM message_protection WHERE message_id = ?`, messageID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM message_signatures WHERE message_id = ?`, messageID); err != nil {
		return err
	}
	return nil
}

// AddOne inserts a single message into its folder. If updateUnreadAndTotal,
// the owning folder's total count increases by one and its unread count
// increases by one unless the message is already marked read; local count
// always increases by one, per §4.1's counter rules.
func (s *Store) AddOne(m *Message, updateUnreadAndTotal bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Database, err, "begin add message")
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO messages (folder_id, folder_path, external_id, timestamp, subject, preview,
			text_body, html_body, is_read, is_flagged, is_decentralized)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.FolderID, m.FolderPath, m.ExternalID, m.Timestamp.Format(time.RFC3339Nano), m.Subject, m.Preview,
		m.TextBody, m.HTMLBody, m.IsRead, m.IsFlagged, m.IsDecentralized,
	)
	if err != nil {
		if isDuplicateExternalID(err) {
			return errs.New(errs.Duplicate, "message already exists in folder")
		}
		return errs.Wrap(errs.Database, err, "insert message")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errs.Wrap(errs.Database, err, "read new message id")
	}
	m.ID = id

	if err := insertChildRows(tx, m); err != nil {
		return errs.Wrap(errs.Database, err, "insert message detail rows")
	}

	if updateUnreadAndTotal {
		unreadDelta := 1
		if m.IsRead {
			unreadDelta = 0
		}
		if err := s.folders.AdjustCounters(tx, m.FolderID, 1, unreadDelta, 1); err != nil {
			return err
		}
	} else {
		if err := s.folders.AdjustCounters(tx, m.FolderID, 0, 0, 1); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Database, err, "commit add message")
	}
	return nil
}

// AddBatch inserts every message in msgs into folderID, skipping any whose
// external id already exists in that folder (the batch-import duplicate
// rule: later fields never overwrite an existing row). Returns the count of
// messages actually inserted.
func (s *Store) AddBatch(folderID int64, msgs []*Message, updateUnreadAndTotal bool) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, errs.Wrap(errs.Database, err, "begin add batch")
	}
	defer tx.Rollback()

	inserted := 0
	totalDelta, unreadDelta := 0, 0
	for _, m := range msgs {
		m.FolderID = folderID
		var exists int
		if err := tx.QueryRow(`SELECT COUNT(1) FROM messages WHERE folder_id = ? AND external_id = ?`, folderID, m.ExternalID).Scan(&exists); err != nil {
			return 0, errs.Wrap(errs.Database, err, "check duplicate message")
		}
		if exists > 0 {
			continue
		}

		res, err := tx.Exec(`
			INSERT INTO messages (folder_id, folder_path, external_id, timestamp, subject, preview,
				text_body, html_body, is_read, is_flagged, is_decentralized)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.FolderID, m.FolderPath, m.ExternalID, m.Timestamp.Format(time.RFC3339Nano), m.Subject, m.Preview,
			m.TextBody, m.HTMLBody, m.IsRead, m.IsFlagged, m.IsDecentralized,
		)
		if err != nil {
			return 0, errs.Wrap(errs.Database, err, "insert batch message")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, errs.Wrap(errs.Database, err, "read new batch message id")
		}
		m.ID = id
		if err := insertChildRows(tx, m); err != nil {
			return 0, errs.Wrap(errs.Database, err, "insert batch message detail rows")
		}

		inserted++
		totalDelta++
		if !m.IsRead {
			unreadDelta++
		}
	}

	if inserted > 0 {
		if updateUnreadAndTotal {
			if err := s.folders.AdjustCounters(tx, folderID, totalDelta, unreadDelta, inserted); err != nil {
				return 0, err
			}
		} else {
			if err := s.folders.AdjustCounters(tx, folderID, 0, 0, inserted); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.Wrap(errs.Database, err, "commit add batch")
	}
	return inserted, nil
}

// UpdateOne rewrites a message's fields, preserving its primary key even if
// ExternalID has changed. Total count never changes; unread count shifts by
// one if the read flag changed and updateUnreadAndTotal is set.
func (s *Store) UpdateOne(m *Message, updateUnreadAndTotal bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Database, err, "begin update message")
	}
	defer tx.Rollback()

	var wasRead bool
	if err := tx.QueryRow(`SELECT is_read FROM messages WHERE id = ?`, m.ID).Scan(&wasRead); err != nil {
		if err == sql.ErrNoRows {
			return errs.New(errs.NotFound, "message not found")
		}
		return errs.Wrap(errs.Database, err, "read existing message")
	}

	_, err = tx.Exec(`
		UPDATE messages SET external_id = ?, timestamp = ?, subject = ?, preview = ?,
			text_body = ?, html_body = ?, is_read = ?, is_flagged = ?, is_decentralized = ?
		WHERE id = ?`,
		m.ExternalID, m.Timestamp.Format(time.RFC3339Nano), m.Subject, m.Preview,
		m.TextBody, m.HTMLBody, m.IsRead, m.IsFlagged, m.IsDecentralized, m.ID,
	)
	if err != nil {
		return errs.Wrap(errs.Database, err, "update message")
	}

	if err := deleteChildRows(tx, m.ID); err != nil {
		return errs.Wrap(errs.Database, err, "clear message detail rows")
	}
	if err := insertChildRows(tx, m); err != nil {
		return errs.Wrap(errs.Database, err, "reinsert message detail rows")
	}

	if updateUnreadAndTotal && wasRead != m.IsRead {
		unreadDelta := 1
		if m.IsRead {
			unreadDelta = -1
		}
		if err := s.folders.AdjustCounters(tx, m.FolderID, 0, unreadDelta, 0); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Database, err, "commit update message")
	}
	return nil
}

// UpdateBatch applies UpdateOne to every message in msgs within a single
// logical operation.
func (s *Store) UpdateBatch(msgs []*Message, updateUnreadAndTotal bool) error {
	for _, m := range msgs {
		if err := s.UpdateOne(m, updateUnreadAndTotal); err != nil {
			return err
		}
	}
	return nil
}

// UpdateFlagsBatch updates only is_read/is_flagged for the given message ids,
// leaving every other column untouched. Total count is never changed by this
// operation, per §4.1 ("update-flags never changes total").
func (s *Store) UpdateFlagsBatch(ids []int64, isRead, isFlagged *bool, updateUnreadAndTotal bool) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Database, err, "begin update flags batch")
	}
	defer tx.Rollback()

	folderUnreadDelta := map[int64]int{}
	for _, id := range ids {
		var folderID int64
		var wasRead bool
		if err := tx.QueryRow(`SELECT folder_id, is_read FROM messages WHERE id = ?`, id).Scan(&folderID, &wasRead); err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return errs.Wrap(errs.Database, err, "read message for flag update")
		}

		newRead := wasRead
		if isRead != nil {
			newRead = *isRead
		}

		if isRead != nil && isFlagged != nil {
			if _, err := tx.Exec(`UPDATE messages SET is_read = ?, is_flagged = ? WHERE id = ?`, newRead, *isFlagged, id); err != nil {
				return errs.Wrap(errs.Database, err, "update message flags")
			}
		} else if isRead != nil {
			if _, err := tx.Exec(`UPDATE messages SET is_read = ? WHERE id = ?`, newRead, id); err != nil {
				return errs.Wrap(errs.Database, err, "update message read flag")
			}
		} else if isFlagged != nil {
			if _, err := tx.Exec(`UPDATE messages SET is_flagged = ? WHERE id = ?`, *isFlagged, id); err != nil {
				return errs.Wrap(errs.Database, err, "update message flagged flag")
			}
		}

		if updateUnreadAndTotal && isRead != nil && wasRead != newRead {
			if newRead {
				folderUnreadDelta[folderID]--
			} else {
				folderUnreadDelta[folderID]++
			}
		}
	}

	for folderID, delta := range folderUnreadDelta {
		if delta == 0 {
			continue
		}
		if err := s.folders.AdjustCounters(tx, folderID, 0, delta, 0); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Database, err, "commit update flags batch")
	}
	return nil
}

// DeleteOne removes a single message. If updateUnreadAndTotal, the owning
// folder's total count decreases by one and its unread count decreases by
// one if the message was unread; local count always decreases by one.
func (s *Store) DeleteOne(id int64, updateUnreadAndTotal bool) error {
	return s.deleteBatch([]int64{id}, updateUnreadAndTotal)
}

// DeleteBatch removes every message in ids, applying the same counter rule
// as DeleteOne per message, grouped by folder.
func (s *Store) DeleteBatch(ids []int64, updateUnreadAndTotal bool) error {
	return s.deleteBatch(ids, updateUnreadAndTotal)
}

func (s *Store) deleteBatch(ids []int64, updateUnreadAndTotal bool) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return errs.Wrap(errs.Database, err, "begin delete messages")
	}
	defer tx.Rollback()

	type folderDelta struct {
		total, unread, local int
	}
	deltas := map[int64]*folderDelta{}

	for _, id := range ids {
		var folderID int64
		var wasRead bool
		err := tx.QueryRow(`SELECT folder_id, is_read FROM messages WHERE id = ?`, id).Scan(&folderID, &wasRead)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return errs.Wrap(errs.Database, err, "read message before delete")
		}

		if _, err := tx.Exec(`DELETE FROM messages WHERE id = ?`, id); err != nil {
			return errs.Wrap(errs.Database, err, "delete message")
		}

		d, ok := deltas[folderID]
		if !ok {
			d = &folderDelta{}
			deltas[folderID] = d
		}
		d.local--
		if updateUnreadAndTotal {
			d.total--
			if !wasRead {
				d.unread--
			}
		}
	}

	for folderID, d := range deltas {
		if err := s.folders.AdjustCounters(tx, folderID, d.total, d.unread, d.local); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.Database, err, "commit delete messages")
	}
	return nil
}

// Exists reports whether a message with externalID already exists in
// folderID.
func (s *Store) Exists(folderID int64, externalID uint32) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM messages WHERE folder_id = ? AND external_id = ?`, folderID, externalID).Scan(&n)
	if err != nil {
		return false, errs.Wrap(errs.Database, err, "check message existence")
	}
	return n > 0, nil
}

// GetByID retrieves a fully hydrated message by surrogate id.
func (s *Store) GetByID(id int64) (*Message, error) {
	row := s.db.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.NotFound, "message not found")
	}
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "get message")
	}
	if err := s.hydrate(s.db, m); err != nil {
		return nil, errs.Wrap(errs.Database, err, "hydrate message")
	}
	return m, nil
}

// GetLatest returns the message with the highest surrogate id in folderID.
func (s *Store) GetLatest(folderID int64) (*Message, error) {
	row := s.db.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE folder_id = ? ORDER BY id DESC LIMIT 1`, folderID)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.NotFound, "folder has no messages")
	}
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "get latest message")
	}
	if err := s.hydrate(s.db, m); err != nil {
		return nil, errs.Wrap(errs.Database, err, "hydrate message")
	}
	return m, nil
}

// GetList returns every message in folderID whose external id falls in the
// half-open range [lo, hi) over the two endpoints (their order is
// irrelevant; lo is the smaller), descending by external id. Passing equal
// endpoints returns an empty result, since the range is then empty.
func (s *Store) GetList(folderID int64, a, b int64) ([]*Message, error) {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	rows, err := s.db.Query(`
		SELECT `+messageColumns+` FROM messages
		WHERE folder_id = ? AND external_id >= ? AND external_id < ?
		ORDER BY external_id DESC`, folderID, lo, hi)
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "list messages by id range")
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, errs.Wrap(errs.Database, err, "scan message")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Database, err, "iterate message list")
	}
	for _, m := range out {
		if err := s.hydrate(s.db, m); err != nil {
			return nil, errs.Wrap(errs.Database, err, "hydrate message")
		}
	}
	return out, nil
}

// GetEarlier paginates backward from sentinel (exclusive), descending by
// (timestamp, id, folder_id), within a single folder. A nil sentinel starts
// from the newest message.
func (s *Store) GetEarlier(folderID int64, sentinel *Message, limit int) ([]*Message, error) {
	var rows *sql.Rows
	var err error
	if sentinel == nil {
		rows, err = s.db.Query(`
			SELECT `+messageColumns+` FROM messages WHERE folder_id = ?
			ORDER BY timestamp DESC, id DESC, folder_id ASC LIMIT ?`, folderID, limit)
	} else {
		ts := sentinel.Timestamp.Format(time.RFC3339Nano)
		rows, err = s.db.Query(`
			SELECT `+messageColumns+` FROM messages WHERE folder_id = ?
			AND (timestamp, id) < (?, ?)
			ORDER BY timestamp DESC, id DESC, folder_id ASC LIMIT ?`, folderID, ts, sentinel.ID, limit)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "get earlier messages")
	}
	defer rows.Close()
	return s.scanHydrateAll(rows)
}

// GetEarlierAcrossFolders merges GetEarlier across multiple folders, ordered
// by (timestamp desc, id desc, folder_id asc).
func (s *Store) GetEarlierAcrossFolders(folderIDs []int64, sentinel *Message, limit int) ([]*Message, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}

	placeholders := make([]any, 0, len(folderIDs))
	query := `SELECT ` + messageColumns + ` FROM messages WHERE folder_id IN (`
	for i, id := range folderIDs {
		if i > 0 {
			query += ","
		}
		query += "?"
		placeholders = append(placeholders, id)
	}
	query += ")"

	if sentinel != nil {
		query += " AND (timestamp, id) < (?, ?)"
		placeholders = append(placeholders, sentinel.Timestamp.Format(time.RFC3339Nano), sentinel.ID)
	}
	query += " ORDER BY timestamp DESC, id DESC, folder_id ASC LIMIT ?"
	placeholders = append(placeholders, limit)

	rows, err := s.db.Query(query, placeholders...)
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "get earlier messages across folders")
	}
	defer rows.Close()
	return s.scanHydrateAll(rows)
}

func (s *Store) scanHydrateAll(rows *sql.Rows) ([]*Message, error) {
	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, errs.Wrap(errs.Database, err, "scan message")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Database, err, "iterate messages")
	}
	for _, m := range out {
		if err := s.hydrate(s.db, m); err != nil {
			return nil, errs.Wrap(errs.Database, err, "hydrate message")
		}
	}
	return out, nil
}

func isDuplicateExternalID(err error) bool {
	return err != nil && strings.Contains(strings.ToUpper(err.Error()), "UNIQUE CONSTRAINT")
}
