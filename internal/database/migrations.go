package database

import "github.com/hkdb/tuvicore/internal/errs"

// Migration is one forward-only schema step, applied inside its own
// transaction and recorded in the migrations table, mirrored from the
// teacher's migration mechanism.
type Migration struct {
	Version int
	SQL     string
}

var migrations = []Migration{
	{
		Version: 1,
		SQL: `
			CREATE TABLE vault (
				id       INTEGER PRIMARY KEY CHECK (id = 1),
				salt     BLOB NOT NULL,
				verifier BLOB NOT NULL
			);

			CREATE TABLE key_bundles (
				id                   INTEGER PRIMARY KEY CHECK (id = 1),
				master_key_sealed    BLOB,
				public_bundle        BLOB,
				secret_bundle_sealed BLOB
			);

			CREATE TABLE accounts (
				id                        INTEGER PRIMARY KEY AUTOINCREMENT,
				address                   TEXT NOT NULL,
				address_key               TEXT NOT NULL UNIQUE, -- local-part + uppercased domain
				display_name              TEXT NOT NULL DEFAULT '',
				account_type              TEXT NOT NULL, -- classic | proton | decentralized
				network_tag               TEXT NOT NULL DEFAULT '',
				derivation_index          INTEGER NOT NULL DEFAULT 0,
				incoming_host             TEXT,
				incoming_port             INTEGER,
				incoming_security         TEXT,
				outgoing_host             TEXT,
				outgoing_port             INTEGER,
				outgoing_security         TEXT,
				auth_type                 TEXT NOT NULL DEFAULT 'password', -- password | refresh_token
				auth_password_sealed      BLOB,
				auth_refresh_token_sealed BLOB,
				default_inbox_folder_id   INTEGER,
				external_content_policy   TEXT NOT NULL DEFAULT 'ask', -- allow | ask | block
				created_at                DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at                DATETIME DEFAULT CURRENT_TIMESTAMP
			);

			CREATE TABLE folders (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				account_id   INTEGER NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				path         TEXT NOT NULL,
				path_ci      TEXT NOT NULL,
				roles        INTEGER NOT NULL DEFAULT 0,
				total_count  INTEGER NOT NULL DEFAULT 0,
				unread_count INTEGER NOT NULL DEFAULT 0,
				local_count  INTEGER NOT NULL DEFAULT 0,
				UNIQUE(account_id, path_ci)
			);

			CREATE INDEX idx_folders_account ON folders(account_id);

			CREATE TABLE messages (
				id               INTEGER PRIMARY KEY AUTOINCREMENT,
				folder_id        INTEGER NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
				folder_path      TEXT NOT NULL,
				external_id      INTEGER NOT NULL,
				timestamp        DATETIME NOT NULL,
				subject          TEXT NOT NULL DEFAULT '',
				preview          TEXT NOT NULL DEFAULT '',
				text_body        TEXT NOT NULL DEFAULT '',
				html_body        TEXT NOT NULL DEFAULT '',
				is_read          INTEGER NOT NULL DEFAULT 0,
				is_flagged       INTEGER NOT NULL DEFAULT 0,
				is_decentralized INTEGER NOT NULL DEFAULT 0,
				UNIQUE(folder_id, external_id)
			);

			CREATE INDEX idx_messages_folder ON messages(folder_id);
			CREATE INDEX idx_messages_folder_date ON messages(folder_id, timestamp, id);

			CREATE TABLE message_addresses (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
				kind       TEXT NOT NULL, -- from | to | cc | bcc | reply_to
				name       TEXT NOT NULL DEFAULT '',
				email      TEXT NOT NULL
			);

			CREATE INDEX idx_message_addresses_message ON message_addresses(message_id);
			CREATE INDEX idx_message_addresses_email ON message_addresses(email);

			CREATE TABLE attachments (
				id           INTEGER PRIMARY KEY AUTOINCREMENT,
				message_id   INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
				filename     TEXT NOT NULL DEFAULT '',
				content_type TEXT NOT NULL DEFAULT '',
				content      BLOB
			);

			CREATE INDEX idx_attachments_message ON attachments(message_id);

			CREATE TABLE message_protection (
				message_id INTEGER PRIMARY KEY REFERENCES messages(id) ON DELETE CASCADE,
				type       TEXT NOT NULL
			);

			CREATE TABLE message_signatures (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
				signature  BLOB NOT NULL
			);

			CREATE INDEX idx_message_signatures_message ON message_signatures(message_id);

			CREATE TABLE contacts (
				address_key            TEXT PRIMARY KEY,
				address                TEXT NOT NULL,
				display_name           TEXT NOT NULL DEFAULT '',
				avatar                 BLOB,
				avatar_width           INTEGER,
				avatar_height          INTEGER,
				last_message_address   TEXT,
				last_message_id        INTEGER,
				last_message_timestamp DATETIME,
				unread_count           INTEGER NOT NULL DEFAULT 0
			);

			CREATE TABLE agents (
				id                      INTEGER PRIMARY KEY AUTOINCREMENT,
				name                    TEXT NOT NULL DEFAULT '',
				account_id              INTEGER, -- not a FOREIGN KEY: kept as-is when the account is deleted
				pre_processor_agent_id  INTEGER, -- not a FOREIGN KEY: kept as-is when the agent is deleted
				post_processor_agent_id INTEGER, -- not a FOREIGN KEY: kept as-is when the agent is deleted
				config                  TEXT NOT NULL DEFAULT ''
			);

			CREATE TABLE settings_network_counters (
				network TEXT PRIMARY KEY,
				counter INTEGER NOT NULL DEFAULT 0
			);
		`,
	},
}

// migrate applies all pending migrations, recording each in a migrations
// table the way the teacher does.
func (db *DB) migrate() error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version    INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return errs.Wrap(errs.Database, err, "create migrations table")
	}

	var currentVersion int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM migrations").Scan(&currentVersion); err != nil {
		return errs.Wrap(errs.Database, err, "read migration version")
	}

	for _, m := range migrations {
		if m.Version > currentVersion {
			if err := db.applyMigration(m); err != nil {
				return errs.Wrapf(errs.Database, err, "apply migration %d", m.Version)
			}
		}
	}
	return nil
}

func (db *DB) applyMigration(m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", m.Version); err != nil {
		return err
	}
	return tx.Commit()
}
