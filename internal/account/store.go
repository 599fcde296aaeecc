package account

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/hkdb/tuvicore/internal/crypto"
	"github.com/hkdb/tuvicore/internal/database"
	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/folder"
	"github.com/hkdb/tuvicore/internal/logging"
	"github.com/rs/zerolog"
	gokeyring "github.com/zalando/go-keyring"
)

// keyringService namespaces this package's OS keyring entries.
const keyringService = "tuvicore-account"

// Store provides account persistence and the folder-structure cascade that
// accompanies account lifecycle changes. Account passwords are additionally
// cached in the OS keyring when available, the way the teacher's credential
// store favors the keyring over its encrypted-database fallback; the sealed
// database column always stays authoritative and is what UpdateAuth writes
// first.
type Store struct {
	db             *database.DB
	folders        *folder.Store
	keyringEnabled bool
	log            zerolog.Logger
}

// NewStore builds an account store bound to db, delegating folder-tree
// maintenance to folders.
func NewStore(db *database.DB, folders *folder.Store) *Store {
	log := logging.WithComponent("account-store")
	enabled := testKeyring()
	if !enabled {
		log.Warn().Msg("OS keyring unavailable, account passwords served from the encrypted vault only")
	}
	return &Store{db: db, folders: folders, keyringEnabled: enabled, log: log}
}

func testKeyring() bool {
	const testKey = "tuvicore-test-keyring-check"
	if err := gokeyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}
	gokeyring.Delete(keyringService, testKey)
	return true
}

func keyringKey(accountID int64) string {
	return strconv.FormatInt(accountID, 10)
}

const accountColumns = `
	id, address, address_key, display_name, account_type, network_tag, derivation_index,
	incoming_host, incoming_port, incoming_security,
	outgoing_host, outgoing_port, outgoing_security,
	auth_type, default_inbox_folder_id, external_content_policy,
	created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*Account, error) {
	a := &Account{}
	var (
		addressKey   string
		inHost       sql.NullString
		inPort       sql.NullInt64
		inSecurity   sql.NullString
		outHost      sql.NullString
		outPort      sql.NullInt64
		outSecurity  sql.NullString
		defaultInbox sql.NullInt64
	)
	err := row.Scan(
		&a.ID, &a.Address, &addressKey, &a.DisplayName, &a.AccountType, &a.NetworkTag, &a.DerivationIndex,
		&inHost, &inPort, &inSecurity,
		&outHost, &outPort, &outSecurity,
		&a.AuthType, &defaultInbox, &a.ExternalContentPolicy,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Incoming = ServerEndpoint{Host: inHost.String, Port: int(inPort.Int64), Security: inSecurity.String}
	a.Outgoing = ServerEndpoint{Host: outHost.String, Port: int(outPort.Int64), Security: outSecurity.String}
	a.DefaultInboxFolderID = defaultInbox.Int64
	return a, nil
}

// Add inserts a new account, keyed by its normalized address. Returns
// errs.Duplicate if the normalized address is already registered.
func (s *Store) Add(a *Account) error {
	key := NormalizeAddress(a.Address)

	var sealedPassword, sealedRefresh []byte
	var err error
	if a.Auth.Password != "" {
		sealedPassword, err = crypto.Seal(s.db.Key(), []byte(a.Auth.Password))
		if err != nil {
			return errs.Wrap(errs.Database, err, "seal account password")
		}
	}
	if a.Auth.RefreshToken != "" {
		sealedRefresh, err = crypto.Seal(s.db.Key(), []byte(a.Auth.RefreshToken))
		if err != nil {
			return errs.Wrap(errs.Database, err, "seal account refresh token")
		}
	}

	res, err := s.db.Exec(`
		INSERT INTO accounts (
			address, address_key, display_name, account_type, network_tag, derivation_index,
			incoming_host, incoming_port, incoming_security,
			outgoing_host, outgoing_port, outgoing_security,
			auth_type, auth_password_sealed, auth_refresh_token_sealed,
			external_content_policy
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Address, key, a.DisplayName, string(a.AccountType), a.NetworkTag, a.DerivationIndex,
		nullIfEmpty(a.Incoming.Host), nullIfZero(a.Incoming.Port), nullIfEmpty(a.Incoming.Security),
		nullIfEmpty(a.Outgoing.Host), nullIfZero(a.Outgoing.Port), nullIfEmpty(a.Outgoing.Security),
		string(a.AuthType), sealedPassword, sealedRefresh,
		string(a.ExternalContentPolicy),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.New(errs.Duplicate, "account address already registered")
		}
		return errs.Wrap(errs.Database, err, "add account")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errs.Wrap(errs.Database, err, "read new account id")
	}
	a.ID = id
	return nil
}

// GetByAddress retrieves an account by its display address, normalizing for
// lookup.
func (s *Store) GetByAddress(address string) (*Account, error) {
	row := s.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE address_key = ?`, NormalizeAddress(address))
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.NotFound, "account not found")
	}
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "get account by address")
	}
	return a, nil
}

// Get retrieves an account by surrogate id.
func (s *Store) Get(id int64) (*Account, error) {
	row := s.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.NotFound, "account not found")
	}
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "get account")
	}
	return a, nil
}

// List returns every registered account, ordered by address.
func (s *Store) List() ([]*Account, error) {
	rows, err := s.db.Query(`SELECT ` + accountColumns + ` FROM accounts ORDER BY address`)
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "list accounts")
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, errs.Wrap(errs.Database, err, "scan account")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ExistsByAddress reports whether an account with the normalized address is
// already registered.
func (s *Store) ExistsByAddress(address string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM accounts WHERE address_key = ?`, NormalizeAddress(address)).Scan(&n)
	if err != nil {
		return false, errs.Wrap(errs.Database, err, "check account existence")
	}
	return n > 0, nil
}

// Update applies display-level field changes (display name, endpoints,
// content policy). Updating a non-existent account is a silent no-op, per
// the store's stated preference for idempotent writes over surfacing a
// not-found error on every stale caller.
func (s *Store) Update(a *Account) error {
	_, err := s.db.Exec(`
		UPDATE accounts SET
			display_name = ?, network_tag = ?, derivation_index = ?,
			incoming_host = ?, incoming_port = ?, incoming_security = ?,
			outgoing_host = ?, outgoing_port = ?, outgoing_security = ?,
			default_inbox_folder_id = ?, external_content_policy = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		a.DisplayName, a.NetworkTag, a.DerivationIndex,
		nullIfEmpty(a.Incoming.Host), nullIfZero(a.Incoming.Port), nullIfEmpty(a.Incoming.Security),
		nullIfEmpty(a.Outgoing.Host), nullIfZero(a.Outgoing.Port), nullIfEmpty(a.Outgoing.Security),
		nullIfZero(int(a.DefaultInboxFolderID)), string(a.ExternalContentPolicy),
		a.ID,
	)
	if err != nil {
		return errs.Wrap(errs.Database, err, "update account")
	}
	return nil
}

// UpdateAuth replaces the stored password (authType AuthPassword) or refresh
// token (any other authType), sealing the half authType selects. It leaves
// the other half untouched.
func (s *Store) UpdateAuth(accountID int64, authType AuthType, auth Auth) error {
	if authType == AuthPassword {
		sealed, err := crypto.Seal(s.db.Key(), []byte(auth.Password))
		if err != nil {
			return errs.Wrap(errs.Database, err, "seal account password")
		}
		_, err = s.db.Exec(`UPDATE accounts SET auth_type = ?, auth_password_sealed = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			string(AuthPassword), sealed, accountID)
		if err != nil {
			return errs.Wrap(errs.Database, err, "update account password")
		}
		if s.keyringEnabled {
			if err := gokeyring.Set(keyringService, keyringKey(accountID), auth.Password); err != nil {
				s.log.Warn().Err(err).Int64("account_id", accountID).Msg("failed to cache account password in OS keyring")
			}
		}
		return nil
	}

	sealed, err := crypto.Seal(s.db.Key(), []byte(auth.RefreshToken))
	if err != nil {
		return errs.Wrap(errs.Database, err, "seal account refresh token")
	}
	_, err = s.db.Exec(`UPDATE accounts SET auth_type = ?, auth_refresh_token_sealed = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(AuthRefreshToken), sealed, accountID)
	if err != nil {
		return errs.Wrap(errs.Database, err, "update account refresh token")
	}
	return nil
}

// ResolveAuth unseals and returns the account's current credential.
func (s *Store) ResolveAuth(accountID int64) (Auth, error) {
	var authType string
	var sealedPassword, sealedRefresh []byte
	err := s.db.QueryRow(`SELECT auth_type, auth_password_sealed, auth_refresh_token_sealed FROM accounts WHERE id = ?`, accountID).
		Scan(&authType, &sealedPassword, &sealedRefresh)
	if err == sql.ErrNoRows {
		return Auth{}, errs.New(errs.NotFound, "account not found")
	}
	if err != nil {
		return Auth{}, errs.Wrap(errs.Database, err, "read account auth")
	}

	var auth Auth
	if authType == string(AuthPassword) && sealedPassword != nil {
		if s.keyringEnabled {
			if cached, err := gokeyring.Get(keyringService, keyringKey(accountID)); err == nil {
				auth.Password = cached
				return auth, nil
			}
		}
		plain, err := crypto.Open(s.db.Key(), sealedPassword)
		if err != nil {
			return Auth{}, errs.Wrap(errs.Database, err, "unseal account password")
		}
		auth.Password = string(plain)
	}
	if authType == string(AuthRefreshToken) && sealedRefresh != nil {
		plain, err := crypto.Open(s.db.Key(), sealedRefresh)
		if err != nil {
			return Auth{}, errs.Wrap(errs.Database, err, "unseal account refresh token")
		}
		auth.RefreshToken = string(plain)
	}
	return auth, nil
}

// UpdateFolderStructure reconciles the account's folder tree against the
// freshly discovered remote list (§4.1: update-folder-structure), delegating
// to the folder store's diff-and-cascade logic.
func (s *Store) UpdateFolderStructure(accountID int64, desired []folder.Folder) (created, updated, deleted int, err error) {
	return s.folders.ApplyStructure(accountID, desired)
}

// Delete removes an account by id. Its folders (and their messages) cascade
// via the foreign key.
func (s *Store) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return errs.Wrap(errs.Database, err, "delete account")
	}
	if s.keyringEnabled {
		gokeyring.Delete(keyringService, keyringKey(id))
	}
	return nil
}

// DeleteByAddress removes an account by its display address.
func (s *Store) DeleteByAddress(address string) error {
	a, err := s.GetByAddress(address)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`DELETE FROM accounts WHERE address_key = ?`, NormalizeAddress(address))
	if err != nil {
		return errs.Wrap(errs.Database, err, "delete account by address")
	}
	if s.keyringEnabled {
		gokeyring.Delete(keyringService, keyringKey(a.ID))
	}
	return nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
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
