// Package keystore persists the single master key described in §3/§4.1,
// gated by the same password that opens the data store. It is a thin API
// over the master_key_sealed column of the key_bundles table added by the
// first migration; the public/secret bundle columns of that table are not
// read or written by this package. The password gate itself
// lives in internal/database (create/open/reset/close).
package keystore

import (
	"crypto/rand"
	"database/sql"

	"github.com/hkdb/tuvicore/internal/crypto"
	"github.com/hkdb/tuvicore/internal/database"
	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/logging"
	"github.com/rs/zerolog"
	gokeyring "github.com/zalando/go-keyring"
)

// serviceName namespaces this module's entries in the OS keyring.
const serviceName = "tuvicore"

// masterKeySize is the length in bytes of a freshly generated master key,
// matching the AEAD key size it will later be expanded from via HKDF.
const masterKeySize = 32

// Store is the Key store component: the single master key, sealed with the
// data store's derived key so it is never persisted in the clear. Every
// decentralized identity is derived from this one key plus the owning
// account's derivation index (internal/pgp.DeriveKeyPair); no per-identity
// keypair is cached here, since a singleton cache could silently serve one
// account's keys to another once more than one decentralized account exists.
type Store struct {
	db             *database.DB
	keyringEnabled bool
	log            zerolog.Logger
}

// NewStore builds a Store bound to an already-opened database. It probes
// the OS keyring the way the teacher's credentials.Store does, so the
// master key can optionally be cached there instead of re-derived from the
// vault on every process start.
func NewStore(db *database.DB) *Store {
	log := logging.WithComponent("keystore")
	enabled := testKeyring()
	if enabled {
		log.Info().Msg("OS keyring available for master key caching")
	} else {
		log.Warn().Msg("OS keyring unavailable, relying on the encrypted vault only")
	}
	return &Store{db: db, keyringEnabled: enabled, log: log}
}

func testKeyring() bool {
	const testKey = "tuvicore-test-keyring-check"
	if err := gokeyring.Set(serviceName, testKey, "test"); err != nil {
		return false
	}
	gokeyring.Delete(serviceName, testKey)
	return true
}

// SetMasterKey persists the single master key, sealed with the data store's
// derived key.
func (s *Store) SetMasterKey(masterKey []byte) error {
	sealed, err := crypto.Seal(s.db.Key(), masterKey)
	if err != nil {
		return errs.Wrap(errs.Database, err, "seal master key")
	}
	_, err = s.db.Exec(`
		INSERT INTO key_bundles (id, master_key_sealed) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET master_key_sealed = excluded.master_key_sealed
	`, sealed)
	if err != nil {
		return errs.Wrap(errs.Database, err, "persist master key")
	}

	if s.keyringEnabled {
		if err := gokeyring.Set(serviceName, "master-key", string(masterKey)); err != nil {
			s.log.Warn().Err(err).Msg("failed to cache master key in OS keyring")
		}
	}
	return nil
}

// GetMasterKey retrieves and unseals the master key.
func (s *Store) GetMasterKey() ([]byte, error) {
	if s.keyringEnabled {
		if cached, err := gokeyring.Get(serviceName, "master-key"); err == nil {
			return []byte(cached), nil
		}
	}

	var sealed []byte
	err := s.db.QueryRow(`SELECT master_key_sealed FROM key_bundles WHERE id = 1`).Scan(&sealed)
	if err == sql.ErrNoRows || sealed == nil {
		return nil, errs.New(errs.NotFound, "no master key set")
	}
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "read master key")
	}

	plain, err := crypto.Open(s.db.Key(), sealed)
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "unseal master key")
	}
	return plain, nil
}

// EnsureMasterKey returns the current master key, generating and persisting
// a fresh one on first use so every caller derives decentralized identities
// from the same seed from then on.
func (s *Store) EnsureMasterKey() ([]byte, error) {
	key, err := s.GetMasterKey()
	if err == nil {
		return key, nil
	}
	if !errs.Is(err, errs.NotFound) {
		return nil, err
	}

	key = make([]byte, masterKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errs.Wrap(errs.Database, err, "generate master key")
	}
	if err := s.SetMasterKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeleteAll clears the master key, e.g. once the last decentralized account
// is removed and nothing references the derived identities it seeds
// anymore. A later decentralized account add generates a fresh master key
// via EnsureMasterKey, deriving an unrelated identity.
func (s *Store) DeleteAll() error {
	if s.keyringEnabled {
		gokeyring.Delete(serviceName, "master-key")
	}
	_, err := s.db.Exec(`DELETE FROM key_bundles WHERE id = 1`)
	if err != nil {
		return errs.Wrap(errs.Database, err, "clear key bundles")
	}
	return nil
}
