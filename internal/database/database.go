// Package database provides the password-gated single-file SQLite store
// that backs accounts, folders, messages, contacts, agents, settings, and
// key material.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hkdb/tuvicore/internal/crypto"
	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/logging"
	_ "modernc.org/sqlite"
)

// Connection pool constants, mirrored from the teacher: SQLite in WAL mode
// only supports one writer at a time, so a large pool just adds lock
// contention. Tunables are constructor defaults, not a parsed config file
// (configuration loading is an external collaborator).
const (
	MaxOpenConns  = 8
	BaseIdleConns = 2
	MaxIdleConns  = 4

	// CheckpointInterval is how often the background WAL checkpoint runs.
	CheckpointInterval = 5 * time.Minute
)

// verifierPlaintext is sealed with the derived key at create(password) time
// and unsealed-and-compared at open(password) time, so a wrong password is
// rejected without ever touching application data.
const verifierPlaintext = "tuvicore-vault-verifier-v1"

// DB is a single logical handle onto the encrypted store, shared by every
// caller that has an outstanding handle from Open/Create.
type DB struct {
	*sql.DB
	path string
	salt []byte
	key  []byte // derived from the unlocking password; seals key-bundle rows

	gate gate
}

// gate implements the "counted handle" quiescence primitive from the
// concurrency model: Reset() must await all outstanding handles before
// deleting the file, including a stress pattern of many concurrent opens.
// While draining, new acquisitions block instead of racing the delete.
type gate struct {
	mu       sync.Mutex
	cond     *sync.Cond
	count    int
	draining bool
}

func (g *gate) init() {
	if g.cond == nil {
		g.cond = sync.NewCond(&g.mu)
	}
}

func (g *gate) acquire() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.init()
	for g.draining {
		g.cond.Wait()
	}
	g.count++
}

func (g *gate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count--
	if g.count <= 0 {
		g.count = 0
		g.cond.Broadcast()
	}
}

func (g *gate) drain() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.init()
	g.draining = true
	for g.count > 0 {
		g.cond.Wait()
	}
}

func (g *gate) reopen() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.draining = false
	g.cond.Broadcast()
}

// Handle is a released-once reference to an open DB. Every public operation
// that touches the store should be issued against a live Handle; using one
// after Close returns errs.Disposed.
type Handle struct {
	db       *DB
	mu       sync.Mutex
	released bool
}

// DB returns the underlying shared connection, or errs.Disposed if this
// handle has already been released.
func (h *Handle) DB() (*DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, errs.New(errs.Disposed, "handle already closed")
	}
	return h.db, nil
}

// Close releases this handle. It is safe to call more than once.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	h.released = true
	h.db.gate.release()
	return nil
}

// Store owns the lifecycle (create/open/reset/close) of the single
// password-gated file. It is safe for concurrent use; concurrent Open calls
// all succeed and share one *DB.
type Store struct {
	mu   sync.Mutex
	path string
	db   *DB
}

// NewStore prepares a lifecycle manager for the file at path. It does not
// touch the filesystem; call Create or Open to do that.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Create opens a brand-new store, failing if the file already exists.
func (s *Store) Create(password string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil, errs.New(errs.Duplicate, "database file already exists")
	}

	db, err := s.open(password, true)
	if err != nil {
		return nil, err
	}
	s.db = db
	db.gate.acquire()
	return &Handle{db: db}, nil
}

// Open opens an existing store, failing if the password is wrong or the
// file is missing. Concurrent Open calls share the same underlying pool.
func (s *Store) Open(password string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if !crypto.DeriveKey(password, s.db.salt).Equal(s.db.key) {
			return nil, errs.New(errs.Database, "incorrect password")
		}
		s.db.gate.acquire()
		return &Handle{db: s.db}, nil
	}

	if _, err := os.Stat(s.path); err != nil {
		return nil, errs.Wrap(errs.Database, err, "database file does not exist")
	}

	db, err := s.open(password, false)
	if err != nil {
		return nil, err
	}
	s.db = db
	db.gate.acquire()
	return &Handle{db: db}, nil
}

func (s *Store) open(password string, fresh bool) (*DB, error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errs.Wrap(errs.Database, err, "create database directory")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)", s.path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "open database")
	}
	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetMaxIdleConns(BaseIdleConns)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, errs.Wrap(errs.Database, err, "ping database")
	}
	if err := os.Chmod(s.path, 0600); err != nil {
		sqlDB.Close()
		return nil, errs.Wrap(errs.Database, err, "set database permissions")
	}

	db := &DB{DB: sqlDB, path: s.path}

	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	if fresh {
		if err := db.seedVault(password); err != nil {
			sqlDB.Close()
			return nil, err
		}
	} else {
		if err := db.loadVault(password); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}

	return db, nil
}

// seedVault generates a fresh salt, derives the database key from password,
// and stores the salt plus a sealed verifier blob.
func (db *DB) seedVault(password string) error {
	salt, err := crypto.NewSalt()
	if err != nil {
		return err
	}
	derived := crypto.DeriveKey(password, salt)
	sealed, err := crypto.Seal(derived.Key, []byte(verifierPlaintext))
	if err != nil {
		return errs.Wrap(errs.Database, err, "seal vault verifier")
	}
	_, err = db.Exec(`INSERT INTO vault (id, salt, verifier) VALUES (1, ?, ?)`, salt, sealed)
	if err != nil {
		return errs.Wrap(errs.Database, err, "persist vault verifier")
	}
	db.salt = salt
	db.key = derived.Key
	return nil
}

// loadVault re-derives the database key from password and the persisted
// salt, then verifies it against the persisted verifier blob without
// decrypting any application data.
func (db *DB) loadVault(password string) error {
	var salt, sealed []byte
	err := db.QueryRow(`SELECT salt, verifier FROM vault WHERE id = 1`).Scan(&salt, &sealed)
	if err != nil {
		return errs.Wrap(errs.Database, err, "read vault verifier")
	}
	derived := crypto.DeriveKey(password, salt)
	plain, err := crypto.Open(derived.Key, sealed)
	if err != nil || string(plain) != verifierPlaintext {
		return errs.New(errs.Database, "incorrect password")
	}
	db.salt = salt
	db.key = derived.Key
	return nil
}

// Reset awaits all outstanding handles, then deletes the file. A concurrent
// stress pattern of many outstanding opens all drain before the delete
// proceeds; new Open/Create calls issued after Reset begins block until it
// completes.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()

	if db == nil {
		if _, err := os.Stat(s.path); err == nil {
			return os.Remove(s.path)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		db.gate.drain()
		close(done)
	}()

	select {
	case <-ctx.Done():
		db.gate.reopen()
		return errs.Wrap(errs.Canceled, ctx.Err(), "reset canceled")
	case <-done:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := db.DB.Close(); err != nil {
		db.gate.reopen()
		return errs.Wrap(errs.Database, err, "close database before reset")
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.Database, err, "remove database file")
	}
	for _, ext := range []string{"-wal", "-shm"} {
		os.Remove(s.path + ext)
	}
	s.db = nil
	return nil
}

// Checkpoint runs a passive WAL checkpoint, merging the write-ahead log back
// into the main file so it does not grow unboundedly under write-heavy
// message import.
func (db *DB) Checkpoint() error {
	_, err := db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
	if err != nil {
		return errs.Wrap(errs.Database, err, "checkpoint WAL")
	}
	return nil
}

// StartCheckpointRoutine runs Checkpoint periodically until ctx is done.
func (db *DB) StartCheckpointRoutine(ctx context.Context) {
	log := logging.WithComponent("database")
	ticker := time.NewTicker(CheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := db.Checkpoint(); err != nil {
				log.Error().Err(err).Msg("periodic WAL checkpoint failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// UpdateIdleConns scales the idle-connection pool with the number of
// concurrently active accounts, the way the teacher's database package
// tracks account count.
func (db *DB) UpdateIdleConns(numAccounts int) {
	idle := BaseIdleConns + numAccounts
	if idle < BaseIdleConns {
		idle = BaseIdleConns
	}
	if idle > MaxIdleConns {
		idle = MaxIdleConns
	}
	db.SetMaxIdleConns(idle)
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Key returns the derived database key, used by internal/keystore to seal
// and unseal key-bundle rows stored in this same file.
func (db *DB) Key() []byte { return db.key }
