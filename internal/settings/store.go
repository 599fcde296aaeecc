// Package settings persists the Settings entity (§3): a singleton set of
// per-network account counters, one per decentralized network, used to
// derive the next account-derivation index when a network gains a new
// account.
package settings

import (
	"database/sql"

	"github.com/hkdb/tuvicore/internal/database"
	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/logging"
	"github.com/rs/zerolog"
)

// Store provides per-network counter persistence.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// NewStore creates a new settings store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, log: logging.WithComponent("settings-store")}
}

// GetNetworkCounter returns the current account counter for network,
// defaulting to zero if the network has never been seen.
func (s *Store) GetNetworkCounter(network string) (int, error) {
	var counter int
	err := s.db.QueryRow(`SELECT counter FROM settings_network_counters WHERE network = ?`, network).Scan(&counter)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errs.Wrap(errs.Database, err, "get network counter")
	}
	return counter, nil
}

// SetNetworkCounter overwrites the counter for network.
func (s *Store) SetNetworkCounter(network string, counter int) error {
	_, err := s.db.Exec(`
		INSERT INTO settings_network_counters (network, counter) VALUES (?, ?)
		ON CONFLICT(network) DO UPDATE SET counter = excluded.counter`, network, counter)
	if err != nil {
		return errs.Wrap(errs.Database, err, "set network counter")
	}
	return nil
}

// NextNetworkCounter atomically increments and returns the new counter value
// for network, used to assign the next derivation index when an account is
// added to a decentralized network.
func (s *Store) NextNetworkCounter(network string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, errs.Wrap(errs.Database, err, "begin next network counter")
	}
	defer tx.Rollback()

	var counter int
	err = tx.QueryRow(`SELECT counter FROM settings_network_counters WHERE network = ?`, network).Scan(&counter)
	if err != nil && err != sql.ErrNoRows {
		return 0, errs.Wrap(errs.Database, err, "read network counter")
	}
	counter++

	_, err = tx.Exec(`
		INSERT INTO settings_network_counters (network, counter) VALUES (?, ?)
		ON CONFLICT(network) DO UPDATE SET counter = excluded.counter`, network, counter)
	if err != nil {
		return 0, errs.Wrap(errs.Database, err, "persist next network counter")
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.Wrap(errs.Database, err, "commit next network counter")
	}
	return counter, nil
}

// ListNetworkCounters returns every known network's counter.
func (s *Store) ListNetworkCounters() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT network, counter FROM settings_network_counters`)
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "list network counters")
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var network string
		var counter int
		if err := rows.Scan(&network, &counter); err != nil {
			return nil, errs.Wrap(errs.Database, err, "scan network counter")
		}
		out[network] = counter
	}
	return out, rows.Err()
}
