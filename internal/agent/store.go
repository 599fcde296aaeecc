package agent

import (
	"database/sql"

	"github.com/hkdb/tuvicore/internal/database"
	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/logging"
	"github.com/rs/zerolog"
)

// Store provides AI agent persistence operations.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// NewStore creates a new agent store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, log: logging.WithComponent("agent-store")}
}

const agentColumns = `id, name, account_id, pre_processor_agent_id, post_processor_agent_id, config`

func scanAgent(row interface{ Scan(...any) error }) (*Agent, error) {
	a := &Agent{}
	var accountID, preID, postID sql.NullInt64
	if err := row.Scan(&a.ID, &a.Name, &accountID, &preID, &postID, &a.Config); err != nil {
		return nil, err
	}
	a.AccountID = accountID.Int64
	a.PreProcessorAgentID = preID.Int64
	a.PostProcessorAgentID = postID.Int64
	return a, nil
}

// Add inserts a new agent.
func (s *Store) Add(a *Agent) error {
	res, err := s.db.Exec(`
		INSERT INTO agents (name, account_id, pre_processor_agent_id, post_processor_agent_id, config)
		VALUES (?, ?, ?, ?, ?)`,
		a.Name, nullIfZero(a.AccountID), nullIfZero(a.PreProcessorAgentID), nullIfZero(a.PostProcessorAgentID), a.Config,
	)
	if err != nil {
		return errs.Wrap(errs.Database, err, "add agent")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errs.Wrap(errs.Database, err, "read new agent id")
	}
	a.ID = id
	return nil
}

// Get retrieves an agent by id, hydrating its pre/post-processor navigation
// properties one level deep. A reference to a deleted agent leaves the
// foreign key on Agent but the corresponding *AgentRef nil.
func (s *Store) Get(id int64) (*Agent, error) {
	row := s.db.QueryRow(`SELECT `+agentColumns+` FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.NotFound, "agent not found")
	}
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "get agent")
	}

	if a.PreProcessorAgentID != 0 {
		a.PreProcessor = s.ref(a.PreProcessorAgentID)
	}
	if a.PostProcessorAgentID != 0 {
		a.PostProcessor = s.ref(a.PostProcessorAgentID)
	}
	if a.AccountID != 0 {
		var address string
		if err := s.db.QueryRow(`SELECT address FROM accounts WHERE id = ?`, a.AccountID).Scan(&address); err == nil {
			a.Account = &AccountRef{ID: a.AccountID, Address: address}
		}
	}
	return a, nil
}

func (s *Store) ref(id int64) *AgentRef {
	var name string
	if err := s.db.QueryRow(`SELECT name FROM agents WHERE id = ?`, id).Scan(&name); err != nil {
		return nil
	}
	return &AgentRef{ID: id, Name: name}
}

// List returns every agent without hydrating navigation properties.
func (s *Store) List() ([]*Agent, error) {
	rows, err := s.db.Query(`SELECT ` + agentColumns + ` FROM agents ORDER BY name`)
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "list agents")
	}
	defer rows.Close()

	var out []*Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, errs.Wrap(errs.Database, err, "scan agent")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Update overwrites an agent's mutable fields.
func (s *Store) Update(a *Agent) error {
	_, err := s.db.Exec(`
		UPDATE agents SET name = ?, account_id = ?, pre_processor_agent_id = ?, post_processor_agent_id = ?, config = ?
		WHERE id = ?`,
		a.Name, nullIfZero(a.AccountID), nullIfZero(a.PreProcessorAgentID), nullIfZero(a.PostProcessorAgentID), a.Config, a.ID,
	)
	if err != nil {
		return errs.Wrap(errs.Database, err, "update agent")
	}
	return nil
}

// Delete removes an agent. Other agents referencing it by
// pre/post-processor id keep their foreign key; Get on them simply returns a
// nil navigation property for the deleted reference.
func (s *Store) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return errs.Wrap(errs.Database, err, "delete agent")
	}
	return nil
}

func nullIfZero(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
