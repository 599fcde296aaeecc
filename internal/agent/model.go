// Package agent persists the AI Agent entity (§3): a record that may
// reference an account and up to two other agents (pre/post processors,
// including itself), loaded shallowly — one level of navigation hydration,
// never recursive.
package agent

// Agent is the persisted AI agent record. AccountID, PreProcessorAgentID and
// PostProcessorAgentID are zero when unset; Account, PreProcessor and
// PostProcessor are populated by Store.Get (one level deep) and left nil
// when Store.List is used, or when the referenced entity no longer exists.
type Agent struct {
	ID                   int64
	Name                 string
	AccountID            int64
	PreProcessorAgentID  int64
	PostProcessorAgentID int64
	Config               string

	// Shallow navigation properties, hydrated only by Get.
	Account       *AccountRef
	PreProcessor  *AgentRef
	PostProcessor *AgentRef
}

// AgentRef is the one-level-deep view of a referenced agent: just enough to
// identify it, with no further navigation hydration.
type AgentRef struct {
	ID   int64
	Name string
}

// AccountRef is the one-level-deep view of the agent's owning account.
type AccountRef struct {
	ID      int64
	Address string
}
