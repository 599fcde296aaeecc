// Package logging provides the component-tagged zerolog setup shared by
// every store, the orchestrator, the synchronizer, and the DEC mailbox.
package logging

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	base   zerolog.Logger
	level  = zerolog.InfoLevel
	setMux sync.Mutex
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

func root() zerolog.Logger {
	once.Do(func() {
		base = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
	})
	return base
}

// SetLevel adjusts the minimum level for all loggers vended by this package.
// It only affects loggers created after the call; existing zerolog.Logger
// values captured earlier keep their level.
func SetLevel(l zerolog.Level) {
	setMux.Lock()
	defer setMux.Unlock()
	level = l
	base = root().Level(l)
}

// WithComponent returns a logger tagged with a "component" field, the way
// every store in this module identifies its log lines (e.g. "message-store",
// "dec-mailbox", "orchestrator").
func WithComponent(name string) zerolog.Logger {
	return root().With().Str("component", name).Logger()
}
