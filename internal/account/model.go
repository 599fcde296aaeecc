// Package account persists the Account entity (§3): classical, Proton-style,
// and decentralized mail accounts, unique by normalized address.
package account

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Type is the account's protocol family.
type Type string

const (
	TypeClassic       Type = "classic"
	TypeProton        Type = "proton"
	TypeDecentralized Type = "decentralized"
)

// ContentPolicy governs whether remote content referenced by an HTML body
// is allowed to load.
type ContentPolicy string

const (
	ContentAllow ContentPolicy = "allow"
	ContentAsk   ContentPolicy = "ask"
	ContentBlock ContentPolicy = "block"
)

// ServerEndpoint is a classic account's IMAP or SMTP coordinates.
type ServerEndpoint struct {
	Host     string
	Port     int
	Security string // e.g. "tls", "starttls", "none"
}

// Auth carries exactly one of a password or an OAuth-style refresh token
// pair; which one is meaningful is determined by AuthType.
type Auth struct {
	Password         string
	RefreshToken     string
	RefreshTokenMeta string // e.g. the client id/issuer the token was issued by
}

// AuthType discriminates which half of Auth is populated.
type AuthType string

const (
	AuthPassword     AuthType = "password"
	AuthRefreshToken AuthType = "refresh_token"
)

// Account is the persisted account record.
type Account struct {
	ID                    int64
	Address               string // display form, as entered
	DisplayName           string
	AccountType           Type
	NetworkTag            string // decentralized accounts only
	DerivationIndex       int
	Incoming              ServerEndpoint // classic only
	Outgoing              ServerEndpoint // classic only
	AuthType              AuthType
	Auth                  Auth
	DefaultInboxFolderID  int64
	ExternalContentPolicy ContentPolicy
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

var caser = cases.Upper(language.Und)

// NormalizeAddress splits addr into local-part + uppercased domain and
// rejoins them, the identity used for uniqueness per §3/§9 ("normalize the
// domain to uppercase at write, but keep the display form unchanged").
// It is case-insensitive for the domain only; the local part's case is
// preserved, matching the classical mail convention that local-parts may be
// case-sensitive while domains are not.
func NormalizeAddress(addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return addr
	}
	local, domain := addr[:at], addr[at+1:]
	return local + "@" + caser.String(domain)
}
