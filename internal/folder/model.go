// Package folder persists the Folder entity (§3): per-account folder trees
// identified by (account id, full path), with role flags and the counters
// the message store maintains.
package folder

import "golang.org/x/text/cases"

var foldCaser = cases.Fold()

// Role is a bit in the folder's role bitset.
type Role uint16

const (
	RoleInbox Role = 1 << iota
	RoleSent
	RoleDrafts
	RoleTrash
	RoleJunk
	RoleImportant
	RoleAll
	RoleOther
)

// Special reports whether roles intersects the set the orchestrator treats
// as "special" (§4.4): mutation-protected folders.
func (r Role) Special() bool {
	return r&(RoleInbox|RoleSent|RoleDrafts|RoleTrash|RoleJunk|RoleImportant|RoleAll) != 0
}

// Eligible reports whether roles makes this folder eligible for contact
// derivation (§ glossary: "neither junk nor trash nor important nor all").
func (r Role) Eligible() bool {
	return r&(RoleJunk|RoleTrash|RoleImportant|RoleAll) == 0
}

// Folder is the persisted folder record.
type Folder struct {
	ID          int64
	AccountID   int64
	Path        string
	Roles       Role
	TotalCount  int
	UnreadCount int
	LocalCount  int
}

// Separator is the folder path segment delimiter (§6: "/"-separated segment
// strings").
const Separator = "/"

// PathCaseFold returns the case-insensitive comparison key for a folder
// path. Matching is case-insensitive but the stored/displayed case is always
// the one actually written, per §6.
func PathCaseFold(path string) string {
	return foldCaser.String(path)
}
