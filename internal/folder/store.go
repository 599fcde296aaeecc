package folder

import (
	"database/sql"

	"github.com/hkdb/tuvicore/internal/database"
	"github.com/hkdb/tuvicore/internal/errs"
	"github.com/hkdb/tuvicore/internal/logging"
	"github.com/rs/zerolog"
)

// Store provides folder persistence operations, grounded in the teacher's
// message.Store shape: a *database.DB plus a component logger.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// NewStore creates a new folder store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db, log: logging.WithComponent("folder-store")}
}

func scanFolder(row interface{ Scan(...any) error }) (*Folder, error) {
	f := &Folder{}
	var roles int64
	if err := row.Scan(&f.ID, &f.AccountID, &f.Path, &roles, &f.TotalCount, &f.UnreadCount, &f.LocalCount); err != nil {
		return nil, err
	}
	f.Roles = Role(roles)
	return f, nil
}

const folderColumns = "id, account_id, path, roles, total_count, unread_count, local_count"

// Create inserts a new folder. Local count is always forced to zero on
// insert, regardless of any value the caller populated on f — it is a
// derived counter, never accepted from import.
func (s *Store) Create(f *Folder) error {
	res, err := s.db.Exec(
		`INSERT INTO folders (account_id, path, path_ci, roles, total_count, unread_count, local_count)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		f.AccountID, f.Path, PathCaseFold(f.Path), int64(f.Roles), f.TotalCount, f.UnreadCount,
	)
	if err != nil {
		return errs.Wrap(errs.Database, err, "create folder")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errs.Wrap(errs.Database, err, "read new folder id")
	}
	f.ID = id
	f.LocalCount = 0
	return nil
}

// Get retrieves a folder by surrogate id.
func (s *Store) Get(id int64) (*Folder, error) {
	row := s.db.QueryRow(`SELECT `+folderColumns+` FROM folders WHERE id = ?`, id)
	f, err := scanFolder(row)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.NotFound, "folder not found")
	}
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "get folder")
	}
	return f, nil
}

// GetByPath retrieves a folder by account and path, case-insensitively.
func (s *Store) GetByPath(accountID int64, path string) (*Folder, error) {
	row := s.db.QueryRow(`SELECT `+folderColumns+` FROM folders WHERE account_id = ? AND path_ci = ?`,
		accountID, PathCaseFold(path))
	f, err := scanFolder(row)
	if err == sql.ErrNoRows {
		return nil, errs.New(errs.NotFound, "folder not found")
	}
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "get folder by path")
	}
	return f, nil
}

// List returns every folder belonging to account, ordered by path.
func (s *Store) List(accountID int64) ([]*Folder, error) {
	rows, err := s.db.Query(`SELECT `+folderColumns+` FROM folders WHERE account_id = ? ORDER BY path`, accountID)
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "list folders")
	}
	defer rows.Close()

	var out []*Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, errs.Wrap(errs.Database, err, "scan folder")
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpdateRoles updates only the role bitset of a folder.
func (s *Store) UpdateRoles(id int64, roles Role) error {
	_, err := s.db.Exec(`UPDATE folders SET roles = ? WHERE id = ?`, int64(roles), id)
	if err != nil {
		return errs.Wrap(errs.Database, err, "update folder roles")
	}
	return nil
}

// Delete removes a folder; its messages cascade-delete via the foreign key.
func (s *Store) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM folders WHERE id = ?`, id)
	if err != nil {
		return errs.Wrap(errs.Database, err, "delete folder")
	}
	return nil
}

// AdjustCounters applies a delta to a folder's total/unread/local counters
// in one statement, used by the message store's counter discipline. Any of
// the deltas may be zero.
func (s *Store) AdjustCounters(tx *sql.Tx, folderID int64, totalDelta, unreadDelta, localDelta int) error {
	_, err := tx.Exec(
		`UPDATE folders SET total_count = total_count + ?, unread_count = unread_count + ?, local_count = local_count + ? WHERE id = ?`,
		totalDelta, unreadDelta, localDelta, folderID,
	)
	if err != nil {
		return errs.Wrap(errs.Database, err, "adjust folder counters")
	}
	return nil
}

// RenameResult lists the folders and message ids touched by a rename.
type RenameResult struct {
	RenamedFolderIDs []int64
}

// Rename implements update-folder-path (§4.1): every folder whose path
// equals oldPath or is a strict descendant of it (exact segment-boundary
// match, case-insensitive) is rewritten to newPath + suffix, preserving the
// case of newPath and of the untouched suffix; every message in those
// folders has its denormalized folder_path column rewritten in the same
// transaction. Folder and message surrogate ids are preserved throughout.
func (s *Store) Rename(accountID int64, oldPath, newPath string) (*RenameResult, error) {
	oldFolded := PathCaseFold(oldPath)

	if _, err := s.GetByPath(accountID, oldPath); err != nil {
		if errs.Is(err, errs.NotFound) {
			return nil, errs.New(errs.Database, "rename source does not exist")
		}
		return nil, err
	}

	all, err := s.List(accountID)
	if err != nil {
		return nil, err
	}

	type rewrite struct {
		id      int64
		newPath string
	}
	var rewrites []rewrite
	for _, f := range all {
		folded := PathCaseFold(f.Path)
		if !matchesPrefix(folded, oldFolded) {
			continue
		}
		rewrites = append(rewrites, rewrite{id: f.ID, newPath: rewritePath(f.Path, len(oldPath), newPath)})
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errs.Wrap(errs.Database, err, "begin rename transaction")
	}
	defer tx.Rollback()

	result := &RenameResult{}
	for _, r := range rewrites {
		if _, err := tx.Exec(`UPDATE folders SET path = ?, path_ci = ? WHERE id = ?`,
			r.newPath, PathCaseFold(r.newPath), r.id); err != nil {
			return nil, errs.Wrap(errs.Database, err, "rewrite folder path")
		}
		if _, err := tx.Exec(`UPDATE messages SET folder_path = ? WHERE folder_id = ?`, r.newPath, r.id); err != nil {
			return nil, errs.Wrap(errs.Database, err, "rewrite message folder paths")
		}
		result.RenamedFolderIDs = append(result.RenamedFolderIDs, r.id)
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.Wrap(errs.Database, err, "commit rename transaction")
	}
	return result, nil
}

// ApplyStructure reconciles the account's stored folder tree against a
// desired set of folder paths/roles (update-folder-structure, §4.1): folders
// present locally but absent from desired are deleted (cascading their
// messages); folders present in desired but missing locally are created with
// local_count forced to zero; folders present in both have their roles
// refreshed. Counts created/updated/deleted are returned for observability.
func (s *Store) ApplyStructure(accountID int64, desired []Folder) (created, updated, deleted int, err error) {
	existing, err := s.List(accountID)
	if err != nil {
		return 0, 0, 0, err
	}

	byPath := make(map[string]*Folder, len(existing))
	for _, f := range existing {
		byPath[PathCaseFold(f.Path)] = f
	}

	seen := make(map[string]bool, len(desired))
	for _, d := range desired {
		key := PathCaseFold(d.Path)
		seen[key] = true
		if ex, ok := byPath[key]; ok {
			if ex.Roles != d.Roles {
				if err := s.UpdateRoles(ex.ID, d.Roles); err != nil {
					return created, updated, deleted, err
				}
				updated++
			}
			continue
		}
		nf := &Folder{AccountID: accountID, Path: d.Path, Roles: d.Roles}
		if err := s.Create(nf); err != nil {
			return created, updated, deleted, err
		}
		created++
	}

	for key, ex := range byPath {
		if !seen[key] {
			if err := s.Delete(ex.ID); err != nil {
				return created, updated, deleted, err
			}
			deleted++
		}
	}

	return created, updated, deleted, nil
}
