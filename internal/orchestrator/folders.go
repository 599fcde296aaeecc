package orchestrator

import "github.com/hkdb/tuvicore/internal/folder"

// CreateFolder creates a folder under an account, subject to capability
// gating (§4.4): classic only.
func (o *Orchestrator) CreateFolder(accountID int64, f *folder.Folder) error {
	a, err := o.accounts.Get(accountID)
	if err != nil {
		return err
	}
	if err := o.capability(a, "create", f.Roles); err != nil {
		return err
	}

	lockErr := o.withAccountWrite(accountID, func() error {
		f.AccountID = accountID
		return o.folders.Create(f)
	})
	if lockErr != nil {
		return lockErr
	}
	o.events.emit(Event{Type: EventFolderCreated, Payload: f})
	return nil
}

// RenameFolder renames a folder (and every descendant folder/message path
// under it, per §4.1), subject to capability gating.
func (o *Orchestrator) RenameFolder(accountID int64, oldPath, newPath string) (*folder.RenameResult, error) {
	a, err := o.accounts.Get(accountID)
	if err != nil {
		return nil, err
	}
	existing, err := o.folders.GetByPath(accountID, oldPath)
	if err != nil {
		return nil, err
	}
	if err := o.capability(a, "rename", existing.Roles); err != nil {
		return nil, err
	}

	var result *folder.RenameResult
	lockErr := o.withAccountWrite(accountID, func() error {
		result, err = o.folders.Rename(accountID, oldPath, newPath)
		return err
	})
	if lockErr != nil {
		return nil, lockErr
	}
	if err != nil {
		return nil, err
	}
	o.events.emit(Event{Type: EventFolderRenamed, Payload: result})
	return result, nil
}

// DeleteFolder deletes a folder, subject to capability gating: forbidden
// for every account type when the folder is special, and additionally
// forbidden outright for proton/decentralized accounts.
func (o *Orchestrator) DeleteFolder(accountID, folderID int64) error {
	a, err := o.accounts.Get(accountID)
	if err != nil {
		return err
	}
	f, err := o.folders.Get(folderID)
	if err != nil {
		return err
	}
	if err := o.capability(a, "delete", f.Roles); err != nil {
		return err
	}

	lockErr := o.withAccountWrite(accountID, func() error {
		return o.folders.Delete(folderID)
	})
	if lockErr != nil {
		return lockErr
	}
	o.events.emit(Event{Type: EventFolderDeleted, Payload: folderID})
	return nil
}

// CompositeFolders returns a virtual folder that aggregates every account's
// folder matching role across the whole composite account view (§4.4: e.g.
// "all inboxes").
func (o *Orchestrator) CompositeFolders(role folder.Role) ([]*folder.Folder, error) {
	accounts, err := o.accounts.List()
	if err != nil {
		return nil, err
	}

	var out []*folder.Folder
	for _, a := range accounts {
		folders, err := o.folders.List(a.ID)
		if err != nil {
			return nil, err
		}
		for _, f := range folders {
			if f.Roles&role != 0 {
				out = append(out, f)
			}
		}
	}
	return out, nil
}
