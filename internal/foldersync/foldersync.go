// Package foldersync implements the generic folder reconciliation algorithm
// (§4.2): converge a local slice of messages with a remote slice, without any
// knowledge of which protocol produced either side.
package foldersync

import (
	"sort"

	"github.com/hkdb/tuvicore/internal/message"
)

// RemoteMessage is the remote side's view of one message: only the fields
// the reconciliation needs to compare, not a full message.Message.
type RemoteMessage struct {
	ExternalID uint32
	IsRead     bool
	IsFlagged  bool
}

// Bound describes the local slice's [oldest, newest] external-id range. A
// nil Bound means the local folder is empty.
type Bound struct {
	OldestExternalID uint32
	NewestExternalID uint32
}

// Result is the observable outcome of a reconciliation pass (§4.2: "number
// of deleted, number of updated, number of added, resulting local id set").
type Result struct {
	Deleted    []uint32
	Updated    []RemoteMessage
	Added      []RemoteMessage
	LocalIDSet []uint32
}

// Reconcile merges local (already loaded, descending by external id, within
// [bound.OldestExternalID, bound.NewestExternalID]) against remote (up to N
// remote messages ending before a sentinel remote id, descending by external
// id). Deletes, then updates, then adds are the caller's required apply
// order; this function only computes the three sets.
func Reconcile(local []*message.Message, remote []RemoteMessage, bound *Bound) Result {
	localByID := make(map[uint32]*message.Message, len(local))
	for _, m := range local {
		localByID[m.ExternalID] = m
	}
	remoteByID := make(map[uint32]RemoteMessage, len(remote))
	for _, r := range remote {
		remoteByID[r.ExternalID] = r
	}

	var result Result

	for id, m := range localByID {
		r, onRemote := remoteByID[id]
		if !onRemote {
			result.Deleted = append(result.Deleted, id)
			continue
		}
		if r.IsRead != m.IsRead || r.IsFlagged != m.IsFlagged {
			result.Updated = append(result.Updated, r)
		}
	}

	for id, r := range remoteByID {
		if _, onLocal := localByID[id]; onLocal {
			continue
		}
		if bound != nil && id >= bound.OldestExternalID && id <= bound.NewestExternalID {
			// Present remotely only, but inside the already-loaded local
			// range: the message simply isn't there locally yet. Arrival
			// outside the slice is handled by a separate fetch pass, not
			// reconciliation, so this is a no-op rather than an add.
			continue
		}
		result.Added = append(result.Added, r)
	}

	result.LocalIDSet = computeLocalIDSet(localByID, result.Deleted, result.Added)

	sortDescending(result.Updated)
	sortDescending(result.Added)
	sortUint32Descending(result.Deleted)

	return result
}

func computeLocalIDSet(localByID map[uint32]*message.Message, deleted []uint32, added []RemoteMessage) []uint32 {
	deletedSet := make(map[uint32]bool, len(deleted))
	for _, id := range deleted {
		deletedSet[id] = true
	}

	ids := make([]uint32, 0, len(localByID)+len(added))
	for id := range localByID {
		if !deletedSet[id] {
			ids = append(ids, id)
		}
	}
	for _, r := range added {
		ids = append(ids, r.ExternalID)
	}
	sortUint32Descending(ids)
	return ids
}

func sortDescending(rs []RemoteMessage) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].ExternalID > rs[j].ExternalID })
}

func sortUint32Descending(ids []uint32) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
}
