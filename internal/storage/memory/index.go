package memory

import (
	"github.com/yndnr/sessionguard/pkg/cmap"
)

// accountIndex maps an account to the IDs of its stored sessions.
// The per-account sets are only touched under their shard lock.
type accountIndex struct {
	index *cmap.Map[string, map[string]struct{}]
}

func newAccountIndex() *accountIndex {
	return &accountIndex{
		index: cmap.New[string, map[string]struct{}](),
	}
}

func (i *accountIndex) add(accountID, sessionID string) {
	i.index.Update(accountID, func(set map[string]struct{}, exists bool) (map[string]struct{}, bool) {
		if !exists {
			set = make(map[string]struct{}, 1)
		}
		set[sessionID] = struct{}{}
		return set, true
	})
}

// remove forgets sessionID and drops the account once its set is empty.
func (i *accountIndex) remove(accountID, sessionID string) {
	i.index.Update(accountID, func(set map[string]struct{}, exists bool) (map[string]struct{}, bool) {
		if !exists {
			return nil, false
		}
		delete(set, sessionID)
		return set, len(set) > 0
	})
}

// count returns the number of sessions stored for accountID.
func (i *accountIndex) count(accountID string) int {
	n := 0
	i.index.Update(accountID, func(set map[string]struct{}, exists bool) (map[string]struct{}, bool) {
		n = len(set)
		return set, exists
	})
	return n
}

// crowded returns how many accounts hold more than one stored session.
func (i *accountIndex) crowded() int {
	n := 0
	i.index.Range(func(_ string, set map[string]struct{}) bool {
		if len(set) > 1 {
			n++
		}
		return true
	})
	return n
}

// accounts returns the number of indexed accounts.
func (i *accountIndex) accounts() int {
	return i.index.Count()
}
