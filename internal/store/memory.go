package store

import (
	"context"
	"sync"

	"flockrank/internal/model"
)

// Memory is the in-memory Store, the default backend. State lives for the
// process lifetime; each account has its own lock so accounts are fully
// independent.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]*accountState
}

type accountState struct {
	mu        sync.RWMutex
	cred      model.Credential
	hasCred   bool
	followers map[string]*model.Follower // keyed by ExternalID
	forder    []string                   // ExternalIDs in insertion order
	actions   map[string]*model.EngagementAction
	aorder    []string // action IDs in insertion order
}

func NewMemory() *Memory {
	return &Memory{accounts: make(map[string]*accountState)}
}

func (m *Memory) account(id string) *accountState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.accounts[id]
	if !ok {
		st = &accountState{
			followers: make(map[string]*model.Follower),
			actions:   make(map[string]*model.EngagementAction),
		}
		m.accounts[id] = st
	}
	return st
}

func (m *Memory) SetCredential(ctx context.Context, cred model.Credential) error {
	st := m.account(cred.AccountID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cred = cred
	st.hasCred = true
	return nil
}

func (m *Memory) Credential(ctx context.Context, accountID string) (model.Credential, bool, error) {
	st := m.account(accountID)
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.cred, st.hasCred, nil
}

func (m *Memory) UpsertFollower(ctx context.Context, accountID string, f model.Follower) error {
	st := m.account(accountID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if prev, ok := st.followers[f.ExternalID]; ok {
		prev.Handle = f.Handle
		prev.DisplayName = f.DisplayName
		prev.AvatarURL = f.AvatarURL
		// ID, Excluded and AddedAt are sticky
		return nil
	}
	cp := f
	st.followers[f.ExternalID] = &cp
	st.forder = append(st.forder, f.ExternalID)
	return nil
}

func (m *Memory) UpsertAction(ctx context.Context, accountID string, a model.EngagementAction) error {
	st := m.account(accountID)
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.actions[a.ID]; !ok {
		st.aorder = append(st.aorder, a.ID)
	}
	cp := a
	st.actions[a.ID] = &cp
	return nil
}

func (m *Memory) SetExcluded(ctx context.Context, accountID, followerID string, excluded bool) (bool, error) {
	st := m.account(accountID)
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, f := range st.followers {
		if f.ID == followerID {
			f.Excluded = excluded
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) Snapshot(ctx context.Context, accountID string) (model.Snapshot, error) {
	st := m.account(accountID)
	st.mu.RLock()
	defer st.mu.RUnlock()
	snap := model.Snapshot{AccountID: accountID}
	known := make(map[string]struct{}, len(st.followers))
	snap.Followers = make([]model.Follower, 0, len(st.forder))
	for _, ext := range st.forder {
		f := st.followers[ext]
		known[f.ID] = struct{}{}
		snap.Followers = append(snap.Followers, *f)
	}
	snap.Actions = make([]model.EngagementAction, 0, len(st.aorder))
	for _, id := range st.aorder {
		a := st.actions[id]
		if _, ok := known[a.FollowerID]; !ok {
			// follower left the paginated set; drop the orphan silently
			continue
		}
		snap.Actions = append(snap.Actions, *a)
	}
	return snap, nil
}

func (m *Memory) Clear(ctx context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, accountID)
	return nil
}
