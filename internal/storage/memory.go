package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memUser struct {
	digest  string
	profile string
	job     string
	goals   string
}

// Memory is the mock-database variant of the Store: same contract, no
// external dependency. Also serves as the test double.
type Memory struct {
	mu      sync.RWMutex
	users   map[string]*memUser
	log     []Interaction
	nextSeq int64
}

func NewMemory() *Memory {
	return &Memory{users: make(map[string]*memUser), nextSeq: 1}
}

func (m *Memory) EnsureSchema(ctx context.Context) error { return nil }

func (m *Memory) CreateUser(ctx context.Context, identity, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[identity]; ok {
		return ErrDuplicateIdentity
	}
	m.users[identity] = &memUser{digest: digest}
	return nil
}

func (m *Memory) Authenticate(ctx context.Context, identity, digest string) (UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[identity]
	if !ok || u.digest != digest {
		return UserRecord{}, ErrInvalidCredential
	}
	return UserRecord{Identity: identity, Profile: u.profile, Job: u.job, Goals: u.goals}, nil
}

func (m *Memory) UpdateProfile(ctx context.Context, identity, blob string) error {
	return m.update(identity, func(u *memUser) { u.profile = blob })
}

func (m *Memory) UpdateJob(ctx context.Context, identity, blob string) error {
	return m.update(identity, func(u *memUser) { u.job = blob })
}

func (m *Memory) UpdateGoals(ctx context.Context, identity, blob string) error {
	return m.update(identity, func(u *memUser) { u.goals = blob })
}

func (m *Memory) update(identity string, apply func(*memUser)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[identity]
	if !ok {
		return ErrInvalidCredential
	}
	apply(u)
	return nil
}

func (m *Memory) AppendInteraction(ctx context.Context, identity, group, query, response string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Interactions reference a user row, matching the relational schema.
	if _, ok := m.users[identity]; !ok {
		return ErrInvalidCredential
	}
	m.log = append(m.log, Interaction{
		Identity:  identity,
		Group:     group,
		Sequence:  m.nextSeq,
		Query:     query,
		Response:  response,
		CreatedAt: time.Now().UTC(),
	})
	m.nextSeq++
	return nil
}

func (m *Memory) ListSessionGroups(ctx context.Context, identity string) ([]SessionGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	firstSeq := make(map[string]int64)
	first := make(map[string]Interaction)
	for _, it := range m.log {
		if it.Identity != identity {
			continue
		}
		if _, ok := first[it.Group]; !ok {
			first[it.Group] = it
			firstSeq[it.Group] = it.Sequence
		}
	}
	groups := make([]SessionGroup, 0, len(first))
	for g, it := range first {
		groups = append(groups, SessionGroup{Group: g, FirstQuery: it.Query, StartedAt: it.CreatedAt})
	}
	// Newest-first by the earliest query; sequence breaks timestamp ties
	// deterministically.
	sort.Slice(groups, func(i, j int) bool {
		if !groups[i].StartedAt.Equal(groups[j].StartedAt) {
			return groups[i].StartedAt.After(groups[j].StartedAt)
		}
		return firstSeq[groups[i].Group] > firstSeq[groups[j].Group]
	})
	return groups, nil
}

func (m *Memory) LoadSession(ctx context.Context, identity, group string) ([]Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var turns []Interaction
	for _, it := range m.log {
		if it.Identity == identity && it.Group == group {
			turns = append(turns, it)
		}
	}
	return turns, nil
}

func (m *Memory) CountInteractionsSince(ctx context.Context, since time.Time) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make(map[string]bool)
	turns := 0
	for _, it := range m.log {
		if it.CreatedAt.Before(since) {
			continue
		}
		turns++
		users[it.Identity] = true
	}
	return turns, len(users), nil
}

func (m *Memory) Close() error { return nil }
