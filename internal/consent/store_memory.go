package consent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"glassbank/pkg/sentinel"
)

type InMemoryStore struct {
	mu          sync.RWMutex
	permissions map[string]PermissionSet
	records     map[string][]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		permissions: make(map[string]PermissionSet),
		records:     make(map[string][]Record),
	}
}

func (s *InMemoryStore) GetPermissions(_ context.Context, userID string) (PermissionSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.permissions[userID]
	if !ok {
		return PermissionSet{}, fmt.Errorf("permissions for %q: %w", userID, sentinel.ErrNotFound)
	}
	// Copy the map so callers cannot mutate stored state.
	cloned := make(map[string]bool, len(set.Permissions))
	for k, v := range set.Permissions {
		cloned[k] = v
	}
	set.Permissions = cloned
	return set, nil
}

func (s *InMemoryStore) SavePermissions(_ context.Context, set PermissionSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cloned := make(map[string]bool, len(set.Permissions))
	for k, v := range set.Permissions {
		cloned[k] = v
	}
	set.Permissions = cloned
	s.permissions[set.UserID] = set
	return nil
}

func (s *InMemoryStore) AppendRecord(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.UserID] = append(s.records[record.UserID], record)
	return nil
}

func (s *InMemoryStore) ListRecords(_ context.Context, userID string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]Record{}, s.records[userID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
