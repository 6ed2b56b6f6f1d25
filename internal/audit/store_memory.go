package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"glassbank/pkg/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]Record)}
}

func (s *InMemoryStore) Append(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.UserID] = append(s.records[record.UserID], record)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, userID string, limit, offset int) ([]Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := append([]Record{}, s.records[userID]...)
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if offset >= total {
		return []Record{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

func (s *InMemoryStore) Get(_ context.Context, userID, recordID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.records[userID] {
		if record.ID == recordID {
			return record, nil
		}
	}
	return Record{}, fmt.Errorf("audit record %q: %w", recordID, sentinel.ErrNotFound)
}
