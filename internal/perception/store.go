package perception

import (
	"context"
	"sync"

	"glassbank/pkg/sentinel"
)

// Store persists perception snapshots and disputes. Snapshots are one per
// user and overwritten on regeneration.
type Store interface {
	GetPerception(ctx context.Context, userID string) (Perception, error)
	SavePerception(ctx context.Context, p Perception) error
	AppendDispute(ctx context.Context, d Dispute) error
	ListDisputes(ctx context.Context, userID string) ([]Dispute, error)
	// SetAttributeStatus updates the status of the attribute matching
	// category and label. Returns false when no attribute matched.
	SetAttributeStatus(ctx context.Context, userID, category, label, status string) (bool, error)
}

// InMemoryStore is the map-backed store used in tests and single-node runs.
type InMemoryStore struct {
	mu          sync.RWMutex
	perceptions map[string]Perception
	disputes    map[string][]Dispute
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		perceptions: map[string]Perception{},
		disputes:    map[string][]Dispute{},
	}
}

func (s *InMemoryStore) GetPerception(_ context.Context, userID string) (Perception, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.perceptions[userID]
	if !ok {
		return Perception{}, sentinel.ErrNotFound
	}
	return clonePerception(p), nil
}

func (s *InMemoryStore) SavePerception(_ context.Context, p Perception) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perceptions[p.UserID] = clonePerception(p)
	return nil
}

func (s *InMemoryStore) AppendDispute(_ context.Context, d Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disputes[d.UserID] = append(s.disputes[d.UserID], d)
	return nil
}

func (s *InMemoryStore) ListDisputes(_ context.Context, userID string) ([]Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Dispute{}, s.disputes[userID]...), nil
}

func (s *InMemoryStore) SetAttributeStatus(_ context.Context, userID, category, label, status string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.perceptions[userID]
	if !ok {
		return false, nil
	}
	for i := range p.Attributes {
		if p.Attributes[i].Category == category && p.Attributes[i].Label == label {
			p.Attributes[i].Status = status
			s.perceptions[userID] = p
			return true, nil
		}
	}
	return false, nil
}

func clonePerception(p Perception) Perception {
	out := p
	out.Attributes = make([]Attribute, len(p.Attributes))
	copy(out.Attributes, p.Attributes)
	for i := range out.Attributes {
		out.Attributes[i].Evidence = append([]string{}, p.Attributes[i].Evidence...)
	}
	return out
}
