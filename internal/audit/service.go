package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"glassbank/internal/platform/metrics"
	"glassbank/pkg/apperrors"
	"glassbank/pkg/sentinel"
)

// Service fronts the audit store. Append is best-effort from the caller's
// point of view: attribution pipelines log and continue when the trail write
// fails, because failing the user's request would not un-run the model call.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(store Store, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{store: store, logger: logger, metrics: m, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Append persists the record, assigning ID and timestamp when unset, and
// returns the record ID. Callers decide whether a failure is fatal.
func (s *Service) Append(ctx context.Context, record Record) (string, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now().UTC()
	}
	if err := s.store.Append(ctx, record); err != nil {
		s.metrics.IncAuditAppendFailure()
		return "", fmt.Errorf("append audit record: %w", err)
	}
	return record.ID, nil
}

// List returns the user's records, newest first, with the total count for
// pagination.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Record, int, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	records, total, err := s.store.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit records: %w", err)
	}
	return records, total, nil
}

// Get returns one record, owner-scoped.
func (s *Service) Get(ctx context.Context, userID, recordID string) (Record, error) {
	record, err := s.store.Get(ctx, userID, recordID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Record{}, apperrors.New(apperrors.CodeNotFound, "audit record not found")
	}
	if err != nil {
		return Record{}, fmt.Errorf("get audit record: %w", err)
	}
	return record, nil
}
