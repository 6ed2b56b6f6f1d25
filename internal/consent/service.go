package consent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"glassbank/internal/attr"
	"glassbank/internal/cache"
	"glassbank/pkg/apperrors"
	"glassbank/pkg/sentinel"
)

// Invalidator drops cached artifacts derived from a user's data. Consent
// changes must invalidate proactively rather than waiting for TTL expiry.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID string)
}

// Service enforces the consent registry semantics. Storage failures surface
// as errors: consent checks must never silently fall back to allowed on a
// broken store, only on a genuinely absent entry.
type Service struct {
	store    Store
	caches   Invalidator
	scores   cache.Cache
	scoreTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the consent service. caches may be nil in tests.
func NewService(store Store, caches Invalidator, logger *slog.Logger) *Service {
	return &Service{store: store, caches: caches, scoreTTL: 30 * time.Minute, logger: logger, now: time.Now}
}

// WithScoreCache enables privacy score caching. Consent updates invalidate
// the entry through the shared user invalidator.
func (s *Service) WithScoreCache(c cache.Cache) *Service {
	s.scores = c
	return s
}

// WithClock overrides the clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// IsAllowed reports whether one attribute may feed AI analysis for the user.
func (s *Service) IsAllowed(ctx context.Context, userID, attributeID string) (bool, error) {
	set, err := s.store.GetPermissions(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("load permissions: %w", err)
	}
	return set.Allowed(attr.Key(attributeID)), nil
}

// FilterAllowed removes denied attributes from the list, preserving order.
func (s *Service) FilterAllowed(ctx context.Context, userID string, ids []string) ([]string, error) {
	set, err := s.store.GetPermissions(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return attr.Dedupe(ids), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}

	out := make([]string, 0, len(ids))
	for _, id := range attr.Dedupe(ids) {
		if set.Allowed(attr.Key(id)) {
			out = append(out, id)
		}
	}
	return out, nil
}

// Permissions returns the user's permission set, creating the default
// all-allowed set over the catalog on first access.
func (s *Service) Permissions(ctx context.Context, userID string) (PermissionSet, error) {
	set, err := s.store.GetPermissions(ctx, userID)
	if err == nil {
		return set, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return PermissionSet{}, fmt.Errorf("load permissions: %w", err)
	}

	now := s.now()
	set = PermissionSet{
		UserID:      userID,
		Permissions: make(map[string]bool, len(attr.Catalog)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, info := range attr.Catalog {
		set.Permissions[attr.Key(info.ID)] = true
	}
	if err := s.store.SavePermissions(ctx, set); err != nil {
		return PermissionSet{}, fmt.Errorf("create default permissions: %w", err)
	}
	return set, nil
}

// Update merges the given changes into the user's permissions, persists them,
// appends a consent record, and invalidates derived caches. Unknown attribute
// identifiers are rejected so typos cannot silently create dead entries.
func (s *Service) Update(ctx context.Context, userID string, changes map[string]bool) (PermissionSet, error) {
	if len(changes) == 0 {
		return PermissionSet{}, apperrors.New(apperrors.CodeValidation, "no permission changes provided")
	}

	known := attr.KeySet(attr.CatalogIDs())
	normalized := make(map[string]bool, len(changes))
	for id, allowed := range changes {
		key := attr.Key(id)
		if _, ok := known[key]; !ok {
			return PermissionSet{}, apperrors.Newf(apperrors.CodeValidation, "unknown attribute %q", id)
		}
		normalized[key] = allowed
	}

	set, err := s.Permissions(ctx, userID)
	if err != nil {
		return PermissionSet{}, err
	}

	var granted []string
	for key, allowed := range normalized {
		set.Permissions[key] = allowed
		if allowed {
			granted = append(granted, key)
		}
	}
	set.UpdatedAt = s.now()

	if err := s.store.SavePermissions(ctx, set); err != nil {
		return PermissionSet{}, fmt.Errorf("save permissions: %w", err)
	}

	record := Record{
		ID:          uuid.NewString(),
		UserID:      userID,
		ConsentType: "data_access_permissions",
		Status:      "granted",
		Purpose:     "AI decision making and recommendations",
		DataTypes:   attr.SortedDedupe(granted),
		CreatedAt:   s.now(),
	}
	if err := s.store.AppendRecord(ctx, record); err != nil {
		// The permission change already took effect; losing one history entry
		// is logged but does not fail the update.
		s.logger.WarnContext(ctx, "failed to append consent record",
			"user_id", userID,
			"error", err,
		)
	}

	if s.caches != nil {
		s.caches.InvalidateUser(ctx, userID)
	}
	return set, nil
}

// History lists consent-change records, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	records, err := s.store.ListRecords(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list consent records: %w", err)
	}
	return records, nil
}

// PrivacyScore rates how restrictive the user's permissions are: the percent
// of configured attributes currently denied. A user who never configured
// permissions scores 100 by convention, matching the consent screen default.
func (s *Service) PrivacyScore(ctx context.Context, userID string) (Score, error) {
	key := cache.PrivacyScoreKey(userID)
	if s.scores != nil {
		if entry, ok, err := s.scores.Get(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "privacy score cache read failed", "error", err)
		} else if ok && entry.Fresh(s.now(), s.scoreTTL) {
			var cached Score
			if err := json.Unmarshal(entry.Data, &cached); err == nil {
				return cached, nil
			}
		}
	}
	score, err := s.computeScore(ctx, userID)
	if err != nil {
		return Score{}, err
	}
	if s.scores != nil {
		if err := s.scores.Set(ctx, key, score, s.scoreTTL); err != nil {
			s.logger.WarnContext(ctx, "privacy score cache write failed", "error", err)
		}
	}
	return score, nil
}

func (s *Service) computeScore(ctx context.Context, userID string) (Score, error) {
	set, err := s.store.GetPermissions(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Score{Score: 100, MaxScore: 100, Message: "Default permissions (all allowed)"}, nil
	}
	if err != nil {
		return Score{}, fmt.Errorf("load permissions: %w", err)
	}

	allowed, total := set.Counts()
	if total == 0 {
		return Score{Score: 100, MaxScore: 100, Message: "No permissions configured"}, nil
	}
	denied := total - allowed
	return Score{
		Score:             denied * 100 / total,
		MaxScore:          100,
		AllowedAttributes: allowed,
		DeniedAttributes:  denied,
		TotalAttributes:   total,
		Message:           fmt.Sprintf("%d of %d attributes restricted", denied, total),
	}, nil
}
