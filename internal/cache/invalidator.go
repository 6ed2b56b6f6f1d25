package cache

import (
	"context"
	"log/slog"
)

// UserInvalidator deletes every cached artifact derived from one user's data.
// Consent updates and transaction writes use it so stale AI output never
// outlives the data it was computed from.
type UserInvalidator struct {
	cache  Cache
	logger *slog.Logger
}

func NewUserInvalidator(cache Cache, logger *slog.Logger) *UserInvalidator {
	return &UserInvalidator{cache: cache, logger: logger}
}

func (i *UserInvalidator) InvalidateUser(ctx context.Context, userID string) {
	if err := i.cache.Delete(ctx, UserKeys(userID)...); err != nil {
		i.logger.WarnContext(ctx, "failed to invalidate user caches",
			"user_id", userID,
			"error", err,
		)
	}
}
