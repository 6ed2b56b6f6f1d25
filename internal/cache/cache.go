// Package cache provides the TTL cache behind AI insight payloads. Reads and
// writes are best-effort: a cache outage degrades latency, never correctness,
// so services log failures and recompute.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Entry is a cached payload plus its creation time. Callers use CreatedAt to
// report cache age and to enforce freshness windows tighter than the TTL.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Age returns how old the entry is at now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// Fresh reports whether the entry is younger than window at now.
func (e Entry) Fresh(now time.Time, window time.Duration) bool {
	return e.Age(now) < window
}

// Cache is the TTL key-value boundary. Get returns ok=false for a miss;
// errors are infrastructure failures.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Cache key builders. One namespace per derived artifact, keyed by user.
func InsightsKey(userID string) string        { return "ai_insights_" + userID }
func PrivacyScoreKey(userID string) string    { return "privacy_score_" + userID }
func RecommendationsKey(userID string) string { return "tx_recommendations_" + userID }

// UserKeys lists every per-user key a data or consent mutation invalidates.
func UserKeys(userID string) []string {
	return []string{
		InsightsKey(userID),
		PrivacyScoreKey(userID),
		RecommendationsKey(userID),
	}
}
