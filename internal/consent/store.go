package consent

import "context"

// Store persists permission sets and consent records. Implementations return
// sentinel.ErrNotFound when a user has no permission set yet.
type Store interface {
	GetPermissions(ctx context.Context, userID string) (PermissionSet, error)
	SavePermissions(ctx context.Context, set PermissionSet) error
	AppendRecord(ctx context.Context, record Record) error
	ListRecords(ctx context.Context, userID string, limit int) ([]Record, error)
}
