package audit

import "context"

// Store persists audit records. List and Get are user-scoped: a record
// belonging to another user is indistinguishable from one that does not
// exist.
type Store interface {
	Append(ctx context.Context, record Record) error
	List(ctx context.Context, userID string, limit, offset int) ([]Record, int, error)
	Get(ctx context.Context, userID, recordID string) (Record, error)
}
