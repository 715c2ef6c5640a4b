package audit

import "context"

// Repository reads the audit log. There is deliberately no write method:
// entries are only produced by a Recorder inside a mutation's transaction.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Entry, error)
	List(ctx context.Context, f Filter) ([]*Entry, int, error)
}
