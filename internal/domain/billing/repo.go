package billing

import "context"

// Repository persists bills and their line items. Reads return the bill with
// its items in insertion order.
type Repository interface {
	Create(ctx context.Context, b *Bill) error
	GetByID(ctx context.Context, id string) (*Bill, error)
	GetForUpdate(ctx context.Context, id string) (*Bill, error)
	Update(ctx context.Context, b *Bill) error
	ReplaceItems(ctx context.Context, b *Bill) error
	Delete(ctx context.Context, id string) (int, error)
	List(ctx context.Context, f Filter) ([]*Bill, int, error)
}
