package doctor

import "context"

type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id string) (*Doctor, error)
	GetForUpdate(ctx context.Context, id string) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f Filter) ([]*Doctor, int, error)
	Specializations(ctx context.Context) ([]SpecializationCount, error)
}
