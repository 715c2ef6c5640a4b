package scheduling

import "context"

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id string) (*Appointment, error)
	GetForUpdate(ctx context.Context, id string) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f Filter) ([]*Appointment, int, error)
}
