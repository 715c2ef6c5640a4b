package doctor

import (
	"context"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/audit"
	"github.com/medicorex/hms/internal/platform/db"
	"github.com/medicorex/hms/internal/platform/idgen"
	"github.com/medicorex/hms/internal/platform/rules"
)

// Cascader removes the appointments of a deleted doctor.
type Cascader interface {
	CascadeDoctor(ctx context.Context, id string) (rules.Cascade, error)
}

type Service struct {
	tx      db.Transactor
	repo    Repository
	ids     idgen.Generator
	cascade Cascader
	audit   audit.Recorder
}

func NewService(tx db.Transactor, repo Repository, ids idgen.Generator, cascade Cascader, rec audit.Recorder) *Service {
	return &Service{tx: tx, repo: repo, ids: ids, cascade: cascade, audit: rec}
}

func (s *Service) Create(ctx context.Context, in *Doctor) (*Doctor, error) {
	d := *in
	d.Normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		id, err := s.ids.Next(ctx, idgen.Doctor)
		if err != nil {
			return err
		}
		d.ID = id
		if err := s.repo.Create(ctx, &d); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.ActionInsert, entity, d.ID, nil, &d)
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Doctor, error) {
	if !idgen.Valid(idgen.Doctor, id) {
		return nil, apperr.NotFound(entity, id)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Doctor, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Validation(entity, "status", "unknown status %q", f.Status)
	}
	return s.repo.List(ctx, f)
}

// Active lists doctors currently accepting appointments.
func (s *Service) Active(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.repo.List(ctx, Filter{Status: rules.DoctorActive, Limit: limit, Offset: offset})
}

func (s *Service) Specializations(ctx context.Context) ([]SpecializationCount, error) {
	return s.repo.Specializations(ctx)
}

func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Doctor, error) {
	if patch.Empty() {
		return s.Get(ctx, id)
	}

	var after Doctor
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		before, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		after = *before
		patch.Apply(&after)
		after.Normalize()
		if err := after.Validate(); err != nil {
			return apperr.WithEntityID(err, id)
		}
		if err := s.repo.Update(ctx, &after); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.ActionUpdate, entity, id, before, &after)
	})
	if err != nil {
		return nil, err
	}
	return &after, nil
}

// Delete removes the doctor and every appointment booked with them. Bills
// raised for those appointments stay with the patient, detached.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		before, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.cascade.CascadeDoctor(ctx, id); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.ActionDelete, entity, id, before, nil)
	})
}
