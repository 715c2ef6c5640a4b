package patient

import (
	"context"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/audit"
	"github.com/medicorex/hms/internal/platform/db"
	"github.com/medicorex/hms/internal/platform/idgen"
	"github.com/medicorex/hms/internal/platform/rules"
)

// Cascader removes what dies with a patient.
type Cascader interface {
	CascadePatient(ctx context.Context, id string) (rules.Cascade, error)
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

func (s *Service) Create(ctx context.Context, in *Patient) (*Patient, error) {
	p := *in
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		id, err := s.ids.Next(ctx, idgen.Patient)
		if err != nil {
			return err
		}
		p.ID = id
		if err := s.repo.Create(ctx, &p); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.ActionInsert, entity, p.ID, nil, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Patient, error) {
	if !idgen.Valid(idgen.Patient, id) {
		return nil, apperr.NotFound(entity, id)
	}
	return s.repo.GetByID(ctx, id)
}

// GetByPhone finds the patient registered under phone, which is unique.
func (s *Service) GetByPhone(ctx context.Context, phone string) (*Patient, error) {
	if !rules.ValidPhone(phone) {
		return nil, apperr.Validation(entity, "phone", "must be 10 digits starting with 6-9, got %q", phone)
	}
	return s.repo.GetByPhone(ctx, phone)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Patient, int, error) {
	return s.repo.List(ctx, f)
}

// Update applies patch under a row lock and records the before/after pair.
// An empty patch returns the current row without writing anything.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Patient, error) {
	if patch.Empty() {
		return s.Get(ctx, id)
	}

	var after Patient
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

// Delete removes the patient with its appointments, bills and bill items.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		before, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.cascade.CascadePatient(ctx, id); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.ActionDelete, entity, id, before, nil)
	})
}
