package billing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/audit"
	"github.com/medicorex/hms/internal/platform/db"
	"github.com/medicorex/hms/internal/platform/idgen"
	"github.com/medicorex/hms/internal/platform/rules"
)

// Rules is the part of the consistency engine bills depend on.
type Rules interface {
	RequirePatient(ctx context.Context, entity, field, id string) error
	RequireAppointment(ctx context.Context, entity, field, id string) (rules.AppointmentRef, error)
}

type Service struct {
	tx    db.Transactor
	repo  Repository
	ids   idgen.Generator
	rules Rules
	audit audit.Recorder
}

func NewService(tx db.Transactor, repo Repository, ids idgen.Generator, r Rules, rec audit.Recorder) *Service {
	return &Service{tx: tx, repo: repo, ids: ids, rules: r, audit: rec}
}

// requireAppointment resolves appointmentID and checks it was booked for
// patientID.
func (s *Service) requireAppointment(ctx context.Context, id, patientID, appointmentID string) error {
	ref, err := s.rules.RequireAppointment(ctx, entity, "appointment_id", appointmentID)
	if err != nil {
		return err
	}
	if ref.PatientID != patientID {
		return apperr.Validation(entity, "appointment_id",
			"appointment %s belongs to patient %s, not %s", appointmentID, ref.PatientID, patientID).WithID(id)
	}
	return nil
}

// Create raises a bill. Amounts are derived and checked before anything is
// written; the patient and appointment are resolved inside the transaction.
func (s *Service) Create(ctx context.Context, d *Draft) (*Bill, error) {
	b := &Bill{
		PatientID:     d.PatientID,
		AppointmentID: normalizeText(d.AppointmentID),
		Status:        d.Status,
		PaymentMethod: d.PaymentMethod,
		Notes:         normalizeText(d.Notes),
	}
	if b.Status == "" {
		b.Status = rules.BillPending
	}
	if d.BillDate != nil {
		b.BillDate = *d.BillDate
	}
	if b.PatientID == "" {
		return nil, apperr.Validation(entity, "patient_id", "is required")
	}
	if err := checkPayment("", b.Status, b.PaymentMethod); err != nil {
		return nil, err
	}

	items, err := validateItems("", d.Items)
	if err != nil {
		return nil, err
	}
	b.Items = items
	discount := decimal.Zero
	if d.Discount != nil {
		discount = *d.Discount
	}
	amounts, err := pricing{
		items:    b.itemAmounts(),
		subtotal: d.Subtotal,
		discount: discount,
		tax:      d.Tax,
		taxRate:  d.TaxRate,
		total:    d.TotalAmount,
	}.derive("")
	if err != nil {
		return nil, err
	}
	b.setAmounts(amounts)

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.rules.RequirePatient(ctx, entity, "patient_id", b.PatientID); err != nil {
			return err
		}
		if b.AppointmentID != nil {
			if err := s.requireAppointment(ctx, "", b.PatientID, *b.AppointmentID); err != nil {
				return err
			}
		}
		id, err := s.ids.Next(ctx, idgen.Bill)
		if err != nil {
			return err
		}
		b.ID = id
		if err := s.repo.Create(ctx, b); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.ActionInsert, entity, b.ID, nil, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Bill, error) {
	if !idgen.Valid(idgen.Bill, id) {
		return nil, apperr.NotFound(entity, id)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Bill, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Validation(entity, "status", "unknown status %q", f.Status)
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, 0, apperr.Validation(entity, "to", "must not be before from")
	}
	return s.repo.List(ctx, f)
}

// Outstanding lists bills that are not fully paid, newest first.
func (s *Service) Outstanding(ctx context.Context, limit, offset int) ([]*Bill, int, error) {
	return s.repo.List(ctx, Filter{
		Statuses: []rules.BillStatus{rules.BillPending, rules.BillPartial},
		Limit:    limit,
		Offset:   offset,
	})
}

// ByPatient lists the bills of one patient, newest first. A malformed id is
// reported as not found rather than listing nothing.
func (s *Service) ByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Bill, int, error) {
	if !idgen.Valid(idgen.Patient, patientID) {
		return nil, 0, apperr.NotFound("patient", patientID)
	}
	return s.repo.List(ctx, Filter{PatientID: patientID, Limit: limit, Offset: offset})
}

func (s *Service) ByAppointment(ctx context.Context, appointmentID string) ([]*Bill, error) {
	if !idgen.Valid(idgen.Appointment, appointmentID) {
		return nil, apperr.NotFound("appointment", appointmentID)
	}
	items, _, err := s.repo.List(ctx, Filter{AppointmentID: appointmentID})
	return items, err
}

// Update applies patch. Any change to the money fields re-derives the total;
// a non-nil Items replaces the line items and with them the subtotal.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Bill, error) {
	if patch.Empty() {
		return s.Get(ctx, id)
	}

	var after *Bill
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		before, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		after = before.clone()

		if patch.Items != nil {
			items, err := validateItems(id, *patch.Items)
			if err != nil {
				return err
			}
			after.Items = items
		}
		if patch.touchesAmounts() {
			p := pricing{
				items:    after.itemAmounts(),
				subtotal: patch.Subtotal,
				discount: after.Discount,
				tax:      patch.Tax,
				taxRate:  patch.TaxRate,
				total:    patch.TotalAmount,
			}
			if p.subtotal == nil && len(p.items) == 0 {
				p.subtotal = &after.Subtotal
			}
			if patch.Discount != nil {
				p.discount = *patch.Discount
			}
			if p.tax == nil && p.taxRate == nil {
				p.tax = &after.Tax
			}
			amounts, err := p.derive(id)
			if err != nil {
				return err
			}
			after.setAmounts(amounts)
		}

		if patch.Status != nil {
			if err := rules.CheckBillTransition(id, before.Status, *patch.Status); err != nil {
				return err
			}
			after.Status = *patch.Status
		}
		if patch.PaymentMethod != nil {
			m := *patch.PaymentMethod
			after.PaymentMethod = &m
			if m == "" {
				after.PaymentMethod = nil
			}
		}
		if patch.Notes != nil {
			after.Notes = normalizeText(patch.Notes)
		}
		if err := checkPayment(id, after.Status, after.PaymentMethod); err != nil {
			return err
		}

		if patch.AppointmentID != nil {
			after.AppointmentID = normalizeText(patch.AppointmentID)
			if after.AppointmentID != nil && !sameRef(before.AppointmentID, after.AppointmentID) {
				if err := s.requireAppointment(ctx, id, after.PatientID, *after.AppointmentID); err != nil {
					return err
				}
			}
		}

		if err := s.repo.Update(ctx, after); err != nil {
			return err
		}
		if patch.Items != nil {
			if err := s.repo.ReplaceItems(ctx, after); err != nil {
				return err
			}
		}
		return s.audit.Record(ctx, audit.ActionUpdate, entity, id, before, after)
	})
	if err != nil {
		return nil, err
	}
	return after, nil
}

// MarkPaid settles the bill with method. Paying an already paid bill is a
// no-op.
func (s *Service) MarkPaid(ctx context.Context, id string, method PaymentMethod) (*Bill, error) {
	if !method.Valid() {
		return nil, apperr.Validation(entity, "payment_method", "unknown payment method %q", method).WithID(id)
	}
	var after *Bill
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		before, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		after = before
		if before.Status == rules.BillPaid {
			return nil
		}
		if err := rules.CheckBillTransition(id, before.Status, rules.BillPaid); err != nil {
			return err
		}
		after = before.clone()
		after.Status = rules.BillPaid
		after.PaymentMethod = &method
		if err := s.repo.Update(ctx, after); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.ActionUpdate, entity, id, before, after)
	})
	if err != nil {
		return nil, err
	}
	return after, nil
}

// Delete removes the bill and its line items.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		before, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.ActionDelete, entity, id, before, nil)
	})
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
