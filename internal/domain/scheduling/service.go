package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/audit"
	"github.com/medicorex/hms/internal/platform/db"
	"github.com/medicorex/hms/internal/platform/idgen"
	"github.com/medicorex/hms/internal/platform/rules"
)

// Rules is the part of the consistency engine bookings depend on.
type Rules interface {
	RequirePatient(ctx context.Context, entity, field, id string) error
	RequireDoctor(ctx context.Context, entity, field, id string) (rules.DoctorRef, error)
	CascadeAppointment(ctx context.Context, id string) (rules.Cascade, error)
	CountAppointmentBills(ctx context.Context, id string) (int, error)
}

type Service struct {
	tx    db.Transactor
	repo  Repository
	ids   idgen.Generator
	rules Rules
	audit audit.Recorder
	now   func() time.Time
}

func NewService(tx db.Transactor, repo Repository, ids idgen.Generator, r Rules, rec audit.Recorder) *Service {
	return &Service{tx: tx, repo: repo, ids: ids, rules: r, audit: rec, now: time.Now}
}

// requireBookableDoctor resolves the doctor and insists they are Active.
func (s *Service) requireBookableDoctor(ctx context.Context, id string) error {
	doc, err := s.rules.RequireDoctor(ctx, entity, "doctor_id", id)
	if err != nil {
		return err
	}
	if doc.Status != rules.DoctorActive {
		return apperr.Validation(entity, "doctor_id", "doctor %s is %s and cannot take appointments", id, doc.Status)
	}
	return nil
}

// Book creates an appointment. The patient must exist, the doctor must exist
// and be Active, and a pending or confirmed booking may not share the
// doctor's slot with another one.
func (s *Service) Book(ctx context.Context, in *Appointment) (*Appointment, error) {
	a := *in
	a.Normalize()
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if !a.Status.Active() {
		return nil, apperr.Validation(entity, "status", "a new appointment must be pending or confirmed, got %q", a.Status)
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.rules.RequirePatient(ctx, entity, "patient_id", a.PatientID); err != nil {
			return err
		}
		if err := s.requireBookableDoctor(ctx, a.DoctorID); err != nil {
			return err
		}
		id, err := s.ids.Next(ctx, idgen.Appointment)
		if err != nil {
			return err
		}
		a.ID = id
		if err := s.repo.Create(ctx, &a); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.ActionInsert, entity, a.ID, nil, &a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	if !idgen.Valid(idgen.Appointment, id) {
		return nil, apperr.NotFound(entity, id)
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Appointment, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Validation(entity, "status", "unknown status %q", f.Status)
	}
	for _, d := range []struct{ field, v string }{{"from", f.From}, {"to", f.To}} {
		if d.v == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, d.v); err != nil {
			return nil, 0, apperr.Validation(entity, d.field, "expected YYYY-MM-DD, got %q", d.v)
		}
	}
	return s.repo.List(ctx, f)
}

// Upcoming lists pending and confirmed appointments from today on, soonest
// first. doctorID and patientID narrow the list when set.
func (s *Service) Upcoming(ctx context.Context, doctorID, patientID string, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.List(ctx, Filter{
		DoctorID:  doctorID,
		PatientID: patientID,
		Statuses:  []rules.AppointmentStatus{rules.AppointmentPending, rules.AppointmentConfirmed},
		From:      s.now().Format(DateLayout),
		Limit:     limit,
		Offset:    offset,
		Ascending: true,
	})
}

// OnDate lists every appointment on date in clock order.
func (s *Service) OnDate(ctx context.Context, date string) ([]*Appointment, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, apperr.Validation(entity, "date", "expected YYYY-MM-DD, got %q", date)
	}
	items, _, err := s.repo.List(ctx, Filter{From: date, To: date, Ascending: true})
	return items, err
}

// CheckAvailability reports whether doctorID could be booked at date and
// clock. A doctor who is not Active is never available; otherwise the slot
// is free unless a pending or confirmed appointment holds it.
func (s *Service) CheckAvailability(ctx context.Context, doctorID, date, clock string) (*Availability, error) {
	if doctorID == "" {
		return nil, apperr.Validation(entity, "doctor_id", "is required")
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, apperr.Validation(entity, "date", "expected YYYY-MM-DD, got %q", date)
	}
	t, err := ParseClock(clock)
	if err != nil {
		return nil, apperr.Validation(entity, "time", "expected HH:MM, got %q", clock)
	}
	if !idgen.Valid(idgen.Doctor, doctorID) {
		return nil, apperr.NotFound("doctor", doctorID)
	}

	av := &Availability{DoctorID: doctorID, Date: date, Time: t.Format(TimeLayout)}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		doc, err := s.rules.RequireDoctor(ctx, entity, "doctor_id", doctorID)
		if apperr.IsKind(err, apperr.KindForeignKey) {
			return apperr.NotFound("doctor", doctorID)
		}
		if err != nil {
			return err
		}
		if doc.Status != rules.DoctorActive {
			av.Reason = fmt.Sprintf("doctor is %s", doc.Status)
			return nil
		}
		held, _, err := s.repo.List(ctx, Filter{
			DoctorID: doctorID,
			Statuses: []rules.AppointmentStatus{rules.AppointmentPending, rules.AppointmentConfirmed},
			From:     av.Date,
			To:       av.Date,
			Time:     av.Time,
			Limit:    1,
		})
		if err != nil {
			return err
		}
		if len(held) > 0 {
			av.Reason = fmt.Sprintf("slot is held by appointment %s", held[0].ID)
			return nil
		}
		av.Available = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return av, nil
}

// Update applies patch. A status change must be a legal transition; a change
// of patient or doctor re-resolves the reference. A completed or cancelled
// appointment keeps its patient, doctor and slot, and an appointment that has
// been billed keeps its patient.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Appointment, error) {
	if patch.Empty() {
		return s.Get(ctx, id)
	}

	var after Appointment
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
		if err := rules.CheckAppointmentTransition(id, before.Status, after.Status); err != nil {
			return err
		}
		if field := movedField(&after, before); field != "" && before.Status.Terminal() {
			return apperr.Validation(entity, field, "appointment %s is %s and can no longer be moved", id, before.Status).WithID(id)
		}
		if after.PatientID != before.PatientID {
			n, err := s.rules.CountAppointmentBills(ctx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return apperr.Validation(entity, "patient_id", "appointment %s is billed to patient %s (%d bills)", id, before.PatientID, n).WithID(id)
			}
			if err := s.rules.RequirePatient(ctx, entity, "patient_id", after.PatientID); err != nil {
				return err
			}
		}
		if after.DoctorID != before.DoctorID {
			if err := s.requireBookableDoctor(ctx, after.DoctorID); err != nil {
				return err
			}
		}
		if after.sameContent(before) {
			return nil
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

// Transition moves the appointment to status to. Moving to the current
// status is a no-op and writes nothing.
func (s *Service) Transition(ctx context.Context, id string, to rules.AppointmentStatus) (*Appointment, error) {
	var after Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		before, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		after = *before
		if err := rules.CheckAppointmentTransition(id, before.Status, to); err != nil {
			return err
		}
		if before.Status == to {
			return nil
		}
		after.Status = to
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

func (s *Service) Confirm(ctx context.Context, id string) (*Appointment, error) {
	return s.Transition(ctx, id, rules.AppointmentConfirmed)
}

func (s *Service) Complete(ctx context.Context, id string) (*Appointment, error) {
	return s.Transition(ctx, id, rules.AppointmentCompleted)
}

func (s *Service) Cancel(ctx context.Context, id string) (*Appointment, error) {
	return s.Transition(ctx, id, rules.AppointmentCancelled)
}

// Delete removes the appointment. Bills raised for it lose the reference but
// are kept.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		before, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.rules.CascadeAppointment(ctx, id); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.ActionDelete, entity, id, before, nil)
	})
}
