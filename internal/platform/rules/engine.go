package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/db"
)

// Engine runs the reference checks and cascades against PostgreSQL. Every
// method expects the caller's transaction in ctx.
type Engine struct {
	logger zerolog.Logger
}

func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger.With().Str("component", "rules").Logger()}
}

func txFrom(ctx context.Context) (pgx.Tx, error) {
	tx := db.TxFromContext(ctx)
	if tx == nil {
		return nil, apperr.Internal("consistency check requires a transaction", nil)
	}
	return tx, nil
}

// RequirePatient checks that patient id exists and keeps it from being deleted
// until the transaction ends. entity and field name the referencing side.
func (e *Engine) RequirePatient(ctx context.Context, entity, field, id string) error {
	tx, err := txFrom(ctx)
	if err != nil {
		return err
	}
	var found string
	err = tx.QueryRow(ctx, `SELECT id FROM patients WHERE id = $1 FOR KEY SHARE`, id).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ForeignKey(entity, field, "patient", id)
	}
	if err != nil {
		return fmt.Errorf("check patient %s: %w", id, err)
	}
	return nil
}

// DoctorRef is what a booking needs to know about the referenced doctor.
type DoctorRef struct {
	ID     string
	Status DoctorStatus
}

// RequireDoctor resolves doctor id under a key-share lock.
func (e *Engine) RequireDoctor(ctx context.Context, entity, field, id string) (DoctorRef, error) {
	tx, err := txFrom(ctx)
	if err != nil {
		return DoctorRef{}, err
	}
	ref := DoctorRef{ID: id}
	err = tx.QueryRow(ctx, `SELECT status FROM doctors WHERE id = $1 FOR KEY SHARE`, id).Scan(&ref.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return DoctorRef{}, apperr.ForeignKey(entity, field, "doctor", id)
	}
	if err != nil {
		return DoctorRef{}, fmt.Errorf("check doctor %s: %w", id, err)
	}
	return ref, nil
}

// AppointmentRef is what a bill needs to know about the referenced appointment.
type AppointmentRef struct {
	ID        string
	PatientID string
	DoctorID  string
	Status    AppointmentStatus
}

// RequireAppointment resolves appointment id under a key-share lock.
func (e *Engine) RequireAppointment(ctx context.Context, entity, field, id string) (AppointmentRef, error) {
	tx, err := txFrom(ctx)
	if err != nil {
		return AppointmentRef{}, err
	}
	ref := AppointmentRef{ID: id}
	err = tx.QueryRow(ctx,
		`SELECT patient_id, doctor_id, status FROM appointments WHERE id = $1 FOR KEY SHARE`, id,
	).Scan(&ref.PatientID, &ref.DoctorID, &ref.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return AppointmentRef{}, apperr.ForeignKey(entity, field, "appointment", id)
	}
	if err != nil {
		return AppointmentRef{}, fmt.Errorf("check appointment %s: %w", id, err)
	}
	return ref, nil
}

// CountAppointmentBills returns how many bills reference appointment id.
// Callers that hold the appointment row lock see a stable count, since a new
// bill must key-share lock the appointment first.
func (e *Engine) CountAppointmentBills(ctx context.Context, id string) (int, error) {
	tx, err := txFrom(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM bills WHERE appointment_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count bills of appointment %s: %w", id, err)
	}
	return n, nil
}

// Cascade reports what a delete removed or detached besides its target.
type Cascade struct {
	Appointments int64 `json:"appointments"`
	Bills        int64 `json:"bills"`
	BillItems    int64 `json:"bill_items"`
	DetachedBill int64 `json:"detached_bills"`
}

func (c Cascade) empty() bool {
	return c == Cascade{}
}

// CascadePatient removes everything that dies with patient id: its bills and
// their items, and its appointments. Bills of other patients that point at one
// of those appointments are detached first. The patient row itself is left for
// the caller to delete.
func (e *Engine) CascadePatient(ctx context.Context, id string) (Cascade, error) {
	tx, err := txFrom(ctx)
	if err != nil {
		return Cascade{}, err
	}
	var c Cascade

	tag, err := tx.Exec(ctx,
		`DELETE FROM bill_items WHERE bill_id IN (SELECT id FROM bills WHERE patient_id = $1)`, id)
	if err != nil {
		return c, fmt.Errorf("cascade bill items of patient %s: %w", id, err)
	}
	c.BillItems = tag.RowsAffected()

	if tag, err = tx.Exec(ctx, `DELETE FROM bills WHERE patient_id = $1`, id); err != nil {
		return c, fmt.Errorf("cascade bills of patient %s: %w", id, err)
	}
	c.Bills = tag.RowsAffected()

	if tag, err = tx.Exec(ctx,
		`UPDATE bills SET appointment_id = NULL, updated_at = NOW()
		 WHERE appointment_id IN (SELECT id FROM appointments WHERE patient_id = $1)`, id); err != nil {
		return c, fmt.Errorf("detach bills from appointments of patient %s: %w", id, err)
	}
	c.DetachedBill = tag.RowsAffected()

	if tag, err = tx.Exec(ctx, `DELETE FROM appointments WHERE patient_id = $1`, id); err != nil {
		return c, fmt.Errorf("cascade appointments of patient %s: %w", id, err)
	}
	c.Appointments = tag.RowsAffected()

	e.log("patient", id, c)
	return c, nil
}

// CascadeDoctor removes the appointments of doctor id, detaching any bills
// that referenced them.
func (e *Engine) CascadeDoctor(ctx context.Context, id string) (Cascade, error) {
	tx, err := txFrom(ctx)
	if err != nil {
		return Cascade{}, err
	}
	var c Cascade

	tag, err := tx.Exec(ctx,
		`UPDATE bills SET appointment_id = NULL, updated_at = NOW()
		 WHERE appointment_id IN (SELECT id FROM appointments WHERE doctor_id = $1)`, id)
	if err != nil {
		return c, fmt.Errorf("detach bills from appointments of doctor %s: %w", id, err)
	}
	c.DetachedBill = tag.RowsAffected()

	if tag, err = tx.Exec(ctx, `DELETE FROM appointments WHERE doctor_id = $1`, id); err != nil {
		return c, fmt.Errorf("cascade appointments of doctor %s: %w", id, err)
	}
	c.Appointments = tag.RowsAffected()

	e.log("doctor", id, c)
	return c, nil
}

// CascadeAppointment detaches the bills that reference appointment id. Bills
// survive the appointment they were raised for.
func (e *Engine) CascadeAppointment(ctx context.Context, id string) (Cascade, error) {
	tx, err := txFrom(ctx)
	if err != nil {
		return Cascade{}, err
	}
	tag, err := tx.Exec(ctx,
		`UPDATE bills SET appointment_id = NULL, updated_at = NOW() WHERE appointment_id = $1`, id)
	if err != nil {
		return Cascade{}, fmt.Errorf("detach bills from appointment %s: %w", id, err)
	}
	c := Cascade{DetachedBill: tag.RowsAffected()}
	e.log("appointment", id, c)
	return c, nil
}

func (e *Engine) log(entity, id string, c Cascade) {
	if c.empty() {
		return
	}
	e.logger.Info().
		Str("entity_type", entity).
		Str("entity_id", id).
		Int64("appointments", c.Appointments).
		Int64("bills", c.Bills).
		Int64("bill_items", c.BillItems).
		Int64("detached_bills", c.DetachedBill).
		Msg("cascade applied")
}
