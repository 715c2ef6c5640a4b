package scheduling

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/db"
)

var dialect = goqu.Dialect("postgres")

// activeSlotIndex is the partial unique index over live bookings.
const activeSlotIndex = "uq_appointments_active_slot"

type repoPG struct {
	pool db.Querier
}

func NewRepoPG(pool db.Querier) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

// Dates and times travel as text so no timezone conversion applies.
const appointmentCols = `id, patient_id, doctor_id,
	to_char(appointment_date, 'YYYY-MM-DD'), to_char(appointment_time, 'HH24:MI'),
	reason, status, notes, created_at, updated_at`

var appointmentColList = []any{
	"id", "patient_id", "doctor_id",
	goqu.L("to_char(appointment_date, 'YYYY-MM-DD')"),
	goqu.L("to_char(appointment_time, 'HH24:MI')"),
	"reason", "status", "notes", "created_at", "updated_at",
}

func classify(err error, a *Appointment) error {
	if db.IsUniqueViolation(err, activeSlotIndex) {
		return apperr.SlotUnavailable(a.DoctorID, a.Date, a.Time)
	}
	return db.Classify(err, entity)
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, appointment_date, appointment_time, reason, status, notes)
		VALUES ($1, $2, $3, $4::date, $5::time, $6, $7, $8)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.Date, a.Time, a.Reason, string(a.Status), a.Notes,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return classify(err, a)
	}
	return nil
}

func (r *repoPG) get(ctx context.Context, query, id string) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if apperr.IsKind(db.Classify(err, entity), apperr.KindNotFound) {
			return nil, apperr.NotFound(entity, id)
		}
		return nil, fmt.Errorf("get appointment %s: %w", id, err)
	}
	return a, nil
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*Appointment, error) {
	return r.get(ctx, `SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id string) (*Appointment, error) {
	return r.get(ctx, `SELECT `+appointmentCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET
			patient_id=$2, doctor_id=$3, appointment_date=$4::date, appointment_time=$5::time,
			reason=$6, status=$7, notes=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.Date, a.Time, a.Reason, string(a.Status), a.Notes,
	).Scan(&a.UpdatedAt)
	if err != nil {
		err = classify(err, a)
		if apperr.IsKind(err, apperr.KindNotFound) {
			return apperr.NotFound(entity, a.ID)
		}
		return err
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

func filterExprs(f Filter) []exp.Expression {
	var where []exp.Expression
	if f.PatientID != "" {
		where = append(where, goqu.C("patient_id").Eq(f.PatientID))
	}
	if f.DoctorID != "" {
		where = append(where, goqu.C("doctor_id").Eq(f.DoctorID))
	}
	if f.Status != "" {
		where = append(where, goqu.C("status").Eq(string(f.Status)))
	}
	if len(f.Statuses) > 0 {
		in := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			in[i] = string(s)
		}
		where = append(where, goqu.C("status").In(in))
	}
	if f.From != "" {
		where = append(where, goqu.L("appointment_date >= ?::date", f.From))
	}
	if f.To != "" {
		where = append(where, goqu.L("appointment_date <= ?::date", f.To))
	}
	if f.Time != "" {
		where = append(where, goqu.L("appointment_time = ?::time", f.Time))
	}
	return where
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Appointment, int, error) {
	where := filterExprs(f)

	countSQL, countArgs, err := dialect.From("appointments").Prepared(true).
		Select(goqu.COUNT("*")).Where(where...).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build appointment count: %w", err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	order := []exp.OrderedExpression{
		goqu.C("appointment_date").Desc(), goqu.C("appointment_time").Desc(), goqu.C("id").Desc(),
	}
	if f.Ascending {
		order = []exp.OrderedExpression{
			goqu.C("appointment_date").Asc(), goqu.C("appointment_time").Asc(), goqu.C("id").Asc(),
		}
	}
	ds := dialect.From("appointments").Prepared(true).
		Select(appointmentColList...).
		Where(where...).
		Order(order...)
	if f.Limit > 0 {
		ds = ds.Limit(uint(f.Limit))
	}
	if f.Offset > 0 {
		ds = ds.Offset(uint(f.Offset))
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build appointment listing: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan appointment: %w", err)
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.Date, &a.Time,
		&a.Reason, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
