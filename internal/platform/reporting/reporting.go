// Package reporting derives read models from the entity tables: per-patient
// and per-doctor aggregates, monthly revenue and the dashboard statistics.
//
// Nothing here is stored. Every call recomputes from the base tables inside a
// REPEATABLE READ, READ ONLY transaction so one report sees one consistent
// snapshot and never blocks writers.
package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/db"
	"github.com/medicorex/hms/internal/platform/idgen"
)

var dialect = goqu.Dialect("postgres")

const dateLayout = "2006-01-02"

// Snapshotter runs fn inside a read-only snapshot transaction.
type Snapshotter interface {
	InSnapshot(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	snap Snapshotter
	pool db.Querier
	now  func() time.Time
}

func NewService(snap Snapshotter, pool db.Querier) *Service {
	return &Service{snap: snap, pool: pool, now: time.Now}
}

func (s *Service) query(ctx context.Context, ds *goqu.SelectDataset) (pgx.Rows, error) {
	sql, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build report query: %w", err)
	}
	return db.Conn(ctx, s.pool).Query(ctx, sql, args...)
}

func (s *Service) queryRow(ctx context.Context, ds *goqu.SelectDataset, dest ...any) error {
	sql, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build report query: %w", err)
	}
	return db.Conn(ctx, s.pool).QueryRow(ctx, sql, args...).Scan(dest...)
}

// PatientSummary is one patient's appointment history in brief.
type PatientSummary struct {
	PatientID         string  `json:"patient_id"`
	Name              string  `json:"name"`
	TotalAppointments int     `json:"total_appointments"`
	LastAppointmentID *string `json:"last_appointment_id"`
	LastAppointment   *string `json:"last_appointment_date"`
}

func patientSummaryQuery() *goqu.SelectDataset {
	return dialect.From(goqu.T("patients").As("p")).
		LeftJoin(goqu.T("appointments").As("a"), goqu.On(goqu.I("a.patient_id").Eq(goqu.I("p.id")))).
		Select(
			goqu.I("p.id"),
			goqu.I("p.name"),
			goqu.COUNT(goqu.I("a.id")),
			goqu.L(`(SELECT x.id FROM appointments x WHERE x.patient_id = p.id
				ORDER BY x.appointment_date DESC, x.appointment_time DESC, x.id DESC LIMIT 1)`),
			goqu.L(`to_char(MAX(a.appointment_date), 'YYYY-MM-DD')`),
		).
		GroupBy(goqu.I("p.id"), goqu.I("p.name"))
}

func scanPatientSummary(row pgx.Row) (PatientSummary, error) {
	var ps PatientSummary
	err := row.Scan(&ps.PatientID, &ps.Name, &ps.TotalAppointments, &ps.LastAppointmentID, &ps.LastAppointment)
	return ps, err
}

// PatientSummaries lists every patient's summary ordered by patient id.
func (s *Service) PatientSummaries(ctx context.Context, limit, offset int) ([]PatientSummary, int, error) {
	var out []PatientSummary
	var total int
	err := s.snap.InSnapshot(ctx, func(ctx context.Context) error {
		if err := s.queryRow(ctx, dialect.From("patients").Select(goqu.COUNT("*")), &total); err != nil {
			return fmt.Errorf("count patients: %w", err)
		}
		ds := patientSummaryQuery().Order(goqu.I("p.id").Asc())
		if limit > 0 {
			ds = ds.Limit(uint(limit))
		}
		if offset > 0 {
			ds = ds.Offset(uint(offset))
		}
		rows, err := s.query(ctx, ds)
		if err != nil {
			return fmt.Errorf("patient summaries: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			ps, err := scanPatientSummary(rows)
			if err != nil {
				return fmt.Errorf("scan patient summary: %w", err)
			}
			out = append(out, ps)
		}
		return rows.Err()
	})
	return out, total, err
}

func (s *Service) PatientSummary(ctx context.Context, patientID string) (*PatientSummary, error) {
	if !idgen.Valid(idgen.Patient, patientID) {
		return nil, apperr.NotFound("patient", patientID)
	}
	var ps PatientSummary
	err := s.snap.InSnapshot(ctx, func(ctx context.Context) error {
		sql, args, err := patientSummaryQuery().Where(goqu.I("p.id").Eq(patientID)).Prepared(true).ToSQL()
		if err != nil {
			return fmt.Errorf("build report query: %w", err)
		}
		ps, err = scanPatientSummary(db.Conn(ctx, s.pool).QueryRow(ctx, sql, args...))
		if err != nil {
			if apperr.IsKind(db.Classify(err, "patient"), apperr.KindNotFound) {
				return apperr.NotFound("patient", patientID)
			}
			return fmt.Errorf("patient summary %s: %w", patientID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ps, nil
}

// DoctorPerformance counts a doctor's appointments and sums the bills raised
// for them, whatever their payment status.
type DoctorPerformance struct {
	DoctorID       string          `json:"doctor_id"`
	Name           string          `json:"name"`
	Specialization string          `json:"specialization"`
	Appointments   int             `json:"total_appointments"`
	Completed      int             `json:"completed_appointments"`
	CompletionRate decimal.Decimal `json:"completion_rate"`
	Revenue        decimal.Decimal `json:"total_revenue"`
}

func doctorPerformanceQuery() *goqu.SelectDataset {
	return dialect.From(goqu.T("doctors").As("d")).
		LeftJoin(goqu.T("appointments").As("a"), goqu.On(goqu.I("a.doctor_id").Eq(goqu.I("d.id")))).
		Select(
			goqu.I("d.id"),
			goqu.I("d.name"),
			goqu.I("d.specialization"),
			goqu.COUNT(goqu.I("a.id")),
			goqu.L("COUNT(a.id) FILTER (WHERE a.status = ?)", "completed"),
			goqu.L(`COALESCE((SELECT SUM(b.total_amount) FROM bills b
				JOIN appointments ba ON ba.id = b.appointment_id
				WHERE ba.doctor_id = d.id), 0)`),
		).
		GroupBy(goqu.I("d.id"), goqu.I("d.name"), goqu.I("d.specialization"))
}

func scanDoctorPerformance(row pgx.Row) (DoctorPerformance, error) {
	var dp DoctorPerformance
	if err := row.Scan(&dp.DoctorID, &dp.Name, &dp.Specialization, &dp.Appointments, &dp.Completed, &dp.Revenue); err != nil {
		return dp, err
	}
	dp.CompletionRate = CompletionRate(dp.Completed, dp.Appointments)
	return dp, nil
}

// CompletionRate is completed/total as a percentage with two decimals, zero
// when there are no appointments.
func CompletionRate(completed, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(completed)).Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(total)), 2)
}

// DoctorPerformances lists every doctor's performance, busiest first.
func (s *Service) DoctorPerformances(ctx context.Context) ([]DoctorPerformance, error) {
	var out []DoctorPerformance
	err := s.snap.InSnapshot(ctx, func(ctx context.Context) error {
		rows, err := s.query(ctx, doctorPerformanceQuery().Order(goqu.L("4").Desc(), goqu.I("d.id").Asc()))
		if err != nil {
			return fmt.Errorf("doctor performance: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			dp, err := scanDoctorPerformance(rows)
			if err != nil {
				return fmt.Errorf("scan doctor performance: %w", err)
			}
			out = append(out, dp)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Service) DoctorPerformance(ctx context.Context, doctorID string) (*DoctorPerformance, error) {
	if !idgen.Valid(idgen.Doctor, doctorID) {
		return nil, apperr.NotFound("doctor", doctorID)
	}
	var dp DoctorPerformance
	err := s.snap.InSnapshot(ctx, func(ctx context.Context) error {
		sql, args, err := doctorPerformanceQuery().Where(goqu.I("d.id").Eq(doctorID)).Prepared(true).ToSQL()
		if err != nil {
			return fmt.Errorf("build report query: %w", err)
		}
		dp, err = scanDoctorPerformance(db.Conn(ctx, s.pool).QueryRow(ctx, sql, args...))
		if err != nil {
			if apperr.IsKind(db.Classify(err, "doctor"), apperr.KindNotFound) {
				return apperr.NotFound("doctor", doctorID)
			}
			return fmt.Errorf("doctor performance %s: %w", doctorID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dp, nil
}

// MonthlyRevenue aggregates the bills dated in one calendar month.
type MonthlyRevenue struct {
	Month     string          `json:"month"`
	Billed    decimal.Decimal `json:"billed"`
	Revenue   decimal.Decimal `json:"revenue"`
	Bills     int             `json:"bill_count"`
	PaidBills int             `json:"paid_bill_count"`
}

const DefaultMonths = 12

// Revenue returns up to months calendar months that have bills, newest first.
func (s *Service) Revenue(ctx context.Context, months int) ([]MonthlyRevenue, error) {
	if months <= 0 {
		months = DefaultMonths
	}
	var out []MonthlyRevenue
	err := s.snap.InSnapshot(ctx, func(ctx context.Context) error {
		ds := dialect.From("bills").
			Select(
				goqu.L(`to_char(date_trunc('month', bill_date), 'YYYY-MM')`),
				goqu.COALESCE(goqu.SUM("total_amount"), 0),
				goqu.L("COALESCE(SUM(total_amount) FILTER (WHERE status = ?), 0)", "paid"),
				goqu.COUNT("*"),
				goqu.L("COUNT(*) FILTER (WHERE status = ?)", "paid"),
			).
			GroupBy(goqu.L("1")).
			Order(goqu.L("1").Desc()).
			Limit(uint(months))
		rows, err := s.query(ctx, ds)
		if err != nil {
			return fmt.Errorf("monthly revenue: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var m MonthlyRevenue
			if err := rows.Scan(&m.Month, &m.Billed, &m.Revenue, &m.Bills, &m.PaidBills); err != nil {
				return fmt.Errorf("scan monthly revenue: %w", err)
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	return out, err
}
