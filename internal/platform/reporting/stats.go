package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/shopspring/decimal"

	"github.com/medicorex/hms/internal/platform/apperr"
)

// countBy returns row counts of table grouped by column. NULL groups are
// skipped.
func (s *Service) countBy(ctx context.Context, table, column string, where ...exp.Expression) (map[string]int, error) {
	conds := append([]exp.Expression{goqu.C(column).IsNotNull()}, where...)
	ds := dialect.From(table).
		Select(goqu.C(column), goqu.COUNT("*")).
		Where(conds...).
		GroupBy(goqu.C(column))
	rows, err := s.query(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("count %s by %s: %w", table, column, err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, fmt.Errorf("scan %s by %s: %w", table, column, err)
		}
		out[k] = n
	}
	return out, rows.Err()
}

func (s *Service) count(ctx context.Context, table string, where ...exp.Expression) (int, error) {
	var n int
	if err := s.queryRow(ctx, dialect.From(table).Select(goqu.COUNT("*")).Where(where...), &n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// NewPatientWindow is how far back a patient counts as new.
const NewPatientWindow = 30 * 24 * time.Hour

type PatientStats struct {
	Total        int            `json:"total_patients"`
	New          int            `json:"new_patients"`
	ByBloodGroup map[string]int `json:"blood_group_distribution"`
	ByGender     map[string]int `json:"gender_distribution"`
}

func (s *Service) patientStats(ctx context.Context) (*PatientStats, error) {
	var st PatientStats
	var err error
	if st.Total, err = s.count(ctx, "patients"); err != nil {
		return nil, err
	}
	if st.New, err = s.count(ctx, "patients", goqu.C("created_at").Gte(s.now().Add(-NewPatientWindow))); err != nil {
		return nil, err
	}
	if st.ByBloodGroup, err = s.countBy(ctx, "patients", "blood_group"); err != nil {
		return nil, err
	}
	if st.ByGender, err = s.countBy(ctx, "patients", "gender"); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Service) PatientStats(ctx context.Context) (st *PatientStats, err error) {
	err = s.snap.InSnapshot(ctx, func(ctx context.Context) error {
		st, err = s.patientStats(ctx)
		return err
	})
	return st, err
}

type DoctorStats struct {
	Total            int             `json:"total_doctors"`
	Active           int             `json:"active_doctors"`
	ByStatus         map[string]int  `json:"status_distribution"`
	BySpecialization map[string]int  `json:"specialization_distribution"`
	AverageFee       decimal.Decimal `json:"average_consultation_fee"`
}

func (s *Service) doctorStats(ctx context.Context) (*DoctorStats, error) {
	var st DoctorStats
	var err error
	if st.ByStatus, err = s.countBy(ctx, "doctors", "status"); err != nil {
		return nil, err
	}
	for status, n := range st.ByStatus {
		st.Total += n
		if status == "Active" {
			st.Active = n
		}
	}
	if st.BySpecialization, err = s.countBy(ctx, "doctors", "specialization"); err != nil {
		return nil, err
	}
	ds := dialect.From("doctors").Select(goqu.L("COALESCE(ROUND(AVG(consultation_fee), 2), 0)"))
	if err := s.queryRow(ctx, ds, &st.AverageFee); err != nil {
		return nil, fmt.Errorf("average consultation fee: %w", err)
	}
	return &st, nil
}

func (s *Service) DoctorStats(ctx context.Context) (st *DoctorStats, err error) {
	err = s.snap.InSnapshot(ctx, func(ctx context.Context) error {
		st, err = s.doctorStats(ctx)
		return err
	})
	return st, err
}

// Range bounds a statistic by date. Empty bounds are open.
type Range struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

func (r Range) validate() error {
	for _, b := range []struct{ field, v string }{{"from", r.From}, {"to", r.To}} {
		if b.v == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, b.v); err != nil {
			return apperr.Validation("report", b.field, "expected YYYY-MM-DD, got %q", b.v)
		}
	}
	if r.From != "" && r.To != "" && r.To < r.From {
		return apperr.Validation("report", "to", "must not be before from")
	}
	return nil
}

// exprs bounds column, a date or timestamp, to the range. The upper bound
// covers the whole To day.
func (r Range) exprs(column string) []exp.Expression {
	var where []exp.Expression
	if r.From != "" {
		where = append(where, goqu.L("? >= ?::date", goqu.C(column), r.From))
	}
	if r.To != "" {
		where = append(where, goqu.L("? < ?::date + 1", goqu.C(column), r.To))
	}
	return where
}

type AppointmentStats struct {
	Range    Range          `json:"range"`
	Total    int            `json:"total_appointments"`
	Today    int            `json:"today_appointments"`
	Upcoming int            `json:"upcoming_appointments"`
	ByStatus map[string]int `json:"status_distribution"`
}

func (s *Service) appointmentStats(ctx context.Context, r Range) (*AppointmentStats, error) {
	st := AppointmentStats{Range: r}
	today := s.now().Format(dateLayout)
	where := r.exprs("appointment_date")
	var err error
	if st.Total, err = s.count(ctx, "appointments", where...); err != nil {
		return nil, err
	}
	if st.ByStatus, err = s.countBy(ctx, "appointments", "status", where...); err != nil {
		return nil, err
	}
	if st.Today, err = s.count(ctx, "appointments", goqu.L("appointment_date = ?::date", today)); err != nil {
		return nil, err
	}
	st.Upcoming, err = s.count(ctx, "appointments",
		goqu.L("appointment_date >= ?::date", today),
		goqu.C("status").In("pending", "confirmed"))
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Service) AppointmentStats(ctx context.Context, r Range) (st *AppointmentStats, err error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	err = s.snap.InSnapshot(ctx, func(ctx context.Context) error {
		st, err = s.appointmentStats(ctx, r)
		return err
	})
	return st, err
}

type BillingStats struct {
	Range         Range           `json:"range"`
	TotalBills    int             `json:"total_bills"`
	Revenue       decimal.Decimal `json:"total_revenue"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	PendingBills  int             `json:"pending_bills"`
	ByStatus      map[string]int  `json:"status_distribution"`
}

func (s *Service) billingStats(ctx context.Context, r Range) (*BillingStats, error) {
	st := BillingStats{Range: r}
	where := r.exprs("bill_date")
	ds := dialect.From("bills").
		Select(
			goqu.COUNT("*"),
			goqu.L("COALESCE(SUM(total_amount) FILTER (WHERE status = ?), 0)", "paid"),
			goqu.L("COALESCE(SUM(total_amount) FILTER (WHERE status IN (?, ?)), 0)", "pending", "partial"),
			goqu.L("COUNT(*) FILTER (WHERE status IN (?, ?))", "pending", "partial"),
		).
		Where(where...)
	if err := s.queryRow(ctx, ds, &st.TotalBills, &st.Revenue, &st.PendingAmount, &st.PendingBills); err != nil {
		return nil, fmt.Errorf("billing totals: %w", err)
	}
	var err error
	if st.ByStatus, err = s.countBy(ctx, "bills", "status", where...); err != nil {
		return nil, err
	}
	for _, k := range []string{"pending", "partial", "paid"} {
		if _, ok := st.ByStatus[k]; !ok {
			st.ByStatus[k] = 0
		}
	}
	return &st, nil
}

func (s *Service) BillingStats(ctx context.Context, r Range) (st *BillingStats, err error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	err = s.snap.InSnapshot(ctx, func(ctx context.Context) error {
		st, err = s.billingStats(ctx, r)
		return err
	})
	return st, err
}

// Dashboard is the landing page summary, computed from one snapshot.
type Dashboard struct {
	GeneratedAt  time.Time         `json:"generated_at"`
	Patients     *PatientStats     `json:"patients"`
	Doctors      *DoctorStats      `json:"doctors"`
	Appointments *AppointmentStats `json:"appointments"`
	Billing      *BillingStats     `json:"billing"`
	Revenue      []MonthlyRevenue  `json:"revenue_by_month"`
}

// DashboardMonths is how many months of revenue the dashboard shows.
const DashboardMonths = 6

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	d := Dashboard{GeneratedAt: s.now().UTC()}
	err := s.snap.InSnapshot(ctx, func(ctx context.Context) error {
		var err error
		if d.Patients, err = s.patientStats(ctx); err != nil {
			return err
		}
		if d.Doctors, err = s.doctorStats(ctx); err != nil {
			return err
		}
		if d.Appointments, err = s.appointmentStats(ctx, Range{}); err != nil {
			return err
		}
		if d.Billing, err = s.billingStats(ctx, Range{}); err != nil {
			return err
		}
		// Revenue joins the outer snapshot rather than opening its own.
		d.Revenue, err = s.Revenue(ctx, DashboardMonths)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}
