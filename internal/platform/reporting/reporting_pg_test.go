package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/dbtest"
)

const seedSQL = `
INSERT INTO patients (id, name, age, gender, phone, blood_group, created_at) VALUES
    ('P00000001', 'Rahul Sharma', 34, 'Male', '9876543210', 'O+', '2025-03-20 09:00:00+00'),
    ('P00000002', 'Priya Nair', 29, 'Female', '8765432109', NULL, '2025-01-01 09:00:00+00');
INSERT INTO doctors (id, name, specialization, phone, email, qualification, consultation_fee, status) VALUES
    ('D00000001', 'Dr. Mehta', 'Cardiology', '9123456780', 'mehta@example.com', 'MD', 800, 'Active'),
    ('D00000002', 'Dr. Iyer', 'Dermatology', '9123456781', 'iyer@example.com', 'MD', 600, 'On Leave');
INSERT INTO appointments (id, patient_id, doctor_id, appointment_date, appointment_time, reason, status) VALUES
    ('A00000001', 'P00000001', 'D00000001', '2025-03-15', '10:30', 'Checkup', 'completed'),
    ('A00000002', 'P00000001', 'D00000001', '2025-04-01', '11:00', 'Follow-up', 'pending'),
    ('A00000003', 'P00000002', 'D00000002', '2025-03-20', '09:00', 'Rash', 'cancelled');
INSERT INTO bills (id, patient_id, appointment_id, subtotal, discount, tax, total_amount, status, payment_method, bill_date) VALUES
    ('B00000001', 'P00000001', 'A00000001', 900, 0, 0, 900, 'paid', 'cash', '2025-03-16 12:00:00+00'),
    ('B00000002', 'P00000001', 'A00000002', 200, 0, 0, 200, 'pending', NULL, '2025-04-02 12:00:00+00'),
    ('B00000003', 'P00000002', NULL, 120, 20, 0, 100, 'partial', 'upi', '2025-04-05 12:00:00+00');`

func newPGService(t *testing.T) *Service {
	t.Helper()
	d := dbtest.New(t)
	_, err := d.Pool.Exec(context.Background(), seedSQL)
	require.NoError(t, err)
	svc := NewService(d.Tx, d.Pool)
	svc.now = func() time.Time { return time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC) }
	return svc
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPG_PatientSummaries(t *testing.T) {
	svc := newPGService(t)
	ctx := context.Background()

	items, total, err := svc.PatientSummaries(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)

	p1 := items[0]
	assert.Equal(t, "P00000001", p1.PatientID)
	assert.Equal(t, 2, p1.TotalAppointments)
	require.NotNil(t, p1.LastAppointmentID)
	assert.Equal(t, "A00000002", *p1.LastAppointmentID)
	assert.Equal(t, "2025-04-01", *p1.LastAppointment)

	one, err := svc.PatientSummary(ctx, "P00000002")
	require.NoError(t, err)
	assert.Equal(t, 1, one.TotalAppointments)

	_, err = svc.PatientSummary(ctx, "P00000099")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestPG_DoctorPerformance(t *testing.T) {
	svc := newPGService(t)
	ctx := context.Background()

	items, err := svc.DoctorPerformances(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "D00000001", items[0].DoctorID)
	assert.Equal(t, 2, items[0].Appointments)
	assert.Equal(t, 1, items[0].Completed)
	assert.True(t, items[0].CompletionRate.Equal(dec("50")), "rate %s", items[0].CompletionRate)
	assert.True(t, items[0].Revenue.Equal(dec("1100")), "revenue %s", items[0].Revenue)

	d2, err := svc.DoctorPerformance(ctx, "D00000002")
	require.NoError(t, err)
	assert.True(t, d2.CompletionRate.IsZero())
	assert.True(t, d2.Revenue.IsZero())

	_, err = svc.DoctorPerformance(ctx, "D00000042")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestPG_Revenue(t *testing.T) {
	svc := newPGService(t)

	months, err := svc.Revenue(context.Background(), 12)
	require.NoError(t, err)
	require.Len(t, months, 2)

	assert.Equal(t, "2025-04", months[0].Month)
	assert.True(t, months[0].Billed.Equal(dec("300")))
	assert.True(t, months[0].Revenue.IsZero())
	assert.Equal(t, 2, months[0].Bills)

	assert.Equal(t, "2025-03", months[1].Month)
	assert.True(t, months[1].Revenue.Equal(dec("900")))
	assert.Equal(t, 1, months[1].PaidBills)

	latest, err := svc.Revenue(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, latest, 1)
}

func TestPG_Stats(t *testing.T) {
	svc := newPGService(t)
	ctx := context.Background()

	ps, err := svc.PatientStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ps.Total)
	assert.Equal(t, 1, ps.New)
	assert.Equal(t, map[string]int{"O+": 1}, ps.ByBloodGroup)
	assert.Equal(t, map[string]int{"Male": 1, "Female": 1}, ps.ByGender)

	ds, err := svc.DoctorStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Total)
	assert.Equal(t, 1, ds.Active)
	assert.Equal(t, map[string]int{"Active": 1, "On Leave": 1}, ds.ByStatus)
	assert.True(t, ds.AverageFee.Equal(dec("700")), "fee %s", ds.AverageFee)

	as, err := svc.AppointmentStats(ctx, Range{From: "2025-03-01", To: "2025-03-31"})
	require.NoError(t, err)
	assert.Equal(t, 2, as.Total)
	assert.Equal(t, map[string]int{"completed": 1, "cancelled": 1}, as.ByStatus)
	assert.Equal(t, 0, as.Today)
	assert.Equal(t, 1, as.Upcoming)

	bs, err := svc.BillingStats(ctx, Range{})
	require.NoError(t, err)
	assert.Equal(t, 3, bs.TotalBills)
	assert.True(t, bs.Revenue.Equal(dec("900")))
	assert.True(t, bs.PendingAmount.Equal(dec("300")))
	assert.Equal(t, 2, bs.PendingBills)
	assert.Equal(t, map[string]int{"pending": 1, "partial": 1, "paid": 1}, bs.ByStatus)

	march, err := svc.BillingStats(ctx, Range{From: "2025-03-01", To: "2025-03-31"})
	require.NoError(t, err)
	assert.Equal(t, 1, march.TotalBills)
	assert.Equal(t, map[string]int{"pending": 0, "partial": 0, "paid": 1}, march.ByStatus)
}

func TestPG_Dashboard(t *testing.T) {
	svc := newPGService(t)

	d, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, d.Patients.Total)
	assert.Equal(t, 1, d.Doctors.Active)
	assert.Equal(t, 3, d.Appointments.Total)
	assert.Equal(t, 3, d.Billing.TotalBills)
	assert.Len(t, d.Revenue, 2)
	assert.Equal(t, 2025, d.GeneratedAt.Year())
}
