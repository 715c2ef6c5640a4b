// Package integration drives every aggregate together against PostgreSQL.
// The tests skip unless HMS_TEST_DATABASE_URL is set.
package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicorex/hms/internal/domain/billing"
	"github.com/medicorex/hms/internal/domain/doctor"
	"github.com/medicorex/hms/internal/domain/patient"
	"github.com/medicorex/hms/internal/domain/scheduling"
	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/audit"
	"github.com/medicorex/hms/internal/platform/dbtest"
	"github.com/medicorex/hms/internal/platform/idgen"
	"github.com/medicorex/hms/internal/platform/reporting"
	"github.com/medicorex/hms/internal/platform/rules"
)

type hospital struct {
	db           *dbtest.DB
	patients     *patient.Service
	doctors      *doctor.Service
	appointments *scheduling.Service
	bills        *billing.Service
	reports      *reporting.Service
}

func newHospital(t *testing.T) *hospital {
	t.Helper()
	d := dbtest.New(t)
	ids := idgen.NewPGGenerator()
	engine := rules.NewEngine(zerolog.Nop())
	rec := audit.NewPGRecorder(audit.ModeFull, zerolog.Nop())
	return &hospital{
		db:           d,
		patients:     patient.NewService(d.Tx, patient.NewRepoPG(d.Pool), ids, engine, rec),
		doctors:      doctor.NewService(d.Tx, doctor.NewRepoPG(d.Pool), ids, engine, rec),
		appointments: scheduling.NewService(d.Tx, scheduling.NewRepoPG(d.Pool), ids, engine, rec),
		bills:        billing.NewService(d.Tx, billing.NewRepoPG(d.Pool), ids, engine, rec),
		reports:      reporting.NewService(d.Tx, d.Pool),
	}
}

func (h *hospital) patient(t *testing.T, name, phone string) *patient.Patient {
	t.Helper()
	p, err := h.patients.Create(context.Background(), &patient.Patient{Name: name, Age: 40, Gender: "Female", Phone: phone})
	require.NoError(t, err)
	return p
}

func (h *hospital) doctor(t *testing.T) *doctor.Doctor {
	t.Helper()
	d, err := h.doctors.Create(context.Background(), &doctor.Doctor{
		Name: "Dr. Rao", Specialization: "General Medicine", Phone: "9000000001",
		Email: "rao@example.com", Qualification: "MBBS", ConsultationFee: decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	return d
}

func TestVisitLifecycle(t *testing.T) {
	h := newHospital(t)
	ctx := context.Background()

	p := h.patient(t, "Anita Das", "9876500001")
	doc := h.doctor(t)
	assert.Equal(t, "P00000001", p.ID)
	assert.Equal(t, "D00000001", doc.ID)

	a, err := h.appointments.Book(ctx, &scheduling.Appointment{
		PatientID: p.ID, DoctorID: doc.ID, Date: "2025-06-02", Time: "09:30", Reason: "Fever",
	})
	require.NoError(t, err)
	_, err = h.appointments.Confirm(ctx, a.ID)
	require.NoError(t, err)
	_, err = h.appointments.Complete(ctx, a.ID)
	require.NoError(t, err)

	_, err = h.appointments.Cancel(ctx, a.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindIllegalTransition))

	b, err := h.bills.Create(ctx, &billing.Draft{
		PatientID:     p.ID,
		AppointmentID: &a.ID,
		Items: []billing.ItemDraft{
			{Description: "Consultation", Amount: decimal.NewFromInt(500)},
			{Description: "Blood test", Amount: decimal.RequireFromString("249.50")},
		},
	})
	require.NoError(t, err)
	assert.True(t, b.TotalAmount.Equal(decimal.RequireFromString("749.50")))

	paid, err := h.bills.MarkPaid(ctx, b.ID, billing.PaymentCash)
	require.NoError(t, err)
	assert.Equal(t, rules.BillPaid, paid.Status)

	perf, err := h.reports.DoctorPerformance(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, perf.Completed)
	assert.True(t, perf.Revenue.Equal(decimal.RequireFromString("749.50")))

	// inserts of patient, doctor, appointment and bill; two appointment status
	// changes and the payment
	assert.Equal(t, 4, h.db.Count(t, "audit_log", "action = 'INSERT'"))
	assert.Equal(t, 3, h.db.Count(t, "audit_log", "action = 'UPDATE'"))

	require.NoError(t, h.patients.Delete(ctx, p.ID))
	assert.Equal(t, 0, h.db.Count(t, "appointments", ""))
	assert.Equal(t, 0, h.db.Count(t, "bills", ""))
	assert.Equal(t, 0, h.db.Count(t, "bill_items", ""))
	assert.Equal(t, 1, h.db.Count(t, "audit_log", "action = 'DELETE' AND entity_type = 'patient'"))

	// the next id follows the highest one that still exists
	again := h.patient(t, "Anita Das", "9876500001")
	assert.Equal(t, "P00000001", again.ID)
}

func TestConcurrentCreatesGetDistinctIDs(t *testing.T) {
	h := newHospital(t)
	const n = 20

	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := h.patients.Create(context.Background(), &patient.Patient{
				Name: fmt.Sprintf("Patient %d", i), Age: 30, Gender: "Other", Phone: fmt.Sprintf("9%09d", i+1),
			})
			errs[i] = err
			if err == nil {
				ids[i] = p.ID
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[ids[i]], "duplicate id %s", ids[i])
		seen[ids[i]] = true
	}
	assert.Equal(t, n, h.db.Count(t, "patients", ""))
	assert.Equal(t, n, h.db.Count(t, "audit_log", "entity_type = 'patient'"))
}

func TestConcurrentBookingsOfOneSlot(t *testing.T) {
	h := newHospital(t)
	doc := h.doctor(t)
	p1 := h.patient(t, "Ravi", "9876500011")
	p2 := h.patient(t, "Meena", "9876500012")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, pid := range []string{p1.ID, p2.ID} {
		wg.Add(1)
		go func(i int, pid string) {
			defer wg.Done()
			_, errs[i] = h.appointments.Book(context.Background(), &scheduling.Appointment{
				PatientID: pid, DoctorID: doc.ID, Date: "2025-06-03", Time: "11:00", Reason: "Review",
			})
		}(i, pid)
	}
	wg.Wait()

	var ok, taken int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.IsKind(err, apperr.KindSlotUnavailable):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, taken)
	assert.Equal(t, 1, h.db.Count(t, "appointments", ""))
}

func TestInvalidBillLeavesNoTrace(t *testing.T) {
	h := newHospital(t)
	p := h.patient(t, "Farah", "9876500021")
	total := decimal.NewFromInt(1000)

	_, err := h.bills.Create(context.Background(), &billing.Draft{
		PatientID:   p.ID,
		Subtotal:    &total,
		TotalAmount: &total,
		Discount:    ptr(decimal.NewFromInt(100)),
	})
	require.True(t, apperr.IsKind(err, apperr.KindInvalidAmount), "got %v", err)
	assert.Equal(t, 0, h.db.Count(t, "bills", ""))
	assert.Equal(t, 0, h.db.Count(t, "audit_log", "entity_type = 'bill'"))

	// the failed create consumed no identifier
	b, err := h.bills.Create(context.Background(), &billing.Draft{PatientID: p.ID, Subtotal: &total})
	require.NoError(t, err)
	assert.Equal(t, "B00000001", b.ID)
}

func ptr[T any](v T) *T { return &v }
