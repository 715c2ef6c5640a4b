package scheduling

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/audit"
	"github.com/medicorex/hms/internal/platform/dbtest"
	"github.com/medicorex/hms/internal/platform/idgen"
	"github.com/medicorex/hms/internal/platform/rules"
)

const seedSQL = `
INSERT INTO patients (id, name, age, gender, phone) VALUES
    ('P00000001', 'Rahul Sharma', 34, 'Male', '9876543210'),
    ('P00000002', 'Priya Nair', 29, 'Female', '8765432109');
INSERT INTO doctors (id, name, specialization, phone, email, qualification, consultation_fee, status) VALUES
    ('D00000001', 'Dr. Mehta', 'Cardiology', '9123456780', 'mehta@example.com', 'MD', 800, 'Active'),
    ('D00000002', 'Dr. Rao', 'Dermatology', '9123456781', 'rao@example.com', 'MBBS', 500, 'On Leave');`

func newPGService(t *testing.T) (*dbtest.DB, *Service) {
	t.Helper()
	d := dbtest.New(t)
	_, err := d.Pool.Exec(context.Background(), seedSQL)
	require.NoError(t, err)
	svc := NewService(d.Tx, NewRepoPG(d.Pool), idgen.NewPGGenerator(),
		rules.NewEngine(zerolog.Nop()), audit.NewPGRecorder(audit.ModeFull, zerolog.Nop()))
	return d, svc
}

func TestPG_BookAndRoundTrip(t *testing.T) {
	d, svc := newPGService(t)
	ctx := context.Background()

	a, err := svc.Book(ctx, checkup())
	require.NoError(t, err)
	assert.Equal(t, "A00000001", a.ID)

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-15", got.Date)
	assert.Equal(t, "10:30", got.Time)
	assert.Equal(t, rules.AppointmentPending, got.Status)
	assert.Nil(t, got.Notes)

	assert.Equal(t, 1, d.Count(t, "audit_log", "entity_type = 'appointment' AND action = 'INSERT'"))
}

func TestPG_BookRejectsUnknownPatientWithoutSideEffects(t *testing.T) {
	d, svc := newPGService(t)
	a := checkup()
	a.PatientID = "P00000042"

	_, err := svc.Book(context.Background(), a)
	assert.True(t, apperr.IsKind(err, apperr.KindForeignKey), "got %v", err)
	assert.Equal(t, 0, d.Count(t, "appointments", ""))
	assert.Equal(t, 0, d.Count(t, "audit_log", ""))
	assert.Equal(t, 0, d.Count(t, "id_sequences", "entity_type = 'appointment'"))
}

func TestPG_SlotUnavailable(t *testing.T) {
	d, svc := newPGService(t)
	ctx := context.Background()

	first, err := svc.Book(ctx, checkup())
	require.NoError(t, err)

	second := checkup()
	second.PatientID = "P00000002"
	_, err = svc.Book(ctx, second)
	assert.True(t, apperr.IsKind(err, apperr.KindSlotUnavailable), "got %v", err)
	assert.Equal(t, 1, d.Count(t, "appointments", ""))

	_, err = svc.Cancel(ctx, first.ID)
	require.NoError(t, err)
	_, err = svc.Book(ctx, second)
	require.NoError(t, err)
}

func TestPG_LifecycleAndIllegalTransition(t *testing.T) {
	d, svc := newPGService(t)
	ctx := context.Background()

	a, err := svc.Book(ctx, checkup())
	require.NoError(t, err)

	_, err = svc.Complete(ctx, a.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindIllegalTransition))
	assert.Equal(t, 1, d.Count(t, "appointments", "status = 'pending'"))

	_, err = svc.Confirm(ctx, a.ID)
	require.NoError(t, err)
	done, err := svc.Complete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, rules.AppointmentCompleted, done.Status)
	assert.Equal(t, 3, d.Count(t, "audit_log", "entity_id = $1", a.ID))
}

func TestPG_DeleteDetachesBill(t *testing.T) {
	d, svc := newPGService(t)
	ctx := context.Background()

	a, err := svc.Book(ctx, checkup())
	require.NoError(t, err)
	_, err = d.Pool.Exec(ctx, `
		INSERT INTO bills (id, patient_id, appointment_id, subtotal, discount, tax, total_amount)
		VALUES ('B00000001', 'P00000001', $1, 800, 0, 0, 800)`, a.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, a.ID))
	assert.Equal(t, 0, d.Count(t, "appointments", ""))
	assert.Equal(t, 1, d.Count(t, "bills", "appointment_id IS NULL"))
}

func TestPG_UpcomingAndOnDate(t *testing.T) {
	_, svc := newPGService(t)
	ctx := context.Background()

	for _, clock := range []string{"15:00", "09:00", "11:30"} {
		a := checkup()
		a.Date = "2030-01-10"
		a.Time = clock
		_, err := svc.Book(ctx, a)
		require.NoError(t, err)
	}
	old := checkup()
	old.Date = "2020-01-01"
	_, err := svc.Book(ctx, old)
	require.NoError(t, err)

	day, err := svc.OnDate(ctx, "2030-01-10")
	require.NoError(t, err)
	require.Len(t, day, 3)
	assert.Equal(t, []string{"09:00", "11:30", "15:00"}, []string{day[0].Time, day[1].Time, day[2].Time})

	upcoming, total, err := svc.Upcoming(ctx, "D00000001", "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, "09:00", upcoming[0].Time)

	byPatient, total, err := svc.List(ctx, Filter{PatientID: "P00000001", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, byPatient, 2)
	assert.Equal(t, "2030-01-10", byPatient[0].Date)
}
