package rules

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/dbtest"
)

const fixtureSQL = `
INSERT INTO patients (id, name, age, gender, phone) VALUES
    ('P00000001', 'Rahul Sharma', 34, 'Male', '9876543210'),
    ('P00000002', 'Priya Nair', 29, 'Female', '8765432109');
INSERT INTO doctors (id, name, specialization, phone, email, qualification, consultation_fee, status) VALUES
    ('D00000001', 'Dr. Mehta', 'Cardiology', '9123456780', 'mehta@example.com', 'MD', 800, 'Active'),
    ('D00000002', 'Dr. Rao', 'Dermatology', '9123456781', 'rao@example.com', 'MBBS', 500, 'On Leave');
INSERT INTO appointments (id, patient_id, doctor_id, appointment_date, appointment_time, reason, status) VALUES
    ('A00000001', 'P00000001', 'D00000001', '2024-05-01', '10:00', 'Chest pain', 'confirmed'),
    ('A00000002', 'P00000002', 'D00000001', '2024-05-01', '11:00', 'Follow-up', 'pending'),
    ('A00000003', 'P00000001', 'D00000002', '2024-05-02', '09:30', 'Rash', 'pending');
INSERT INTO bills (id, patient_id, appointment_id, subtotal, discount, tax, total_amount) VALUES
    ('B00000001', 'P00000001', 'A00000001', 800, 0, 0, 800),
    ('B00000002', 'P00000002', 'A00000002', 500, 50, 0, 450),
    ('B00000003', 'P00000002', 'A00000003', 100, 0, 0, 100);
INSERT INTO bill_items (bill_id, description, amount) VALUES
    ('B00000001', 'Consultation', 800),
    ('B00000002', 'Consultation', 500);
`

func setup(t *testing.T) (*dbtest.DB, *Engine) {
	t.Helper()
	tdb := dbtest.New(t)
	_, err := tdb.Pool.Exec(context.Background(), fixtureSQL)
	require.NoError(t, err)
	return tdb, NewEngine(zerolog.Nop())
}

func TestEngine_RequiresTransaction(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	err := e.RequirePatient(context.Background(), "appointment", "patient_id", "P00000001")
	assert.True(t, apperr.IsKind(err, apperr.KindInternal))
}

func TestEngine_References(t *testing.T) {
	tdb, e := setup(t)

	err := tdb.Tx.InTx(context.Background(), func(ctx context.Context) error {
		assert.NoError(t, e.RequirePatient(ctx, "appointment", "patient_id", "P00000001"))

		err := e.RequirePatient(ctx, "appointment", "patient_id", "P00000099")
		var ae *apperr.Error
		if assert.ErrorAs(t, err, &ae) {
			assert.Equal(t, apperr.KindForeignKey, ae.Kind)
			assert.Equal(t, "patient_id", ae.Field)
		}

		doc, err := e.RequireDoctor(ctx, "appointment", "doctor_id", "D00000002")
		assert.NoError(t, err)
		assert.Equal(t, DoctorOnLeave, doc.Status)

		_, err = e.RequireDoctor(ctx, "appointment", "doctor_id", "D00000099")
		assert.True(t, apperr.IsKind(err, apperr.KindForeignKey))

		appt, err := e.RequireAppointment(ctx, "bill", "appointment_id", "A00000002")
		assert.NoError(t, err)
		assert.Equal(t, "P00000002", appt.PatientID)
		assert.Equal(t, AppointmentPending, appt.Status)
		return nil
	})
	require.NoError(t, err)
}

func TestEngine_CountAppointmentBills(t *testing.T) {
	tdb, e := setup(t)
	_, err := tdb.Pool.Exec(context.Background(),
		`INSERT INTO bills (id, patient_id, appointment_id, subtotal, discount, tax, total_amount)
		 VALUES ('B00000004', 'P00000001', 'A00000001', 200, 0, 0, 200)`)
	require.NoError(t, err)

	err = tdb.Tx.InTx(context.Background(), func(ctx context.Context) error {
		n, err := e.CountAppointmentBills(ctx, "A00000001")
		assert.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = e.CountAppointmentBills(ctx, "A00000099")
		assert.NoError(t, err)
		assert.Zero(t, n)
		return nil
	})
	require.NoError(t, err)

	_, err = e.CountAppointmentBills(context.Background(), "A00000001")
	assert.True(t, apperr.IsKind(err, apperr.KindInternal))
}

func TestEngine_CascadeDoctor(t *testing.T) {
	tdb, e := setup(t)

	var c Cascade
	err := tdb.Tx.InTx(context.Background(), func(ctx context.Context) error {
		var err error
		c, err = e.CascadeDoctor(ctx, "D00000001")
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), c.Appointments)
	assert.Equal(t, int64(2), c.DetachedBill)
	assert.Equal(t, 0, tdb.Count(t, "appointments", "doctor_id = $1", "D00000001"))
	assert.Equal(t, 3, tdb.Count(t, "bills", ""))
	assert.Equal(t, 2, tdb.Count(t, "bills", "appointment_id IS NULL"))
}

func TestEngine_CascadePatient(t *testing.T) {
	tdb, e := setup(t)

	var c Cascade
	err := tdb.Tx.InTx(context.Background(), func(ctx context.Context) error {
		var err error
		c, err = e.CascadePatient(ctx, "P00000001")
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, Cascade{Appointments: 2, Bills: 1, BillItems: 1, DetachedBill: 1}, c)
	assert.Equal(t, 0, tdb.Count(t, "appointments", "patient_id = $1", "P00000001"))
	assert.Equal(t, 0, tdb.Count(t, "bills", "patient_id = $1", "P00000001"))
	assert.Equal(t, 1, tdb.Count(t, "bill_items", ""))
	// another patient's bill that pointed at A00000003 survives, detached
	assert.Equal(t, 1, tdb.Count(t, "bills", "id = 'B00000003' AND appointment_id IS NULL"))
}

func TestEngine_CascadeAppointment(t *testing.T) {
	tdb, e := setup(t)

	err := tdb.Tx.InTx(context.Background(), func(ctx context.Context) error {
		c, err := e.CascadeAppointment(ctx, "A00000002")
		assert.Equal(t, int64(1), c.DetachedBill)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tdb.Count(t, "bills", "id = 'B00000002' AND appointment_id IS NULL"))
}

func TestEngine_CascadeRolledBackWithTransaction(t *testing.T) {
	tdb, e := setup(t)

	err := tdb.Tx.InTx(context.Background(), func(ctx context.Context) error {
		if _, err := e.CascadeDoctor(ctx, "D00000001"); err != nil {
			return err
		}
		return apperr.Internal("audit write failed", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 2, tdb.Count(t, "appointments", "doctor_id = $1", "D00000001"))
}
