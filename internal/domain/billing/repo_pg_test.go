package billing

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
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
INSERT INTO doctors (id, name, specialization, phone, email, qualification, consultation_fee) VALUES
    ('D00000001', 'Dr. Mehta', 'Cardiology', '9123456780', 'mehta@example.com', 'MD', 800);
INSERT INTO appointments (id, patient_id, doctor_id, appointment_date, appointment_time, reason, status) VALUES
    ('A00000001', 'P00000001', 'D00000001', '2025-03-15', '10:30', 'Checkup', 'completed');`

func newPGService(t *testing.T) (*dbtest.DB, *Service) {
	t.Helper()
	d := dbtest.New(t)
	_, err := d.Pool.Exec(context.Background(), seedSQL)
	require.NoError(t, err)
	svc := NewService(d.Tx, NewRepoPG(d.Pool), idgen.NewPGGenerator(),
		rules.NewEngine(zerolog.Nop()), audit.NewPGRecorder(audit.ModeFull, zerolog.Nop()))
	return d, svc
}

func TestPG_CreateWithItemsRoundTrip(t *testing.T) {
	d, svc := newPGService(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, &Draft{
		PatientID:     "P00000001",
		AppointmentID: strPtr("A00000001"),
		Items: []ItemDraft{
			{Description: "Consultation", Amount: decimal.NewFromInt(800)},
			{Description: "ECG", Amount: decimal.RequireFromString("350.25")},
		},
		Discount: dec("100"),
		Tax:      dec("52.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, "B00000001", b.ID)

	got, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.Subtotal.Equal(decimal.RequireFromString("1150.25")), "subtotal %s", got.Subtotal)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("1102.75")), "total %s", got.TotalAmount)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Consultation", got.Items[0].Description)
	assert.False(t, got.BillDate.IsZero())

	assert.Equal(t, 2, d.Count(t, "bill_items", "bill_id = $1", b.ID))
	assert.Equal(t, 1, d.Count(t, "audit_log", "entity_type = 'bill'"))
}

func TestPG_InvalidAmountWritesNothing(t *testing.T) {
	d, svc := newPGService(t)
	_, err := svc.Create(context.Background(), &Draft{
		PatientID:   "P00000001",
		Subtotal:    dec("500"),
		Discount:    dec("50"),
		TotalAmount: dec("500"),
	})
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidAmount), "got %v", err)
	assert.Equal(t, 0, d.Count(t, "bills", ""))
	assert.Equal(t, 0, d.Count(t, "audit_log", ""))
}

func TestPG_ReplaceItemsAndPay(t *testing.T) {
	d, svc := newPGService(t)
	ctx := context.Background()

	b, err := svc.Create(ctx, &Draft{
		PatientID: "P00000001",
		Items:     []ItemDraft{{Description: "Consultation", Amount: decimal.NewFromInt(800)}},
	})
	require.NoError(t, err)

	items := []ItemDraft{{Description: "Follow-up", Amount: decimal.NewFromInt(400)}}
	updated, err := svc.Update(ctx, b.ID, Patch{Items: &items, TaxRate: dec("5")})
	require.NoError(t, err)
	assert.True(t, updated.TotalAmount.Equal(decimal.NewFromInt(420)), "total %s", updated.TotalAmount)
	assert.Equal(t, 1, d.Count(t, "bill_items", "bill_id = $1 AND description = 'Follow-up'", b.ID))
	assert.Equal(t, 0, d.Count(t, "bill_items", "description = 'Consultation'"))

	paid, err := svc.MarkPaid(ctx, b.ID, PaymentInsurance)
	require.NoError(t, err)
	assert.Equal(t, rules.BillPaid, paid.Status)

	_, err = svc.Update(ctx, b.ID, Patch{Status: billStatus(rules.BillPending)})
	assert.True(t, apperr.IsKind(err, apperr.KindIllegalTransition))
	assert.Equal(t, 1, d.Count(t, "bills", "status = 'paid' AND payment_method = 'insurance'"))
	assert.Equal(t, 3, d.Count(t, "audit_log", "entity_id = $1", b.ID))
}

func TestPG_ListsAndDelete(t *testing.T) {
	d, svc := newPGService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, consultation())
	require.NoError(t, err)
	_, err = svc.Create(ctx, &Draft{PatientID: "P00000002", Subtotal: dec("200")})
	require.NoError(t, err)
	_, err = svc.MarkPaid(ctx, first.ID, PaymentCash)
	require.NoError(t, err)

	outstanding, total, err := svc.Outstanding(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "P00000002", outstanding[0].PatientID)

	forAppt, err := svc.ByAppointment(ctx, "A00000001")
	require.NoError(t, err)
	require.Len(t, forAppt, 1)
	assert.Equal(t, first.ID, forAppt[0].ID)

	require.NoError(t, svc.Delete(ctx, first.ID))
	assert.Equal(t, 1, d.Count(t, "bills", ""))
	assert.Equal(t, 1, d.Count(t, "audit_log", "action = 'DELETE' AND entity_id = $1", first.ID))
}
