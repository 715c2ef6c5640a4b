package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/medicorex/hms/internal/platform/apperr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantKind  apperr.Kind
		wantField string
	}{
		{
			name: "unique violation",
			err: &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "patients_phone_key",
				Detail: "Key (phone)=(9876543210) already exists."},
			wantKind:  apperr.KindDuplicateKey,
			wantField: "phone",
		},
		{
			name: "unique violation without detail",
			err:  &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "users_username_key"},
			wantKind:  apperr.KindDuplicateKey,
			wantField: "users_username_key",
		},
		{
			name: "foreign key violation",
			err: &pgconn.PgError{Code: CodeForeignKeyViolation,
				Detail: `Key (patient_id)=(P00000042) is not present in table "patients".`},
			wantKind:  apperr.KindForeignKey,
			wantField: "patient_id",
		},
		{
			name:      "check violation",
			err:       &pgconn.PgError{Code: CodeCheckViolation, ConstraintName: "patients_age_check"},
			wantKind:  apperr.KindValidation,
			wantField: "patients_age_check",
		},
		{
			name:      "not null",
			err:       &pgconn.PgError{Code: CodeNotNullViolation, ColumnName: "name"},
			wantKind:  apperr.KindValidation,
			wantField: "name",
		},
		{
			name:     "no rows",
			err:      fmt.Errorf("scan: %w", pgx.ErrNoRows),
			wantKind: apperr.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, "patient")
			var ae *apperr.Error
			if assert.True(t, errors.As(got, &ae), "expected *apperr.Error, got %T", got) {
				assert.Equal(t, tt.wantKind, ae.Kind)
				assert.Equal(t, "patient", ae.Entity)
				assert.Equal(t, tt.wantField, ae.Field)
			}
		})
	}
}

func TestClassify_Passthrough(t *testing.T) {
	assert.Nil(t, Classify(nil, "bill"))

	plain := errors.New("network down")
	assert.Same(t, plain, Classify(plain, "bill"))

	already := apperr.NotFound("bill", "B00000001")
	assert.Same(t, already, Classify(already, "patient"))
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "uq_active_slot"})
	assert.True(t, IsUniqueViolation(err, "uq_active_slot"))
	assert.True(t, IsUniqueViolation(err, ""))
	assert.False(t, IsUniqueViolation(err, "patients_phone_key"))
	assert.False(t, IsUniqueViolation(errors.New("x"), ""))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pgconn.PgError{Code: CodeSerializationFailure}))
	assert.True(t, IsRetryable(fmt.Errorf("wrap: %w", &pgconn.PgError{Code: CodeDeadlockDetected})))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: CodeUniqueViolation}))
	assert.False(t, IsRetryable(errors.New("x")))
}
