package db

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medicorex/hms/internal/platform/apperr"
)

// SQLSTATE codes the data layer reacts to.
const (
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
	CodeCheckViolation       = "23514"
	CodeNotNullViolation     = "23502"
	CodeInvalidText          = "22P02"
	CodeStringTooLong        = "22001"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

// keyDetail matches `Key (phone)=(9876543210) already exists.`
var keyDetail = regexp.MustCompile(`Key \(([^)]+)\)=\(([^)]*)\)`)

// PgError unwraps err to a *pgconn.PgError.
func PgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsRetryable reports whether err is a transient conflict the whole
// transaction can be safely retried after.
func IsRetryable(err error) bool {
	pgErr, ok := PgError(err)
	if !ok {
		return false
	}
	return pgErr.Code == CodeSerializationFailure || pgErr.Code == CodeDeadlockDetected
}

// IsUniqueViolation reports whether err violated the named unique constraint.
// An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	pgErr, ok := PgError(err)
	if !ok || pgErr.Code != CodeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// Classify maps a database error raised while operating on entity to the
// apperr taxonomy. Already-classified errors and nil pass through unchanged.
func Classify(err error, entity string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(entity, "")
	}

	pgErr, ok := PgError(err)
	if !ok {
		return err
	}

	column, value := parseKeyDetail(pgErr.Detail)
	switch pgErr.Code {
	case CodeUniqueViolation:
		if column == "" {
			column = pgErr.ConstraintName
		}
		return &apperr.Error{Kind: apperr.KindDuplicateKey, Entity: entity, Field: column,
			Message: "value " + quote(value) + " is already in use", Err: err}
	case CodeForeignKeyViolation:
		return &apperr.Error{Kind: apperr.KindForeignKey, Entity: entity, Field: column,
			Message: "referenced row " + quote(value) + " does not exist or is still referenced", Err: err}
	case CodeCheckViolation:
		return &apperr.Error{Kind: apperr.KindValidation, Entity: entity, Field: pgErr.ConstraintName,
			Message: pgErr.Message, Err: err}
	case CodeNotNullViolation:
		return &apperr.Error{Kind: apperr.KindValidation, Entity: entity, Field: pgErr.ColumnName,
			Message: "is required", Err: err}
	case CodeInvalidText, CodeStringTooLong:
		return &apperr.Error{Kind: apperr.KindValidation, Entity: entity, Field: pgErr.ColumnName,
			Message: pgErr.Message, Err: err}
	}
	return err
}

func parseKeyDetail(detail string) (column, value string) {
	m := keyDetail.FindStringSubmatch(detail)
	if len(m) != 3 {
		return "", ""
	}
	return strings.TrimSpace(m[1]), m[2]
}

func quote(s string) string {
	if s == "" {
		return "value"
	}
	return `"` + s + `"`
}
