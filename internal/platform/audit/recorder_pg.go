package audit

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/auth"
	"github.com/medicorex/hms/internal/platform/db"
	"github.com/medicorex/hms/internal/platform/middleware"
)

// An actor id that no longer names a user is stored as NULL rather than
// failing the mutation it describes.
const insertSQL = `
INSERT INTO audit_log (user_id, action, entity_type, entity_id, old_data, new_data, request_id)
VALUES ((SELECT id FROM users WHERE id = $1), $2, $3, $4, $5, $6, $7)
RETURNING id`

// PGRecorder writes entries with the transaction found in ctx. Without one it
// refuses to record, which fails the caller's operation.
type PGRecorder struct {
	policy Policy
	logger zerolog.Logger
}

func NewPGRecorder(mode Mode, logger zerolog.Logger) *PGRecorder {
	return &PGRecorder{
		policy: Policy{Mode: mode},
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

func (r *PGRecorder) Record(ctx context.Context, action Action, entityType, entityID string, before, after any) error {
	tx := db.TxFromContext(ctx)
	if tx == nil {
		return apperr.Internal("audit entry requested outside a transaction", nil)
	}

	oldData, err := r.policy.Snapshot(action, entityType, before)
	if err != nil {
		return apperr.Internal("build audit snapshot", err)
	}
	newData, err := r.policy.Snapshot(action, entityType, after)
	if err != nil {
		return apperr.Internal("build audit snapshot", err)
	}
	if err := checkShape(action, oldData, newData); err != nil {
		return apperr.Internal("malformed audit entry", err)
	}

	var requestID *string
	if rid := middleware.RequestIDFromContext(ctx); rid != "" {
		requestID = &rid
	}

	var id int64
	err = tx.QueryRow(ctx, insertSQL,
		auth.UserIDFromContext(ctx), string(action), entityType, entityID, oldData, newData, requestID,
	).Scan(&id)
	if err != nil {
		return apperr.Internal("write audit entry", err)
	}

	r.logger.Debug().
		Int64("audit_id", id).
		Str("action", string(action)).
		Str("entity_type", entityType).
		Str("entity_id", entityID).
		Msg("audit entry recorded")
	return nil
}
