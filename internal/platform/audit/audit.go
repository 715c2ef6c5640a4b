// Package audit records before/after snapshots of every mutation to the
// append-only audit_log table and exposes the log read-only.
//
// Entries are written through the transaction carried in the context, so an
// entry exists exactly when the change it describes was committed.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

func (a Action) Valid() bool {
	return a == ActionInsert || a == ActionUpdate || a == ActionDelete
}

// ParseAction accepts the action name in any case.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("unknown audit action %q", s)
	}
	return a, nil
}

// Entry is one row of the audit log.
type Entry struct {
	ID         int64           `json:"id"`
	UserID     *string         `json:"user_id"`
	Action     Action          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	OldData    json.RawMessage `json:"old_data"`
	NewData    json.RawMessage `json:"new_data"`
	RequestID  *string         `json:"request_id,omitempty"`
	CreatedAt  time.Time       `json:"timestamp"`
}

// Recorder appends an entry for a mutation. before is nil for inserts and
// after is nil for deletes.
type Recorder interface {
	Record(ctx context.Context, action Action, entityType, entityID string, before, after any) error
}

// Filter narrows a log listing. Zero fields match everything.
type Filter struct {
	EntityType string
	EntityID   string
	UserID     string
	Action     Action
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}
