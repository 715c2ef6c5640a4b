package audit

import (
	"context"
	"sync"
	"time"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/auth"
)

// Memory keeps entries in process. Services are wired with it in unit tests
// where no database transaction exists.
type Memory struct {
	mu      sync.Mutex
	policy  Policy
	entries []Entry
	// Fail, when set, is returned by Record instead of storing the entry.
	Fail error
}

func NewMemory(mode Mode) *Memory {
	return &Memory{policy: Policy{Mode: mode}}
}

func (m *Memory) Record(ctx context.Context, action Action, entityType, entityID string, before, after any) error {
	if m.Fail != nil {
		return m.Fail
	}
	oldData, err := m.policy.Snapshot(action, entityType, before)
	if err != nil {
		return apperr.Internal("build audit snapshot", err)
	}
	newData, err := m.policy.Snapshot(action, entityType, after)
	if err != nil {
		return apperr.Internal("build audit snapshot", err)
	}
	if err := checkShape(action, oldData, newData); err != nil {
		return apperr.Internal("malformed audit entry", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e := Entry{
		ID:         int64(len(m.entries) + 1),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		OldData:    oldData,
		NewData:    newData,
		CreatedAt:  time.Now().UTC(),
	}
	if uid := auth.UserIDFromContext(ctx); uid != "" {
		e.UserID = &uid
	}
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of everything recorded so far, oldest first.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// For returns the entries about one entity, oldest first.
func (m *Memory) For(entityType, entityID string) []Entry {
	var out []Entry
	for _, e := range m.Entries() {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out
}
