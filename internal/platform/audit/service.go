package audit

import (
	"context"
	"fmt"

	"github.com/medicorex/hms/internal/platform/apperr"
)

// Service is the read-only view of the audit log handed to the
// presentation layer.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (*Entry, error) {
	if id <= 0 {
		return nil, apperr.Validation("audit_entry", "id", "must be a positive integer")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Entry, int, error) {
	if f.Action != "" && !f.Action.Valid() {
		return nil, 0, apperr.Validation("audit_entry", "action", "unknown action %q", f.Action)
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, 0, apperr.Validation("audit_entry", "from", "must be before to")
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit log: %w", err)
	}
	return items, total, nil
}

// History returns every entry about one entity, newest first.
func (s *Service) History(ctx context.Context, entityType, entityID string, limit, offset int) ([]*Entry, int, error) {
	if entityType == "" || entityID == "" {
		return nil, 0, apperr.Validation("audit_entry", "entity_id", "entity type and id are required")
	}
	return s.List(ctx, Filter{EntityType: entityType, EntityID: entityID, Limit: limit, Offset: offset})
}
