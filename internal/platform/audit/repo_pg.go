package audit

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/db"
)

var dialect = goqu.Dialect("postgres")

var entryCols = []any{
	"id", "user_id", "action", "entity_type", "entity_id",
	"old_data", "new_data", "request_id", "created_at",
}

type repoPG struct {
	pool db.Querier
}

func NewRepoPG(pool db.Querier) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var action string
	var oldData, newData []byte
	err := row.Scan(&e.ID, &e.UserID, &action, &e.EntityType, &e.EntityID,
		&oldData, &newData, &e.RequestID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Action = Action(action)
	e.OldData = oldData
	e.NewData = newData
	return &e, nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*Entry, error) {
	query, args, err := dialect.From("audit_log").Prepared(true).
		Select(entryCols...).
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build audit lookup: %w", err)
	}
	e, err := scanEntry(r.conn(ctx).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("audit_entry", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("get audit entry %d: %w", id, err)
	}
	return e, nil
}

func filterExprs(f Filter) []exp.Expression {
	var where []exp.Expression
	if f.EntityType != "" {
		where = append(where, goqu.C("entity_type").Eq(f.EntityType))
	}
	if f.EntityID != "" {
		where = append(where, goqu.C("entity_id").Eq(f.EntityID))
	}
	if f.UserID != "" {
		where = append(where, goqu.C("user_id").Eq(f.UserID))
	}
	if f.Action != "" {
		where = append(where, goqu.C("action").Eq(string(f.Action)))
	}
	if f.From != nil {
		where = append(where, goqu.C("created_at").Gte(*f.From))
	}
	if f.To != nil {
		where = append(where, goqu.C("created_at").Lt(*f.To))
	}
	return where
}

// List returns the matching entries newest first together with the total
// number of matches.
func (r *repoPG) List(ctx context.Context, f Filter) ([]*Entry, int, error) {
	where := filterExprs(f)

	countSQL, countArgs, err := dialect.From("audit_log").Prepared(true).
		Select(goqu.COUNT("*")).
		Where(where...).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build audit count: %w", err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	ds := dialect.From("audit_log").Prepared(true).
		Select(entryCols...).
		Where(where...).
		Order(goqu.C("id").Desc())
	if f.Limit > 0 {
		ds = ds.Limit(uint(f.Limit))
	}
	if f.Offset > 0 {
		ds = ds.Offset(uint(f.Offset))
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build audit listing: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan audit entry: %w", err)
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}
