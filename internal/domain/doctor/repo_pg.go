package doctor

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/db"
	"github.com/medicorex/hms/internal/platform/rules"
)

var dialect = goqu.Dialect("postgres")

type repoPG struct {
	pool db.Querier
}

func NewRepoPG(pool db.Querier) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const doctorCols = `id, name, specialization, phone, email, experience, qualification,
	consultation_fee, status, address, created_at, updated_at`

var doctorColList = []any{
	"id", "name", "specialization", "phone", "email", "experience", "qualification",
	"consultation_fee", "status", "address", "created_at", "updated_at",
}

func (r *repoPG) Create(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (id, name, specialization, phone, email, experience, qualification,
			consultation_fee, status, address)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Specialization, d.Phone, d.Email, d.Experience, d.Qualification,
		d.ConsultationFee, string(d.Status), d.Address,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return db.Classify(err, entity)
}

func (r *repoPG) get(ctx context.Context, query, id string) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if apperr.IsKind(db.Classify(err, entity), apperr.KindNotFound) {
			return nil, apperr.NotFound(entity, id)
		}
		return nil, fmt.Errorf("get doctor %s: %w", id, err)
	}
	return d, nil
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*Doctor, error) {
	return r.get(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id string) (*Doctor, error) {
	return r.get(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1 FOR UPDATE`, id)
}

func (r *repoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctors SET
			name=$2, specialization=$3, phone=$4, email=$5, experience=$6, qualification=$7,
			consultation_fee=$8, status=$9, address=$10, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		d.ID, d.Name, d.Specialization, d.Phone, d.Email, d.Experience, d.Qualification,
		d.ConsultationFee, string(d.Status), d.Address,
	).Scan(&d.UpdatedAt)
	if err := db.Classify(err, entity); err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return apperr.NotFound(entity, d.ID)
		}
		return err
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

func filterExprs(f Filter) []exp.Expression {
	var where []exp.Expression
	if f.Name != "" {
		where = append(where, goqu.C("name").ILike("%"+f.Name+"%"))
	}
	if f.Specialization != "" {
		where = append(where, goqu.C("specialization").ILike(f.Specialization))
	}
	if f.Status != "" {
		where = append(where, goqu.C("status").Eq(string(f.Status)))
	}
	return where
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Doctor, int, error) {
	where := filterExprs(f)

	countSQL, countArgs, err := dialect.From("doctors").Prepared(true).
		Select(goqu.COUNT("*")).Where(where...).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build doctor count: %w", err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	ds := dialect.From("doctors").Prepared(true).
		Select(doctorColList...).
		Where(where...).
		Order(goqu.C("name").Asc(), goqu.C("id").Asc())
	if f.Limit > 0 {
		ds = ds.Limit(uint(f.Limit))
	}
	if f.Offset > 0 {
		ds = ds.Offset(uint(f.Offset))
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build doctor listing: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan doctor: %w", err)
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Specializations(ctx context.Context) ([]SpecializationCount, error) {
	query, args, err := dialect.From("doctors").Prepared(true).
		Select(
			goqu.C("specialization"),
			goqu.COUNT("*"),
			goqu.L("COUNT(*) FILTER (WHERE status = ?)", string(rules.DoctorActive)),
		).
		GroupBy(goqu.C("specialization")).
		Order(goqu.C("specialization").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build specialization query: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list specializations: %w", err)
	}
	defer rows.Close()

	var out []SpecializationCount
	for rows.Next() {
		var s SpecializationCount
		if err := rows.Scan(&s.Specialization, &s.Doctors, &s.Active); err != nil {
			return nil, fmt.Errorf("scan specialization: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID, &d.Name, &d.Specialization, &d.Phone, &d.Email, &d.Experience, &d.Qualification,
		&d.ConsultationFee, &d.Status, &d.Address, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
