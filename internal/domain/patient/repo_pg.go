package patient

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/db"
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

const patientCols = `id, name, age, gender, phone, email, blood_group, address, medical_history, created_at, updated_at`

var patientColList = []any{
	"id", "name", "age", "gender", "phone", "email", "blood_group",
	"address", "medical_history", "created_at", "updated_at",
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, name, age, gender, phone, email, blood_group, address, medical_history)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Age, p.Gender, p.Phone, p.Email, p.BloodGroup, p.Address, p.MedicalHistory,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.Classify(err, entity)
}

func (r *repoPG) get(ctx context.Context, query, id string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if e := db.Classify(err, entity); apperr.IsKind(e, apperr.KindNotFound) {
			return nil, apperr.NotFound(entity, id)
		}
		return nil, fmt.Errorf("get patient %s: %w", id, err)
	}
	return p, nil
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*Patient, error) {
	return r.get(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id string) (*Patient, error) {
	return r.get(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1 FOR UPDATE`, id)
}

func (r *repoPG) GetByPhone(ctx context.Context, phone string) (*Patient, error) {
	return r.get(ctx, `SELECT `+patientCols+` FROM patients WHERE phone = $1`, phone)
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET
			name=$2, age=$3, gender=$4, phone=$5, email=$6, blood_group=$7,
			address=$8, medical_history=$9, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.Age, p.Gender, p.Phone, p.Email, p.BloodGroup, p.Address, p.MedicalHistory,
	).Scan(&p.UpdatedAt)
	if err := db.Classify(err, entity); err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return apperr.NotFound(entity, p.ID)
		}
		return err
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
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
	if f.Phone != "" {
		where = append(where, goqu.C("phone").Eq(f.Phone))
	}
	if f.Gender != "" {
		where = append(where, goqu.C("gender").Eq(f.Gender))
	}
	if f.BloodGroup != "" {
		where = append(where, goqu.C("blood_group").Eq(f.BloodGroup))
	}
	return where
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Patient, int, error) {
	where := filterExprs(f)

	countSQL, countArgs, err := dialect.From("patients").Prepared(true).
		Select(goqu.COUNT("*")).Where(where...).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build patient count: %w", err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	ds := dialect.From("patients").Prepared(true).
		Select(patientColList...).
		Where(where...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc())
	if f.Limit > 0 {
		ds = ds.Limit(uint(f.Limit))
	}
	if f.Offset > 0 {
		ds = ds.Offset(uint(f.Offset))
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build patient listing: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan patient: %w", err)
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.Name, &p.Age, &p.Gender, &p.Phone, &p.Email, &p.BloodGroup,
		&p.Address, &p.MedicalHistory, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
