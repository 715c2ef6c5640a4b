package billing

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

const billCols = `id, patient_id, appointment_id, subtotal, discount, tax, total_amount,
	status, payment_method, notes, bill_date, created_at, updated_at`

var billColList = []any{
	"id", "patient_id", "appointment_id", "subtotal", "discount", "tax", "total_amount",
	"status", "payment_method", "notes", "bill_date", "created_at", "updated_at",
}

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	var status string
	var method *string
	err := row.Scan(&b.ID, &b.PatientID, &b.AppointmentID, &b.Subtotal, &b.Discount, &b.Tax, &b.TotalAmount,
		&status, &method, &b.Notes, &b.BillDate, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Status = rules.BillStatus(status)
	if method != nil {
		m := PaymentMethod(*method)
		b.PaymentMethod = &m
	}
	b.Items = []Item{}
	return &b, nil
}

func methodArg(m *PaymentMethod) *string {
	if m == nil {
		return nil
	}
	s := string(*m)
	return &s
}

func (r *repoPG) Create(ctx context.Context, b *Bill) error {
	var billDate any
	if !b.BillDate.IsZero() {
		billDate = b.BillDate
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO bills (id, patient_id, appointment_id, subtotal, discount, tax, total_amount,
			status, payment_method, notes, bill_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11::timestamptz, NOW()))
		RETURNING bill_date, created_at, updated_at`,
		b.ID, b.PatientID, b.AppointmentID, b.Subtotal, b.Discount, b.Tax, b.TotalAmount,
		string(b.Status), methodArg(b.PaymentMethod), b.Notes, billDate,
	).Scan(&b.BillDate, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return db.Classify(err, entity)
	}
	return r.insertItems(ctx, b)
}

func (r *repoPG) insertItems(ctx context.Context, b *Bill) error {
	for i := range b.Items {
		it := &b.Items[i]
		it.BillID = b.ID
		err := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO bill_items (bill_id, description, amount)
			VALUES ($1, $2, $3)
			RETURNING id, created_at`,
			b.ID, it.Description, it.Amount,
		).Scan(&it.ID, &it.CreatedAt)
		if err != nil {
			return db.Classify(err, "bill_item")
		}
	}
	return nil
}

func (r *repoPG) get(ctx context.Context, query, id string) (*Bill, error) {
	b, err := scanBill(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if apperr.IsKind(db.Classify(err, entity), apperr.KindNotFound) {
			return nil, apperr.NotFound(entity, id)
		}
		return nil, fmt.Errorf("get bill %s: %w", id, err)
	}
	if err := r.loadItems(ctx, []*Bill{b}); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*Bill, error) {
	return r.get(ctx, `SELECT `+billCols+` FROM bills WHERE id = $1`, id)
}

func (r *repoPG) GetForUpdate(ctx context.Context, id string) (*Bill, error) {
	return r.get(ctx, `SELECT `+billCols+` FROM bills WHERE id = $1 FOR UPDATE`, id)
}

// loadItems fills Items for every bill in one query.
func (r *repoPG) loadItems(ctx context.Context, bills []*Bill) error {
	if len(bills) == 0 {
		return nil
	}
	byID := make(map[string]*Bill, len(bills))
	ids := make([]string, len(bills))
	for i, b := range bills {
		byID[b.ID] = b
		ids[i] = b.ID
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, bill_id, description, amount, created_at
		FROM bill_items WHERE bill_id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("load bill items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.BillID, &it.Description, &it.Amount, &it.CreatedAt); err != nil {
			return fmt.Errorf("scan bill item: %w", err)
		}
		if b := byID[it.BillID]; b != nil {
			b.Items = append(b.Items, it)
		}
	}
	return rows.Err()
}

func (r *repoPG) Update(ctx context.Context, b *Bill) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE bills SET
			appointment_id=$2, subtotal=$3, discount=$4, tax=$5, total_amount=$6,
			status=$7, payment_method=$8, notes=$9, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		b.ID, b.AppointmentID, b.Subtotal, b.Discount, b.Tax, b.TotalAmount,
		string(b.Status), methodArg(b.PaymentMethod), b.Notes,
	).Scan(&b.UpdatedAt)
	if err != nil {
		err = db.Classify(err, entity)
		if apperr.IsKind(err, apperr.KindNotFound) {
			return apperr.NotFound(entity, b.ID)
		}
		return err
	}
	return nil
}

func (r *repoPG) ReplaceItems(ctx context.Context, b *Bill) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM bill_items WHERE bill_id = $1`, b.ID); err != nil {
		return db.Classify(err, "bill_item")
	}
	return r.insertItems(ctx, b)
}

// Delete removes the bill's items and then the bill, returning the number of
// items removed.
func (r *repoPG) Delete(ctx context.Context, id string) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM bill_items WHERE bill_id = $1`, id)
	if err != nil {
		return 0, db.Classify(err, "bill_item")
	}
	items := int(tag.RowsAffected())

	tag, err = r.conn(ctx).Exec(ctx, `DELETE FROM bills WHERE id = $1`, id)
	if err != nil {
		return 0, db.Classify(err, entity)
	}
	if tag.RowsAffected() == 0 {
		return 0, apperr.NotFound(entity, id)
	}
	return items, nil
}

func filterExprs(f Filter) []exp.Expression {
	var where []exp.Expression
	if f.PatientID != "" {
		where = append(where, goqu.C("patient_id").Eq(f.PatientID))
	}
	if f.AppointmentID != "" {
		where = append(where, goqu.C("appointment_id").Eq(f.AppointmentID))
	}
	if f.Status != "" {
		where = append(where, goqu.C("status").Eq(string(f.Status)))
	}
	if len(f.Statuses) > 0 {
		in := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			in[i] = string(s)
		}
		where = append(where, goqu.C("status").In(in))
	}
	if f.From != nil {
		where = append(where, goqu.C("bill_date").Gte(*f.From))
	}
	if f.To != nil {
		where = append(where, goqu.C("bill_date").Lte(*f.To))
	}
	return where
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Bill, int, error) {
	where := filterExprs(f)

	countSQL, countArgs, err := dialect.From("bills").Prepared(true).
		Select(goqu.COUNT("*")).Where(where...).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build bill count: %w", err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bills: %w", err)
	}

	ds := dialect.From("bills").Prepared(true).Select(billColList...).Where(where...).
		Order(goqu.C("bill_date").Desc(), goqu.C("id").Desc())
	if f.Limit > 0 {
		ds = ds.Limit(uint(f.Limit))
	}
	if f.Offset > 0 {
		ds = ds.Offset(uint(f.Offset))
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build bill list: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bills: %w", err)
	}
	var items []*Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scan bill: %w", err)
		}
		items = append(items, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list bills: %w", err)
	}
	if err := r.loadItems(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
