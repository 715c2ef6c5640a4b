package billing

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/rules"
)

const entity = "bill"

type PaymentMethod string

const (
	PaymentCash      PaymentMethod = "cash"
	PaymentCard      PaymentMethod = "card"
	PaymentUPI       PaymentMethod = "upi"
	PaymentInsurance PaymentMethod = "insurance"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentUPI, PaymentInsurance:
		return true
	}
	return false
}

// Bill is a charge raised against a patient, optionally for one appointment.
type Bill struct {
	ID            string           `json:"id"`
	PatientID     string           `json:"patient_id"`
	AppointmentID *string          `json:"appointment_id"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	Discount      decimal.Decimal  `json:"discount"`
	Tax           decimal.Decimal  `json:"tax"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
	Status        rules.BillStatus `json:"status"`
	PaymentMethod *PaymentMethod   `json:"payment_method"`
	Notes         *string          `json:"notes"`
	BillDate      time.Time        `json:"bill_date"`
	Items         []Item           `json:"items"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

func (b *Bill) amounts() rules.Amounts {
	return rules.Amounts{Subtotal: b.Subtotal, Discount: b.Discount, Tax: b.Tax, Total: b.TotalAmount}
}

func (b *Bill) setAmounts(a rules.Amounts) {
	b.Subtotal, b.Discount, b.Tax, b.TotalAmount = a.Subtotal, a.Discount, a.Tax, a.Total
}

func (b *Bill) itemAmounts() []decimal.Decimal {
	out := make([]decimal.Decimal, len(b.Items))
	for i, it := range b.Items {
		out[i] = it.Amount
	}
	return out
}

// clone copies b deep enough that edits to the copy's items leave b alone.
func (b *Bill) clone() *Bill {
	cp := *b
	cp.Items = append([]Item(nil), b.Items...)
	return &cp
}

type Item struct {
	ID          int64           `json:"id"`
	BillID      string          `json:"bill_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ItemDraft is a line item as supplied by a caller.
type ItemDraft struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

func validateItems(id string, items []ItemDraft) ([]Item, error) {
	out := make([]Item, len(items))
	for i, it := range items {
		desc := strings.TrimSpace(it.Description)
		if desc == "" {
			return nil, apperr.Validation(entity, "items.description", "item %d has no description", i+1).WithID(id)
		}
		if utf8.RuneCountInString(desc) > 200 {
			return nil, apperr.Validation(entity, "items.description", "item %d description exceeds 200 characters", i+1).WithID(id)
		}
		if it.Amount.IsNegative() {
			return nil, apperr.InvalidAmount(entity, id, "items.amount", "item %d must not be negative, got %s", i+1, it.Amount.String())
		}
		if !it.Amount.Equal(rules.Round(it.Amount)) {
			return nil, apperr.InvalidAmount(entity, id, "items.amount", "item %d has more than %d decimal places: %s", i+1, rules.Places, it.Amount.String())
		}
		out[i] = Item{BillID: id, Description: desc, Amount: it.Amount}
	}
	return out, nil
}

// Draft is the input of Create. Subtotal is derived from Items when there are
// any; Tax may be given directly or as TaxRate, a percentage of
// subtotal - discount. TotalAmount, when given, must match the derived total.
type Draft struct {
	PatientID     string           `json:"patient_id"`
	AppointmentID *string          `json:"appointment_id"`
	Items         []ItemDraft      `json:"items"`
	Subtotal      *decimal.Decimal `json:"subtotal"`
	Discount      *decimal.Decimal `json:"discount"`
	Tax           *decimal.Decimal `json:"tax"`
	TaxRate       *decimal.Decimal `json:"tax_rate"`
	TotalAmount   *decimal.Decimal `json:"total_amount"`
	Status        rules.BillStatus `json:"status"`
	PaymentMethod *PaymentMethod   `json:"payment_method"`
	Notes         *string          `json:"notes"`
	BillDate      *time.Time       `json:"bill_date"`
}

// Patch carries the fields of an update. Nil fields are left alone; a non-nil
// Items replaces every line item, and an empty AppointmentID detaches the bill.
type Patch struct {
	AppointmentID *string           `json:"appointment_id"`
	Items         *[]ItemDraft      `json:"items"`
	Subtotal      *decimal.Decimal  `json:"subtotal"`
	Discount      *decimal.Decimal  `json:"discount"`
	Tax           *decimal.Decimal  `json:"tax"`
	TaxRate       *decimal.Decimal  `json:"tax_rate"`
	TotalAmount   *decimal.Decimal  `json:"total_amount"`
	Status        *rules.BillStatus `json:"status"`
	PaymentMethod *PaymentMethod    `json:"payment_method"`
	Notes         *string           `json:"notes"`
}

func (p Patch) Empty() bool {
	return p == Patch{}
}

func (p Patch) touchesAmounts() bool {
	return p.Items != nil || p.Subtotal != nil || p.Discount != nil || p.Tax != nil ||
		p.TaxRate != nil || p.TotalAmount != nil
}

// pricing gathers the money inputs of a write before derivation.
type pricing struct {
	items    []decimal.Decimal
	subtotal *decimal.Decimal
	discount decimal.Decimal
	tax      *decimal.Decimal
	taxRate  *decimal.Decimal
	total    *decimal.Decimal
}

// derive resolves subtotal, tax and total and checks the amount invariant.
func (p pricing) derive(id string) (rules.Amounts, error) {
	if p.tax != nil && p.taxRate != nil {
		return rules.Amounts{}, apperr.Validation(entity, "tax_rate", "give either tax or tax_rate, not both").WithID(id)
	}
	if p.taxRate != nil && (p.taxRate.IsNegative() || p.taxRate.GreaterThan(decimal.NewFromInt(100))) {
		return rules.Amounts{}, apperr.Validation(entity, "tax_rate", "must be between 0 and 100, got %s", p.taxRate.String()).WithID(id)
	}

	subtotal := decimal.Zero
	switch {
	case len(p.items) > 0:
		sum := rules.SumItems(p.items)
		given := sum
		if p.subtotal != nil {
			given = *p.subtotal
		}
		if err := rules.CheckItemsSubtotal(id, given, p.items); err != nil {
			return rules.Amounts{}, err
		}
		subtotal = sum
	case p.subtotal != nil:
		subtotal = *p.subtotal
	}

	tax := decimal.Zero
	switch {
	case p.taxRate != nil:
		tax = rules.TaxFromRate(subtotal, p.discount, *p.taxRate)
	case p.tax != nil:
		tax = *p.tax
	}

	a := rules.Amounts{
		Subtotal: subtotal,
		Discount: p.discount,
		Tax:      tax,
		Total:    rules.ComputeTotal(subtotal, p.discount, tax),
	}
	if p.total != nil {
		a.Total = *p.total
	}
	if err := rules.CheckAmounts(id, a); err != nil {
		return rules.Amounts{}, err
	}
	return a, nil
}

func normalizeText(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// checkPayment enforces that a paid bill names a known payment method.
func checkPayment(id string, status rules.BillStatus, method *PaymentMethod) error {
	if !status.Valid() {
		return apperr.Validation(entity, "status", "unknown status %q", status).WithID(id)
	}
	if method != nil && !method.Valid() {
		return apperr.Validation(entity, "payment_method", "unknown payment method %q", *method).WithID(id)
	}
	if status == rules.BillPaid && method == nil {
		return apperr.Validation(entity, "payment_method", "is required when the bill is paid").WithID(id)
	}
	return nil
}

// Filter selects bills for List. From and To bound bill_date, inclusive.
type Filter struct {
	PatientID     string
	AppointmentID string
	Status        rules.BillStatus
	Statuses      []rules.BillStatus
	From          *time.Time
	To            *time.Time
	Limit         int
	Offset        int
}
