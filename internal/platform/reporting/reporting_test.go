package reporting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicorex/hms/internal/platform/apperr"
)

func TestCompletionRate(t *testing.T) {
	tests := []struct {
		completed, total int
		want             string
	}{
		{0, 0, "0"},
		{0, 5, "0"},
		{1, 2, "50"},
		{1, 3, "33.33"},
		{2, 3, "66.67"},
		{4, 4, "100"},
	}
	for _, tt := range tests {
		got := CompletionRate(tt.completed, tt.total)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
			"CompletionRate(%d, %d) = %s, want %s", tt.completed, tt.total, got, tt.want)
	}
}

func TestRange_Validate(t *testing.T) {
	assert.NoError(t, Range{}.validate())
	assert.NoError(t, Range{From: "2025-03-01"}.validate())
	assert.NoError(t, Range{From: "2025-03-01", To: "2025-03-01"}.validate())

	for _, r := range []Range{
		{From: "03/01/2025"},
		{To: "2025-13-01"},
		{From: "2025-03-10", To: "2025-03-01"},
	} {
		assert.True(t, apperr.IsKind(r.validate(), apperr.KindValidation), "%+v", r)
	}
}

func TestRange_Exprs(t *testing.T) {
	assert.Empty(t, Range{}.exprs("bill_date"))
	assert.Len(t, Range{From: "2025-03-01", To: "2025-03-31"}.exprs("bill_date"), 2)

	sql, args, err := dialect.From("bills").Select("id").
		Where(Range{To: "2025-03-31"}.exprs("bill_date")...).Prepared(true).ToSQL()
	require.NoError(t, err)
	assert.Contains(t, sql, `"bill_date" < $1::date + 1`)
	assert.Equal(t, []interface{}{"2025-03-31"}, args)
}

func TestHandler_RevenueRejectsBadMonths(t *testing.T) {
	h := NewHandler(nil)
	e := echo.New()
	for _, v := range []string{"0", "-3", "abc", "121"} {
		req := httptest.NewRequest(http.MethodGet, "/reports/revenue/monthly?months="+v, nil)
		err := h.Revenue(e.NewContext(req, httptest.NewRecorder()))
		assert.True(t, apperr.IsKind(err, apperr.KindValidation), "months=%s", v)
	}
}

func TestHandler_StatsRejectBadRange(t *testing.T) {
	h := NewHandler(&Service{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/reports/stats/billing?from=2025-04-01&to=2025-03-01", nil)
	err := h.BillingStats(e.NewContext(req, httptest.NewRecorder()))
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	req = httptest.NewRequest(http.MethodGet, "/reports/stats/appointments?from=yesterday", nil)
	err = h.AppointmentStats(e.NewContext(req, httptest.NewRecorder()))
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestService_UnknownIDsAreNotFound(t *testing.T) {
	svc := &Service{}
	_, err := svc.PatientSummary(context.Background(), "X1")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = svc.DoctorPerformance(context.Background(), "P00000001")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestMonthlyRevenue_JSON(t *testing.T) {
	b, err := json.Marshal(MonthlyRevenue{Month: "2025-03", Billed: decimal.RequireFromString("900.50"), Bills: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"month":"2025-03","billed":"900.5","revenue":"0","bill_count":2,"paid_bill_count":0}`, string(b))
}

func TestHandler_RegisterRoutes(t *testing.T) {
	e := echo.New()
	NewHandler(nil).RegisterRoutes(e.Group("/api/v1"))

	routes := map[string]bool{}
	for _, r := range e.Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /api/v1/reports/dashboard",
		"GET /api/v1/reports/patients/summary",
		"GET /api/v1/reports/patients/:id/summary",
		"GET /api/v1/reports/doctors/performance",
		"GET /api/v1/reports/doctors/:id/performance",
		"GET /api/v1/reports/revenue/monthly",
		"GET /api/v1/reports/stats/patients",
		"GET /api/v1/reports/stats/doctors",
		"GET /api/v1/reports/stats/appointments",
		"GET /api/v1/reports/stats/billing",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}
