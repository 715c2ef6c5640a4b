package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicorex/hms/internal/platform/apperr"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		rid := c.Get("request_id").(string)
		if rid == "" {
			t.Error("expected request_id to be generated")
		}
		if RequestIDFromContext(c.Request().Context()) != rid {
			t.Error("expected request id on the request context")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if rid := c.Get("request_id").(string); rid != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	}

	_ = RequestID()(handler)(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(WithRequestID(req.Context(), "req-1"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	require.NoError(t, Logger(logger)(handler)(c))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, float64(200), line["status"])
	assert.Equal(t, "/test", line["path"])
}

func TestLogger_WarnsOnClientError(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.Nop())
	req := httptest.NewRequest(http.MethodGet, "/patients/P00000009", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return apperr.NotFound("patient", "P00000009")
	}

	require.NoError(t, Logger(logger)(handler)(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, float64(404), line["status"])
}

func TestRecovery_CatchesPanic(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		panic("test panic")
	}

	err := Recovery(zerolog.Nop())(handler)(c)
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	if !apperr.IsKind(err, apperr.KindInternal) {
		t.Errorf("expected internal error, got %v", err)
	}
}

func TestRecovery_ReraisesAbort(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	h := Recovery(zerolog.Nop())(func(echo.Context) error { panic(http.ErrAbortHandler) })
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() { _ = h(c) })
}

func TestRecovery_PassesThrough(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	if err := Recovery(zerolog.Nop())(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func renderError(t *testing.T, err error) (int, ErrorBody) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/bills", nil)
	req = req.WithContext(WithRequestID(req.Context(), "rid-7"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ErrorHandler(zerolog.Nop())(err, c)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestErrorHandler_AppErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{apperr.Validation("patient", "phone", "must be 10 digits"), http.StatusBadRequest, "ValidationError"},
		{apperr.NotFound("doctor", "D00000001"), http.StatusNotFound, "NotFound"},
		{apperr.ForeignKey("appointment", "patient_id", "patient", "P00000009"), http.StatusUnprocessableEntity, "ForeignKeyViolation"},
		{apperr.IllegalTransition("appointment", "A00000001", "pending", "completed"), http.StatusConflict, "IllegalStatusTransition"},
		{apperr.InvalidAmount("bill", "B00000001", "total_amount", "mismatch"), http.StatusUnprocessableEntity, "InvalidAmount"},
		{apperr.Duplicate("patient", "phone", "9876543210"), http.StatusConflict, "DuplicateKey"},
		{apperr.SlotUnavailable("D00000001", "2024-05-01", "10:00"), http.StatusConflict, "SlotUnavailable"},
		{apperr.Unauthorized("bad credentials"), http.StatusUnauthorized, "Unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			status, body := renderError(t, tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, body.Kind)
			assert.Equal(t, tt.err.Error(), body.Error)
			assert.Equal(t, "rid-7", body.RequestID)
		})
	}
}

func TestErrorHandler_InternalHidesDetail(t *testing.T) {
	status, body := renderError(t, apperr.Internal("query failed", assert.AnError))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal Server Error", body.Error)
	assert.NotContains(t, body.Error, "query failed")
}

func TestErrorHandler_EchoHTTPError(t *testing.T) {
	status, body := renderError(t, echo.NewHTTPError(http.StatusForbidden, "required role: admin"))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "required role: admin", body.Error)
	assert.Empty(t, body.Kind)
}

func TestErrorHandler_ExposesFields(t *testing.T) {
	_, body := renderError(t, apperr.InvalidAmount("bill", "B00000003", "total_amount", "expected 450.00, got 500.00"))
	assert.Equal(t, "bill", body.Entity)
	assert.Equal(t, "B00000003", body.ID)
	assert.Equal(t, "total_amount", body.Field)
}
