package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLimit(t *testing.T) {
	tests := map[string]int64{
		"":      1 << 20,
		"512":   512,
		"512K":  512 << 10,
		"1M":    1 << 20,
		"2MB":   2 << 20,
		"1g":    1 << 30,
		"bogus": 1 << 20,
		"-5":    1 << 20,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLimit(in), "parseLimit(%q)", in)
	}
}

// limitedEcho echoes the request body back from POST /api/v1/bills behind
// BodyLimit(limit) and the JSON error handler.
func limitedEcho(limit string) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(zerolog.Nop())
	e.Use(BodyLimit(limit))
	e.POST("/api/v1/bills", func(c echo.Context) error {
		b, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, b)
	})
	e.GET("/api/v1/bills", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return e
}

func TestBodyLimit(t *testing.T) {
	bill := `{"patient_id":"P00000001","subtotal":"500.00","discount":"0.00","tax":"90.00","total_amount":"590.00"}`

	tests := []struct {
		name     string
		limit    string
		body     string
		chunked  bool
		wantCode int
	}{
		{"fits", "1K", bill, false, http.StatusOK},
		{"exactly at limit", "4", "abcd", true, http.StatusOK},
		{"declared too large", "64", bill, false, http.StatusRequestEntityTooLarge},
		{"streamed too large", "64", bill, true, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/bills", strings.NewReader(tt.body))
			if tt.chunked {
				req.Body = io.NopCloser(req.Body)
				req.ContentLength = -1
			}
			rec := httptest.NewRecorder()
			limitedEcho(tt.limit).ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.body, rec.Body.String())
				return
			}
			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body.Error, "request body exceeds")
		})
	}
}

func TestBodyLimit_IgnoresEmptyBody(t *testing.T) {
	rec := httptest.NewRecorder()
	limitedEcho("1").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/bills", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
