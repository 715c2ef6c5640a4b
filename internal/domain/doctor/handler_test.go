package doctor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medicorex/hms/internal/platform/apperr"
)

func TestHandler_CreateDoctor(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	e := echo.New()

	body := `{"name":"Dr. Anil Mehta","specialization":"Cardiology","phone":"9811111111",
		"email":"mehta@example.com","experience":12,"qualification":"MD","consultation_fee":"750.50"}`
	req := httptest.NewRequest(http.MethodPost, "/doctors", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Create(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var got Doctor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "D00000001", got.ID)
	assert.Equal(t, "750.5", got.ConsultationFee.String())
}

func TestHandler_Specializations(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), mehta())
	require.NoError(t, err)
	h := NewHandler(f.svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	require.NoError(t, h.Specializations(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))

	var got []SpecializationCount
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Cardiology", got[0].Specialization)
}

func TestHandler_ListDoctors_BadStatus(t *testing.T) {
	h := NewHandler(newFixture().svc)
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/doctors?status=Busy", nil), httptest.NewRecorder())
	assert.True(t, apperr.IsKind(h.List(c), apperr.KindValidation))
}

func TestHandler_DeleteDoctor_NotFound(t *testing.T) {
	h := NewHandler(newFixture().svc)
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("D00000042")
	assert.True(t, apperr.IsKind(h.Delete(c), apperr.KindNotFound))
}
