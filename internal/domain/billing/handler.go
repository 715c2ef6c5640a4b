package billing

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/auth"
	"github.com/medicorex/hms/internal/platform/rules"
	"github.com/medicorex/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/bills", auth.RequireRole(auth.RoleReceptionist))
	g.GET("", h.List)
	g.GET("/outstanding", h.Outstanding)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.PATCH("/:id", h.Update)
	g.POST("/:id/pay", h.Pay)
	g.DELETE("/:id", h.Delete)

	api.Group("/patients", auth.RequireRole(auth.RoleReceptionist)).GET("/:id/bills", h.ByPatient)
	api.Group("/appointments", auth.RequireRole(auth.RoleReceptionist)).GET("/:id/bills", h.ByAppointment)
}

func (h *Handler) Create(c echo.Context) error {
	var d Draft
	if err := c.Bind(&d); err != nil {
		return apperr.Validation(entity, "body", "malformed request body")
	}
	b, err := h.svc.Create(c.Request().Context(), &d)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) Get(c echo.Context) error {
	b, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		PatientID:     c.QueryParam("patient_id"),
		AppointmentID: c.QueryParam("appointment_id"),
		Status:        rules.BillStatus(c.QueryParam("status")),
		Limit:         pg.Limit,
		Offset:        pg.Offset,
	}
	for _, q := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := c.QueryParam(q.name)
		if v == "" {
			continue
		}
		t, err := parseDate(v)
		if err != nil {
			return apperr.Validation(entity, q.name, "expected RFC3339 or YYYY-MM-DD, got %q", v)
		}
		if q.name == "to" && len(v) == len(dateLayout) {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		*q.dst = &t
	}
	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Outstanding(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Outstanding(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ByPatient(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ByPatient(c.Request().Context(), c.Param("id"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) ByAppointment(c echo.Context) error {
	items, err := h.svc.ByAppointment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"appointment_id": c.Param("id"), "bills": items})
}

func (h *Handler) Update(c echo.Context) error {
	var patch Patch
	if err := c.Bind(&patch); err != nil {
		return apperr.Validation(entity, "body", "malformed request body")
	}
	b, err := h.svc.Update(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

type payRequest struct {
	PaymentMethod PaymentMethod `json:"payment_method"`
}

func (h *Handler) Pay(c echo.Context) error {
	var req payRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(entity, "body", "malformed request body")
	}
	b, err := h.svc.MarkPaid(c.Request().Context(), c.Param("id"), req.PaymentMethod)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

const dateLayout = "2006-01-02"

// parseDate accepts RFC3339 or YYYY-MM-DD. A bare "to" date covers the whole
// day.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(dateLayout, s)
}
