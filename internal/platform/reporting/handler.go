package reporting

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/auth"
	"github.com/medicorex/hms/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports", auth.RequireRole(auth.RoleDoctor, auth.RoleReceptionist))
	g.GET("/dashboard", h.Dashboard)
	g.GET("/patients/summary", h.PatientSummaries)
	g.GET("/patients/:id/summary", h.PatientSummary)
	g.GET("/doctors/performance", h.DoctorPerformances)
	g.GET("/doctors/:id/performance", h.DoctorPerformance)
	g.GET("/revenue/monthly", h.Revenue)
	g.GET("/stats/patients", h.PatientStats)
	g.GET("/stats/doctors", h.DoctorStats)
	g.GET("/stats/appointments", h.AppointmentStats)
	g.GET("/stats/billing", h.BillingStats)
}

func (h *Handler) Dashboard(c echo.Context) error {
	d, err := h.svc.Dashboard(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) PatientSummaries(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.PatientSummaries(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) PatientSummary(c echo.Context) error {
	ps, err := h.svc.PatientSummary(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ps)
}

func (h *Handler) DoctorPerformances(c echo.Context) error {
	items, err := h.svc.DoctorPerformances(c.Request().Context())
	if err != nil {
		return err
	}
	if items == nil {
		items = []DoctorPerformance{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}

func (h *Handler) DoctorPerformance(c echo.Context) error {
	dp, err := h.svc.DoctorPerformance(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dp)
}

func (h *Handler) Revenue(c echo.Context) error {
	months := DefaultMonths
	if v := c.QueryParam("months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 120 {
			return apperr.Validation("report", "months", "must be between 1 and 120, got %q", v)
		}
		months = n
	}
	items, err := h.svc.Revenue(c.Request().Context(), months)
	if err != nil {
		return err
	}
	if items == nil {
		items = []MonthlyRevenue{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"months": months, "data": items})
}

func (h *Handler) PatientStats(c echo.Context) error {
	st, err := h.svc.PatientStats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) DoctorStats(c echo.Context) error {
	st, err := h.svc.DoctorStats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func rangeFromQuery(c echo.Context) Range {
	return Range{From: c.QueryParam("from"), To: c.QueryParam("to")}
}

func (h *Handler) AppointmentStats(c echo.Context) error {
	st, err := h.svc.AppointmentStats(c.Request().Context(), rangeFromQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) BillingStats(c echo.Context) error {
	st, err := h.svc.BillingStats(c.Request().Context(), rangeFromQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}
