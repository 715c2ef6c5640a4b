package scheduling

import (
	"net/http"

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
	readGroup := api.Group("/appointments", auth.RequireRole(auth.RoleDoctor, auth.RoleReceptionist))
	readGroup.GET("", h.List)
	readGroup.GET("/upcoming", h.Upcoming)
	readGroup.GET("/availability", h.Availability)
	readGroup.GET("/date/:date", h.OnDate)
	readGroup.GET("/:id", h.Get)
	readGroup.POST("/:id/confirm", h.Confirm)
	readGroup.POST("/:id/complete", h.Complete)
	readGroup.POST("/:id/cancel", h.Cancel)

	writeGroup := api.Group("/appointments", auth.RequireRole(auth.RoleReceptionist))
	writeGroup.POST("", h.Create)
	writeGroup.PUT("/:id", h.Update)
	writeGroup.PATCH("/:id", h.Update)
	writeGroup.DELETE("/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return apperr.Validation(entity, "body", "malformed request body")
	}
	created, err := h.svc.Book(c.Request().Context(), &a)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) Get(c echo.Context) error {
	a, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		PatientID: c.QueryParam("patient_id"),
		DoctorID:  c.QueryParam("doctor_id"),
		Status:    rules.AppointmentStatus(c.QueryParam("status")),
		From:      c.QueryParam("from"),
		To:        c.QueryParam("to"),
		Limit:     pg.Limit,
		Offset:    pg.Offset,
	}
	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Upcoming(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Upcoming(c.Request().Context(),
		c.QueryParam("doctor_id"), c.QueryParam("patient_id"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Availability(c echo.Context) error {
	av, err := h.svc.CheckAvailability(c.Request().Context(),
		c.QueryParam("doctor_id"), c.QueryParam("date"), c.QueryParam("time"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, av)
}

func (h *Handler) OnDate(c echo.Context) error {
	items, err := h.svc.OnDate(c.Request().Context(), c.Param("date"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"date": c.Param("date"), "appointments": items})
}

func (h *Handler) Update(c echo.Context) error {
	var patch Patch
	if err := c.Bind(&patch); err != nil {
		return apperr.Validation(entity, "body", "malformed request body")
	}
	a, err := h.svc.Update(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Confirm(c echo.Context) error {
	return h.transition(c, rules.AppointmentConfirmed)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.transition(c, rules.AppointmentCompleted)
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.transition(c, rules.AppointmentCancelled)
}

func (h *Handler) transition(c echo.Context, to rules.AppointmentStatus) error {
	a, err := h.svc.Transition(c.Request().Context(), c.Param("id"), to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
