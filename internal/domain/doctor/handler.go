package doctor

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
	readGroup := api.Group("/doctors", auth.RequireRole(auth.RoleDoctor, auth.RoleReceptionist))
	readGroup.GET("", h.List)
	readGroup.GET("/active", h.Active)
	readGroup.GET("/specializations", h.Specializations)
	readGroup.GET("/:id", h.Get)

	writeGroup := api.Group("/doctors", auth.RequireRole(auth.RoleAdmin))
	writeGroup.POST("", h.Create)
	writeGroup.PUT("/:id", h.Update)
	writeGroup.PATCH("/:id", h.Update)
	writeGroup.DELETE("/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return apperr.Validation(entity, "body", "malformed request body")
	}
	created, err := h.svc.Create(c.Request().Context(), &d)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) Get(c echo.Context) error {
	d, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		Name:           c.QueryParam("name"),
		Specialization: c.QueryParam("specialization"),
		Status:         rules.DoctorStatus(c.QueryParam("status")),
		Limit:          pg.Limit,
		Offset:         pg.Offset,
	}
	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Active(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Active(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Specializations(c echo.Context) error {
	items, err := h.svc.Specializations(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Update(c echo.Context) error {
	var patch Patch
	if err := c.Bind(&patch); err != nil {
		return apperr.Validation(entity, "body", "malformed request body")
	}
	d, err := h.svc.Update(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
