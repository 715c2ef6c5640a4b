package patient

import (
	"net/http"

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
	readGroup := api.Group("/patients", auth.RequireRole(auth.RoleDoctor, auth.RoleReceptionist))
	readGroup.GET("", h.List)
	readGroup.GET("/phone/:phone", h.GetByPhone)
	readGroup.GET("/:id", h.Get)

	writeGroup := api.Group("/patients", auth.RequireRole(auth.RoleReceptionist))
	writeGroup.POST("", h.Create)
	writeGroup.PUT("/:id", h.Update)
	writeGroup.PATCH("/:id", h.Update)
	writeGroup.DELETE("/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return apperr.Validation(entity, "body", "malformed request body")
	}
	created, err := h.svc.Create(c.Request().Context(), &p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) Get(c echo.Context) error {
	p, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetByPhone(c echo.Context) error {
	p, err := h.svc.GetByPhone(c.Request().Context(), c.Param("phone"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		Name:       c.QueryParam("name"),
		Phone:      c.QueryParam("phone"),
		Gender:     c.QueryParam("gender"),
		BloodGroup: c.QueryParam("blood_group"),
		Limit:      pg.Limit,
		Offset:     pg.Offset,
	}
	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Update(c echo.Context) error {
	var patch Patch
	if err := c.Bind(&patch); err != nil {
		return apperr.Validation(entity, "body", "malformed request body")
	}
	p, err := h.svc.Update(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
