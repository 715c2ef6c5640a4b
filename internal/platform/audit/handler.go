package audit

import (
	"net/http"
	"strconv"
	"time"

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

// RegisterRoutes mounts the audit log. Only GET routes exist.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/audit", auth.RequireRole(auth.RoleAdmin))
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/entity/:type/:id", h.History)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		EntityType: c.QueryParam("entity_type"),
		EntityID:   c.QueryParam("entity_id"),
		UserID:     c.QueryParam("user_id"),
		Limit:      pg.Limit,
		Offset:     pg.Offset,
	}
	if a := c.QueryParam("action"); a != "" {
		action, err := ParseAction(a)
		if err != nil {
			return apperr.Validation("audit_entry", "action", "%s", err.Error())
		}
		f.Action = action
	}
	var err error
	if f.From, err = parseTime(c.QueryParam("from"), "from"); err != nil {
		return err
	}
	if f.To, err = parseTime(c.QueryParam("to"), "to"); err != nil {
		return err
	}

	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return apperr.Validation("audit_entry", "id", "invalid id")
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) History(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.History(c.Request().Context(), c.Param("type"), c.Param("id"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

// parseTime accepts RFC 3339 timestamps or plain dates.
func parseTime(v, field string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Validation("audit_entry", field, "expected YYYY-MM-DD or RFC 3339, got %q", v)
}
