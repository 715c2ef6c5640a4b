package identity

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medicorex/hms/internal/platform/apperr"
	"github.com/medicorex/hms/internal/platform/auth"
	"github.com/medicorex/hms/pkg/pagination"
)

type Handler struct {
	svc     *Service
	revoked *auth.Revocations
}

func NewHandler(svc *Service, revoked *auth.Revocations) *Handler {
	return &Handler{svc: svc, revoked: revoked}
}

// RegisterRoutes mounts /auth and the admin-only /users routes. login is
// given extra middleware such as a rate limiter.
func (h *Handler) RegisterRoutes(api *echo.Group, login ...echo.MiddlewareFunc) {
	a := api.Group("/auth")
	a.POST("/login", h.Login, login...)
	a.POST("/logout", h.Logout)
	a.GET("/me", h.Me)

	users := api.Group("/users", auth.RequireRole(auth.RoleAdmin))
	users.GET("", h.List)
	users.POST("", h.Create)
	users.GET("/:id", h.Get)
	users.POST("/:id/enable", h.Enable)
	users.POST("/:id/disable", h.Disable)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(entity, "body", "malformed request body")
	}
	if req.Username == "" || req.Password == "" {
		return apperr.Validation(entity, "username", "username and password are required")
	}
	sess, err := h.svc.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

// Logout revokes the presented token until it would have expired anyway.
func (h *Handler) Logout(c echo.Context) error {
	if claims, ok := c.Get("claims").(*auth.Claims); ok && h.revoked != nil {
		h.revoked.RevokeToken(claims)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Me(c echo.Context) error {
	ctx := c.Request().Context()
	roles := auth.RolesFromContext(ctx)
	if len(roles) == 0 {
		return apperr.Unauthorized("not signed in")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"user_id":  auth.UserIDFromContext(ctx),
		"username": auth.UsernameFromContext(ctx),
		"role":     roles[0],
	})
}

func (h *Handler) Create(c echo.Context) error {
	var in NewUser
	if err := c.Bind(&in); err != nil {
		return apperr.Validation(entity, "body", "malformed request body")
	}
	u, err := h.svc.CreateUser(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) Get(c echo.Context) error {
	u, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Enable(c echo.Context) error {
	return h.setActive(c, true)
}

func (h *Handler) Disable(c echo.Context) error {
	return h.setActive(c, false)
}

func (h *Handler) setActive(c echo.Context, active bool) error {
	u, err := h.svc.SetActive(c.Request().Context(), c.Param("id"), active)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}
