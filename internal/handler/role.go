package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/avdeevk/job-board/internal/repository"
)

// RoleHandler exposes role administration.  All routes are mounted
// behind the admin role check.
type RoleHandler struct {
	Roles *repository.RoleRepo
}

func NewRoleHandler(roles *repository.RoleRepo) *RoleHandler {
	return &RoleHandler{Roles: roles}
}

type roleResp struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

type roleReq struct {
	Name string `json:"name"`
}
type assignReq struct {
	UserID uint64 `json:"user_id"`
	RoleID uint64 `json:"role_id"`
}

func (h *RoleHandler) Create(c echo.Context) error {
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	role, err := h.Roles.Create(ctx, req.Name)
	if err != nil {
		return fail(c, err, "create role failed")
	}
	return c.JSON(http.StatusCreated, roleResp{ID: role.ID, Name: role.Name})
}

func (h *RoleHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	role, err := h.Roles.GetByID(ctx, id)
	if err != nil {
		return fail(c, err, "load role failed")
	}
	return c.JSON(http.StatusOK, roleResp{ID: role.ID, Name: role.Name})
}

func (h *RoleHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	roles, err := h.Roles.List(ctx)
	if err != nil {
		return fail(c, err, "list roles failed")
	}
	out := make([]roleResp, 0, len(roles))
	for _, r := range roles {
		out = append(out, roleResp{ID: r.ID, Name: r.Name})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *RoleHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	role, err := h.Roles.Update(ctx, id, req.Name)
	if err != nil {
		return fail(c, err, "update role failed")
	}
	return c.JSON(http.StatusOK, roleResp{ID: role.ID, Name: role.Name})
}

func (h *RoleHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Roles.Delete(ctx, id); err != nil {
		return fail(c, err, "delete role failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Assign grants a role to a user.  Granting the same role twice is a
// conflict.
func (h *RoleHandler) Assign(c echo.Context) error {
	var req assignReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 || req.RoleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id/role_id required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Roles.Assign(ctx, req.UserID, req.RoleID); err != nil {
		return fail(c, err, "assign role failed")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *RoleHandler) Unassign(c echo.Context) error {
	var req assignReq
	if err := c.Bind(&req); err != nil || req.UserID == 0 || req.RoleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id/role_id required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Roles.Unassign(ctx, req.UserID, req.RoleID); err != nil {
		return fail(c, err, "unassign role failed")
	}
	return c.NoContent(http.StatusNoContent)
}
