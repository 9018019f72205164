package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avdeevk/job-board/internal/model"
	"github.com/avdeevk/job-board/internal/repository"
)

// CommentHandler exposes comments attached to vacancies.
type CommentHandler struct {
	Comments  *repository.CommentRepo
	Vacancies *repository.VacancyRepo
}

func NewCommentHandler(c *repository.CommentRepo, v *repository.VacancyRepo) *CommentHandler {
	return &CommentHandler{Comments: c, Vacancies: v}
}

type commentResp struct {
	ID        uint64    `json:"id"`
	VacancyID uint64    `json:"vacancy_id"`
	UserID    uint64    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func toCommentResp(cm *model.Comment) commentResp {
	return commentResp{
		ID:        cm.ID,
		VacancyID: cm.VacancyID,
		UserID:    cm.UserID,
		Text:      cm.Text,
		CreatedAt: cm.CreatedAt,
	}
}

type commentReq struct {
	Text string `json:"text"`
}

// Create attaches a comment to a vacancy.  The vacancy must exist and
// be active.
func (h *CommentHandler) Create(c echo.Context) error {
	vacancyID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req commentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "text required"})
	}
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Vacancies.GetByID(ctx, vacancyID); err != nil {
		return fail(c, err, "load vacancy failed")
	}
	comment, err := h.Comments.Create(ctx, vacancyID, uid, req.Text)
	if err != nil {
		return fail(c, err, "create comment failed")
	}
	return c.JSON(http.StatusCreated, toCommentResp(comment))
}

// ListByVacancy returns a vacancy's comments, oldest first.  Public.
func (h *CommentHandler) ListByVacancy(c echo.Context) error {
	vacancyID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	limit, offset := pageParams(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Comments.ListByVacancy(ctx, vacancyID, limit, offset)
	if err != nil {
		return fail(c, err, "list comments failed")
	}
	out := make([]commentResp, 0, len(list))
	for i := range list {
		out = append(out, toCommentResp(&list[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// Update edits a comment authored by the caller.
func (h *CommentHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req commentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "text required"})
	}
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	comment, err := h.Comments.Update(ctx, id, uid, req.Text)
	if err != nil {
		return fail(c, err, "update comment failed")
	}
	return c.JSON(http.StatusOK, toCommentResp(comment))
}

// Delete soft-deletes a comment.  Authors delete their own; admins may
// delete any.
func (h *CommentHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Comments.Delete(ctx, id, uid, isAdmin(c)); err != nil {
		return fail(c, err, "delete comment failed")
	}
	return c.NoContent(http.StatusNoContent)
}
