package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avdeevk/job-board/internal/model"
	"github.com/avdeevk/job-board/internal/repository"
)

// ResumeHandler exposes resumes: browsing for authenticated users plus
// owner CRUD.
type ResumeHandler struct {
	Resumes *repository.ResumeRepo
}

func NewResumeHandler(r *repository.ResumeRepo) *ResumeHandler {
	return &ResumeHandler{Resumes: r}
}

type resumeResp struct {
	ID         uint64    `json:"id"`
	UserID     uint64    `json:"user_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	MiddleName string    `json:"middle_name"`
	Age        int       `json:"age"`
	Experience string    `json:"experience"`
	Education  string    `json:"education"`
	About      string    `json:"about"`
	CreatedAt  time.Time `json:"created_at"`
}

func toResumeResp(r *model.Resume) resumeResp {
	return resumeResp{
		ID:         r.ID,
		UserID:     r.UserID,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		MiddleName: r.MiddleName,
		Age:        r.Age,
		Experience: r.Experience,
		Education:  r.Education,
		About:      r.About,
		CreatedAt:  r.CreatedAt,
	}
}

type resumeReq struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	MiddleName string `json:"middle_name"`
	Age        int    `json:"age"`
	Experience string `json:"experience"`
	Education  string `json:"education"`
	About      string `json:"about"`
}

// Create publishes a resume owned by the caller.
func (h *ResumeHandler) Create(c echo.Context) error {
	var req resumeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" || req.LastName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "first_name/last_name required"})
	}
	if req.Age <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "age must be positive"})
	}
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Resumes.Create(ctx, &model.Resume{
		UserID:     uid,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		MiddleName: req.MiddleName,
		Age:        req.Age,
		Experience: req.Experience,
		Education:  req.Education,
		About:      req.About,
	})
	if err != nil {
		return fail(c, err, "create resume failed")
	}
	return c.JSON(http.StatusCreated, toResumeResp(res))
}

func (h *ResumeHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Resumes.GetByID(ctx, id)
	if err != nil {
		return fail(c, err, "load resume failed")
	}
	return c.JSON(http.StatusOK, toResumeResp(res))
}

// List returns resumes with optional filters: ?specialty= and
// ?education= substring-match, ?min_age=/?max_age= bound the age.
func (h *ResumeHandler) List(c echo.Context) error {
	limit, offset := pageParams(c)
	filter := repository.ResumeFilter{
		Specialty: strings.TrimSpace(c.QueryParam("specialty")),
		Education: strings.TrimSpace(c.QueryParam("education")),
	}
	if v, err := strconv.Atoi(c.QueryParam("min_age")); err == nil && v > 0 {
		filter.MinAge = v
	}
	if v, err := strconv.Atoi(c.QueryParam("max_age")); err == nil && v > 0 {
		filter.MaxAge = v
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Resumes.List(ctx, filter, limit, offset)
	if err != nil {
		return fail(c, err, "list resumes failed")
	}
	out := make([]resumeResp, 0, len(list))
	for i := range list {
		out = append(out, toResumeResp(&list[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// Update patches a resume owned by the caller.
func (h *ResumeHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req resumeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	patch := map[string]string{}
	for col, val := range map[string]string{
		"first_name":  req.FirstName,
		"last_name":   req.LastName,
		"middle_name": req.MiddleName,
		"experience":  req.Experience,
		"education":   req.Education,
		"about":       req.About,
	} {
		if strings.TrimSpace(val) != "" {
			patch[col] = val
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Resumes.Update(ctx, id, uid, patch, req.Age)
	if err != nil {
		return fail(c, err, "update resume failed")
	}
	return c.JSON(http.StatusOK, toResumeResp(res))
}

// Delete soft-deletes a resume.  Owners delete their own; admins may
// delete any.
func (h *ResumeHandler) Delete(c echo.Context) error {
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

	if err := h.Resumes.Delete(ctx, id, uid, isAdmin(c)); err != nil {
		return fail(c, err, "delete resume failed")
	}
	return c.NoContent(http.StatusNoContent)
}
