package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avdeevk/job-board/internal/model"
	"github.com/avdeevk/job-board/internal/repository"
)

// VacancyHandler exposes vacancy postings: public browsing plus owner
// CRUD.
type VacancyHandler struct {
	Vacancies *repository.VacancyRepo
}

func NewVacancyHandler(v *repository.VacancyRepo) *VacancyHandler {
	return &VacancyHandler{Vacancies: v}
}

type vacancyReq struct {
	PlaceOfWork  string `json:"place_of_work"`
	AboutCompany string `json:"about_company"`
	Specialty    string `json:"specialty"`
	Salary       string `json:"salary"`
	Conditions   string `json:"conditions"`
	Experience   string `json:"experience"`
	Vacant       string `json:"vacant"` // "yes" | "no"
}

type vacancyResp struct {
	ID           uint64    `json:"id"`
	UserID       uint64    `json:"user_id"`
	PlaceOfWork  string    `json:"place_of_work"`
	AboutCompany string    `json:"about_company"`
	Specialty    string    `json:"specialty"`
	Salary       string    `json:"salary"`
	Conditions   string    `json:"conditions"`
	Experience   string    `json:"experience"`
	Vacant       string    `json:"vacant"`
	CreatedAt    time.Time `json:"created_at"`
}

func toVacancyResp(v *model.Vacancy) vacancyResp {
	return vacancyResp{
		ID:           v.ID,
		UserID:       v.UserID,
		PlaceOfWork:  v.PlaceOfWork,
		AboutCompany: v.AboutCompany,
		Specialty:    v.Specialty,
		Salary:       v.Salary,
		Conditions:   v.Conditions,
		Experience:   v.Experience,
		Vacant:       v.Vacant,
		CreatedAt:    v.CreatedAt,
	}
}

func (req *vacancyReq) normalize() {
	req.PlaceOfWork = strings.TrimSpace(req.PlaceOfWork)
	req.Specialty = strings.TrimSpace(req.Specialty)
	req.Vacant = strings.ToLower(strings.TrimSpace(req.Vacant))
}

// Create publishes a new vacancy owned by the caller.
func (h *VacancyHandler) Create(c echo.Context) error {
	var req vacancyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.normalize()
	if req.PlaceOfWork == "" || req.Specialty == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "place_of_work/specialty required"})
	}
	if req.Vacant == "" {
		req.Vacant = "yes"
	}
	if req.Vacant != "yes" && req.Vacant != "no" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "vacant must be yes or no"})
	}
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.Vacancies.Create(ctx, &model.Vacancy{
		UserID:       uid,
		PlaceOfWork:  req.PlaceOfWork,
		AboutCompany: req.AboutCompany,
		Specialty:    req.Specialty,
		Salary:       req.Salary,
		Conditions:   req.Conditions,
		Experience:   req.Experience,
		Vacant:       req.Vacant,
	})
	if err != nil {
		return fail(c, err, "create vacancy failed")
	}
	return c.JSON(http.StatusCreated, toVacancyResp(v))
}

// Get returns one vacancy.  Public.
func (h *VacancyHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.Vacancies.GetByID(ctx, id)
	if err != nil {
		return fail(c, err, "load vacancy failed")
	}
	return c.JSON(http.StatusOK, toVacancyResp(v))
}

// List returns vacancies with optional filters.  Public.
// ?place=...&specialty=... substring-match; ?vacant=true keeps open
// postings only.
func (h *VacancyHandler) List(c echo.Context) error {
	limit, offset := pageParams(c)
	filter := repository.VacancyFilter{
		PlaceOfWork: strings.TrimSpace(c.QueryParam("place")),
		Specialty:   strings.TrimSpace(c.QueryParam("specialty")),
		VacantOnly:  c.QueryParam("vacant") == "true",
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	list, err := h.Vacancies.List(ctx, filter, limit, offset)
	if err != nil {
		return fail(c, err, "list vacancies failed")
	}
	out := make([]vacancyResp, 0, len(list))
	for i := range list {
		out = append(out, toVacancyResp(&list[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// Update patches a vacancy owned by the caller.
func (h *VacancyHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req map[string]string
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if v, ok := req["vacant"]; ok {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "yes" && v != "no" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "vacant must be yes or no"})
		}
		req["vacant"] = v
	}
	uid, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.Vacancies.Update(ctx, id, uid, req)
	if err != nil {
		return fail(c, err, "update vacancy failed")
	}
	return c.JSON(http.StatusOK, toVacancyResp(v))
}

// Delete soft-deletes a vacancy.  Owners delete their own; admins may
// delete any.
func (h *VacancyHandler) Delete(c echo.Context) error {
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

	if err := h.Vacancies.Delete(ctx, id, uid, isAdmin(c)); err != nil {
		return fail(c, err, "delete vacancy failed")
	}
	return c.NoContent(http.StatusNoContent)
}
