package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/avdeevk/job-board/internal/model"
)

// VacancyRepo provides CRUD operations for job postings.  Reads return
// only active rows; Delete is a soft delete.  Ownership checks live
// here so handlers can map ErrForbidden straight to a 403.
type VacancyRepo struct{ DB *sql.DB }

func NewVacancyRepo(db *sql.DB) *VacancyRepo { return &VacancyRepo{DB: db} }

const vacancyColumns = "id,user_id,place_of_work,about_company,specialty,salary,conditions,experience,vacant,is_active,created_at"

// VacancyFilter narrows List results.  Empty strings match everything.
type VacancyFilter struct {
	PlaceOfWork string // substring match on place_of_work
	Specialty   string // substring match on specialty
	VacantOnly  bool   // only postings still marked vacant
}

// Create inserts a vacancy owned by userID and returns the stored record.
func (r *VacancyRepo) Create(ctx context.Context, v *model.Vacancy) (*model.Vacancy, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO vacancies (user_id, place_of_work, about_company, specialty, salary, conditions, experience, vacant)
		 VALUES (?,?,?,?,?,?,?,?)`,
		v.UserID, v.PlaceOfWork, v.AboutCompany, v.Specialty, v.Salary, v.Conditions, v.Experience, v.Vacant)
	if err != nil {
		return nil, fmt.Errorf("%w: create vacancy: %v", ErrInternal, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: create vacancy: %v", ErrInternal, err)
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID fetches an active vacancy.
func (r *VacancyRepo) GetByID(ctx context.Context, id uint64) (*model.Vacancy, error) {
	return scanVacancy(r.DB.QueryRowContext(ctx,
		"SELECT "+vacancyColumns+" FROM vacancies WHERE id=? AND is_active=1 LIMIT 1", id))
}

// List returns active vacancies matching the filter, newest first.
func (r *VacancyRepo) List(ctx context.Context, f VacancyFilter, limit, offset int) ([]model.Vacancy, error) {
	q := "SELECT " + vacancyColumns + " FROM vacancies WHERE is_active=1"
	args := []any{}
	if s := strings.TrimSpace(f.PlaceOfWork); s != "" {
		q += " AND place_of_work LIKE ?"
		args = append(args, "%"+s+"%")
	}
	if s := strings.TrimSpace(f.Specialty); s != "" {
		q += " AND specialty LIKE ?"
		args = append(args, "%"+s+"%")
	}
	if f.VacantOnly {
		q += " AND vacant='yes'"
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list vacancies: %v", ErrInternal, err)
	}
	defer rows.Close()
	var out []model.Vacancy
	for rows.Next() {
		v, err := scanVacancyRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list vacancies: %v", ErrInternal, err)
	}
	return out, nil
}

// Update applies non-empty fields of patch to a vacancy owned by
// userID and returns the refreshed record.  Updating someone else's
// posting maps to ErrForbidden.
func (r *VacancyRepo) Update(ctx context.Context, id, userID uint64, patch map[string]string) (*model.Vacancy, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.UserID != userID {
		return nil, ErrForbidden
	}
	if len(patch) == 0 {
		return current, nil
	}

	setParts := make([]string, 0, len(patch))
	args := make([]any, 0, len(patch)+1)
	for _, col := range []string{"place_of_work", "about_company", "specialty", "salary", "conditions", "experience", "vacant"} {
		if val, ok := patch[col]; ok {
			setParts = append(setParts, col+"=?")
			args = append(args, val)
		}
	}
	if len(setParts) == 0 {
		return current, nil
	}
	args = append(args, id)
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE vacancies SET "+strings.Join(setParts, ", ")+" WHERE id=? AND is_active=1", args...); err != nil {
		return nil, fmt.Errorf("%w: update vacancy: %v", ErrInternal, err)
	}
	return r.GetByID(ctx, id)
}

// Delete soft-deletes a vacancy owned by userID.  With admin=true the
// ownership check is skipped (moderation path).
func (r *VacancyRepo) Delete(ctx context.Context, id, userID uint64, admin bool) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !admin && current.UserID != userID {
		return ErrForbidden
	}
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE vacancies SET is_active=0 WHERE id=? AND is_active=1", id); err != nil {
		return fmt.Errorf("%w: delete vacancy: %v", ErrInternal, err)
	}
	return nil
}

func scanVacancy(row *sql.Row) (*model.Vacancy, error) {
	var v model.Vacancy
	err := row.Scan(&v.ID, &v.UserID, &v.PlaceOfWork, &v.AboutCompany, &v.Specialty,
		&v.Salary, &v.Conditions, &v.Experience, &v.Vacant, &v.IsActive, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query vacancy: %v", ErrInternal, err)
	}
	return &v, nil
}

func scanVacancyRows(rows *sql.Rows) (*model.Vacancy, error) {
	var v model.Vacancy
	if err := rows.Scan(&v.ID, &v.UserID, &v.PlaceOfWork, &v.AboutCompany, &v.Specialty,
		&v.Salary, &v.Conditions, &v.Experience, &v.Vacant, &v.IsActive, &v.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: scan vacancy: %v", ErrInternal, err)
	}
	return &v, nil
}
