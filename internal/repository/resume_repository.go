package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/avdeevk/job-board/internal/model"
)

// ResumeRepo provides CRUD operations for resumes with the same
// soft-delete and ownership rules as vacancies.
type ResumeRepo struct{ DB *sql.DB }

func NewResumeRepo(db *sql.DB) *ResumeRepo { return &ResumeRepo{DB: db} }

const resumeColumns = "id,user_id,first_name,last_name,middle_name,age,experience,education,about,is_active,created_at"

// ResumeFilter narrows List results.  Empty strings match everything;
// MinAge/MaxAge of zero are ignored.
type ResumeFilter struct {
	Specialty string // substring match on experience
	Education string // substring match on education
	MinAge    int
	MaxAge    int
}

// Create inserts a resume owned by userID and returns the stored record.
func (r *ResumeRepo) Create(ctx context.Context, res *model.Resume) (*model.Resume, error) {
	ins, err := r.DB.ExecContext(ctx,
		`INSERT INTO resumes (user_id, first_name, last_name, middle_name, age, experience, education, about)
		 VALUES (?,?,?,?,?,?,?,?)`,
		res.UserID, res.FirstName, res.LastName, res.MiddleName, res.Age, res.Experience, res.Education, res.About)
	if err != nil {
		return nil, fmt.Errorf("%w: create resume: %v", ErrInternal, err)
	}
	id, err := ins.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: create resume: %v", ErrInternal, err)
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID fetches an active resume.
func (r *ResumeRepo) GetByID(ctx context.Context, id uint64) (*model.Resume, error) {
	return scanResume(r.DB.QueryRowContext(ctx,
		"SELECT "+resumeColumns+" FROM resumes WHERE id=? AND is_active=1 LIMIT 1", id))
}

// List returns active resumes matching the filter, newest first.
func (r *ResumeRepo) List(ctx context.Context, f ResumeFilter, limit, offset int) ([]model.Resume, error) {
	q := "SELECT " + resumeColumns + " FROM resumes WHERE is_active=1"
	args := []any{}
	if s := strings.TrimSpace(f.Specialty); s != "" {
		q += " AND experience LIKE ?"
		args = append(args, "%"+s+"%")
	}
	if s := strings.TrimSpace(f.Education); s != "" {
		q += " AND education LIKE ?"
		args = append(args, "%"+s+"%")
	}
	if f.MinAge > 0 {
		q += " AND age >= ?"
		args = append(args, f.MinAge)
	}
	if f.MaxAge > 0 {
		q += " AND age <= ?"
		args = append(args, f.MaxAge)
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list resumes: %v", ErrInternal, err)
	}
	defer rows.Close()
	var out []model.Resume
	for rows.Next() {
		var res model.Resume
		if err := rows.Scan(&res.ID, &res.UserID, &res.FirstName, &res.LastName, &res.MiddleName,
			&res.Age, &res.Experience, &res.Education, &res.About, &res.IsActive, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan resume: %v", ErrInternal, err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list resumes: %v", ErrInternal, err)
	}
	return out, nil
}

// Update applies non-empty string fields (and a positive age) of patch
// to a resume owned by userID and returns the refreshed record.
func (r *ResumeRepo) Update(ctx context.Context, id, userID uint64, patch map[string]string, age int) (*model.Resume, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.UserID != userID {
		return nil, ErrForbidden
	}

	setParts := []string{}
	args := []any{}
	for _, col := range []string{"first_name", "last_name", "middle_name", "experience", "education", "about"} {
		if val, ok := patch[col]; ok {
			setParts = append(setParts, col+"=?")
			args = append(args, val)
		}
	}
	if age > 0 {
		setParts = append(setParts, "age=?")
		args = append(args, age)
	}
	if len(setParts) == 0 {
		return current, nil
	}
	args = append(args, id)
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE resumes SET "+strings.Join(setParts, ", ")+" WHERE id=? AND is_active=1", args...); err != nil {
		return nil, fmt.Errorf("%w: update resume: %v", ErrInternal, err)
	}
	return r.GetByID(ctx, id)
}

// Delete soft-deletes a resume owned by userID.  With admin=true the
// ownership check is skipped.
func (r *ResumeRepo) Delete(ctx context.Context, id, userID uint64, admin bool) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !admin && current.UserID != userID {
		return ErrForbidden
	}
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE resumes SET is_active=0 WHERE id=? AND is_active=1", id); err != nil {
		return fmt.Errorf("%w: delete resume: %v", ErrInternal, err)
	}
	return nil
}

func scanResume(row *sql.Row) (*model.Resume, error) {
	var res model.Resume
	err := row.Scan(&res.ID, &res.UserID, &res.FirstName, &res.LastName, &res.MiddleName,
		&res.Age, &res.Experience, &res.Education, &res.About, &res.IsActive, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query resume: %v", ErrInternal, err)
	}
	return &res, nil
}
