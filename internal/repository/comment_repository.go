package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avdeevk/job-board/internal/model"
)

// CommentRepo stores comments attached to vacancies.  Authors may edit
// and delete only their own comments; admins may delete any.
type CommentRepo struct{ DB *sql.DB }

func NewCommentRepo(db *sql.DB) *CommentRepo { return &CommentRepo{DB: db} }

const commentColumns = "id,vacancy_id,user_id,text,is_active,created_at"

// Create inserts a comment under a vacancy and returns the stored record.
func (r *CommentRepo) Create(ctx context.Context, vacancyID, userID uint64, text string) (*model.Comment, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO comments (vacancy_id, user_id, text) VALUES (?,?,?)",
		vacancyID, userID, text)
	if err != nil {
		return nil, fmt.Errorf("%w: create comment: %v", ErrInternal, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: create comment: %v", ErrInternal, err)
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID fetches an active comment.
func (r *CommentRepo) GetByID(ctx context.Context, id uint64) (*model.Comment, error) {
	var c model.Comment
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+commentColumns+" FROM comments WHERE id=? AND is_active=1 LIMIT 1", id).
		Scan(&c.ID, &c.VacancyID, &c.UserID, &c.Text, &c.IsActive, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query comment: %v", ErrInternal, err)
	}
	return &c, nil
}

// ListByVacancy returns active comments of a vacancy, oldest first.
func (r *CommentRepo) ListByVacancy(ctx context.Context, vacancyID uint64, limit, offset int) ([]model.Comment, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+commentColumns+" FROM comments WHERE vacancy_id=? AND is_active=1 ORDER BY id LIMIT ? OFFSET ?",
		vacancyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list comments: %v", ErrInternal, err)
	}
	defer rows.Close()
	var out []model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.VacancyID, &c.UserID, &c.Text, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan comment: %v", ErrInternal, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list comments: %v", ErrInternal, err)
	}
	return out, nil
}

// Update replaces the text of a comment owned by userID.
func (r *CommentRepo) Update(ctx context.Context, id, userID uint64, text string) (*model.Comment, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.UserID != userID {
		return nil, ErrForbidden
	}
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE comments SET text=? WHERE id=? AND is_active=1", text, id); err != nil {
		return nil, fmt.Errorf("%w: update comment: %v", ErrInternal, err)
	}
	return r.GetByID(ctx, id)
}

// Delete soft-deletes a comment owned by userID.  With admin=true the
// ownership check is skipped.
func (r *CommentRepo) Delete(ctx context.Context, id, userID uint64, admin bool) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !admin && current.UserID != userID {
		return ErrForbidden
	}
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE comments SET is_active=0 WHERE id=? AND is_active=1", id); err != nil {
		return fmt.Errorf("%w: delete comment: %v", ErrInternal, err)
	}
	return nil
}
