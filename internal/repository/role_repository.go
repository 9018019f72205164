package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/avdeevk/job-board/internal/model"
)

// RoleRepo provides CRUD over the `roles` table and the `user_roles`
// join table.  Role rows are hard-deleted; the join table cascades on
// delete of either parent.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// Create inserts a role.  A duplicate name maps to ErrConflict.
func (r *RoleRepo) Create(ctx context.Context, name string) (*model.Role, error) {
	name = strings.TrimSpace(name)
	res, err := r.DB.ExecContext(ctx, "INSERT INTO roles (name) VALUES (?)", name)
	if err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("%w: role name already exists", ErrConflict)
		}
		return nil, fmt.Errorf("%w: create role: %v", ErrInternal, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: create role: %v", ErrInternal, err)
	}
	return &model.Role{ID: uint64(id), Name: name}, nil
}

// GetByID fetches a role by id.
func (r *RoleRepo) GetByID(ctx context.Context, id uint64) (*model.Role, error) {
	return scanRole(r.DB.QueryRowContext(ctx,
		"SELECT id,name FROM roles WHERE id=? LIMIT 1", id))
}

// GetByName fetches a role by its unique name.
func (r *RoleRepo) GetByName(ctx context.Context, name string) (*model.Role, error) {
	return scanRole(r.DB.QueryRowContext(ctx,
		"SELECT id,name FROM roles WHERE name=? LIMIT 1", strings.TrimSpace(name)))
}

// Update renames a role and returns the refreshed record.
func (r *RoleRepo) Update(ctx context.Context, id uint64, name string) (*model.Role, error) {
	name = strings.TrimSpace(name)
	res, err := r.DB.ExecContext(ctx, "UPDATE roles SET name=? WHERE id=?", name, id)
	if err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("%w: role name already exists", ErrConflict)
		}
		return nil, fmt.Errorf("%w: update role: %v", ErrInternal, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports 0 affected rows for a same-name update too; read
		// back to distinguish a missing row from a no-op rename.
		return r.GetByID(ctx, id)
	}
	return &model.Role{ID: id, Name: name}, nil
}

// Delete removes a role.  user_roles rows referencing it are removed by
// the foreign key cascade.
func (r *RoleRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM roles WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("%w: delete role: %v", ErrInternal, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all roles ordered by name.
func (r *RoleRepo) List(ctx context.Context) ([]model.Role, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id,name FROM roles ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("%w: list roles: %v", ErrInternal, err)
	}
	defer rows.Close()
	var out []model.Role
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, fmt.Errorf("%w: list roles: %v", ErrInternal, err)
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list roles: %v", ErrInternal, err)
	}
	return out, nil
}

// GetByUserID returns the roles held by a user.
func (r *RoleRepo) GetByUserID(ctx context.Context, userID uint64) ([]model.Role, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT r.id, r.name FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = ? ORDER BY r.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: roles by user: %v", ErrInternal, err)
	}
	defer rows.Close()
	var out []model.Role
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, fmt.Errorf("%w: roles by user: %v", ErrInternal, err)
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: roles by user: %v", ErrInternal, err)
	}
	return out, nil
}

// Assign links a role to a user.  Assigning the same role twice maps to
// ErrConflict through the unique (user_id, role_id) index.
func (r *RoleRepo) Assign(ctx context.Context, userID, roleID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO user_roles (user_id, role_id) VALUES (?,?)", userID, roleID)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: role already assigned", ErrConflict)
		}
		return fmt.Errorf("%w: assign role: %v", ErrInternal, err)
	}
	return nil
}

// Unassign removes a role from a user.
func (r *RoleRepo) Unassign(ctx context.Context, userID, roleID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM user_roles WHERE user_id=? AND role_id=?", userID, roleID)
	if err != nil {
		return fmt.Errorf("%w: unassign role: %v", ErrInternal, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRole(row *sql.Row) (*model.Role, error) {
	var role model.Role
	err := row.Scan(&role.ID, &role.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query role: %v", ErrInternal, err)
	}
	return &role, nil
}
