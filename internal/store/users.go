package store

import (
	"context"
	"fmt"

	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
)

const userColumns = `id, username, password_hash, name, department, position, phone, level,
	remaining_annual_leave, created_at, updated_at, last_login, deleted_at`

// CreateUser creates a new user.
func CreateUser(ctx context.Context, q db.DBTX, in model.UserInput, passwordHash string) (*model.User, error) {
	id, ts := newID(), now()
	_, err := exec(ctx, q,
		`INSERT INTO users (id, username, password_hash, name, department, position, phone, level,
		                    remaining_annual_leave, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Username, passwordHash, in.Name, in.Department, in.Position, in.Phone, in.Level,
		model.DefaultAnnualLeave, ts, ts,
	)
	if isUniqueViolation(err) {
		return nil, model.Conflict("username %q is already taken", in.Username)
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return GetUser(ctx, q, id)
}

// GetUser returns a user by ID.
func GetUser(ctx context.Context, q db.DBTX, id string) (*model.User, error) {
	u := &model.User{}
	found, err := get(ctx, q, u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	if !found {
		return nil, nil
	}
	return u, nil
}

// GetUserByUsername returns the active user with the given username.
func GetUserByUsername(ctx context.Context, q db.DBTX, username string) (*model.User, error) {
	u := &model.User{}
	found, err := get(ctx, q, u,
		`SELECT `+userColumns+` FROM users WHERE username = ? AND deleted_at IS NULL`, username)
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	if !found {
		return nil, nil
	}
	return u, nil
}

// ListUsers returns all non-deleted users.
func ListUsers(ctx context.Context, q db.DBTX) ([]model.User, error) {
	users := []model.User{}
	if err := sel(ctx, q, &users,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY username`); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// UpdateUser updates a user's profile and level.
func UpdateUser(ctx context.Context, q db.DBTX, id string, in model.UserInput) error {
	res, err := exec(ctx, q,
		`UPDATE users SET username = ?, name = ?, department = ?, position = ?, phone = ?, level = ?,
		        updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		in.Username, in.Name, in.Department, in.Position, in.Phone, in.Level, now(), id,
	)
	if isUniqueViolation(err) {
		return model.Conflict("username %q is already taken", in.Username)
	}
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if rowsAffected(res) == 0 {
		return model.NotFound("user")
	}
	return nil
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, q db.DBTX, id, passwordHash string) error {
	_, err := exec(ctx, q,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, now(), id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// TouchLastLogin records a successful login.
func TouchLastLogin(ctx context.Context, q db.DBTX, id string) error {
	if _, err := exec(ctx, q, `UPDATE users SET last_login = ? WHERE id = ?`, now(), id); err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	return nil
}

// SetAnnualLeave overwrites a user's remaining annual leave balance.
func SetAnnualLeave(ctx context.Context, q db.DBTX, id string, days float64) error {
	_, err := exec(ctx, q,
		`UPDATE users SET remaining_annual_leave = ?, updated_at = ? WHERE id = ?`, days, now(), id)
	if err != nil {
		return fmt.Errorf("setting annual leave: %w", err)
	}
	return nil
}

// DeleteUser soft-deletes a user.
func DeleteUser(ctx context.Context, q db.DBTX, id string) error {
	_, err := exec(ctx, q,
		`UPDATE users SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now(), id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

// CountAdmins returns the number of active administrators.
func CountAdmins(ctx context.Context, q db.DBTX) (int, error) {
	var n int
	if _, err := get(ctx, q, &n,
		`SELECT COUNT(*) FROM users WHERE level = ? AND deleted_at IS NULL`, model.LevelAdmin); err != nil {
		return 0, fmt.Errorf("counting administrators: %w", err)
	}
	return n, nil
}
