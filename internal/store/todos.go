package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
)

const todoColumns = `id, user_id, title, completed, due_date, priority, category, created_at, updated_at`

// CreateTodo creates a todo owned by userID.
func CreateTodo(ctx context.Context, q db.DBTX, userID string, in model.TodoInput) (*model.Todo, error) {
	priority := in.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}

	id, ts := newID(), now()
	if _, err := exec(ctx, q,
		`INSERT INTO todos (id, user_id, title, completed, due_date, priority, category, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, in.Title, false, in.DueDate, priority, in.Category, ts, ts,
	); err != nil {
		return nil, fmt.Errorf("creating todo: %w", err)
	}
	return GetTodo(ctx, q, userID, id)
}

// GetTodo returns one of userID's todos.
func GetTodo(ctx context.Context, q db.DBTX, userID, id string) (*model.Todo, error) {
	t := &model.Todo{}
	found, err := get(ctx, q, t, `SELECT `+todoColumns+` FROM todos WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, fmt.Errorf("getting todo: %w", err)
	}
	if !found {
		return nil, nil
	}
	return t, nil
}

// ListTodos returns userID's todos, newest first.
func ListTodos(ctx context.Context, q db.DBTX, userID string) ([]model.Todo, error) {
	todos := []model.Todo{}
	if err := sel(ctx, q, &todos,
		`SELECT `+todoColumns+` FROM todos WHERE user_id = ? ORDER BY created_at DESC`, userID); err != nil {
		return nil, fmt.Errorf("listing todos: %w", err)
	}
	return todos, nil
}

// UpdateTodo applies the set fields of in to one of userID's todos.
func UpdateTodo(ctx context.Context, q db.DBTX, userID, id string, in model.TodoUpdate) (*model.Todo, error) {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, model.InvalidArgument("title must not be empty")
	}

	sets := []string{"updated_at = ?"}
	args := []any{now()}
	add := func(column string, v any) {
		sets = append(sets, column+" = ?")
		args = append(args, v)
	}
	if in.Title != nil {
		add("title", *in.Title)
	}
	if in.Completed != nil {
		add("completed", *in.Completed)
	}
	if in.DueDate != nil {
		add("due_date", *in.DueDate)
	}
	if in.Priority != nil && *in.Priority != "" {
		add("priority", *in.Priority)
	}
	if in.Category != nil {
		add("category", *in.Category)
	}

	args = append(args, id, userID)
	res, err := exec(ctx, q,
		`UPDATE todos SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("updating todo: %w", err)
	}
	if rowsAffected(res) == 0 {
		return nil, model.NotFound("todo")
	}
	return GetTodo(ctx, q, userID, id)
}

// DeleteTodo removes one of userID's todos.
func DeleteTodo(ctx context.Context, q db.DBTX, userID, id string) error {
	res, err := exec(ctx, q, `DELETE FROM todos WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting todo: %w", err)
	}
	if rowsAffected(res) == 0 {
		return model.NotFound("todo")
	}
	return nil
}
