package model

import "time"

// Todo priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Todo is a personal task. Users only ever see their own.
type Todo struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Completed bool      `db:"completed" json:"completed"`
	DueDate   string    `db:"due_date" json:"due_date"`
	Priority  string    `db:"priority" json:"priority"`
	Category  string    `db:"category" json:"category"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TodoInput creates a todo.
type TodoInput struct {
	Title    string `json:"title" validate:"required,max=200"`
	DueDate  string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Category string `json:"category" validate:"max=50"`
}

// TodoUpdate edits a todo. Nil fields are left unchanged.
type TodoUpdate struct {
	Title     *string `json:"title" validate:"omitempty,min=1,max=200"`
	Completed *bool   `json:"completed"`
	DueDate   *string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Priority  *string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Category  *string `json:"category" validate:"omitempty,max=50"`
}
