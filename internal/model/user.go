package model

import (
	"errors"
	"time"
)

// User is an employee account.
type User struct {
	ID                   string     `db:"id" json:"id"`
	Username             string     `db:"username" json:"username"`
	PasswordHash         string     `db:"password_hash" json:"-"`
	Name                 string     `db:"name" json:"name"`
	Department           string     `db:"department" json:"department"`
	Position             string     `db:"position" json:"position"`
	Phone                string     `db:"phone" json:"phone"`
	Level                string     `db:"level" json:"level"`
	RemainingAnnualLeave float64    `db:"remaining_annual_leave" json:"remaining_annual_leave"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
	LastLogin            *time.Time `db:"last_login" json:"last_login,omitempty"`
	DeletedAt            *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// UserInput holds the profile fields of a user.
type UserInput struct {
	Username   string `json:"username" validate:"required,min=3,max=50"`
	Password   string `json:"password,omitempty" validate:"omitempty,min=8,max=100"`
	Name       string `json:"name" validate:"max=100"`
	Department string `json:"department" validate:"max=100"`
	Position   string `json:"position" validate:"max=100"`
	Phone      string `json:"phone" validate:"omitempty,max=20"`
	Level      string `json:"level" validate:"required,oneof=1 2 3 4 5 administrator"`
}

// Levels, lowest to highest.
const (
	Level1     = "1"
	Level2     = "2"
	Level3     = "3"
	Level4     = "4"
	Level5     = "5"
	LevelAdmin = "administrator"
)

// DefaultAnnualLeave is granted to new accounts.
const DefaultAnnualLeave = 15.0

var levelRank = map[string]int{
	Level1:     1,
	Level2:     2,
	Level3:     3,
	Level4:     4,
	Level5:     5,
	LevelAdmin: 6,
}

// ValidLevel reports whether level is a known level.
func ValidLevel(level string) bool {
	return levelRank[level] > 0
}

// LevelAtLeast checks if level meets or exceeds the minimum required level.
// Unknown levels on either side never match.
func LevelAtLeast(level, minimum string) bool {
	have, want := levelRank[level], levelRank[minimum]
	if have == 0 || want == 0 {
		return false
	}
	return have >= want
}

// IsAdmin reports whether level is the administrator level.
func IsAdmin(level string) bool {
	return level == LevelAdmin
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidatePassword checks password strength rules.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
