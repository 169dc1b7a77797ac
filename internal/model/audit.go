package model

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Audit categories.
const (
	AuditAuth     = "auth"
	AuditStock    = "stock"
	AuditUser     = "user"
	AuditClosing  = "closing"
	AuditWorkflow = "workflow"
	AuditSecurity = "security"
	AuditSystem   = "system"
	AuditProject  = "project"
)

// Audit levels.
const (
	AuditInfo     = "info"
	AuditWarning  = "warning"
	AuditError    = "error"
	AuditCritical = "critical"
)

// AuditLog is one recorded action.
type AuditLog struct {
	ID           string         `db:"id" json:"id"`
	UserID       string         `db:"user_id" json:"user_id"`
	Username     string         `db:"username" json:"username"`
	UserLevel    string         `db:"user_level" json:"user_level"`
	Category     string         `db:"category" json:"category"`
	Action       string         `db:"action" json:"action"`
	Level        string         `db:"level" json:"level"`
	ResourceType string         `db:"resource_type" json:"resource_type"`
	ResourceID   string         `db:"resource_id" json:"resource_id"`
	Details      types.JSONText `db:"details" json:"details"`
	IPAddress    string         `db:"ip_address" json:"ip_address"`
	UserAgent    string         `db:"user_agent" json:"user_agent"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// AuditFilter narrows audit log queries.
type AuditFilter struct {
	Action   string
	UserID   string
	Category string
	From     *time.Time
	To       *time.Time
	Limit    int
}
