package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
)

// AuditEntry is the input of RecordAudit.
type AuditEntry struct {
	UserID       string
	Username     string
	UserLevel    string
	Category     string
	Action       string
	Level        string
	ResourceType string
	ResourceID   string
	Details      any
	IPAddress    string
	UserAgent    string
}

// RecordAudit appends an entry to the audit log.
func RecordAudit(ctx context.Context, q db.DBTX, e AuditEntry) error {
	details := []byte("{}")
	if e.Details != nil {
		raw, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encoding audit details: %w", err)
		}
		details = raw
	}
	level := e.Level
	if level == "" {
		level = model.AuditInfo
	}

	_, err := exec(ctx, q,
		`INSERT INTO audit_logs (id, user_id, username, user_level, category, action, level, resource_type,
		                         resource_id, details, ip_address, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		newID(), e.UserID, e.Username, e.UserLevel, e.Category, e.Action, level, e.ResourceType,
		e.ResourceID, string(details), e.IPAddress, e.UserAgent, now(),
	)
	if err != nil {
		return fmt.Errorf("recording audit log: %w", err)
	}
	return nil
}

// ListAudit returns audit entries, newest first.
func ListAudit(ctx context.Context, q db.DBTX, f model.AuditFilter) ([]model.AuditLog, error) {
	where := []string{"1 = 1"}
	var args []any
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		where = append(where, "created_at <= ?")
		args = append(args, f.To.UTC())
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)

	logs := []model.AuditLog{}
	if err := sel(ctx, q, &logs,
		`SELECT id, user_id, username, user_level, category, action, level, resource_type, resource_id,
		        details, ip_address, user_agent, created_at
		 FROM audit_logs WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY created_at DESC LIMIT ?`, args...); err != nil {
		return nil, fmt.Errorf("listing audit logs: %w", err)
	}
	return logs, nil
}
