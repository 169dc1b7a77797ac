package model

import (
	"slices"
	"strings"
	"time"
)

// WorkDiary is one day's work entry for a project.
type WorkDiary struct {
	ID                string    `db:"id" json:"id"`
	UserID            string    `db:"user_id" json:"user_id"`
	UserName          string    `db:"user_name" json:"user_name,omitempty"`
	WorkDate          string    `db:"work_date" json:"work_date"`
	ProjectID         string    `db:"project_id" json:"project_id"`
	ProjectName       string    `db:"project_name" json:"project_name"`
	CustomProjectName string    `db:"custom_project_name" json:"custom_project_name"`
	WorkContent       string    `db:"work_content" json:"work_content"`
	WorkType          string    `db:"work_type" json:"work_type"`
	WorkSubType       string    `db:"work_sub_type" json:"work_sub_type"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// DiaryInput creates or edits a work diary entry.
type DiaryInput struct {
	WorkDate          string `json:"work_date" validate:"required,datetime=2006-01-02"`
	ProjectID         string `json:"project_id" validate:"max=100"`
	ProjectName       string `json:"project_name" validate:"max=200"`
	CustomProjectName string `json:"custom_project_name" validate:"max=200"`
	WorkContent       string `json:"work_content" validate:"required,max=5000"`
	WorkType          string `json:"work_type" validate:"max=20"`
	WorkSubType       string `json:"work_sub_type" validate:"max=20"`
}

// DiaryFilter narrows diary listings.
type DiaryFilter struct {
	UserID    string
	ProjectID string
	From      string
	To        string
	Page      int
	Limit     int
}

// DiaryPage is a page of diary entries.
type DiaryPage struct {
	Data       []WorkDiary `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"totalPages"`
}

// DiaryStat counts entries for a user or project.
type DiaryStat struct {
	Key   string `db:"key" json:"key"`
	Name  string `db:"name" json:"name"`
	Count int    `db:"count" json:"count"`
}

// DiaryStats aggregates diary entries over a date range.
type DiaryStats struct {
	Total     int         `json:"total"`
	ByUser    []DiaryStat `json:"by_user"`
	ByProject []DiaryStat `json:"by_project"`
}

var (
	wsmsKeywords = []string{"cncwl", "cncuwl", "wsms", "m&d", "tandem", "cncdwl"}

	// WorkTypes are the accepted work types for WSMS projects.
	WorkTypes = []string{"신규", "보완", "AS", "SS", "OV"}

	// WorkSubTypes are the accepted sub types for WSMS projects.
	WorkSubTypes = []string{"출장", "외근", "전화"}
)

// IsWSMSProject reports whether a project name or number belongs to the
// WSMS product family.
func IsWSMSProject(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range wsmsKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// OtherProject is the project_id clients send with a custom project name.
const OtherProject = "other"

// ValidateWorkType enforces the WSMS work type rules. key is the custom
// project name when one is given, otherwise the project number. Outside WSMS
// projects work types are free text. Within them an empty work type or sub
// type is accepted, and a set one must come from the allowed list.
func (in *DiaryInput) ValidateWorkType(key string) error {
	if !IsWSMSProject(key) || in.WorkType == "" {
		return nil
	}
	if !slices.Contains(WorkTypes, in.WorkType) {
		return &Error{
			Code:    CodeInvalidArgument,
			Message: "WSMS projects only allow these work types",
			Details: map[string]any{"work_type": WorkTypes},
		}
	}
	if in.WorkSubType != "" && !slices.Contains(WorkSubTypes, in.WorkSubType) {
		return &Error{
			Code:    CodeInvalidArgument,
			Message: "WSMS projects only allow these work sub types",
			Details: map[string]any{"work_sub_type": WorkSubTypes},
		}
	}
	return nil
}
