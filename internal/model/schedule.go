package model

import "time"

// ScheduleEvent is a calendar entry.
type ScheduleEvent struct {
	ID              string    `db:"id" json:"id"`
	Category        string    `db:"category" json:"category"`
	SubCategory     string    `db:"sub_category" json:"sub_category"`
	Summary         string    `db:"summary" json:"summary"`
	Description     string    `db:"description" json:"description"`
	StartDate       string    `db:"start_date" json:"start_date"`
	StartTime       string    `db:"start_time" json:"start_time"`
	EndDate         string    `db:"end_date" json:"end_date"`
	EndTime         string    `db:"end_time" json:"end_time"`
	Location        string    `db:"location" json:"location"`
	ParticipantID   string    `db:"participant_id" json:"participant_id"`
	ParticipantName string    `db:"participant_name" json:"participant_name"`
	Companions      []string  `db:"-" json:"companions"`
	CompanionsJSON  string    `db:"companions" json:"-"`
	ProjectID       string    `db:"project_id" json:"project_id"`
	ProjectName     string    `db:"project_name" json:"project_name"`
	CreatedBy       string    `db:"created_by" json:"created_by"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// EventInput creates or edits a schedule event.
type EventInput struct {
	Category        string   `json:"category" validate:"required,max=50"`
	SubCategory     string   `json:"sub_category" validate:"max=50"`
	Summary         string   `json:"summary" validate:"required,max=200"`
	Description     string   `json:"description" validate:"max=1000"`
	StartDate       string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	StartTime       string   `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndDate         string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	EndTime         string   `json:"end_time" validate:"omitempty,datetime=15:04"`
	Location        string   `json:"location" validate:"max=200"`
	ParticipantID   string   `json:"participant_id" validate:"required,max=100"`
	ParticipantName string   `json:"participant_name" validate:"max=100"`
	Companions      []string `json:"companions" validate:"max=20"`
	ProjectID       string   `json:"project_id" validate:"max=100"`
	ProjectName     string   `json:"project_name" validate:"max=200"`
}

// Calendar entry sources.
const (
	CalendarEvent = "event"
	CalendarLeave = "leave"
	CalendarTrip  = "business_trip"
)

// CalendarEntry is one row of the merged schedule view.
type CalendarEntry struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Category    string `json:"category"`
	Summary     string `json:"summary"`
	StartDate   string `json:"start_date"`
	StartTime   string `json:"start_time,omitempty"`
	EndDate     string `json:"end_date"`
	EndTime     string `json:"end_time,omitempty"`
	Location    string `json:"location,omitempty"`
	Participant string `json:"participant"`
}
