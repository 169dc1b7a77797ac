package model

import "time"

// Approval statuses shared by business trips and leave requests.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// Trip types.
const (
	TripBusiness  = "business_trip"
	TripFieldWork = "field_work"
)

// Report statuses for trips.
const (
	ReportUnreported = "unreported"
	ReportReported   = "reported"
)

// BusinessTrip is a request to work away from the office.
type BusinessTrip struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"user_id"`
	UserName        string     `db:"user_name" json:"user_name,omitempty"`
	ProjectID       string     `db:"project_id" json:"project_id"`
	TripType        string     `db:"trip_type" json:"trip_type"`
	SubType         string     `db:"sub_type" json:"sub_type"`
	Title           string     `db:"title" json:"title"`
	Description     string     `db:"description" json:"description"`
	StartDate       string     `db:"start_date" json:"start_date"`
	EndDate         string     `db:"end_date" json:"end_date"`
	StartTime       string     `db:"start_time" json:"start_time"`
	EndTime         string     `db:"end_time" json:"end_time"`
	Location        string     `db:"location" json:"location"`
	Purpose         string     `db:"purpose" json:"purpose"`
	Status          string     `db:"status" json:"status"`
	ApprovedBy      string     `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason string     `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReportStatus    string     `db:"report_status" json:"report_status"`
	ReportContent   string     `db:"report_content" json:"report_content,omitempty"`
	ReportedAt      *time.Time `db:"reported_at" json:"reported_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	Companions      []string   `db:"-" json:"companions"`
}

// TripInput creates or edits a business trip.
type TripInput struct {
	TripType    string   `json:"trip_type" validate:"required,oneof=business_trip field_work"`
	SubType     string   `json:"sub_type" validate:"max=50"`
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=1000"`
	StartDate   string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	StartTime   string   `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime     string   `json:"end_time" validate:"omitempty,datetime=15:04"`
	Location    string   `json:"location" validate:"max=200"`
	Purpose     string   `json:"purpose" validate:"max=500"`
	ProjectID   string   `json:"project_id" validate:"max=100"`
	Companions  []string `json:"companions" validate:"max=20,dive,uuid"`
}

// TripFilter narrows trip listings.
type TripFilter struct {
	UserID string
	Status string
	From   string
	To     string
}

// TripReportInput submits the report for a completed trip.
type TripReportInput struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// StatusInput approves or rejects a pending request.
type StatusInput struct {
	Status          string `json:"status" validate:"required,oneof=approved rejected"`
	RejectionReason string `json:"rejection_reason" validate:"required_if=Status rejected,max=500"`
}

// Leave types.
const (
	LeaveAnnual    = "annual"
	LeaveHalfDayAM = "half_day_am"
	LeaveHalfDayPM = "half_day_pm"
	LeaveSick      = "sick"
	LeaveSpecial   = "special"
)

// DeductsAnnualLeave reports whether approving this leave type consumes
// annual leave balance.
func DeductsAnnualLeave(leaveType string) bool {
	switch leaveType {
	case LeaveAnnual, LeaveHalfDayAM, LeaveHalfDayPM:
		return true
	}
	return false
}

// LeaveRequest is a request for time off.
type LeaveRequest struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"user_id"`
	UserName        string     `db:"user_name" json:"user_name,omitempty"`
	LeaveType       string     `db:"leave_type" json:"leave_type"`
	StartDate       string     `db:"start_date" json:"start_date"`
	EndDate         string     `db:"end_date" json:"end_date"`
	StartTime       string     `db:"start_time" json:"start_time"`
	EndTime         string     `db:"end_time" json:"end_time"`
	TotalDays       float64    `db:"total_days" json:"total_days"`
	Reason          string     `db:"reason" json:"reason"`
	Status          string     `db:"status" json:"status"`
	ApprovedBy      string     `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason string     `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// LeaveInput creates or edits a leave request.
type LeaveInput struct {
	LeaveType string  `json:"leave_type" validate:"required,oneof=annual half_day_am half_day_pm sick special"`
	StartDate string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string  `json:"end_date" validate:"required,datetime=2006-01-02"`
	StartTime string  `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime   string  `json:"end_time" validate:"omitempty,datetime=15:04"`
	TotalDays float64 `json:"total_days" validate:"gt=0,lte=365"`
	Reason    string  `json:"reason" validate:"max=500"`
}

// LeaveFilter narrows leave listings.
type LeaveFilter struct {
	UserID string
	Status string
	From   string
	To     string
}

// CheckDateRange rejects ranges whose end precedes their start. Dates are
// ISO "YYYY-MM-DD" strings, which order lexically.
func CheckDateRange(start, end string) error {
	if end < start {
		return InvalidArgument("end date %s is before start date %s", end, start)
	}
	return nil
}
