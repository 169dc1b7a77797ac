package model

import "time"

// Project lifecycle states.
const (
	ProjectManufacturing    = "Manufacturing"
	ProjectWarranty         = "Warranty"
	ProjectWarrantyComplete = "WarrantyComplete"
	ProjectDemolished       = "Demolished"
)

// Project is a machine delivery the department builds and services. Work
// diaries, trips and schedule events refer to it by ID.
type Project struct {
	ID              string    `db:"id" json:"id"`
	ProjectName     string    `db:"project_name" json:"project_name"`
	ProjectNumber   string    `db:"project_number" json:"project_number"`
	Description     string    `db:"description" json:"description"`
	Status          string    `db:"status" json:"status"`
	ClientName      string    `db:"client_name" json:"client_name"`
	AssemblyDate    string    `db:"assembly_date" json:"assembly_date"`
	FactoryTestDate string    `db:"factory_test_date" json:"factory_test_date"`
	SiteTestDate    string    `db:"site_test_date" json:"site_test_date"`
	CreatedBy       string    `db:"created_by" json:"created_by"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// ProjectInput creates or edits a project.
type ProjectInput struct {
	ProjectName     string `json:"project_name" validate:"required,max=200"`
	ProjectNumber   string `json:"project_number" validate:"required,max=100"`
	Description     string `json:"description" validate:"max=2000"`
	Status          string `json:"status" validate:"omitempty,oneof=Manufacturing Warranty WarrantyComplete Demolished"`
	ClientName      string `json:"client_name" validate:"max=200"`
	AssemblyDate    string `json:"assembly_date" validate:"omitempty,datetime=2006-01-02"`
	FactoryTestDate string `json:"factory_test_date" validate:"omitempty,datetime=2006-01-02"`
	SiteTestDate    string `json:"site_test_date" validate:"omitempty,datetime=2006-01-02"`
}

// ProjectFilter narrows project listings. Q matches name or number.
type ProjectFilter struct {
	Q      string
	Status string
}

// Motor is one motor specification fitted to a project's machine.
type Motor struct {
	ID             string    `db:"id" json:"id"`
	ProjectID      string    `db:"project_id" json:"project_id"`
	MotorType      string    `db:"motor_type" json:"motor_type"`
	MotorName      string    `db:"motor_name" json:"motor_name"`
	PowerKW        float64   `db:"power_kw" json:"power_kw"`
	Voltage        string    `db:"voltage" json:"voltage"`
	Phase          string    `db:"phase" json:"phase"`
	Pole           string    `db:"pole" json:"pole"`
	CurrentAmp     float64   `db:"current_amp" json:"current_amp"`
	Quantity       int       `db:"quantity" json:"quantity"`
	BreakerSize    string    `db:"breaker_size" json:"breaker_size"`
	CableSize      string    `db:"cable_size" json:"cable_size"`
	EOCRSetting    string    `db:"eocr_setting" json:"eocr_setting"`
	BreakerSetting string    `db:"breaker_setting" json:"breaker_setting"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// MotorInput creates or edits a motor specification.
type MotorInput struct {
	MotorType      string  `json:"motor_type" validate:"required,max=50"`
	MotorName      string  `json:"motor_name" validate:"max=100"`
	PowerKW        float64 `json:"power_kw" validate:"min=0,max=10000"`
	Voltage        string  `json:"voltage" validate:"max=20"`
	Phase          string  `json:"phase" validate:"max=20"`
	Pole           string  `json:"pole" validate:"max=20"`
	CurrentAmp     float64 `json:"current_amp" validate:"min=0,max=100000"`
	Quantity       int     `json:"quantity" validate:"min=1,max=1000"`
	BreakerSize    string  `json:"breaker_size" validate:"max=50"`
	CableSize      string  `json:"cable_size" validate:"max=50"`
	EOCRSetting    string  `json:"eocr_setting" validate:"max=50"`
	BreakerSetting string  `json:"breaker_setting" validate:"max=50"`
}
