package store

import (
	"context"
	"fmt"

	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
)

const projectColumns = `id, project_name, project_number, description, status, client_name, assembly_date,
	factory_test_date, site_test_date, created_by, created_at, updated_at`

// CreateProject creates a project. Project numbers are unique.
func CreateProject(ctx context.Context, q db.DBTX, in model.ProjectInput, createdBy string) (*model.Project, error) {
	status := in.Status
	if status == "" {
		status = model.ProjectManufacturing
	}

	id, ts := newID(), now()
	_, err := exec(ctx, q,
		`INSERT INTO projects (id, project_name, project_number, description, status, client_name, assembly_date,
		                       factory_test_date, site_test_date, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.ProjectName, in.ProjectNumber, in.Description, status, in.ClientName, in.AssemblyDate,
		in.FactoryTestDate, in.SiteTestDate, createdBy, ts, ts,
	)
	if isUniqueViolation(err) {
		return nil, model.Conflict("project number %q already exists", in.ProjectNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return GetProject(ctx, q, id)
}

// GetProject returns a project by ID.
func GetProject(ctx context.Context, q db.DBTX, id string) (*model.Project, error) {
	p := &model.Project{}
	found, err := get(ctx, q, p, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting project: %w", err)
	}
	if !found {
		return nil, nil
	}
	return p, nil
}

// ListProjects returns projects matching the filter, newest first.
func ListProjects(ctx context.Context, q db.DBTX, f model.ProjectFilter) ([]model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE 1 = 1`
	var args []any
	if f.Q != "" {
		like := likeOp(q)
		query += ` AND (project_name ` + like + ` ? ESCAPE '\' OR project_number ` + like + ` ? ESCAPE '\')`
		pattern := likePattern(f.Q)
		args = append(args, pattern, pattern)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}

	projects := []model.Project{}
	if err := sel(ctx, q, &projects, query+` ORDER BY created_at DESC`, args...); err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

// UpdateProject edits a project.
func UpdateProject(ctx context.Context, q db.DBTX, id string, in model.ProjectInput) (*model.Project, error) {
	status := in.Status
	if status == "" {
		status = model.ProjectManufacturing
	}

	res, err := exec(ctx, q,
		`UPDATE projects SET project_name = ?, project_number = ?, description = ?, status = ?, client_name = ?,
		        assembly_date = ?, factory_test_date = ?, site_test_date = ?, updated_at = ?
		 WHERE id = ?`,
		in.ProjectName, in.ProjectNumber, in.Description, status, in.ClientName, in.AssemblyDate,
		in.FactoryTestDate, in.SiteTestDate, now(), id,
	)
	if isUniqueViolation(err) {
		return nil, model.Conflict("project number %q already exists", in.ProjectNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("updating project: %w", err)
	}
	if rowsAffected(res) == 0 {
		return nil, model.NotFound("project")
	}
	return GetProject(ctx, q, id)
}

// DeleteProject removes a project and its motors. Diary entries and events
// keep the project name they were written with.
func DeleteProject(ctx context.Context, q db.DBTX, id string) error {
	if _, err := exec(ctx, q, `DELETE FROM project_motors WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("deleting project motors: %w", err)
	}
	res, err := exec(ctx, q, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if rowsAffected(res) == 0 {
		return model.NotFound("project")
	}
	return nil
}

const motorColumns = `id, project_id, motor_type, motor_name, power_kw, voltage, phase, pole, current_amp,
	quantity, breaker_size, cable_size, eocr_setting, breaker_setting, created_at, updated_at`

// ListMotors returns a project's motors ordered by type.
func ListMotors(ctx context.Context, q db.DBTX, projectID string) ([]model.Motor, error) {
	motors := []model.Motor{}
	if err := sel(ctx, q, &motors,
		`SELECT `+motorColumns+` FROM project_motors WHERE project_id = ? ORDER BY motor_type, created_at`,
		projectID); err != nil {
		return nil, fmt.Errorf("listing motors: %w", err)
	}
	return motors, nil
}

// CreateMotor adds a motor to an existing project.
func CreateMotor(ctx context.Context, q db.DBTX, projectID string, in model.MotorInput) (*model.Motor, error) {
	project, err := GetProject(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, model.NotFound("project")
	}

	id, ts := newID(), now()
	if _, err := exec(ctx, q,
		`INSERT INTO project_motors (id, project_id, motor_type, motor_name, power_kw, voltage, phase, pole,
		                             current_amp, quantity, breaker_size, cable_size, eocr_setting,
		                             breaker_setting, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, projectID, in.MotorType, in.MotorName, in.PowerKW, in.Voltage, in.Phase, in.Pole, in.CurrentAmp,
		in.Quantity, in.BreakerSize, in.CableSize, in.EOCRSetting, in.BreakerSetting, ts, ts,
	); err != nil {
		return nil, fmt.Errorf("creating motor: %w", err)
	}
	return getMotor(ctx, q, projectID, id)
}

func getMotor(ctx context.Context, q db.DBTX, projectID, id string) (*model.Motor, error) {
	m := &model.Motor{}
	found, err := get(ctx, q, m,
		`SELECT `+motorColumns+` FROM project_motors WHERE id = ? AND project_id = ?`, id, projectID)
	if err != nil {
		return nil, fmt.Errorf("getting motor: %w", err)
	}
	if !found {
		return nil, nil
	}
	return m, nil
}

// UpdateMotor edits a motor belonging to projectID.
func UpdateMotor(ctx context.Context, q db.DBTX, projectID, id string, in model.MotorInput) (*model.Motor, error) {
	res, err := exec(ctx, q,
		`UPDATE project_motors SET motor_type = ?, motor_name = ?, power_kw = ?, voltage = ?, phase = ?, pole = ?,
		        current_amp = ?, quantity = ?, breaker_size = ?, cable_size = ?, eocr_setting = ?,
		        breaker_setting = ?, updated_at = ?
		 WHERE id = ? AND project_id = ?`,
		in.MotorType, in.MotorName, in.PowerKW, in.Voltage, in.Phase, in.Pole, in.CurrentAmp, in.Quantity,
		in.BreakerSize, in.CableSize, in.EOCRSetting, in.BreakerSetting, now(), id, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating motor: %w", err)
	}
	if rowsAffected(res) == 0 {
		return nil, model.NotFound("motor")
	}
	return getMotor(ctx, q, projectID, id)
}

// DeleteMotor removes a motor belonging to projectID.
func DeleteMotor(ctx context.Context, q db.DBTX, projectID, id string) error {
	res, err := exec(ctx, q, `DELETE FROM project_motors WHERE id = ? AND project_id = ?`, id, projectID)
	if err != nil {
		return fmt.Errorf("deleting motor: %w", err)
	}
	if rowsAffected(res) == 0 {
		return model.NotFound("motor")
	}
	return nil
}
