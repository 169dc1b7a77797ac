package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
)

const tripColumns = `t.id, t.user_id, COALESCE(u.name, '') AS user_name, t.project_id, t.trip_type, t.sub_type,
	t.title, t.description, t.start_date, t.end_date, t.start_time, t.end_time, t.location, t.purpose,
	t.status, t.approved_by, t.approved_at, t.rejection_reason, t.report_status, t.report_content,
	t.reported_at, t.created_at, t.updated_at`

const tripFrom = ` FROM business_trips t LEFT JOIN users u ON u.id = t.user_id`

// CreateTrip creates a pending business trip for userID.
func CreateTrip(ctx context.Context, database *sqlx.DB, userID string, in model.TripInput) (*model.BusinessTrip, error) {
	if err := model.CheckDateRange(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	id, ts := newID(), now()
	err := db.RunInTx(ctx, database, func(tx *sqlx.Tx) error {
		if _, err := exec(ctx, tx,
			`INSERT INTO business_trips (id, user_id, project_id, trip_type, sub_type, title, description,
			                             start_date, end_date, start_time, end_time, location, purpose,
			                             status, report_status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, userID, in.ProjectID, in.TripType, in.SubType, in.Title, in.Description,
			in.StartDate, in.EndDate, in.StartTime, in.EndTime, in.Location, in.Purpose,
			model.StatusPending, model.ReportUnreported, ts, ts,
		); err != nil {
			return fmt.Errorf("creating business trip: %w", err)
		}
		return setCompanions(ctx, tx, id, userID, in.Companions)
	})
	if err != nil {
		return nil, err
	}
	return GetTrip(ctx, database, id)
}

func setCompanions(ctx context.Context, tx *sqlx.Tx, tripID, ownerID string, companions []string) error {
	if _, err := exec(ctx, tx, `DELETE FROM trip_companions WHERE trip_id = ?`, tripID); err != nil {
		return fmt.Errorf("clearing companions: %w", err)
	}
	seen := map[string]bool{ownerID: true}
	for _, c := range companions {
		if seen[c] {
			continue
		}
		seen[c] = true
		if _, err := exec(ctx, tx,
			`INSERT INTO trip_companions (trip_id, user_id) VALUES (?, ?)`, tripID, c,
		); err != nil {
			return fmt.Errorf("adding companion: %w", err)
		}
	}
	return nil
}

// GetTrip returns a business trip by ID with its companions.
func GetTrip(ctx context.Context, q db.DBTX, id string) (*model.BusinessTrip, error) {
	trip := &model.BusinessTrip{}
	found, err := get(ctx, q, trip, `SELECT `+tripColumns+tripFrom+` WHERE t.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting business trip: %w", err)
	}
	if !found {
		return nil, nil
	}

	trip.Companions = []string{}
	if err := sel(ctx, q, &trip.Companions,
		`SELECT user_id FROM trip_companions WHERE trip_id = ? ORDER BY user_id`, id); err != nil {
		return nil, fmt.Errorf("listing companions: %w", err)
	}
	return trip, nil
}

// ListTrips returns business trips matching the filter, newest start first.
func ListTrips(ctx context.Context, q db.DBTX, f model.TripFilter) ([]model.BusinessTrip, error) {
	where, args := workflowWhere("t", f.UserID, f.Status, f.From, f.To)

	trips := []model.BusinessTrip{}
	if err := sel(ctx, q, &trips,
		`SELECT `+tripColumns+tripFrom+` WHERE `+where+` ORDER BY t.start_date DESC, t.created_at DESC`,
		args...); err != nil {
		return nil, fmt.Errorf("listing business trips: %w", err)
	}
	if err := attachCompanions(ctx, q, trips); err != nil {
		return nil, err
	}
	return trips, nil
}

// ListUnreportedTrips returns approved trips of userID that ended on or
// before today and still lack a report.
func ListUnreportedTrips(ctx context.Context, q db.DBTX, userID, today string) ([]model.BusinessTrip, error) {
	query := `SELECT ` + tripColumns + tripFrom + `
		WHERE t.status = ? AND t.report_status = ? AND t.end_date <= ?`
	args := []any{model.StatusApproved, model.ReportUnreported, today}
	if userID != "" {
		query += ` AND t.user_id = ?`
		args = append(args, userID)
	}

	trips := []model.BusinessTrip{}
	if err := sel(ctx, q, &trips, query+` ORDER BY t.end_date`, args...); err != nil {
		return nil, fmt.Errorf("listing unreported trips: %w", err)
	}
	if err := attachCompanions(ctx, q, trips); err != nil {
		return nil, err
	}
	return trips, nil
}

func attachCompanions(ctx context.Context, q db.DBTX, trips []model.BusinessTrip) error {
	if len(trips) == 0 {
		return nil
	}
	ids := make([]string, len(trips))
	index := make(map[string]int, len(trips))
	for i := range trips {
		ids[i] = trips[i].ID
		index[trips[i].ID] = i
		trips[i].Companions = []string{}
	}

	var rows []struct {
		TripID string `db:"trip_id"`
		UserID string `db:"user_id"`
	}
	if err := selIn(ctx, q, &rows,
		`SELECT trip_id, user_id FROM trip_companions WHERE trip_id IN (?) ORDER BY user_id`, ids); err != nil {
		return fmt.Errorf("listing companions: %w", err)
	}
	for _, r := range rows {
		i := index[r.TripID]
		trips[i].Companions = append(trips[i].Companions, r.UserID)
	}
	return nil
}

// UpdateTrip edits a trip that has not been approved yet.
func UpdateTrip(ctx context.Context, database *sqlx.DB, id string, in model.TripInput) (*model.BusinessTrip, error) {
	if err := model.CheckDateRange(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	err := db.RunInTx(ctx, database, func(tx *sqlx.Tx) error {
		current, err := lockTrip(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status == model.StatusApproved {
			return model.Conflict("approved business trips cannot be edited")
		}

		if _, err := exec(ctx, tx,
			`UPDATE business_trips SET project_id = ?, trip_type = ?, sub_type = ?, title = ?, description = ?,
			        start_date = ?, end_date = ?, start_time = ?, end_time = ?, location = ?, purpose = ?,
			        updated_at = ?
			 WHERE id = ?`,
			in.ProjectID, in.TripType, in.SubType, in.Title, in.Description, in.StartDate, in.EndDate,
			in.StartTime, in.EndTime, in.Location, in.Purpose, now(), id,
		); err != nil {
			return fmt.Errorf("updating business trip: %w", err)
		}
		return setCompanions(ctx, tx, id, current.UserID, in.Companions)
	})
	if err != nil {
		return nil, err
	}
	return GetTrip(ctx, database, id)
}

// SetTripStatus approves or rejects a pending trip.
func SetTripStatus(ctx context.Context, database *sqlx.DB, id string, in model.StatusInput, approver string) (*model.BusinessTrip, error) {
	err := db.RunInTx(ctx, database, func(tx *sqlx.Tx) error {
		current, err := lockTrip(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status != model.StatusPending {
			return model.Conflict("business trip is already %s", current.Status)
		}

		_, err = exec(ctx, tx,
			`UPDATE business_trips SET status = ?, approved_by = ?, approved_at = ?, rejection_reason = ?,
			        updated_at = ?
			 WHERE id = ?`,
			in.Status, approver, now(), in.RejectionReason, now(), id,
		)
		if err != nil {
			return fmt.Errorf("updating business trip status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetTrip(ctx, database, id)
}

// SubmitTripReport stores the report of an approved trip.
func SubmitTripReport(ctx context.Context, database *sqlx.DB, id, content string) (*model.BusinessTrip, error) {
	err := db.RunInTx(ctx, database, func(tx *sqlx.Tx) error {
		current, err := lockTrip(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status != model.StatusApproved {
			return model.Conflict("only approved business trips can be reported")
		}

		_, err = exec(ctx, tx,
			`UPDATE business_trips SET report_status = ?, report_content = ?, reported_at = ?, updated_at = ?
			 WHERE id = ?`,
			model.ReportReported, content, now(), now(), id,
		)
		if err != nil {
			return fmt.Errorf("saving trip report: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetTrip(ctx, database, id)
}

// DeleteTrip removes a trip that has not been approved.
func DeleteTrip(ctx context.Context, database *sqlx.DB, id string) error {
	return db.RunInTx(ctx, database, func(tx *sqlx.Tx) error {
		current, err := lockTrip(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status == model.StatusApproved {
			return model.Conflict("approved business trips cannot be deleted")
		}
		if _, err := exec(ctx, tx, `DELETE FROM trip_companions WHERE trip_id = ?`, id); err != nil {
			return fmt.Errorf("deleting companions: %w", err)
		}
		if _, err := exec(ctx, tx, `DELETE FROM business_trips WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting business trip: %w", err)
		}
		return nil
	})
}

func lockTrip(ctx context.Context, tx *sqlx.Tx, id string) (*model.BusinessTrip, error) {
	trip := &model.BusinessTrip{}
	found, err := get(ctx, tx, trip,
		`SELECT `+strings.ReplaceAll(tripColumns, "COALESCE(u.name, '') AS user_name", "'' AS user_name")+
			` FROM business_trips t WHERE t.id = ?`+forUpdate(tx), id)
	if err != nil {
		return nil, fmt.Errorf("locking business trip: %w", err)
	}
	if !found {
		return nil, model.NotFound("business trip")
	}
	return trip, nil
}

// workflowWhere builds the shared owner/status/date filters for trips and
// leave requests. A request overlaps [from, to] when it starts on or before
// to and ends on or after from.
func workflowWhere(alias, userID, status, from, to string) (string, []any) {
	where := []string{"1 = 1"}
	var args []any
	if userID != "" {
		where = append(where, alias+".user_id = ?")
		args = append(args, userID)
	}
	if status != "" {
		where = append(where, alias+".status = ?")
		args = append(args, status)
	}
	if from != "" {
		where = append(where, alias+".end_date >= ?")
		args = append(args, from)
	}
	if to != "" {
		where = append(where, alias+".start_date <= ?")
		args = append(args, to)
	}
	return strings.Join(where, " AND "), args
}
