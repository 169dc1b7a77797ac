package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
)

const leaveColumns = `l.id, l.user_id, l.leave_type, l.start_date, l.end_date, l.start_time, l.end_time,
	l.total_days, l.reason, l.status, l.approved_by, l.approved_at, l.rejection_reason, l.created_at, l.updated_at`

// CreateLeave creates a pending leave request. Annual leave is checked
// against the remaining balance; a second pending or approved request
// starting on the same day is a conflict.
func CreateLeave(ctx context.Context, database *sqlx.DB, userID string, in model.LeaveInput) (*model.LeaveRequest, error) {
	if err := model.CheckDateRange(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	id, ts := newID(), now()
	err := db.RunInTx(ctx, database, func(tx *sqlx.Tx) error {
		user, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if model.DeductsAnnualLeave(in.LeaveType) && in.TotalDays > user.RemainingAnnualLeave {
			return &model.Error{
				Code:    model.CodeInvalidArgument,
				Message: fmt.Sprintf("not enough annual leave: %.1f days remaining", user.RemainingAnnualLeave),
				Details: map[string]float64{"remaining": user.RemainingAnnualLeave, "requested": in.TotalDays},
			}
		}

		if err := checkDuplicateLeave(ctx, tx, userID, in.StartDate, ""); err != nil {
			return err
		}

		if _, err := exec(ctx, tx,
			`INSERT INTO leave_requests (id, user_id, leave_type, start_date, end_date, start_time, end_time,
			                             total_days, reason, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, userID, in.LeaveType, in.StartDate, in.EndDate, in.StartTime, in.EndTime,
			in.TotalDays, in.Reason, model.StatusPending, ts, ts,
		); err != nil {
			return fmt.Errorf("creating leave request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetLeave(ctx, database, id)
}

func checkDuplicateLeave(ctx context.Context, tx *sqlx.Tx, userID, startDate, excludeID string) error {
	var n int
	if _, err := get(ctx, tx, &n,
		`SELECT COUNT(*) FROM leave_requests
		 WHERE user_id = ? AND start_date = ? AND status IN (?, ?) AND id <> ?`,
		userID, startDate, model.StatusPending, model.StatusApproved, excludeID,
	); err != nil {
		return fmt.Errorf("checking duplicate leave: %w", err)
	}
	if n > 0 {
		return model.Conflict("a leave request starting on %s already exists", startDate)
	}
	return nil
}

func lockUser(ctx context.Context, tx *sqlx.Tx, id string) (*model.User, error) {
	u := &model.User{}
	found, err := get(ctx, tx, u,
		`SELECT `+userColumns+` FROM users WHERE id = ? AND deleted_at IS NULL`+forUpdate(tx), id)
	if err != nil {
		return nil, fmt.Errorf("locking user: %w", err)
	}
	if !found {
		return nil, model.NotFound("user")
	}
	return u, nil
}

// GetLeave returns a leave request by ID.
func GetLeave(ctx context.Context, q db.DBTX, id string) (*model.LeaveRequest, error) {
	leave := &model.LeaveRequest{}
	found, err := get(ctx, q, leave,
		`SELECT `+leaveColumns+`, COALESCE(u.name, '') AS user_name
		 FROM leave_requests l LEFT JOIN users u ON u.id = l.user_id WHERE l.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting leave request: %w", err)
	}
	if !found {
		return nil, nil
	}
	return leave, nil
}

// ListLeaves returns leave requests matching the filter, newest start first.
func ListLeaves(ctx context.Context, q db.DBTX, f model.LeaveFilter) ([]model.LeaveRequest, error) {
	where, args := workflowWhere("l", f.UserID, f.Status, f.From, f.To)

	leaves := []model.LeaveRequest{}
	if err := sel(ctx, q, &leaves,
		`SELECT `+leaveColumns+`, COALESCE(u.name, '') AS user_name
		 FROM leave_requests l LEFT JOIN users u ON u.id = l.user_id
		 WHERE `+where+` ORDER BY l.start_date DESC, l.created_at DESC`, args...); err != nil {
		return nil, fmt.Errorf("listing leave requests: %w", err)
	}
	return leaves, nil
}

func lockLeave(ctx context.Context, tx *sqlx.Tx, id string) (*model.LeaveRequest, error) {
	leave := &model.LeaveRequest{}
	found, err := get(ctx, tx, leave,
		`SELECT `+leaveColumns+` FROM leave_requests l WHERE l.id = ?`+forUpdate(tx), id)
	if err != nil {
		return nil, fmt.Errorf("locking leave request: %w", err)
	}
	if !found {
		return nil, model.NotFound("leave request")
	}
	return leave, nil
}

// UpdateLeave edits a leave request that has not been approved.
func UpdateLeave(ctx context.Context, database *sqlx.DB, id string, in model.LeaveInput) (*model.LeaveRequest, error) {
	if err := model.CheckDateRange(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	err := db.RunInTx(ctx, database, func(tx *sqlx.Tx) error {
		current, err := lockLeave(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status == model.StatusApproved {
			return model.Conflict("approved leave requests cannot be edited")
		}
		if err := checkDuplicateLeave(ctx, tx, current.UserID, in.StartDate, id); err != nil {
			return err
		}

		if _, err := exec(ctx, tx,
			`UPDATE leave_requests SET leave_type = ?, start_date = ?, end_date = ?, start_time = ?, end_time = ?,
			        total_days = ?, reason = ?, updated_at = ?
			 WHERE id = ?`,
			in.LeaveType, in.StartDate, in.EndDate, in.StartTime, in.EndTime, in.TotalDays, in.Reason, now(), id,
		); err != nil {
			return fmt.Errorf("updating leave request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetLeave(ctx, database, id)
}

// DeleteLeave removes a leave request that has not been approved.
func DeleteLeave(ctx context.Context, database *sqlx.DB, id string) error {
	return db.RunInTx(ctx, database, func(tx *sqlx.Tx) error {
		current, err := lockLeave(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status == model.StatusApproved {
			return model.Conflict("approved leave requests cannot be deleted")
		}
		if _, err := exec(ctx, tx, `DELETE FROM leave_requests WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting leave request: %w", err)
		}
		return nil
	})
}

// SetLeaveStatus approves or rejects a pending leave request. Approving
// annual leave deducts the days from the requester's balance in the same
// transaction.
func SetLeaveStatus(ctx context.Context, database *sqlx.DB, id string, in model.StatusInput, approver string) (*model.LeaveRequest, error) {
	err := db.RunInTx(ctx, database, func(tx *sqlx.Tx) error {
		current, err := lockLeave(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status != model.StatusPending {
			return model.Conflict("leave request is already %s", current.Status)
		}

		if in.Status == model.StatusApproved && model.DeductsAnnualLeave(current.LeaveType) {
			user, err := lockUser(ctx, tx, current.UserID)
			if err != nil {
				return err
			}
			if current.TotalDays > user.RemainingAnnualLeave {
				return &model.Error{
					Code:    model.CodeConflict,
					Message: fmt.Sprintf("not enough annual leave: %.1f days remaining", user.RemainingAnnualLeave),
					Details: map[string]float64{"remaining": user.RemainingAnnualLeave, "requested": current.TotalDays},
				}
			}
			if err := SetAnnualLeave(ctx, tx, user.ID, user.RemainingAnnualLeave-current.TotalDays); err != nil {
				return err
			}
		}

		_, err = exec(ctx, tx,
			`UPDATE leave_requests SET status = ?, approved_by = ?, approved_at = ?, rejection_reason = ?, updated_at = ?
			 WHERE id = ?`,
			in.Status, approver, now(), in.RejectionReason, now(), id,
		)
		if err != nil {
			return fmt.Errorf("updating leave status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetLeave(ctx, database, id)
}
