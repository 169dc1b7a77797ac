package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
)

const eventColumns = `id, category, sub_category, summary, description, start_date, start_time, end_date,
	end_time, location, participant_id, participant_name, companions, project_id, project_name,
	created_by, created_at, updated_at`

// CreateEvent creates a schedule event.
func CreateEvent(ctx context.Context, q db.DBTX, in model.EventInput, createdBy string) (*model.ScheduleEvent, error) {
	if err := model.CheckDateRange(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	companions, err := encodeCompanions(in.Companions)
	if err != nil {
		return nil, err
	}

	id, ts := newID(), now()
	if _, err := exec(ctx, q,
		`INSERT INTO schedule_events (id, category, sub_category, summary, description, start_date, start_time,
		                              end_date, end_time, location, participant_id, participant_name, companions,
		                              project_id, project_name, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Category, in.SubCategory, in.Summary, in.Description, in.StartDate, in.StartTime,
		in.EndDate, in.EndTime, in.Location, in.ParticipantID, in.ParticipantName, companions,
		in.ProjectID, in.ProjectName, createdBy, ts, ts,
	); err != nil {
		return nil, fmt.Errorf("creating schedule event: %w", err)
	}
	return GetEvent(ctx, q, id)
}

func encodeCompanions(companions []string) (string, error) {
	if companions == nil {
		companions = []string{}
	}
	raw, err := json.Marshal(companions)
	if err != nil {
		return "", fmt.Errorf("encoding companions: %w", err)
	}
	return string(raw), nil
}

func decodeCompanions(ev *model.ScheduleEvent) {
	ev.Companions = []string{}
	if ev.CompanionsJSON != "" {
		_ = json.Unmarshal([]byte(ev.CompanionsJSON), &ev.Companions)
	}
}

// GetEvent returns a schedule event by ID.
func GetEvent(ctx context.Context, q db.DBTX, id string) (*model.ScheduleEvent, error) {
	ev := &model.ScheduleEvent{}
	found, err := get(ctx, q, ev, `SELECT `+eventColumns+` FROM schedule_events WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting schedule event: %w", err)
	}
	if !found {
		return nil, nil
	}
	decodeCompanions(ev)
	return ev, nil
}

// ListEvents returns events overlapping [from, to]. Empty bounds are open.
func ListEvents(ctx context.Context, q db.DBTX, from, to string) ([]model.ScheduleEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM schedule_events WHERE 1 = 1`
	var args []any
	if from != "" {
		query += ` AND end_date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND start_date <= ?`
		args = append(args, to)
	}

	events := []model.ScheduleEvent{}
	if err := sel(ctx, q, &events, query+` ORDER BY start_date, start_time`, args...); err != nil {
		return nil, fmt.Errorf("listing schedule events: %w", err)
	}
	for i := range events {
		decodeCompanions(&events[i])
	}
	return events, nil
}

// UpdateEvent edits a schedule event.
func UpdateEvent(ctx context.Context, q db.DBTX, id string, in model.EventInput) (*model.ScheduleEvent, error) {
	if err := model.CheckDateRange(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	companions, err := encodeCompanions(in.Companions)
	if err != nil {
		return nil, err
	}

	res, err := exec(ctx, q,
		`UPDATE schedule_events SET category = ?, sub_category = ?, summary = ?, description = ?, start_date = ?,
		        start_time = ?, end_date = ?, end_time = ?, location = ?, participant_id = ?, participant_name = ?,
		        companions = ?, project_id = ?, project_name = ?, updated_at = ?
		 WHERE id = ?`,
		in.Category, in.SubCategory, in.Summary, in.Description, in.StartDate, in.StartTime, in.EndDate,
		in.EndTime, in.Location, in.ParticipantID, in.ParticipantName, companions, in.ProjectID,
		in.ProjectName, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating schedule event: %w", err)
	}
	if rowsAffected(res) == 0 {
		return nil, model.NotFound("schedule event")
	}
	return GetEvent(ctx, q, id)
}

// DeleteEvent removes a schedule event.
func DeleteEvent(ctx context.Context, q db.DBTX, id string) error {
	res, err := exec(ctx, q, `DELETE FROM schedule_events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting schedule event: %w", err)
	}
	if rowsAffected(res) == 0 {
		return model.NotFound("schedule event")
	}
	return nil
}

// Calendar merges events, approved leave and approved business trips that
// overlap [from, to] into one list ordered by start date.
func Calendar(ctx context.Context, q db.DBTX, from, to string) ([]model.CalendarEntry, error) {
	entries := []model.CalendarEntry{}

	events, err := ListEvents(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		entries = append(entries, model.CalendarEntry{
			ID: ev.ID, Source: model.CalendarEvent, Category: ev.Category, Summary: ev.Summary,
			StartDate: ev.StartDate, StartTime: ev.StartTime, EndDate: ev.EndDate, EndTime: ev.EndTime,
			Location: ev.Location, Participant: ev.ParticipantName,
		})
	}

	leaves, err := ListLeaves(ctx, q, model.LeaveFilter{Status: model.StatusApproved, From: from, To: to})
	if err != nil {
		return nil, err
	}
	for _, l := range leaves {
		entries = append(entries, model.CalendarEntry{
			ID: l.ID, Source: model.CalendarLeave, Category: l.LeaveType, Summary: l.UserName + " " + l.LeaveType,
			StartDate: l.StartDate, StartTime: l.StartTime, EndDate: l.EndDate, EndTime: l.EndTime,
			Participant: l.UserName,
		})
	}

	trips, err := ListTrips(ctx, q, model.TripFilter{Status: model.StatusApproved, From: from, To: to})
	if err != nil {
		return nil, err
	}
	for _, t := range trips {
		entries = append(entries, model.CalendarEntry{
			ID: t.ID, Source: model.CalendarTrip, Category: t.TripType, Summary: t.Title,
			StartDate: t.StartDate, StartTime: t.StartTime, EndDate: t.EndDate, EndTime: t.EndTime,
			Location: t.Location, Participant: t.UserName,
		})
	}

	sortCalendar(entries)
	return entries, nil
}

func sortCalendar(entries []model.CalendarEntry) {
	slices.SortStableFunc(entries, func(a, b model.CalendarEntry) int {
		if c := strings.Compare(a.StartDate, b.StartDate); c != 0 {
			return c
		}
		return strings.Compare(a.StartTime, b.StartTime)
	})
}
