package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/erazemk/jaego/internal/db"
	"github.com/erazemk/jaego/internal/model"
)

const diaryColumns = `d.id, d.user_id, COALESCE(u.name, '') AS user_name, d.work_date, d.project_id, d.project_name,
	d.custom_project_name, d.work_content, d.work_type, d.work_sub_type, d.created_at, d.updated_at`

const diaryFrom = ` FROM work_diary d LEFT JOIN users u ON u.id = d.user_id`

// resolveDiaryProject fills the project name from the projects table and
// applies the work type rules keyed on the project number. A custom project
// name replaces the project for both.
func resolveDiaryProject(ctx context.Context, q db.DBTX, in *model.DiaryInput) error {
	key := in.CustomProjectName
	if in.ProjectID == model.OtherProject {
		in.ProjectID = ""
	}
	if in.ProjectID != "" {
		project, err := GetProject(ctx, q, in.ProjectID)
		if err != nil {
			return err
		}
		if project == nil {
			return model.InvalidArgument("unknown project %q", in.ProjectID)
		}
		in.ProjectName = project.ProjectName
		if key == "" {
			key = project.ProjectNumber
		}
	}
	return in.ValidateWorkType(key)
}

// CreateDiary creates a work diary entry for userID.
func CreateDiary(ctx context.Context, q db.DBTX, userID string, in model.DiaryInput) (*model.WorkDiary, error) {
	if err := resolveDiaryProject(ctx, q, &in); err != nil {
		return nil, err
	}

	id, ts := newID(), now()
	if _, err := exec(ctx, q,
		`INSERT INTO work_diary (id, user_id, work_date, project_id, project_name, custom_project_name,
		                         work_content, work_type, work_sub_type, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, in.WorkDate, in.ProjectID, in.ProjectName, in.CustomProjectName,
		in.WorkContent, in.WorkType, in.WorkSubType, ts, ts,
	); err != nil {
		return nil, fmt.Errorf("creating work diary: %w", err)
	}
	return GetDiary(ctx, q, id)
}

// GetDiary returns a work diary entry by ID.
func GetDiary(ctx context.Context, q db.DBTX, id string) (*model.WorkDiary, error) {
	d := &model.WorkDiary{}
	found, err := get(ctx, q, d, `SELECT `+diaryColumns+diaryFrom+` WHERE d.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("getting work diary: %w", err)
	}
	if !found {
		return nil, nil
	}
	return d, nil
}

func diaryWhere(f model.DiaryFilter) (string, []any) {
	where := []string{"1 = 1"}
	var args []any
	if f.UserID != "" {
		where = append(where, "d.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.ProjectID != "" {
		where = append(where, "d.project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.From != "" {
		where = append(where, "d.work_date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		where = append(where, "d.work_date <= ?")
		args = append(args, f.To)
	}
	return strings.Join(where, " AND "), args
}

// ListDiaries returns a page of diary entries, newest work date first.
func ListDiaries(ctx context.Context, q db.DBTX, f model.DiaryFilter) (*model.DiaryPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 20
	}
	where, args := diaryWhere(f)

	page := &model.DiaryPage{Data: []model.WorkDiary{}, Page: f.Page, Limit: f.Limit}
	if _, err := get(ctx, q, &page.Total, `SELECT COUNT(*) FROM work_diary d WHERE `+where, args...); err != nil {
		return nil, fmt.Errorf("counting work diaries: %w", err)
	}
	page.TotalPages = (page.Total + f.Limit - 1) / f.Limit

	pageArgs := append(append([]any{}, args...), f.Limit, (f.Page-1)*f.Limit)
	if err := sel(ctx, q, &page.Data,
		`SELECT `+diaryColumns+diaryFrom+` WHERE `+where+`
		 ORDER BY d.work_date DESC, d.created_at DESC LIMIT ? OFFSET ?`, pageArgs...); err != nil {
		return nil, fmt.Errorf("listing work diaries: %w", err)
	}
	return page, nil
}

// ListAllDiaries returns every entry matching the filter, oldest first.
func ListAllDiaries(ctx context.Context, q db.DBTX, f model.DiaryFilter) ([]model.WorkDiary, error) {
	where, args := diaryWhere(f)
	entries := []model.WorkDiary{}
	if err := sel(ctx, q, &entries,
		`SELECT `+diaryColumns+diaryFrom+` WHERE `+where+` ORDER BY d.work_date, u.name`, args...); err != nil {
		return nil, fmt.Errorf("listing work diaries: %w", err)
	}
	return entries, nil
}

// UpdateDiary edits a work diary entry.
func UpdateDiary(ctx context.Context, q db.DBTX, id string, in model.DiaryInput) (*model.WorkDiary, error) {
	if err := resolveDiaryProject(ctx, q, &in); err != nil {
		return nil, err
	}

	res, err := exec(ctx, q,
		`UPDATE work_diary SET work_date = ?, project_id = ?, project_name = ?, custom_project_name = ?,
		        work_content = ?, work_type = ?, work_sub_type = ?, updated_at = ?
		 WHERE id = ?`,
		in.WorkDate, in.ProjectID, in.ProjectName, in.CustomProjectName, in.WorkContent, in.WorkType,
		in.WorkSubType, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating work diary: %w", err)
	}
	if rowsAffected(res) == 0 {
		return nil, model.NotFound("work diary")
	}
	return GetDiary(ctx, q, id)
}

// DeleteDiary removes a work diary entry.
func DeleteDiary(ctx context.Context, q db.DBTX, id string) error {
	res, err := exec(ctx, q, `DELETE FROM work_diary WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting work diary: %w", err)
	}
	if rowsAffected(res) == 0 {
		return model.NotFound("work diary")
	}
	return nil
}

// DiaryStats counts entries per user and per project in the filter range.
func DiaryStats(ctx context.Context, q db.DBTX, f model.DiaryFilter) (*model.DiaryStats, error) {
	where, args := diaryWhere(f)
	stats := &model.DiaryStats{ByUser: []model.DiaryStat{}, ByProject: []model.DiaryStat{}}

	if _, err := get(ctx, q, &stats.Total, `SELECT COUNT(*) FROM work_diary d WHERE `+where, args...); err != nil {
		return nil, fmt.Errorf("counting work diaries: %w", err)
	}

	if err := sel(ctx, q, &stats.ByUser,
		`SELECT d.user_id AS key, COALESCE(MAX(u.name), '') AS name, COUNT(*) AS count`+diaryFrom+`
		 WHERE `+where+` GROUP BY d.user_id ORDER BY count DESC, key`, args...); err != nil {
		return nil, fmt.Errorf("counting diaries per user: %w", err)
	}

	if err := sel(ctx, q, &stats.ByProject,
		`SELECT COALESCE(NULLIF(d.project_id, ''), NULLIF(d.custom_project_name, ''), '-') AS key,
		        COALESCE(MAX(NULLIF(d.project_name, '')), MAX(d.custom_project_name), '') AS name,
		        COUNT(*) AS count
		 FROM work_diary d
		 WHERE `+where+`
		 GROUP BY COALESCE(NULLIF(d.project_id, ''), NULLIF(d.custom_project_name, ''), '-')
		 ORDER BY count DESC, key`, args...); err != nil {
		return nil, fmt.Errorf("counting diaries per project: %w", err)
	}
	return stats, nil
}
