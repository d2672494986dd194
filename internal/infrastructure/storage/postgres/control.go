package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"SocialInsights/internal/domain"
)

var reportColumns = []string{
	"id", "year", "week_number", "week_start_date", "week_end_date", "post_count",
	"comment_count", "COALESCE(summary, '')", "COALESCE(sentiment_label, '')",
	"sentiment_score", "sentiment_breakdown", "generated_at",
}

func scanReport(row pgx.Row) (domain.WeeklyReport, error) {
	var (
		rep       domain.WeeklyReport
		label     string
		score     int
		breakdown []byte
	)
	err := row.Scan(&rep.ID, &rep.Year, &rep.WeekNumber, &rep.WeekStart, &rep.WeekEnd,
		&rep.PostCount, &rep.CommentCount, &rep.Summary, &label, &score, &breakdown, &rep.GeneratedAt)
	if err != nil {
		return domain.WeeklyReport{}, err
	}
	rep.SentimentLabel = domain.SentimentLabel(label)
	rep.SentimentScore = domain.ReportScore(score)
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &rep.Breakdown); err != nil {
			return domain.WeeklyReport{}, fmt.Errorf("decode breakdown: %w", err)
		}
	}
	return rep, nil
}

func (r *repo) UpsertWeeklyReport(ctx context.Context, report domain.WeeklyReport) (int64, error) {
	breakdown, err := encodeJSON(report.Breakdown)
	if err != nil {
		return 0, fmt.Errorf("encode breakdown: %w", err)
	}
	generated := report.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}

	row, err := r.queryRow(ctx, r.psql.Insert("weekly_reports").
		Columns("year", "week_number", "week_start_date", "week_end_date", "post_count",
			"comment_count", "summary", "sentiment_label", "sentiment_score",
			"sentiment_breakdown", "generated_at").
		Values(report.Year, report.WeekNumber, report.WeekStart, report.WeekEnd, report.PostCount,
			report.CommentCount, report.Summary, string(report.SentimentLabel),
			int(report.SentimentScore), breakdown, generated).
		Suffix(`ON CONFLICT (year, week_number) DO UPDATE SET
			week_start_date = EXCLUDED.week_start_date,
			week_end_date = EXCLUDED.week_end_date,
			post_count = EXCLUDED.post_count,
			comment_count = EXCLUDED.comment_count,
			summary = EXCLUDED.summary,
			sentiment_label = EXCLUDED.sentiment_label,
			sentiment_score = EXCLUDED.sentiment_score,
			sentiment_breakdown = EXCLUDED.sentiment_breakdown,
			generated_at = EXCLUDED.generated_at
			RETURNING id`))
	if err != nil {
		return 0, err
	}

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert weekly report: %w", err)
	}
	return id, nil
}

func (r *repo) GetWeeklyReport(ctx context.Context, year, week int) (domain.WeeklyReport, error) {
	row, err := r.queryRow(ctx, r.psql.Select(reportColumns...).From("weekly_reports").
		Where(sq.Eq{"year": year}).
		Where(sq.Eq{"week_number": week}))
	if err != nil {
		return domain.WeeklyReport{}, err
	}
	rep, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WeeklyReport{}, domain.NotFound("weekly report", fmt.Sprintf("%d-W%02d", year, week))
	}
	if err != nil {
		return domain.WeeklyReport{}, fmt.Errorf("get weekly report: %w", err)
	}
	return rep, nil
}

func (r *repo) ListWeeklyReports(ctx context.Context, limit int) ([]domain.WeeklyReport, error) {
	b := r.psql.Select(reportColumns...).From("weekly_reports").
		OrderBy("year DESC", "week_number DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("list weekly reports: %w", err)
	}
	return collect(rows, scanReport)
}

var scheduleColumns = []string{
	"job_id", "COALESCE(name, '')", "is_active", "schedule_type", "interval_minutes",
	"hour", "minute", "COALESCE(day_of_week, '')", "COALESCE(day_of_month, '')", "updated_at",
}

func scanSchedule(row pgx.Row) (domain.JobSchedule, error) {
	var (
		s    domain.JobSchedule
		kind string
	)
	err := row.Scan(&s.JobID, &s.Name, &s.IsActive, &kind, &s.IntervalMinutes,
		&s.Hour, &s.Minute, &s.DayOfWeek, &s.DayOfMonth, &s.UpdatedAt)
	s.Type = domain.ScheduleType(kind)
	return s, err
}

func (r *repo) EnsureJobSchedules(ctx context.Context, defaults []domain.JobSchedule) (int64, error) {
	var created int64
	for _, s := range defaults {
		tag, err := r.exec(ctx, r.psql.Insert("job_schedules").
			Columns("job_id", "name", "is_active", "schedule_type", "interval_minutes",
				"hour", "minute", "day_of_week", "day_of_month").
			Values(s.JobID, s.Name, s.IsActive, string(s.Type), s.IntervalMinutes,
				s.Hour, s.Minute, nullIfEmpty(s.DayOfWeek), nullIfEmpty(s.DayOfMonth)).
			Suffix("ON CONFLICT (job_id) DO NOTHING"))
		if err != nil {
			return created, fmt.Errorf("seed job %s: %w", s.JobID, err)
		}
		created += tag.RowsAffected()
	}
	return created, nil
}

func (r *repo) ListJobSchedules(ctx context.Context) ([]domain.JobSchedule, error) {
	rows, err := r.query(ctx, r.psql.Select(scheduleColumns...).From("job_schedules").OrderBy("job_id"))
	if err != nil {
		return nil, fmt.Errorf("list job schedules: %w", err)
	}
	return collect(rows, scanSchedule)
}

func (r *repo) GetJobSchedule(ctx context.Context, jobID string) (domain.JobSchedule, error) {
	row, err := r.queryRow(ctx, r.psql.Select(scheduleColumns...).From("job_schedules").
		Where(sq.Eq{"job_id": jobID}))
	if err != nil {
		return domain.JobSchedule{}, err
	}
	s, err := scanSchedule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.JobSchedule{}, domain.NotFound("job", jobID)
	}
	if err != nil {
		return domain.JobSchedule{}, fmt.Errorf("get job schedule: %w", err)
	}
	return s, nil
}

func (r *repo) SaveJobSchedule(ctx context.Context, s domain.JobSchedule) error {
	tag, err := r.exec(ctx, r.psql.Update("job_schedules").
		Set("is_active", s.IsActive).
		Set("schedule_type", string(s.Type)).
		Set("interval_minutes", s.IntervalMinutes).
		Set("hour", s.Hour).
		Set("minute", s.Minute).
		Set("day_of_week", nullIfEmpty(s.DayOfWeek)).
		Set("day_of_month", nullIfEmpty(s.DayOfMonth)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"job_id": s.JobID}))
	if err != nil {
		return fmt.Errorf("update job schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("job", s.JobID)
	}
	return nil
}

func (r *repo) InsertJobExecution(ctx context.Context, exec domain.JobExecution) (int64, error) {
	row, err := r.queryRow(ctx, r.psql.Insert("job_executions").
		Columns("job_id", "run_id", "status", "started_at").
		Values(exec.JobID, exec.RunID, string(exec.Status), exec.StartedAt).
		Suffix("RETURNING id"))
	if err != nil {
		return 0, err
	}
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("insert job execution: %w", err)
	}
	return id, nil
}

func (r *repo) FinishJobExecution(ctx context.Context, exec domain.JobExecution) error {
	var summary *string
	if exec.ResultSummary != nil {
		var err error
		if summary, err = encodeJSON(exec.ResultSummary); err != nil {
			return fmt.Errorf("encode result summary: %w", err)
		}
	}
	tag, err := r.exec(ctx, r.psql.Update("job_executions").
		Set("status", string(exec.Status)).
		Set("completed_at", exec.CompletedAt).
		Set("result_summary", summary).
		Set("error_message", nullIfEmpty(exec.ErrorMessage)).
		Where(sq.Eq{"id": exec.ID}))
	if err != nil {
		return fmt.Errorf("finish job execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("job execution", exec.ID)
	}
	return nil
}

func (r *repo) ListJobExecutions(ctx context.Context, limit int) ([]domain.JobExecution, error) {
	b := r.psql.Select("id", "job_id", "run_id", "status", "started_at", "completed_at",
		"result_summary", "COALESCE(error_message, '')").
		From("job_executions").
		OrderBy("started_at DESC", "id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("list job executions: %w", err)
	}
	return collect(rows, func(row pgx.Row) (domain.JobExecution, error) {
		var (
			e       domain.JobExecution
			status  string
			summary []byte
		)
		if err := row.Scan(&e.ID, &e.JobID, &e.RunID, &status, &e.StartedAt, &e.CompletedAt,
			&summary, &e.ErrorMessage); err != nil {
			return e, err
		}
		e.Status = domain.ExecutionStatus(status)
		if len(summary) > 0 && string(summary) != "null" {
			if err := json.Unmarshal(summary, &e.ResultSummary); err != nil {
				return e, fmt.Errorf("decode result summary: %w", err)
			}
		}
		return e, nil
	})
}
