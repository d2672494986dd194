package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"SocialInsights/internal/domain"
	"SocialInsights/internal/ports"
)

// Reporter builds and stores weekly reports.
type Reporter struct {
	store    ports.Store
	enricher *Enricher
	notifier ports.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewReporter wires the aggregator; notifier may be nil.
func NewReporter(store ports.Store, enricher *Enricher, notifier ports.Notifier, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{store: store, enricher: enricher, notifier: notifier, logger: logger, now: time.Now}
}

// CurrentWeek returns the (year, week) whose WeekBounds window contains now.
// Late December can fall into week 1 of the next year and early January into
// the last week of the previous one.
func CurrentWeek(now time.Time) (int, int) {
	now = now.UTC()
	for year := now.Year() + 1; year >= now.Year()-1; year-- {
		start, _ := domain.WeekBounds(year, 1)
		if now.Before(start) {
			continue
		}
		return year, int(now.Sub(start)/(7*24*time.Hour)) + 1
	}
	return now.Year(), 1
}

// GenerateReport summarizes and scores the week's content and upserts the
// report by (year, week).
func (r *Reporter) GenerateReport(ctx context.Context, year, week int) (domain.WeeklyReport, error) {
	if err := domain.ValidateWeek(year, week); err != nil {
		return domain.WeeklyReport{}, err
	}
	start, end := domain.WeekBounds(year, week)

	summary, err := r.enricher.SummarizeWindow(ctx, start, end)
	if err != nil {
		return domain.WeeklyReport{}, fmt.Errorf("summarize week %d-W%02d: %w", year, week, err)
	}
	sentiment, err := r.enricher.AnalyzeWindowSentiment(ctx, start, end)
	if err != nil {
		return domain.WeeklyReport{}, fmt.Errorf("score week %d-W%02d: %w", year, week, err)
	}

	report := domain.WeeklyReport{
		Year:           year,
		WeekNumber:     week,
		WeekStart:      start,
		WeekEnd:        end,
		PostCount:      sentiment.PostCount,
		CommentCount:   sentiment.CommentCount,
		Summary:        summary.Summary,
		SentimentLabel: sentiment.Label,
		SentimentScore: sentiment.Score,
		Breakdown:      sentiment.Breakdown,
		GeneratedAt:    r.now().UTC(),
	}

	err = r.store.InTx(ctx, func(repo ports.Repository) error {
		id, err := repo.UpsertWeeklyReport(ctx, report)
		report.ID = id
		return err
	})
	if err != nil {
		return domain.WeeklyReport{}, fmt.Errorf("store weekly report: %w", err)
	}
	r.logger.Info("weekly report generated", "year", year, "week", week, "posts", report.PostCount, "score", report.SentimentScore)

	if r.notifier != nil {
		if err := r.notifier.PublishReport(ctx, report); err != nil {
			r.logger.Warn("report notification failed", "year", year, "week", week, "error", err)
		}
	}
	return report, nil
}

// GetReport returns the stored report for (year, week).
func (r *Reporter) GetReport(ctx context.Context, year, week int) (domain.WeeklyReport, error) {
	if err := domain.ValidateWeek(year, week); err != nil {
		return domain.WeeklyReport{}, err
	}
	var rep domain.WeeklyReport
	err := r.store.InTx(ctx, func(repo ports.Repository) error {
		var err error
		rep, err = repo.GetWeeklyReport(ctx, year, week)
		return err
	})
	return rep, err
}

// ListReports returns the newest reports first.
func (r *Reporter) ListReports(ctx context.Context, limit int) ([]domain.WeeklyReport, error) {
	if limit < 0 {
		return nil, domain.Invalid("limit must not be negative, got %d", limit)
	}
	var reps []domain.WeeklyReport
	err := r.store.InTx(ctx, func(repo ports.Repository) error {
		var err error
		reps, err = repo.ListWeeklyReports(ctx, limit)
		return err
	})
	return reps, err
}

// GenerateCurrent builds the report of the week containing now.
func (r *Reporter) GenerateCurrent(ctx context.Context) (domain.WeeklyReport, error) {
	year, week := CurrentWeek(r.now())
	return r.GenerateReport(ctx, year, week)
}
