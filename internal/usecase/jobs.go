package usecase

import (
	"context"
	"fmt"

	"SocialInsights/internal/config"
	"SocialInsights/internal/domain"
	"SocialInsights/internal/ports"
)

// Scheduled job identifiers.
const (
	JobScrapeTargets    = "scrape_targets"
	JobAnalyzeSentiment = "analyze_sentiment"
	JobWeeklyReport     = "weekly_report"
)

// JobCatalog binds the named background jobs to the services they drive.
type JobCatalog struct {
	collector *Collector
	enricher  *Enricher
	reporter  *Reporter
	cfg       config.CollectionConfig
}

// NewJobCatalog builds the catalog; cfg supplies per-run bounds.
func NewJobCatalog(collector *Collector, enricher *Enricher, reporter *Reporter, cfg config.CollectionConfig) *JobCatalog {
	return &JobCatalog{collector: collector, enricher: enricher, reporter: reporter, cfg: cfg}
}

func interval(id, name string, minutes int) domain.JobSchedule {
	return domain.JobSchedule{
		JobID:           id,
		Name:            name,
		IsActive:        true,
		Type:            domain.ScheduleInterval,
		IntervalMinutes: &minutes,
	}
}

// Jobs lists every job with its default schedule.
func (c *JobCatalog) Jobs() []ports.Job {
	return []ports.Job{
		{Default: interval(JobScrapeTargets, "Scrape monitoring targets", 360), Run: c.scrapeTargets},
		{Default: interval(JobAnalyzeSentiment, "Analyze pending sentiment", 60), Run: c.analyzeSentiment},
		{Default: interval(JobWeeklyReport, "Generate weekly report", 720), Run: c.weeklyReport},
	}
}

func (c *JobCatalog) scrapeTargets(ctx context.Context) (map[string]any, error) {
	res, err := c.collector.RunTargets(ctx, TargetRunRequest{
		PostsPerTarget:      c.cfg.PostsPerTarget,
		MaxPostsForComments: c.cfg.MaxPostsForComment,
		CommentsPerPost:     c.cfg.CommentsPerPost,
		UpdateMetadata:      true,
	})
	if err != nil {
		return nil, err
	}
	skipped := make([]string, 0, len(res.SkippedKinds))
	for _, k := range res.SkippedKinds {
		skipped = append(skipped, string(k))
	}
	return map[string]any{
		"posts_added":    res.Posts.Added,
		"posts_skipped":  res.Posts.Skipped,
		"comments_added": res.Comments.Comments.Added,
		"skipped_kinds":  skipped,
	}, nil
}

func (c *JobCatalog) analyzeSentiment(ctx context.Context) (map[string]any, error) {
	comments, err := c.enricher.EnrichSentiment(ctx, domain.KindComment, c.cfg.SentimentComments)
	if err != nil {
		return nil, fmt.Errorf("comment sentiment: %w", err)
	}
	posts, err := c.enricher.EnrichSentiment(ctx, domain.KindPost, c.cfg.SentimentPosts)
	if err != nil {
		return nil, fmt.Errorf("post sentiment: %w", err)
	}
	return map[string]any{
		"comments_processed": comments.Processed,
		"comments_failed":    comments.Failed,
		"posts_processed":    posts.Processed,
		"posts_failed":       posts.Failed,
	}, nil
}

func (c *JobCatalog) weeklyReport(ctx context.Context) (map[string]any, error) {
	rep, err := c.reporter.GenerateCurrent(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"report_id":       rep.ID,
		"year":            rep.Year,
		"week_number":     rep.WeekNumber,
		"post_count":      rep.PostCount,
		"sentiment_score": rep.SentimentScore,
	}, nil
}
