package ports

import (
	"context"
	"time"

	"SocialInsights/internal/domain"
)

// Scraper pulls raw records from the scraping provider. Implementations retry
// transient failures internally and return an error once retries are exhausted.
type Scraper interface {
	FetchByHashtag(ctx context.Context, tags []string, limit int) ([]domain.RawRecord, error)
	// FetchByUser returns profiles; each embeds its recent posts under latestPosts.
	FetchByUser(ctx context.Context, usernames []string) ([]domain.RawRecord, error)
	FetchMentions(ctx context.Context, terms []string, limit int) ([]domain.RawRecord, error)
	FetchComments(ctx context.Context, postURLs []string, limit int) ([]domain.RawRecord, error)
	Search(ctx context.Context, term string, kind domain.SearchKind, limit int) ([]domain.RawRecord, error)
	HashtagStats(ctx context.Context, tags []string) ([]domain.RawRecord, error)
	// SupportsIncremental reports whether the provider accepts a since-timestamp.
	SupportsIncremental() bool
}

// Summarizer produces abstractive summaries. Inputs below the backend minimum
// fail with domain.ErrInputTooShort.
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxLen, minLen int) (string, error)
}

// Classifier labels text sentiment. ClassifyBatch preserves order and length.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.Classification, error)
	ClassifyBatch(ctx context.Context, texts []string) ([]domain.Classification, error)
}

// Notifier publishes generated weekly reports to an outbound channel.
type Notifier interface {
	PublishReport(ctx context.Context, report domain.WeeklyReport) error
}

// Store opens a transactional session. The session commits when fn returns
// nil and rolls back on error or panic.
type Store interface {
	InTx(ctx context.Context, fn func(Repository) error) error
}

// Repository is the query surface available inside a session.
type Repository interface {
	PostRepository
	CommentRepository
	TargetRepository
	ReportRepository
	JobRepository
	AnalyticsRepository
}

// PostRepository covers posts and their additive result documents.
type PostRepository interface {
	ExistingPostIDs(ctx context.Context, externalIDs []string) (map[string]bool, error)
	// InsertPosts skips rows whose external id exists and returns the number inserted.
	InsertPosts(ctx context.Context, posts []domain.Post) (int64, error)
	GetPost(ctx context.Context, id int64) (domain.Post, error)
	PostIDsByURL(ctx context.Context, urls []string) (map[string]int64, error)
	// PostsAwaitingComments returns posts with comments_count > 0 and no stored comments, newest first.
	PostsAwaitingComments(ctx context.Context, limit int) ([]domain.Post, error)
	// PostsWithoutSentiment returns posts with a non-empty caption and no sentiment result.
	PostsWithoutSentiment(ctx context.Context, limit int) ([]domain.Post, error)
	// PostsInWindow returns posts with from <= timestamp <= to, newest first.
	PostsInWindow(ctx context.Context, from, to time.Time) ([]domain.Post, error)
	MergePostAIResults(ctx context.Context, id int64, patch domain.AIResults) error
}

// CommentRepository covers comments.
type CommentRepository interface {
	ExistingCommentIDs(ctx context.Context, externalIDs []string) (map[string]bool, error)
	InsertComments(ctx context.Context, comments []domain.Comment) (int64, error)
	GetComment(ctx context.Context, id int64) (domain.Comment, error)
	// CommentsForPost orders by likes descending; limit <= 0 returns all.
	CommentsForPost(ctx context.Context, postID int64, limit int) ([]domain.Comment, error)
	CommentsWithoutSentiment(ctx context.Context, limit int) ([]domain.Comment, error)
	CommentsInWindow(ctx context.Context, postIDs []int64, from, to time.Time) ([]domain.Comment, error)
	MergeCommentAIResults(ctx context.Context, id int64, patch domain.AIResults) error
}

// TargetRepository covers the three target tables.
type TargetRepository interface {
	// InsertTargets skips existing keys and returns the number inserted.
	InsertTargets(ctx context.Context, kind domain.TargetKind, targets []domain.Target) (int64, error)
	GetTarget(ctx context.Context, kind domain.TargetKind, key string) (domain.Target, error)
	SaveTarget(ctx context.Context, target domain.Target) error
	DeleteTarget(ctx context.Context, kind domain.TargetKind, key string) error
	// ListTargets orders by priority, then key.
	ListTargets(ctx context.Context, kind domain.TargetKind, includeInactive bool) ([]domain.Target, error)
	TouchTargets(ctx context.Context, kind domain.TargetKind, keys []string, at time.Time) error
}

// ReportRepository covers weekly reports.
type ReportRepository interface {
	// UpsertWeeklyReport inserts or overwrites the row for (Year, WeekNumber) and returns its id.
	UpsertWeeklyReport(ctx context.Context, report domain.WeeklyReport) (int64, error)
	GetWeeklyReport(ctx context.Context, year, week int) (domain.WeeklyReport, error)
	ListWeeklyReports(ctx context.Context, limit int) ([]domain.WeeklyReport, error)
}

// JobRepository covers job schedules and the execution audit log.
type JobRepository interface {
	EnsureJobSchedules(ctx context.Context, defaults []domain.JobSchedule) (int64, error)
	ListJobSchedules(ctx context.Context) ([]domain.JobSchedule, error)
	GetJobSchedule(ctx context.Context, jobID string) (domain.JobSchedule, error)
	SaveJobSchedule(ctx context.Context, schedule domain.JobSchedule) error
	InsertJobExecution(ctx context.Context, exec domain.JobExecution) (int64, error)
	FinishJobExecution(ctx context.Context, exec domain.JobExecution) error
	ListJobExecutions(ctx context.Context, limit int) ([]domain.JobExecution, error)
}

// AnalyticsRepository serves read-only aggregate queries.
type AnalyticsRepository interface {
	ContentStats(ctx context.Context) (domain.ContentStats, error)
	TopHashtags(ctx context.Context, limit int) ([]domain.TagCount, error)
	TopTopics(ctx context.Context, limit int) ([]domain.TagCount, error)
}

// JobHandler is an operation dispatched by the scheduler. The returned map is
// stored as the execution's result summary.
type JobHandler func(ctx context.Context) (map[string]any, error)

// Job pairs a named operation with the schedule it gets when first seeded.
type Job struct {
	Default domain.JobSchedule
	Run     JobHandler
}
