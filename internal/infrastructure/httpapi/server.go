// Package httpapi exposes collection, enrichment, reporting and scheduling
// over a JSON REST surface.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"SocialInsights/internal/domain"
	"SocialInsights/internal/usecase"
)

// Collector runs the scraping pipelines.
type Collector interface {
	CollectHashtags(ctx context.Context, tags []string, limit int) (usecase.HashtagScrapeResult, error)
	CollectComments(ctx context.Context, limitPosts, limitComments int) (usecase.CommentScrapeResult, error)
	Discover(ctx context.Context, req usecase.DiscoveryRequest) (domain.Discovery, error)
	DiscoverAndSave(ctx context.Context, req usecase.DiscoveryRequest, opts usecase.AddOptions, includeRelated bool) (usecase.DiscoverAndSaveResult, error)
	RunFull(ctx context.Context, req usecase.FullRequest) (usecase.FullResult, error)
	RunTargets(ctx context.Context, req usecase.TargetRunRequest) (usecase.TargetRunResult, error)
	RunIncremental(ctx context.Context, kinds []domain.TargetKind) (usecase.IncrementalPlan, error)
}

// Enricher runs AI enrichment on stored content.
type Enricher interface {
	EnrichSentiment(ctx context.Context, kind domain.EnrichableKind, batchSize int) (usecase.SentimentBatchResult, error)
	SummarizePostComments(ctx context.Context, postID int64, prioritizeEngagement bool) (usecase.CommentSummaryResult, error)
	SummarizeComment(ctx context.Context, commentID int64) (usecase.CommentSummaryOutcome, error)
	AnalyzeComment(ctx context.Context, commentID int64) (domain.SentimentResult, error)
	AggregatePostSentiment(ctx context.Context, postID int64) (usecase.PostSentimentResult, error)
	SummarizeWindow(ctx context.Context, from, to time.Time) (usecase.WindowSummary, error)
	AnalyzeWindowSentiment(ctx context.Context, from, to time.Time) (usecase.WindowSentiment, error)
}

// Reporter builds and reads weekly reports.
type Reporter interface {
	GenerateReport(ctx context.Context, year, week int) (domain.WeeklyReport, error)
	GetReport(ctx context.Context, year, week int) (domain.WeeklyReport, error)
	ListReports(ctx context.Context, limit int) ([]domain.WeeklyReport, error)
}

// Targets manages monitoring targets.
type Targets interface {
	Add(ctx context.Context, kind domain.TargetKind, specs []domain.TargetSpec, opts usecase.AddOptions) (usecase.AddResult, error)
	Update(ctx context.Context, kind domain.TargetKind, key string, patch domain.TargetPatch) (domain.Target, error)
	Activate(ctx context.Context, kind domain.TargetKind, key string) (domain.Target, error)
	Deactivate(ctx context.Context, kind domain.TargetKind, key string) (domain.Target, error)
	Delete(ctx context.Context, kind domain.TargetKind, key string) error
	List(ctx context.Context, kind domain.TargetKind, includeInactive bool) ([]domain.Target, error)
	ListAll(ctx context.Context, includeInactive bool) (map[domain.TargetKind][]domain.Target, error)
}

// Analytics serves read-only queries.
type Analytics interface {
	Stats(ctx context.Context) (domain.ContentStats, error)
	AICoverage(ctx context.Context) (map[domain.EnrichableKind]usecase.Coverage, error)
	SentimentBreakdown(ctx context.Context) (map[domain.EnrichableKind]domain.Breakdown, error)
	TopHashtags(ctx context.Context, limit int) ([]domain.TagCount, error)
	TopTopics(ctx context.Context, limit int) ([]domain.TagCount, error)
	Post(ctx context.Context, id int64) (domain.Post, error)
	PostComments(ctx context.Context, postID int64, limit int) ([]domain.Comment, error)
}

// Scheduler controls the background jobs.
type Scheduler interface {
	Status(ctx context.Context) ([]domain.JobStatus, error)
	UpdateSchedule(ctx context.Context, jobID string, patch domain.JobSchedulePatch) (domain.JobSchedule, error)
	TriggerNow(ctx context.Context, jobID string) error
	History(ctx context.Context, limit int) ([]domain.JobExecution, error)
}

// Services groups the collaborators behind the routes. Scheduler may be nil
// when background jobs are disabled.
type Services struct {
	Collector Collector
	Enricher  Enricher
	Reporter  Reporter
	Targets   Targets
	Analytics Analytics
	Scheduler Scheduler
}

// Server owns the router and the HTTP listener.
type Server struct {
	svc    Services
	engine *gin.Engine
	http   *http.Server
	logger *slog.Logger
	now    func() time.Time
}

// NewServer builds the router. addr is only used by Run.
func NewServer(addr string, svc Services, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{svc: svc, engine: gin.New(), logger: logger, now: time.Now}
	s.engine.Use(requestID(), s.accessLog(), gin.CustomRecovery(s.recovered))
	s.routes()
	s.http = &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down within timeout.
func (s *Server) Run(ctx context.Context, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/health", s.health)
	r.GET("/stats", s.stats)

	scrape := r.Group("/scrape")
	scrape.POST("/hashtags", s.scrapeHashtags)
	scrape.POST("/comments", s.scrapeComments)

	pipeline := r.Group("/pipeline")
	pipeline.POST("/discovery", s.pipelineDiscovery)
	pipeline.POST("/full", s.pipelineFull)
	pipeline.POST("/targets", s.pipelineTargets)
	pipeline.POST("/incremental", s.pipelineIncremental)

	targets := r.Group("/targets")
	targets.GET("", s.listTargets)
	targets.GET("/:kind", s.listTargetsOfKind)
	targets.POST("/add", s.addTargets)
	targets.POST("/discover-and-save", s.discoverAndSave)
	targets.PATCH("/:kind/:key", s.updateTarget)
	targets.POST("/:kind/:key/activate", s.activateTarget)
	targets.POST("/:kind/:key/deactivate", s.deactivateTarget)
	targets.DELETE("/:kind/:key", s.deleteTarget)

	posts := r.Group("/posts")
	posts.GET("/:id", s.getPost)
	posts.GET("/:id/comments", s.getPostComments)

	ai := r.Group("/ai")
	ai.POST("/summarize/post/:id", s.summarizePost)
	ai.POST("/summarize/comment/:id", s.summarizeComment)
	ai.POST("/summarize/period", s.summarizePeriod)
	ai.POST("/sentiment/comment/:id", s.analyzeComment)
	ai.POST("/sentiment/post/:id", s.analyzePost)
	ai.POST("/sentiment/batch", s.sentimentBatch(domain.KindComment))
	ai.POST("/sentiment/batch-posts", s.sentimentBatch(domain.KindPost))
	ai.POST("/sentiment/period", s.sentimentPeriod)
	ai.POST("/reports/weekly", s.generateReport)
	ai.GET("/reports/weekly", s.listReports)
	ai.GET("/reports/weekly/:year/:week", s.getReport)

	jobs := r.Group("/jobs")
	jobs.GET("", s.listJobs)
	jobs.GET("/history", s.jobHistory)
	jobs.POST("/:id/schedule", s.updateJob)
	jobs.POST("/:id/run", s.runJob)

	analytics := r.Group("/analytics")
	analytics.GET("/ai-coverage", s.aiCoverage)
	analytics.GET("/sentiment-breakdown", s.sentimentBreakdown)
	analytics.GET("/top-hashtags", s.topHashtags)
	analytics.GET("/top-topics", s.topTopics)
}

const requestIDHeader = "X-Request-ID"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start).Round(time.Millisecond),
			"request_id", c.GetString("request_id"),
		)
	}
}

func (s *Server) recovered(c *gin.Context, recovered any) {
	s.logger.Error("handler panicked", "path", c.FullPath(), "panic", recovered)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
}

// fail maps domain errors onto status codes.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err, "request_id", c.GetString("request_id"))
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": err.Error()})
}

// done answers a mutating request.
func done(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}
