package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"SocialInsights/internal/domain"
	"SocialInsights/internal/usecase"
)

// Sub-steps of a hashtag scrape run with fixed bounds.
const (
	followUpMaxPosts    = 20
	followUpComments    = 50
	followUpSentimentSz = 50
)

// bind decodes an optional JSON body over the defaults already in dst.
func bind(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return domain.Invalid("request body: %v", err)
	}
	return nil
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Invalid("invalid id %q", c.Param("id"))
	}
	return id, nil
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid("query parameter %s must be an integer, got %q", name, raw)
	}
	return v, nil
}

func queryBool(c *gin.Context, name string) (bool, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, domain.Invalid("query parameter %s must be a boolean, got %q", name, raw)
	}
	return v, nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": s.now().UTC()})
}

func (s *Server) stats(c *gin.Context) {
	st, err := s.svc.Analytics.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_posts":              st.Posts.Total,
		"total_comments":           st.Comments.Total,
		"posts_with_ai_results":    st.Posts.WithAIResults,
		"comments_with_ai_results": st.Comments.WithAIResults,
	})
}

// --- scraping ---

type scrapeHashtagsRequest struct {
	Hashtags      []string `json:"hashtags" binding:"required,min=1"`
	Limit         int      `json:"limit"`
	FetchComments bool     `json:"fetch_comments"`
	RunAIAnalysis bool     `json:"run_ai_analysis"`
}

func (s *Server) scrapeHashtags(c *gin.Context) {
	req := scrapeHashtagsRequest{Limit: 50, FetchComments: true, RunAIAnalysis: true}
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	ctx := c.Request.Context()

	res, err := s.svc.Collector.CollectHashtags(ctx, req.Hashtags, req.Limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := gin.H{"hashtags": res.Hashtags, "posts": res.Posts}

	// Follow-up steps degrade into an error entry instead of failing the scrape.
	if req.FetchComments && res.Posts.Added > 0 {
		comments, err := s.svc.Collector.CollectComments(ctx, min(res.Posts.Added, followUpMaxPosts), followUpComments)
		if err != nil {
			s.logger.Warn("comment follow-up failed", "error", err)
			out["comments"] = gin.H{"error": err.Error()}
		} else {
			out["comments"] = comments
		}
	}
	if req.RunAIAnalysis && res.Posts.Added > 0 {
		analysis, err := s.svc.Enricher.EnrichSentiment(ctx, domain.KindPost, followUpSentimentSz)
		if err != nil {
			s.logger.Warn("sentiment follow-up failed", "error", err)
			out["ai_analysis"] = gin.H{"error": err.Error()}
		} else {
			out["ai_analysis"] = analysis
		}
	}
	done(c, out)
}

type scrapeCommentsRequest struct {
	LimitPosts    int `json:"limit_posts"`
	LimitComments int `json:"limit_comments"`
}

func (s *Server) scrapeComments(c *gin.Context) {
	req := scrapeCommentsRequest{LimitPosts: 10, LimitComments: 50}
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.svc.Collector.CollectComments(c.Request.Context(), req.LimitPosts, req.LimitComments)
	if err != nil {
		s.fail(c, err)
		return
	}
	done(c, res)
}

// --- pipelines ---

func (s *Server) pipelineDiscovery(c *gin.Context) {
	req := usecase.DefaultDiscoveryRequest("")
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	d, err := s.svc.Collector.Discover(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	done(c, gin.H{
		"discovered": d,
		"counts": gin.H{
			"accounts":         len(d.Accounts),
			"hashtags":         len(d.Hashtags),
			"places":           len(d.Places),
			"related_hashtags": len(d.RelatedHashtags),
		},
	})
}

type fullPipelineRequest struct {
	usecase.DiscoveryRequest
	MaxUsersToScrape    int `json:"max_users_to_scrape"`
	MaxHashtagsToScrape int `json:"max_hashtags_to_scrape"`
	PostsPerTarget      int `json:"limit_posts"`
	MaxPostsForComments int `json:"max_posts_for_comments"`
	CommentsPerPost     int `json:"limit_comments"`
}

func (s *Server) pipelineFull(c *gin.Context) {
	req := fullPipelineRequest{
		DiscoveryRequest:    usecase.DefaultDiscoveryRequest(""),
		MaxUsersToScrape:    5,
		MaxHashtagsToScrape: 5,
		PostsPerTarget:      20,
		MaxPostsForComments: 20,
		CommentsPerPost:     50,
	}
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.svc.Collector.RunFull(c.Request.Context(), usecase.FullRequest{
		Discovery:           req.DiscoveryRequest,
		MaxUsersToScrape:    req.MaxUsersToScrape,
		MaxHashtagsToScrape: req.MaxHashtagsToScrape,
		PostsPerTarget:      req.PostsPerTarget,
		MaxPostsForComments: req.MaxPostsForComments,
		CommentsPerPost:     req.CommentsPerPost,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	done(c, res)
}

func (s *Server) pipelineTargets(c *gin.Context) {
	req := usecase.TargetRunRequest{PostsPerTarget: 10, MaxPostsForComments: 20, CommentsPerPost: 50, UpdateMetadata: true}
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.svc.Collector.RunTargets(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	done(c, res)
}

type incrementalRequest struct {
	Kinds []string `json:"target_types"`
}

func (s *Server) pipelineIncremental(c *gin.Context) {
	var req incrementalRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	kinds := make([]domain.TargetKind, 0, len(req.Kinds))
	for _, k := range req.Kinds {
		kind, err := domain.ParseTargetKind(k)
		if err != nil {
			s.fail(c, err)
			return
		}
		kinds = append(kinds, kind)
	}
	plan, err := s.svc.Collector.RunIncremental(c.Request.Context(), kinds)
	if err != nil {
		s.fail(c, err)
		return
	}
	done(c, plan)
}

// --- targets ---

func (s *Server) listTargets(c *gin.Context) {
	includeInactive, err := queryBool(c, "include_inactive")
	if err != nil {
		s.fail(c, err)
		return
	}
	filter := c.DefaultQuery("target_type", "all")
	if filter != "all" {
		kind, err := domain.ParseTargetKind(filter)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.respondTargets(c, kind, includeInactive)
		return
	}

	all, err := s.svc.Targets.ListAll(c.Request.Context(), includeInactive)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make(map[string][]targetView, len(all))
	total := 0
	for kind, ts := range all {
		out[string(kind)+"s"] = targetViews(ts)
		total += len(ts)
	}
	c.JSON(http.StatusOK, gin.H{"targets": out, "total": total})
}

func (s *Server) listTargetsOfKind(c *gin.Context) {
	kind, err := domain.ParseTargetKind(c.Param("kind"))
	if err != nil {
		s.fail(c, err)
		return
	}
	includeInactive, err := queryBool(c, "include_inactive")
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondTargets(c, kind, includeInactive)
}

func (s *Server) respondTargets(c *gin.Context, kind domain.TargetKind, includeInactive bool) {
	ts, err := s.svc.Targets.List(c.Request.Context(), kind, includeInactive)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": kind, "targets": targetViews(ts), "total": len(ts)})
}

type placeSpec struct {
	ID      string `json:"place_id"`
	Name    string `json:"place_name"`
	City    string `json:"city"`
	Country string `json:"country"`
}

type addTargetsRequest struct {
	Hashtags  []string    `json:"hashtags"`
	Usernames []string    `json:"usernames"`
	Places    []placeSpec `json:"places"`
	Priority  int         `json:"priority"`
	Notes     string      `json:"notes"`
	Tags      []string    `json:"tags"`
}

func keySpecs(keys []string) []domain.TargetSpec {
	out := make([]domain.TargetSpec, 0, len(keys))
	for _, k := range keys {
		out = append(out, domain.TargetSpec{Key: k})
	}
	return out
}

func (s *Server) addTargets(c *gin.Context) {
	req := addTargetsRequest{Priority: domain.DefaultPriority}
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	places := make([]domain.TargetSpec, 0, len(req.Places))
	for _, p := range req.Places {
		places = append(places, domain.TargetSpec{Key: p.ID, DisplayName: p.Name, City: p.City, Country: p.Country})
	}
	batches := map[domain.TargetKind][]domain.TargetSpec{
		domain.TargetHashtag: keySpecs(req.Hashtags),
		domain.TargetUser:    keySpecs(req.Usernames),
		domain.TargetPlace:   places,
	}
	if len(req.Hashtags)+len(req.Usernames)+len(req.Places) == 0 {
		s.fail(c, domain.Invalid("no targets given"))
		return
	}

	ctx := c.Request.Context()
	opts := usecase.AddOptions{Priority: req.Priority, Notes: req.Notes, Tags: req.Tags}
	added := map[string]usecase.AddResult{}
	var total int64
	for _, kind := range domain.TargetKinds {
		if len(batches[kind]) == 0 {
			continue
		}
		res, err := s.svc.Targets.Add(ctx, kind, batches[kind], opts)
		if err != nil {
			s.fail(c, err)
			return
		}
		added[string(kind)+"s"] = res
		total += res.Added
	}

	// New targets get collected right away when the scheduler runs.
	if total > 0 && s.svc.Scheduler != nil {
		if err := s.svc.Scheduler.TriggerNow(ctx, usecase.JobScrapeTargets); err != nil {
			s.logger.Warn("cannot trigger target scrape", "error", err)
		}
	}
	done(c, gin.H{"added": added})
}

type discoverAndSaveRequest struct {
	SearchTerm     string `json:"search_term" binding:"required"`
	Priority       int    `json:"priority"`
	LimitUsers     int    `json:"limit_users"`
	LimitHashtags  int    `json:"limit_hashtags"`
	LimitPlaces    int    `json:"limit_places"`
	Notes          string `json:"notes"`
	IncludeRelated bool   `json:"include_related"`
}

func (s *Server) discoverAndSave(c *gin.Context) {
	req := discoverAndSaveRequest{Priority: domain.DefaultPriority, LimitUsers: 10, LimitHashtags: 10}
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	discovery := usecase.DefaultDiscoveryRequest(req.SearchTerm)
	discovery.LimitUsers = req.LimitUsers
	discovery.LimitHashtags = req.LimitHashtags
	discovery.LimitPlaces = req.LimitPlaces

	notes := req.Notes
	if notes == "" {
		notes = "Discovered from search: " + req.SearchTerm
	}
	opts := usecase.AddOptions{Priority: req.Priority, Notes: notes, Tags: []string{"discovered", req.SearchTerm}}

	res, err := s.svc.Collector.DiscoverAndSave(c.Request.Context(), discovery, opts, req.IncludeRelated)
	if err != nil {
		s.fail(c, err)
		return
	}
	done(c, res)
}

func (s *Server) targetRef(c *gin.Context) (domain.TargetKind, string, bool) {
	kind, err := domain.ParseTargetKind(c.Param("kind"))
	if err != nil {
		s.fail(c, err)
		return "", "", false
	}
	return kind, c.Param("key"), true
}

func (s *Server) updateTarget(c *gin.Context) {
	kind, key, ok := s.targetRef(c)
	if !ok {
		return
	}
	var patch domain.TargetPatch
	if err := bind(c, &patch); err != nil {
		s.fail(c, err)
		return
	}
	t, err := s.svc.Targets.Update(c.Request.Context(), kind, key, patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	done(c, newTargetView(t))
}

func (s *Server) activateTarget(c *gin.Context) {
	kind, key, ok := s.targetRef(c)
	if !ok {
		return
	}
	t, err := s.svc.Targets.Activate(c.Request.Context(), kind, key)
	if err != nil {
		s.fail(c, err)
		return
	}
	done(c, newTargetView(t))
}

func (s *Server) deactivateTarget(c *gin.Context) {
	kind, key, ok := s.targetRef(c)
	if !ok {
		return
	}
	t, err := s.svc.Targets.Deactivate(c.Request.Context(), kind, key)
	if err != nil {
		s.fail(c, err)
		return
	}
	done(c, newTargetView(t))
}

func (s *Server) deleteTarget(c *gin.Context) {
	kind, key, ok := s.targetRef(c)
	if !ok {
		return
	}
	if err := s.svc.Targets.Delete(c.Request.Context(), kind, key); err != nil {
		s.fail(c, err)
		return
	}
	done(c, gin.H{"type": kind, "identifier": key})
}

// --- posts ---

func (s *Server) getPost(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	p, err := s.svc.Analytics.Post(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newPostView(p))
}

func (s *Server) getPostComments(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		s.fail(c, err)
		return
	}
	comments, err := s.svc.Analytics.PostComments(c.Request.Context(), id, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]commentView, 0, len(comments))
	for _, cm := range comments {
		out = append(out, newCommentView(cm))
	}
	c.JSON(http.StatusOK, gin.H{"post_id": id, "comments": out, "total": len(out)})
}

// --- AI ---

type summarizePostRequest struct {
	PrioritizeEngagement bool `json:"prioritize_engagement"`
}

func (s *Server) summarizePost(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	req := summarizePostRequest{PrioritizeEngagement: true}
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.svc.Enricher.SummarizePostComments(c.Request.Context(), id, req.PrioritizeEngagement)
	if err != nil {
		s.fail(c, err)
		return
	}
	done(c, res)
}

func (s *Server) summarizeComment(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.svc.Enricher.SummarizeComment(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	done(c, res)
}

type periodRequest struct {
	Days int `json:"days"`
}

func (s *Server) window(c *gin.Context) (time.Time, time.Time, bool) {
	req := periodRequest{Days: 7}
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return time.Time{}, time.Time{}, false
	}
	if req.Days < 1 || req.Days > 365 {
		s.fail(c, domain.Invalid("days must lie in 1..365, got %d", req.Days))
		return time.Time{}, time.Time{}, false
	}
	to := s.now().UTC()
	return to.AddDate(0, 0, -req.Days), to, true
}

func (s *Server) summarizePeriod(c *gin.Context) {
	from, to, ok := s.window(c)
	if !ok {
		return
	}
	res, err := s.svc.Enricher.SummarizeWindow(c.Request.Context(), from, to)
	if err != nil {
		s.fail(c, err)
		return
	}
	done(c, res)
}

func (s *Server) sentimentPeriod(c *gin.Context) {
	from, to, ok := s.window(c)
	if !ok {
		return
	}
	res, err := s.svc.Enricher.AnalyzeWindowSentiment(c.Request.Context(), from, to)
	if err != nil {
		s.fail(c, err)
		return
	}
	done(c, res)
}

func (s *Server) analyzeComment(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.svc.Enricher.AnalyzeComment(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	done(c, gin.H{"comment_id": id, "sentiment": res})
}

func (s *Server) analyzePost(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.svc.Enricher.AggregatePostSentiment(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	done(c, res)
}

type batchRequest struct {
	BatchSize int `json:"batch_size"`
}

func (s *Server) sentimentBatch(kind domain.EnrichableKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := batchRequest{BatchSize: 50}
		if err := bind(c, &req); err != nil {
			s.fail(c, err)
			return
		}
		res, err := s.svc.Enricher.EnrichSentiment(c.Request.Context(), kind, req.BatchSize)
		if err != nil {
			s.fail(c, err)
			return
		}
		done(c, res)
	}
}

type reportRequest struct {
	Year       int `json:"year" binding:"required"`
	WeekNumber int `json:"week_number" binding:"required"`
}

func (s *Server) generateReport(c *gin.Context) {
	var req reportRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	r, err := s.svc.Reporter.GenerateReport(c.Request.Context(), req.Year, req.WeekNumber)
	if err != nil {
		s.fail(c, err)
		return
	}
	done(c, r)
}

func (s *Server) listReports(c *gin.Context) {
	limit, err := queryInt(c, "limit", 10)
	if err != nil {
		s.fail(c, err)
		return
	}
	if limit < 1 || limit > 52 {
		s.fail(c, domain.Invalid("limit must lie in 1..52, got %d", limit))
		return
	}
	reports, err := s.svc.Reporter.ListReports(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (s *Server) getReport(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		s.fail(c, domain.Invalid("invalid year %q", c.Param("year")))
		return
	}
	week, err := strconv.Atoi(c.Param("week"))
	if err != nil {
		s.fail(c, domain.Invalid("invalid week %q", c.Param("week")))
		return
	}
	r, err := s.svc.Reporter.GetReport(c.Request.Context(), year, week)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// --- jobs ---

func (s *Server) scheduler(c *gin.Context) (Scheduler, bool) {
	if s.svc.Scheduler == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"detail": "scheduler is disabled"})
		return nil, false
	}
	return s.svc.Scheduler, true
}

func (s *Server) listJobs(c *gin.Context) {
	sched, ok := s.scheduler(c)
	if !ok {
		return
	}
	status, err := sched.Status(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": status})
}

func (s *Server) jobHistory(c *gin.Context) {
	sched, ok := s.scheduler(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		s.fail(c, err)
		return
	}
	history, err := sched.History(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (s *Server) updateJob(c *gin.Context) {
	sched, ok := s.scheduler(c)
	if !ok {
		return
	}
	var patch domain.JobSchedulePatch
	if err := bind(c, &patch); err != nil {
		s.fail(c, err)
		return
	}
	updated, err := sched.UpdateSchedule(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	done(c, updated)
}

func (s *Server) runJob(c *gin.Context) {
	sched, ok := s.scheduler(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := sched.TriggerNow(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	done(c, gin.H{"job_id": id, "message": "job triggered"})
}

// --- analytics ---

func (s *Server) aiCoverage(c *gin.Context) {
	cov, err := s.svc.Analytics.AICoverage(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cov)
}

func (s *Server) sentimentBreakdown(c *gin.Context) {
	b, err := s.svc.Analytics.SentimentBreakdown(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) topHashtags(c *gin.Context) {
	limit, err := queryInt(c, "limit", 10)
	if err != nil {
		s.fail(c, err)
		return
	}
	tags, err := s.svc.Analytics.TopHashtags(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func (s *Server) topTopics(c *gin.Context) {
	limit, err := queryInt(c, "limit", 10)
	if err != nil {
		s.fail(c, err)
		return
	}
	topics, err := s.svc.Analytics.TopTopics(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, topics)
}
