package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"SocialInsights/internal/collect"
	"SocialInsights/internal/domain"
	"SocialInsights/internal/ports"
)

// relatedHashtagGroups are the hashtag-stats lists that carry related tags.
var relatedHashtagGroups = []string{"frequent", "average", "rare", "relatedFrequent", "relatedAverage", "relatedRare"}

// Collector runs the scraping pipelines on top of the ingestion engine.
type Collector struct {
	scraper  ports.Scraper
	ingestor *Ingestor
	targets  *TargetManager
	registry *collect.Registry
	logger   *slog.Logger
}

// NewCollector wires the collection pipelines.
func NewCollector(scraper ports.Scraper, ingestor *Ingestor, targets *TargetManager, registry *collect.Registry, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = collect.NewTargetRegistry(scraper)
	}
	return &Collector{scraper: scraper, ingestor: ingestor, targets: targets, registry: registry, logger: logger}
}

// HashtagScrapeResult reports CollectHashtags.
type HashtagScrapeResult struct {
	Hashtags []string        `json:"hashtags"`
	Posts    IngestionResult `json:"posts"`
}

// CollectHashtags fetches recent posts for the hashtags and ingests them.
func (c *Collector) CollectHashtags(ctx context.Context, tags []string, limit int) (HashtagScrapeResult, error) {
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = domain.NormalizeTargetKey(domain.TargetHashtag, t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	res := HashtagScrapeResult{Hashtags: cleaned}
	if len(cleaned) == 0 {
		return res, domain.Invalid("at least one hashtag is required")
	}
	if limit <= 0 {
		return res, domain.Invalid("limit must be positive, got %d", limit)
	}

	c.logger.Info("hashtag scrape started", "hashtags", cleaned, "limit", limit)
	records, err := c.scraper.FetchByHashtag(ctx, cleaned, limit)
	if err != nil {
		return res, fmt.Errorf("fetch hashtag posts: %w", err)
	}
	res.Posts, err = c.ingestor.IngestPosts(ctx, records, domain.SourceHashtag, nil)
	return res, err
}

// CommentScrapeResult reports CollectComments.
type CommentScrapeResult struct {
	PostsProcessed int                    `json:"posts_processed"`
	Comments       CommentIngestionResult `json:"comments"`
}

// CollectComments fetches comments for the newest posts that report comments
// but own none yet.
func (c *Collector) CollectComments(ctx context.Context, limitPosts, limitComments int) (CommentScrapeResult, error) {
	var res CommentScrapeResult
	if limitPosts <= 0 || limitComments <= 0 {
		return res, domain.Invalid("post and comment limits must be positive, got %d and %d", limitPosts, limitComments)
	}

	var posts []domain.Post
	err := c.ingestor.store.InTx(ctx, func(repo ports.Repository) error {
		var err error
		posts, err = repo.PostsAwaitingComments(ctx, limitPosts)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("select posts awaiting comments: %w", err)
	}
	res.PostsProcessed = len(posts)

	urls := make([]string, 0, len(posts))
	for _, p := range posts {
		if p.URL != "" {
			urls = append(urls, p.URL)
		}
	}
	if len(urls) == 0 {
		c.logger.Info("no posts need comment scraping")
		return res, nil
	}

	records, err := c.scraper.FetchComments(ctx, urls, limitComments)
	if err != nil {
		return res, fmt.Errorf("fetch comments: %w", err)
	}
	res.Comments, err = c.ingestor.IngestComments(ctx, records)
	return res, err
}

// DiscoveryRequest bounds the searches of one discovery run.
type DiscoveryRequest struct {
	Term                string `json:"search_term"`
	LimitUsers          int    `json:"limit_users"`
	LimitHashtags       int    `json:"limit_hashtags"`
	LimitPlaces         int    `json:"limit_places"`
	MaxHashtagsForStats int    `json:"max_hashtags_for_stats"`
}

// DefaultDiscoveryRequest returns the usual discovery limits for term.
func DefaultDiscoveryRequest(term string) DiscoveryRequest {
	return DiscoveryRequest{Term: term, LimitUsers: 20, LimitHashtags: 10, LimitPlaces: 5, MaxHashtagsForStats: 10}
}

// Discover searches accounts, hashtags and places for a term and expands the
// found hashtags with their related tags.
func (c *Collector) Discover(ctx context.Context, req DiscoveryRequest) (domain.Discovery, error) {
	term := strings.TrimSpace(req.Term)
	d := domain.Discovery{Term: term, Accounts: []string{}, Hashtags: []string{}, Places: []domain.DiscoveredPlace{}, RelatedHashtags: []string{}}
	if term == "" {
		return d, domain.Invalid("search term is required")
	}
	if req.LimitUsers < 0 || req.LimitHashtags < 0 || req.LimitPlaces < 0 || req.MaxHashtagsForStats < 0 {
		return d, domain.Invalid("discovery limits must not be negative")
	}

	if req.LimitUsers > 0 {
		users, err := c.scraper.Search(ctx, term, domain.SearchUser, req.LimitUsers)
		if err != nil {
			return d, fmt.Errorf("search users: %w", err)
		}
		for _, u := range users {
			if name := u.String("username"); name != "" {
				d.Accounts = append(d.Accounts, name)
			}
		}
	}
	if req.LimitHashtags > 0 {
		tags, err := c.scraper.Search(ctx, term, domain.SearchHashtag, req.LimitHashtags)
		if err != nil {
			return d, fmt.Errorf("search hashtags: %w", err)
		}
		for _, t := range tags {
			if name := domain.NormalizeTargetKey(domain.TargetHashtag, t.String("name")); name != "" {
				d.Hashtags = append(d.Hashtags, name)
			}
		}
	}
	if req.LimitPlaces > 0 {
		places, err := c.scraper.Search(ctx, term, domain.SearchPlace, req.LimitPlaces)
		if err != nil {
			return d, fmt.Errorf("search places: %w", err)
		}
		for _, p := range places {
			name := p.String("name")
			if name == "" {
				continue
			}
			d.Places = append(d.Places, domain.DiscoveredPlace{ID: firstNonEmpty(p.String("id"), p.String("pk"), p.String("locationId")), Name: name})
		}
	}

	if len(d.Hashtags) > 0 && req.MaxHashtagsForStats > 0 {
		subset := d.Hashtags
		if len(subset) > req.MaxHashtagsForStats {
			subset = subset[:req.MaxHashtagsForStats]
		}
		stats, err := c.scraper.HashtagStats(ctx, subset)
		if err != nil {
			return d, fmt.Errorf("hashtag stats: %w", err)
		}
		d.RelatedHashtags = relatedHashtags(stats)
	}

	c.logger.Info("discovery complete", "term", term, "accounts", len(d.Accounts), "hashtags", len(d.Hashtags),
		"places", len(d.Places), "related", len(d.RelatedHashtags))
	return d, nil
}

func relatedHashtags(stats []domain.RawRecord) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, s := range stats {
		for _, group := range relatedHashtagGroups {
			for _, tag := range s.Records(group) {
				h := strings.TrimLeft(tag.String("hash"), "#")
				if h == "" || seen[h] {
					continue
				}
				seen[h] = true
				out = append(out, h)
			}
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// DiscoverAndSaveResult reports DiscoverAndSave.
type DiscoverAndSaveResult struct {
	Discovery domain.Discovery                `json:"discovered"`
	Added     map[domain.TargetKind]AddResult `json:"added"`
}

// DiscoverAndSave runs discovery and stores the findings as targets.
// Related hashtags are saved too when includeRelated is set.
func (c *Collector) DiscoverAndSave(ctx context.Context, req DiscoveryRequest, opts AddOptions, includeRelated bool) (DiscoverAndSaveResult, error) {
	res := DiscoverAndSaveResult{Added: map[domain.TargetKind]AddResult{}}
	d, err := c.Discover(ctx, req)
	res.Discovery = d
	if err != nil {
		return res, err
	}

	var hashtags []domain.TargetSpec
	for _, h := range d.Hashtags {
		hashtags = append(hashtags, domain.TargetSpec{Key: h})
	}
	if includeRelated {
		for _, h := range d.RelatedHashtags {
			hashtags = append(hashtags, domain.TargetSpec{Key: h})
		}
	}
	var users []domain.TargetSpec
	for _, u := range d.Accounts {
		users = append(users, domain.TargetSpec{Key: u})
	}
	var places []domain.TargetSpec
	for _, p := range d.Places {
		if p.ID != "" {
			places = append(places, domain.TargetSpec{Key: p.ID, DisplayName: p.Name})
		}
	}

	for _, batch := range []struct {
		kind  domain.TargetKind
		specs []domain.TargetSpec
	}{{domain.TargetHashtag, hashtags}, {domain.TargetUser, users}, {domain.TargetPlace, places}} {
		if len(batch.specs) == 0 {
			continue
		}
		added, err := c.targets.Add(ctx, batch.kind, batch.specs, opts)
		if err != nil {
			return res, err
		}
		res.Added[batch.kind] = added
	}
	return res, nil
}

// FullRequest bounds a discovery-driven collection run.
type FullRequest struct {
	Discovery           DiscoveryRequest `json:"discovery"`
	MaxUsersToScrape    int              `json:"max_users_to_scrape"`
	MaxHashtagsToScrape int              `json:"max_hashtags_to_scrape"`
	PostsPerTarget      int              `json:"limit_posts_per_target"`
	MaxPostsForComments int              `json:"max_posts_for_comments"`
	CommentsPerPost     int              `json:"limit_comments"`
}

// FullResult reports RunFull.
type FullResult struct {
	Term      string              `json:"search_term"`
	Discovery domain.Discovery    `json:"discovery"`
	Posts     IngestionResult     `json:"posts"`
	Comments  CommentScrapeResult `json:"comments"`
}

// RunFull discovers targets for a term, collects their posts plus mentions
// of the term, then collects comments.
func (c *Collector) RunFull(ctx context.Context, req FullRequest) (FullResult, error) {
	res := FullResult{Term: strings.TrimSpace(req.Discovery.Term)}
	if req.PostsPerTarget <= 0 {
		return res, domain.Invalid("posts per target must be positive, got %d", req.PostsPerTarget)
	}

	d, err := c.Discover(ctx, req.Discovery)
	res.Discovery = d
	if err != nil {
		return res, err
	}

	if tags := head(d.Hashtags, req.MaxHashtagsToScrape); len(tags) > 0 {
		records, err := c.scraper.FetchByHashtag(ctx, tags, req.PostsPerTarget)
		if err != nil {
			return res, fmt.Errorf("fetch hashtag posts: %w", err)
		}
		if err := c.ingestInto(ctx, &res.Posts, records, domain.SourceHashtag, nil); err != nil {
			return res, err
		}
	}

	if users := head(d.Accounts, req.MaxUsersToScrape); len(users) > 0 {
		profiles, err := c.scraper.FetchByUser(ctx, users)
		if err != nil {
			return res, fmt.Errorf("fetch profiles: %w", err)
		}
		if err := c.ingestInto(ctx, &res.Posts, collect.FlattenProfiles(profiles, 0), domain.SourceUserProfile, nil); err != nil {
			return res, err
		}
	}

	mentions, err := c.scraper.FetchMentions(ctx, []string{res.Term}, req.PostsPerTarget)
	if err != nil {
		return res, fmt.Errorf("fetch mentions: %w", err)
	}
	if err := c.ingestInto(ctx, &res.Posts, mentions, domain.SourceMentions, nil); err != nil {
		return res, err
	}

	if req.MaxPostsForComments > 0 && req.CommentsPerPost > 0 {
		if res.Comments, err = c.CollectComments(ctx, req.MaxPostsForComments, req.CommentsPerPost); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (c *Collector) ingestInto(ctx context.Context, acc *IngestionResult, records []domain.RawRecord, source string, touch *Touch) error {
	r, err := c.ingestor.IngestPosts(ctx, records, source, touch)
	if err != nil {
		return fmt.Errorf("ingest %s posts: %w", source, err)
	}
	acc.Merge(r)
	return nil
}

func head(items []string, n int) []string {
	if n <= 0 {
		return nil
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}

// TargetRunRequest bounds a target-driven collection run.
type TargetRunRequest struct {
	PostsPerTarget      int  `json:"limit_posts_per_target"`
	MaxPostsForComments int  `json:"max_posts_for_comments"`
	CommentsPerPost     int  `json:"limit_comments"`
	UpdateMetadata      bool `json:"update_metadata"`
}

// TargetRunResult reports RunTargets.
type TargetRunResult struct {
	Targets      map[domain.TargetKind]int `json:"targets"`
	SkippedKinds []domain.TargetKind       `json:"skipped_kinds"`
	Posts        IngestionResult           `json:"posts"`
	Comments     CommentScrapeResult       `json:"comments"`
}

// RunTargets collects every active target kind through its registered
// strategy, highest priority first, then collects comments.
func (c *Collector) RunTargets(ctx context.Context, req TargetRunRequest) (TargetRunResult, error) {
	res := TargetRunResult{Targets: map[domain.TargetKind]int{}, SkippedKinds: []domain.TargetKind{}}
	if req.PostsPerTarget <= 0 {
		return res, domain.Invalid("posts per target must be positive, got %d", req.PostsPerTarget)
	}

	active, err := c.targets.ListAll(ctx, false)
	if err != nil {
		return res, fmt.Errorf("load active targets: %w", err)
	}

	for _, kind := range domain.TargetKinds {
		targets := active[kind]
		res.Targets[kind] = len(targets)
		if len(targets) == 0 {
			continue
		}

		strategy, err := c.registry.Resolve(kind)
		if errors.Is(err, collect.ErrNoStrategy) {
			c.logger.Info("no collection strategy, skipping targets", "kind", kind, "count", len(targets))
			res.SkippedKinds = append(res.SkippedKinds, kind)
			continue
		}
		if err != nil {
			return res, err
		}

		keys := domain.TargetKeys(targets)
		batch, err := strategy.Collect(ctx, collect.Request{Keys: keys, Limit: req.PostsPerTarget})
		if err != nil {
			return res, fmt.Errorf("collect %s targets: %w", kind, err)
		}

		var touch *Touch
		if req.UpdateMetadata {
			touch = &Touch{Kind: kind, Keys: keys}
		}
		if err := c.ingestInto(ctx, &res.Posts, batch.Records, batch.Source, touch); err != nil {
			return res, err
		}
	}

	if req.MaxPostsForComments > 0 && req.CommentsPerPost > 0 {
		if res.Comments, err = c.CollectComments(ctx, req.MaxPostsForComments, req.CommentsPerPost); err != nil {
			return res, err
		}
	}
	c.logger.Info("target run complete", "added", res.Posts.Added, "skipped", res.Posts.Skipped, "comments", res.Comments.Comments.Added)
	return res, nil
}

// IncrementalTarget is one entry of an incremental plan.
type IncrementalTarget struct {
	Kind  domain.TargetKind `json:"kind"`
	Key   string            `json:"key"`
	Since time.Time         `json:"since"`
}

// IncrementalPlan is what an incremental run would fetch.
type IncrementalPlan struct {
	Supported bool                `json:"supported"`
	Targets   []IncrementalTarget `json:"targets"`
	Message   string              `json:"message"`
}

// RunIncremental lists the previously collected active targets with the
// timestamp an incremental fetch would start from. No content is fetched:
// the provider's since-parameter contract is unknown.
func (c *Collector) RunIncremental(ctx context.Context, kinds []domain.TargetKind) (IncrementalPlan, error) {
	plan := IncrementalPlan{Supported: c.scraper.SupportsIncremental(), Targets: []IncrementalTarget{}}
	if len(kinds) == 0 {
		kinds = []domain.TargetKind{domain.TargetHashtag, domain.TargetUser}
	}

	for _, kind := range kinds {
		targets, err := c.targets.GetActive(ctx, kind)
		if err != nil {
			return plan, err
		}
		for _, t := range targets {
			if t.LastScrapedAt == nil {
				continue
			}
			plan.Targets = append(plan.Targets, IncrementalTarget{Kind: kind, Key: t.Key, Since: *t.LastScrapedAt})
		}
	}

	if plan.Supported {
		plan.Message = "provider supports incremental collection; no since-parameter mapping is configured"
	} else {
		plan.Message = "provider does not support incremental collection"
	}
	c.logger.Info("incremental plan built", "supported", plan.Supported, "targets", len(plan.Targets))
	return plan, nil
}
