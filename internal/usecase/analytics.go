package usecase

import (
	"context"

	"SocialInsights/internal/domain"
	"SocialInsights/internal/ports"
)

const maxRankingLimit = 100

// Analytics serves read-only aggregates over the Record Store.
type Analytics struct {
	store ports.Store
}

// NewAnalytics builds the read-side service.
func NewAnalytics(store ports.Store) *Analytics {
	return &Analytics{store: store}
}

// Stats returns totals and enrichment counters per entity kind.
func (a *Analytics) Stats(ctx context.Context) (domain.ContentStats, error) {
	var stats domain.ContentStats
	err := a.store.InTx(ctx, func(repo ports.Repository) error {
		var err error
		stats, err = repo.ContentStats(ctx)
		return err
	})
	return stats, err
}

// Coverage is the enrichment progress of one entity kind.
type Coverage struct {
	Total           int     `json:"total"`
	Analyzed        int     `json:"analyzed"`
	Pending         int     `json:"pending"`
	CoveragePercent float64 `json:"coverage_percent"`
}

func coverageOf(k domain.KindStats) Coverage {
	return Coverage{Total: k.Total, Analyzed: k.Analyzed, Pending: k.Pending(), CoveragePercent: k.CoveragePercent()}
}

// AICoverage reports analyzed and pending counts per kind.
func (a *Analytics) AICoverage(ctx context.Context) (map[domain.EnrichableKind]Coverage, error) {
	stats, err := a.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return map[domain.EnrichableKind]Coverage{
		domain.KindPost:    coverageOf(stats.Posts),
		domain.KindComment: coverageOf(stats.Comments),
	}, nil
}

// SentimentBreakdown returns the stored label counts per kind.
func (a *Analytics) SentimentBreakdown(ctx context.Context) (map[domain.EnrichableKind]domain.Breakdown, error) {
	stats, err := a.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return map[domain.EnrichableKind]domain.Breakdown{
		domain.KindPost:    stats.Posts.Breakdown,
		domain.KindComment: stats.Comments.Breakdown,
	}, nil
}

func validateRankingLimit(limit int) error {
	if limit <= 0 || limit > maxRankingLimit {
		return domain.Invalid("limit must lie in 1..%d, got %d", maxRankingLimit, limit)
	}
	return nil
}

// TopHashtags ranks hashtags parsed from captions.
func (a *Analytics) TopHashtags(ctx context.Context, limit int) ([]domain.TagCount, error) {
	if err := validateRankingLimit(limit); err != nil {
		return nil, err
	}
	var out []domain.TagCount
	err := a.store.InTx(ctx, func(repo ports.Repository) error {
		var err error
		out, err = repo.TopHashtags(ctx, limit)
		return err
	})
	return out, err
}

// TopTopics ranks topics stored under ai_results.topics.
func (a *Analytics) TopTopics(ctx context.Context, limit int) ([]domain.TagCount, error) {
	if err := validateRankingLimit(limit); err != nil {
		return nil, err
	}
	var out []domain.TagCount
	err := a.store.InTx(ctx, func(repo ports.Repository) error {
		var err error
		out, err = repo.TopTopics(ctx, limit)
		return err
	})
	return out, err
}

// Post returns one stored post.
func (a *Analytics) Post(ctx context.Context, id int64) (domain.Post, error) {
	var p domain.Post
	err := a.store.InTx(ctx, func(repo ports.Repository) error {
		var err error
		p, err = repo.GetPost(ctx, id)
		return err
	})
	return p, err
}

// PostComments returns the comments of a post, most liked first. limit <= 0
// returns all of them.
func (a *Analytics) PostComments(ctx context.Context, postID int64, limit int) ([]domain.Comment, error) {
	var out []domain.Comment
	err := a.store.InTx(ctx, func(repo ports.Repository) error {
		if _, err := repo.GetPost(ctx, postID); err != nil {
			return err
		}
		var err error
		out, err = repo.CommentsForPost(ctx, postID, limit)
		return err
	})
	return out, err
}
