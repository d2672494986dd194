package usecase

import (
	"context"
	"errors"
	"testing"

	"SocialInsights/internal/domain"
)

func TestAnalytics(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, []domain.Post{
		{ExternalID: "p1", URL: "u1", Caption: "good #Food #travel"},
		{ExternalID: "p2", URL: "u2", Caption: "#food again"},
		{ExternalID: "p3", URL: "u3"},
	}, map[int][]domain.Comment{
		0: {{ExternalID: "c1", Text: "bad"}},
	})
	if _, err := f.enricher.EnrichSentiment(ctx, domain.KindPost, 10); err != nil {
		t.Fatalf("enrich: %v", err)
	}

	a := NewAnalytics(f.store)

	cov, err := a.AICoverage(ctx)
	if err != nil {
		t.Fatalf("coverage: %v", err)
	}
	if got := cov[domain.KindPost]; got.Total != 3 || got.Analyzed != 2 || got.Pending != 1 || got.CoveragePercent != 66.7 {
		t.Fatalf("unexpected post coverage: %+v", got)
	}
	if got := cov[domain.KindComment]; got.Analyzed != 0 || got.Pending != 1 {
		t.Fatalf("unexpected comment coverage: %+v", got)
	}

	breakdown, err := a.SentimentBreakdown(ctx)
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if breakdown[domain.KindPost] != (domain.Breakdown{Positive: 1, Neutral: 1}) {
		t.Fatalf("unexpected breakdown: %+v", breakdown[domain.KindPost])
	}

	tags, err := a.TopHashtags(ctx, 1)
	if err != nil {
		t.Fatalf("top hashtags: %v", err)
	}
	if len(tags) != 1 || tags[0] != (domain.TagCount{Tag: "food", Count: 2}) {
		t.Fatalf("unexpected ranking: %+v", tags)
	}

	for _, limit := range []int{0, 101} {
		if _, err := a.TopTopics(ctx, limit); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("limit %d: expected validation error, got %v", limit, err)
		}
	}
}

func TestAnalyticsPostReads(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	ids := f.seed(t, []domain.Post{{ExternalID: "p1", URL: "u1", Caption: "hello"}}, map[int][]domain.Comment{
		0: {{ExternalID: "c1", Text: "low", LikesCount: 1}, {ExternalID: "c2", Text: "high", LikesCount: 9}},
	})
	a := NewAnalytics(f.store)

	p, err := a.Post(ctx, ids[0])
	if err != nil || p.Caption != "hello" {
		t.Fatalf("post: %+v %v", p, err)
	}
	comments, err := a.PostComments(ctx, ids[0], 0)
	if err != nil {
		t.Fatalf("comments: %v", err)
	}
	if len(comments) != 2 || comments[0].Text != "high" {
		t.Fatalf("expected most liked first, got %+v", comments)
	}
	if _, err := a.PostComments(ctx, 999, 0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
