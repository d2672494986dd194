package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"SocialInsights/internal/domain"
)

func TestEnrichSentimentComments(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, []domain.Post{{ExternalID: "p1", URL: "u1"}}, map[int][]domain.Comment{
		0: {{ExternalID: "c1", Text: "good stuff"}, {ExternalID: "c2", Text: "bad take"}, {ExternalID: "c3", Text: "  "}},
	})

	res, err := f.enricher.EnrichSentiment(ctx, domain.KindComment, 50)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if res.Processed != 2 || res.Failed != 0 {
		t.Fatalf("unexpected counters: %+v", res)
	}
	if res.Breakdown != (domain.Breakdown{Positive: 1, Negative: 1}) {
		t.Fatalf("unexpected breakdown: %+v", res.Breakdown)
	}
	if got := f.comment(t, 2).AIResults.Sentiment; got == nil || got.Label != domain.Negative || got.Score != 0.8 {
		t.Fatalf("negative label not stored: %+v", got)
	}
	if f.comment(t, 3).AIResults != nil {
		t.Fatalf("blank comment must not be enriched")
	}

	again, err := f.enricher.EnrichSentiment(ctx, domain.KindComment, 50)
	if err != nil {
		t.Fatalf("second enrich: %v", err)
	}
	if again.Processed != 0 {
		t.Fatalf("already enriched comments selected again: %+v", again)
	}
}

func TestEnrichSentimentRetriesPerItem(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.classifier.batchErr = errors.New("batch endpoint down")
	f.classifier.failOn = "broken"
	f.seed(t, []domain.Post{{ExternalID: "p1", URL: "u1"}}, map[int][]domain.Comment{
		0: {{ExternalID: "c1", Text: "good"}, {ExternalID: "c2", Text: "broken input"}},
	})

	res, err := f.enricher.EnrichSentiment(ctx, domain.KindComment, 10)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if res.Processed != 1 || res.Failed != 1 {
		t.Fatalf("unexpected counters: %+v", res)
	}
	if f.classifier.itemCalls != 2 {
		t.Fatalf("expected per-item retry, got %d item calls", f.classifier.itemCalls)
	}
	if f.comment(t, 2).AIResults.HasSentiment() {
		t.Fatalf("failed comment must stay unmarked")
	}

	f.classifier.batchErr = nil
	f.classifier.failOn = ""
	res, err = f.enricher.EnrichSentiment(ctx, domain.KindComment, 10)
	if err != nil {
		t.Fatalf("retry enrich: %v", err)
	}
	if res.Processed != 1 || res.Items[0].ID != 2 {
		t.Fatalf("failed comment not picked up again: %+v", res)
	}
}

func TestEnrichSentimentShortBatchFallsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.classifier.shortBatch = true
	f.seed(t, []domain.Post{{ExternalID: "p1", URL: "u1"}}, map[int][]domain.Comment{
		0: {{ExternalID: "c1", Text: "good"}, {ExternalID: "c2", Text: "fine"}},
	})

	res, err := f.enricher.EnrichSentiment(context.Background(), domain.KindComment, 10)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if res.Processed != 2 || f.classifier.itemCalls != 2 {
		t.Fatalf("mismatched batch not retried per item: %+v, %d calls", res, f.classifier.itemCalls)
	}
}

func TestEnrichSentimentPostsSummarizesLongCaptions(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	long := strings.Repeat("good ", 30)
	f.seed(t, []domain.Post{
		{ExternalID: "p1", URL: "u1", Caption: long},
		{ExternalID: "p2", URL: "u2", Caption: "short and good"},
		{ExternalID: "p3", URL: "u3"},
	}, nil)

	res, err := f.enricher.EnrichSentiment(context.Background(), domain.KindPost, 20)
	if err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if res.Processed != 2 {
		t.Fatalf("expected 2 posts with captions, got %+v", res)
	}
	if s := f.post(t, 1).AIResults.Summary; s == nil || s.OriginalLength != utf8.RuneCountInString(long) {
		t.Fatalf("long caption summary missing: %+v", s)
	}
	if f.post(t, 2).AIResults.Summary != nil {
		t.Fatalf("short caption must not be summarized")
	}
	if len(res.Items[0].TextPreview) != 103 || !strings.HasSuffix(res.Items[0].TextPreview, "...") {
		t.Fatalf("unexpected preview %q", res.Items[0].TextPreview)
	}
}

func TestEnrichSentimentTruncatesInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seed(t, []domain.Post{{ExternalID: "p1", URL: "u1", Caption: strings.Repeat("ж", 600)}}, nil)
	f.enricher.cfg.SummarizeLongCaptions = false

	if _, err := f.enricher.EnrichSentiment(context.Background(), domain.KindPost, 1); err != nil {
		t.Fatalf("enrich: %v", err)
	}
	if got := utf8.RuneCountInString(f.classifier.seen[0]); got != 512 {
		t.Fatalf("classifier saw %d runes, want 512", got)
	}
}

func TestEnrichSentimentValidates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := f.enricher.EnrichSentiment(context.Background(), "story", 10); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for kind, got %v", err)
	}
	if _, err := f.enricher.EnrichSentiment(context.Background(), domain.KindPost, 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for batch size, got %v", err)
	}
}

func TestSelectTopComments(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ n, want int }{{0, 0}, {4, 4}, {12, 10}, {30, 15}} {
		got := SelectTopComments(make([]domain.Comment, tc.n))
		if len(got) != tc.want {
			t.Fatalf("n=%d: got %d, want %d", tc.n, len(got), tc.want)
		}
	}
}

func TestSummarizePostComments(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	ids := f.seed(t, []domain.Post{{ExternalID: "p1", URL: "u1"}, {ExternalID: "p2", URL: "u2"}}, map[int][]domain.Comment{
		0: {{ExternalID: "c1", Text: "first", LikesCount: 1}, {ExternalID: "c2", Text: "popular", LikesCount: 50}},
	})

	res, err := f.enricher.SummarizePostComments(ctx, ids[0], true)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !res.IsSummarized || res.CommentCount != 2 || res.TotalComments != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.HasSuffix(res.Summary, "popular") {
		t.Fatalf("most liked comment should lead the input, got %q", res.Summary)
	}
	stored := f.post(t, ids[0]).AIResults.CommentSummary
	if stored == nil || !stored.Prioritized || stored.Text != res.Summary {
		t.Fatalf("comment summary not stored: %+v", stored)
	}

	chrono, err := f.enricher.SummarizePostComments(ctx, ids[0], false)
	if err != nil {
		t.Fatalf("summarize by id: %v", err)
	}
	if !strings.HasSuffix(chrono.Summary, "first") {
		t.Fatalf("id order should lead with the first comment, got %q", chrono.Summary)
	}

	empty, err := f.enricher.SummarizePostComments(ctx, ids[1], true)
	if err != nil {
		t.Fatalf("summarize empty: %v", err)
	}
	if empty.Summary != "No comments to summarize" || empty.IsSummarized {
		t.Fatalf("unexpected empty result: %+v", empty)
	}

	if _, err := f.enricher.SummarizePostComments(ctx, 99, true); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSummarizePostCommentsTooShortIsNotPersisted(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.summarizer.minInput = 1000
	ids := f.seed(t, []domain.Post{{ExternalID: "p1", URL: "u1"}}, map[int][]domain.Comment{
		0: {{ExternalID: "c1", Text: "ok"}},
	})

	res, err := f.enricher.SummarizePostComments(context.Background(), ids[0], false)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if res.IsSummarized || !strings.HasSuffix(res.Summary, "ok") {
		t.Fatalf("expected the source text back: %+v", res)
	}
	if f.post(t, ids[0]).AIResults != nil {
		t.Fatalf("degraded summary must not be stored")
	}
}

func TestSummarizeComment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	long := strings.Repeat("long comment ", 10)
	f.seed(t, []domain.Post{{ExternalID: "p1", URL: "u1"}}, map[int][]domain.Comment{
		0: {{ExternalID: "c1", Text: "tiny"}, {ExternalID: "c2", Text: long}},
	})

	short, err := f.enricher.SummarizeComment(ctx, 1)
	if err != nil {
		t.Fatalf("summarize short: %v", err)
	}
	if short.IsSummarized || short.Summary != "tiny" || short.Reason == "" {
		t.Fatalf("short comment should come back verbatim: %+v", short)
	}
	if len(f.summarizer.calls) != 0 {
		t.Fatalf("short comment reached the summarizer")
	}

	res, err := f.enricher.SummarizeComment(ctx, 2)
	if err != nil {
		t.Fatalf("summarize long: %v", err)
	}
	if !res.IsSummarized || res.OriginalLength != utf8.RuneCountInString(long) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if f.comment(t, 2).AIResults.Summary == nil {
		t.Fatalf("summary not stored")
	}

	f.summarizer.err = errors.New("gpu on fire")
	if _, err := f.enricher.SummarizeComment(ctx, 2); !errors.Is(err, domain.ErrCollaborator) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
}

func TestAnalyzeComment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, []domain.Post{{ExternalID: "p1", URL: "u1"}}, map[int][]domain.Comment{
		0: {{ExternalID: "c1", Text: "good vibes"}, {ExternalID: "c2", Text: ""}},
	})

	got, err := f.enricher.AnalyzeComment(ctx, 1)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got.Label != domain.Positive {
		t.Fatalf("unexpected label %q", got.Label)
	}
	if _, err := f.enricher.AnalyzeComment(ctx, 2); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty text, got %v", err)
	}
	if _, err := f.enricher.AnalyzeComment(ctx, 42); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAggregatePostSentiment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	ids := f.seed(t, []domain.Post{{ExternalID: "p1", URL: "u1"}, {ExternalID: "p2", URL: "u2"}}, map[int][]domain.Comment{
		0: {
			{ExternalID: "c1", Text: "good"},
			{ExternalID: "c2", Text: "so good"},
			{ExternalID: "c3", Text: "bad"},
			{ExternalID: "c4", Text: ""},
		},
	})

	res, err := f.enricher.AggregatePostSentiment(ctx, ids[0])
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	// (0.9 + 0.9 - 0.8) / 3
	if res.Score != 0.3333 || res.Label != domain.Positive || res.CommentCount != 3 {
		t.Fatalf("unexpected aggregate: %+v", res)
	}
	stored := f.post(t, ids[0]).AIResults
	if stored.CommentSentiment == nil || stored.Sentiment != nil {
		t.Fatalf("aggregate must live under comment_sentiment only: %+v", stored)
	}
	if !f.comment(t, 3).AIResults.HasSentiment() {
		t.Fatalf("per-comment result not stored")
	}

	empty, err := f.enricher.AggregatePostSentiment(ctx, ids[1])
	if err != nil {
		t.Fatalf("aggregate empty: %v", err)
	}
	if empty.Label != domain.Neutral || empty.Score != 0 || empty.CommentCount != 0 {
		t.Fatalf("unexpected empty aggregate: %+v", empty)
	}
}

func TestAggregatePostSentimentAllFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.classifier.batchErr = errors.New("down")
	f.classifier.failOn = "o"
	ids := f.seed(t, []domain.Post{{ExternalID: "p1", URL: "u1"}}, map[int][]domain.Comment{
		0: {{ExternalID: "c1", Text: "good"}, {ExternalID: "c2", Text: "bold"}},
	})

	if _, err := f.enricher.AggregatePostSentiment(context.Background(), ids[0]); !errors.Is(err, domain.ErrCollaborator) {
		t.Fatalf("expected collaborator error, got %v", err)
	}
	if f.post(t, ids[0]).AIResults != nil {
		t.Fatalf("nothing should be stored when every classification fails")
	}
}

func TestWindowOperations(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	from, to := domain.WeekBounds(2025, 10)

	empty, err := f.enricher.SummarizeWindow(ctx, from, to)
	if err != nil {
		t.Fatalf("summarize empty window: %v", err)
	}
	if empty.Summary != "No posts found in the specified period" {
		t.Fatalf("unexpected empty summary %q", empty.Summary)
	}

	in := from.Add(36 * time.Hour)
	out := to.Add(time.Hour)
	f.seed(t, []domain.Post{
		{ExternalID: "p1", URL: "u1", Caption: "good morning", Timestamp: &in},
		{ExternalID: "p2", URL: "u2", Caption: "bad news", Timestamp: &out},
		{ExternalID: "p3", URL: "u3", Timestamp: &in},
	}, map[int][]domain.Comment{
		0: {{ExternalID: "c1", Text: "good", Timestamp: &in}, {ExternalID: "c2", Text: "late", Timestamp: &out}},
	})

	sum, err := f.enricher.SummarizeWindow(ctx, from, to)
	if err != nil {
		t.Fatalf("summarize window: %v", err)
	}
	if sum.PostCount != 2 || !sum.IsSummarized {
		t.Fatalf("unexpected window summary: %+v", sum)
	}

	sent, err := f.enricher.AnalyzeWindowSentiment(ctx, from, to)
	if err != nil {
		t.Fatalf("window sentiment: %v", err)
	}
	if sent.CommentCount != 1 || sent.Breakdown != (domain.Breakdown{Positive: 2}) {
		t.Fatalf("unexpected window sentiment: %+v", sent)
	}
	if sent.Score != 100 || sent.Label != domain.Positive {
		t.Fatalf("unexpected score %d %s", sent.Score, sent.Label)
	}

	if _, err := f.enricher.SummarizeWindow(ctx, to, from); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for reversed window, got %v", err)
	}
}

func TestSummarizePostCommentsPicksMostLikedHalf(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	comments := make([]domain.Comment, 0, 20)
	for i := 0; i < 20; i++ {
		n := (i * 7) % 20
		comments = append(comments, domain.Comment{
			ExternalID: fmt.Sprintf("c%02d", n),
			Text:       fmt.Sprintf("remark-%02d", n),
			LikesCount: n*5 + 1,
		})
	}
	ids := f.seed(t, []domain.Post{{ExternalID: "p1", URL: "u1"}}, map[int][]domain.Comment{0: comments})

	res, err := f.enricher.SummarizePostComments(context.Background(), ids[0], true)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if res.CommentCount != 10 || res.TotalComments != 20 {
		t.Fatalf("unexpected counts: %+v", res)
	}

	input := f.summarizer.calls[len(f.summarizer.calls)-1]
	if lines := strings.Split(input, "\n"); len(lines) != 10 {
		t.Fatalf("expected 10 comments in the input, got %d", len(lines))
	}
	for n := 0; n < 20; n++ {
		text := fmt.Sprintf("remark-%02d", n)
		if got, want := strings.Contains(input, text), n >= 10; got != want {
			t.Fatalf("%s (likes %d) included=%v, want %v", text, n*5+1, got, want)
		}
	}
	if !strings.HasSuffix(res.Summary, "remark-19") {
		t.Fatalf("most liked comment should lead the input, got %q", res.Summary)
	}
}

func TestSelectTopCommentsKeepsLeadingComments(t *testing.T) {
	t.Parallel()

	ordered := make([]domain.Comment, 0, 20)
	for likes := 20; likes > 0; likes-- {
		ordered = append(ordered, domain.Comment{ID: int64(likes), LikesCount: likes})
	}
	top := SelectTopComments(ordered)
	if len(top) != 10 {
		t.Fatalf("got %d comments, want 10", len(top))
	}
	for i, c := range top {
		if c.LikesCount != 20-i {
			t.Fatalf("position %d has %d likes, want %d", i, c.LikesCount, 20-i)
		}
	}
}
