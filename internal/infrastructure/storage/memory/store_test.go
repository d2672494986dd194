package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"SocialInsights/internal/domain"
	"SocialInsights/internal/ports"
)

func TestInTxRollsBackOnError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()
	boom := errors.New("boom")

	err := store.InTx(ctx, func(r ports.Repository) error {
		if _, err := r.InsertPosts(ctx, []domain.Post{{ExternalID: "p1"}}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	_ = store.InTx(ctx, func(r ports.Repository) error {
		existing, err := r.ExistingPostIDs(ctx, []string{"p1"})
		if err != nil {
			t.Fatalf("existing: %v", err)
		}
		if existing["p1"] {
			t.Fatalf("rolled back insert is visible")
		}
		return nil
	})
}

func TestInsertPostsIgnoresConflicts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()

	var first, second int64
	_ = store.InTx(ctx, func(r ports.Repository) error {
		first, _ = r.InsertPosts(ctx, []domain.Post{{ExternalID: "a"}, {ExternalID: "b"}})
		second, _ = r.InsertPosts(ctx, []domain.Post{{ExternalID: "b"}, {ExternalID: "c"}, {ExternalID: "c"}})
		return nil
	})
	if first != 2 || second != 1 {
		t.Fatalf("inserted %d then %d, want 2 then 1", first, second)
	}
}

func TestConcurrentInsertsKeepOneRowPerKey(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]domain.Post, 0, 20)
			for i := 0; i < 20; i++ {
				batch = append(batch, domain.Post{ExternalID: fmt.Sprintf("post-%d", i)})
			}
			_ = store.InTx(ctx, func(r ports.Repository) error {
				_, err := r.InsertPosts(ctx, batch)
				return err
			})
		}()
	}
	wg.Wait()

	if got := len(store.st.posts); got != 20 {
		t.Fatalf("expected 20 rows, got %d", got)
	}
}

func TestMergeAIResultsKeepsExistingKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	err := store.InTx(ctx, func(r ports.Repository) error {
		if _, err := r.InsertPosts(ctx, []domain.Post{{ExternalID: "p", CommentsCount: 1}}); err != nil {
			return err
		}
		if _, err := r.InsertComments(ctx, []domain.Comment{{ExternalID: "c", PostID: 1, Text: "nice"}}); err != nil {
			return err
		}
		if err := r.MergeCommentAIResults(ctx, 1, domain.AIResults{Summary: &domain.SummaryResult{Text: "short", GeneratedAt: now}}); err != nil {
			return err
		}
		return r.MergeCommentAIResults(ctx, 1, domain.AIResults{Sentiment: &domain.SentimentResult{Label: domain.Positive, Score: 0.9, AnalyzedAt: now}})
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	_ = store.InTx(ctx, func(r ports.Repository) error {
		c, err := r.GetComment(ctx, 1)
		if err != nil {
			t.Fatalf("get comment: %v", err)
		}
		if c.AIResults.Summary == nil || c.AIResults.Sentiment == nil {
			t.Fatalf("merge clobbered a key: %+v", c.AIResults)
		}
		pending, _ := r.CommentsWithoutSentiment(ctx, 10)
		if len(pending) != 0 {
			t.Fatalf("enriched comment still selected")
		}
		return nil
	})
}

func TestInsertCommentRequiresParent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()
	err := store.InTx(ctx, func(r ports.Repository) error {
		_, err := r.InsertComments(ctx, []domain.Comment{{ExternalID: "c", PostID: 42}})
		return err
	})
	if err == nil {
		t.Fatalf("expected foreign key error")
	}
}

func TestListTargetsOrdering(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := New()
	_ = store.InTx(ctx, func(r ports.Repository) error {
		_, err := r.InsertTargets(ctx, domain.TargetHashtag, []domain.Target{
			{Key: "b", Priority: 5, IsActive: true},
			{Key: "a", Priority: 1, IsActive: true},
			{Key: "c", Priority: 5, IsActive: false},
		})
		return err
	})

	_ = store.InTx(ctx, func(r ports.Repository) error {
		active, _ := r.ListTargets(ctx, domain.TargetHashtag, false)
		all, _ := r.ListTargets(ctx, domain.TargetHashtag, true)
		if got := domain.TargetKeys(active); fmt.Sprint(got) != "[a b]" {
			t.Fatalf("active order: %v", got)
		}
		if got := domain.TargetKeys(all); fmt.Sprint(got) != "[a b c]" {
			t.Fatalf("all order: %v", got)
		}
		return nil
	})
}
