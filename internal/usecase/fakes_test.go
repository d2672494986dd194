package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"SocialInsights/internal/collect"
	"SocialInsights/internal/config"
	"SocialInsights/internal/domain"
	"SocialInsights/internal/infrastructure/storage/memory"
	"SocialInsights/internal/ports"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeScraper struct {
	mu          sync.Mutex
	byHashtag   []domain.RawRecord
	profiles    []domain.RawRecord
	mentions    []domain.RawRecord
	comments    []domain.RawRecord
	search      map[domain.SearchKind][]domain.RawRecord
	stats       []domain.RawRecord
	incremental bool

	hashtagCalls [][]string
	commentURLs  []string
}

func (f *fakeScraper) FetchByHashtag(_ context.Context, tags []string, _ int) ([]domain.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hashtagCalls = append(f.hashtagCalls, tags)
	return f.byHashtag, nil
}

func (f *fakeScraper) FetchByUser(context.Context, []string) ([]domain.RawRecord, error) {
	return f.profiles, nil
}

func (f *fakeScraper) FetchMentions(context.Context, []string, int) ([]domain.RawRecord, error) {
	return f.mentions, nil
}

func (f *fakeScraper) FetchComments(_ context.Context, urls []string, _ int) ([]domain.RawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commentURLs = append(f.commentURLs, urls...)
	return f.comments, nil
}

func (f *fakeScraper) Search(_ context.Context, _ string, kind domain.SearchKind, _ int) ([]domain.RawRecord, error) {
	return f.search[kind], nil
}

func (f *fakeScraper) HashtagStats(context.Context, []string) ([]domain.RawRecord, error) {
	return f.stats, nil
}

func (f *fakeScraper) SupportsIncremental() bool { return f.incremental }

// fakeSummarizer returns "summary:<n>" for inputs of n runes and rejects
// inputs shorter than minInput.
type fakeSummarizer struct {
	mu       sync.Mutex
	minInput int
	err      error
	calls    []string
}

func (f *fakeSummarizer) Summarize(_ context.Context, text string, _, _ int) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if len([]rune(text)) < f.minInput {
		return "", domain.ErrInputTooShort
	}
	return "summary of " + strings.SplitN(text, "\n", 2)[0], nil
}

// fakeClassifier labels texts containing "good" positive and "bad" negative.
type fakeClassifier struct {
	mu         sync.Mutex
	batchErr   error
	shortBatch bool
	failOn     string
	batchCalls int
	itemCalls  int
	seen       []string
}

func labelFor(text string) domain.Classification {
	switch {
	case strings.Contains(text, "good"):
		return domain.Classification{Label: "POSITIVE", Score: 0.9}
	case strings.Contains(text, "bad"):
		return domain.Classification{Label: "Very Negative", Score: 0.8}
	default:
		return domain.Classification{Label: "neutral", Score: 0.6}
	}
}

func (f *fakeClassifier) Classify(_ context.Context, text string) (domain.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemCalls++
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return domain.Classification{}, errors.New("model unavailable")
	}
	return labelFor(text), nil
}

func (f *fakeClassifier) ClassifyBatch(_ context.Context, texts []string) ([]domain.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	f.seen = append(f.seen, texts...)
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([]domain.Classification, 0, len(texts))
	for _, t := range texts {
		out = append(out, labelFor(t))
	}
	if f.shortBatch && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

type fakeNotifier struct {
	reports []domain.WeeklyReport
	err     error
}

func (f *fakeNotifier) PublishReport(_ context.Context, r domain.WeeklyReport) error {
	f.reports = append(f.reports, r)
	return f.err
}

func testEnricherConfig() EnricherConfig {
	cfg := config.Default()
	return EnricherConfig{Summary: cfg.Summary, Sentiment: cfg.Sentiment, SummarizeLongCaptions: true}
}

type fixture struct {
	store      *memory.Store
	scraper    *fakeScraper
	summarizer *fakeSummarizer
	classifier *fakeClassifier
	notifier   *fakeNotifier
	ingestor   *Ingestor
	enricher   *Enricher
	targets    *TargetManager
	collector  *Collector
	reporter   *Reporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:      memory.New(),
		scraper:    &fakeScraper{search: map[domain.SearchKind][]domain.RawRecord{}},
		summarizer: &fakeSummarizer{},
		classifier: &fakeClassifier{},
		notifier:   &fakeNotifier{},
	}
	f.ingestor = NewIngestor(f.store, quietLogger)
	f.enricher = NewEnricher(f.store, f.summarizer, f.classifier, testEnricherConfig(), quietLogger)
	f.targets = NewTargetManager(f.store, quietLogger)
	f.collector = NewCollector(f.scraper, f.ingestor, f.targets, collect.NewTargetRegistry(f.scraper), quietLogger)
	f.reporter = NewReporter(f.store, f.enricher, f.notifier, quietLogger)
	return f
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

// seed inserts posts and comments directly and returns the stored post ids in order.
func (f *fixture) seed(t *testing.T, posts []domain.Post, comments map[int][]domain.Comment) []int64 {
	t.Helper()
	ctx := context.Background()

	var ids []int64
	err := f.store.InTx(ctx, func(repo ports.Repository) error {
		if _, err := repo.InsertPosts(ctx, posts); err != nil {
			return err
		}
		ext := make([]string, 0, len(posts))
		for _, p := range posts {
			ext = append(ext, p.URL)
		}
		byURL, err := repo.PostIDsByURL(ctx, ext)
		if err != nil {
			return err
		}
		for _, p := range posts {
			ids = append(ids, byURL[p.URL])
		}
		var all []domain.Comment
		for idx, cs := range comments {
			for _, c := range cs {
				c.PostID = ids[idx]
				all = append(all, c)
			}
		}
		_, err = repo.InsertComments(ctx, all)
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return ids
}

func (f *fixture) post(t *testing.T, id int64) domain.Post {
	t.Helper()
	var p domain.Post
	err := f.store.InTx(context.Background(), func(repo ports.Repository) error {
		var err error
		p, err = repo.GetPost(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("get post %d: %v", id, err)
	}
	return p
}

func (f *fixture) comment(t *testing.T, id int64) domain.Comment {
	t.Helper()
	var c domain.Comment
	err := f.store.InTx(context.Background(), func(repo ports.Repository) error {
		var err error
		c, err = repo.GetComment(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("get comment %d: %v", id, err)
	}
	return c
}
