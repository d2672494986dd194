package usecase

import (
	"context"
	"errors"
	"testing"

	"SocialInsights/internal/domain"
)

func TestCollectHashtags(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.scraper.byHashtag = []domain.RawRecord{{"id": "1"}, {"id": "2"}}

	res, err := f.collector.CollectHashtags(context.Background(), []string{"#riyadh", " "}, 5)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(res.Hashtags) != 1 || res.Hashtags[0] != "riyadh" || res.Posts.Added != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}

	if _, err := f.collector.CollectHashtags(context.Background(), nil, 5); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCollectCommentsOnlyForPostsWithout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, []domain.Post{
		{ExternalID: "p1", URL: "https://www.instagram.com/p/one/", CommentsCount: 3, Timestamp: ts("2025-01-02T00:00:00Z")},
		{ExternalID: "p2", URL: "https://www.instagram.com/p/two/", CommentsCount: 0},
		{ExternalID: "p3", URL: "https://www.instagram.com/p/three/", CommentsCount: 1},
	}, map[int][]domain.Comment{
		2: {{ExternalID: "old", Text: "already here"}},
	})
	f.scraper.comments = []domain.RawRecord{
		{"id": "c1", "text": "hi", "postUrl": "https://www.instagram.com/p/one"},
	}

	res, err := f.collector.CollectComments(ctx, 10, 5)
	if err != nil {
		t.Fatalf("collect comments: %v", err)
	}
	if res.PostsProcessed != 1 || res.Comments.Added != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(f.scraper.commentURLs) != 1 || f.scraper.commentURLs[0] != "https://www.instagram.com/p/one/" {
		t.Fatalf("unexpected urls fetched: %v", f.scraper.commentURLs)
	}
}

func discoveryScraper(f *fixture) {
	f.scraper.search[domain.SearchUser] = []domain.RawRecord{{"username": "saudi_eats"}, {"fullName": "nameless"}}
	f.scraper.search[domain.SearchHashtag] = []domain.RawRecord{{"name": "#saudifood"}, {"name": "kabsa"}}
	f.scraper.search[domain.SearchPlace] = []domain.RawRecord{{"name": "Riyadh Park", "pk": "123"}, {"id": "no-name"}}
	f.scraper.stats = []domain.RawRecord{{
		"frequent":       []any{map[string]any{"hash": "#foodie"}, map[string]any{"hash": "kabsa"}},
		"relatedAverage": []any{map[string]any{"hash": "#foodie"}, map[string]any{"hash": "#mandi"}},
	}}
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	discoveryScraper(f)

	d, err := f.collector.Discover(context.Background(), DefaultDiscoveryRequest(" saudi food "))
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if d.Term != "saudi food" || len(d.Accounts) != 1 || d.Accounts[0] != "saudi_eats" {
		t.Fatalf("unexpected accounts: %+v", d)
	}
	if len(d.Hashtags) != 2 || d.Hashtags[0] != "saudifood" {
		t.Fatalf("unexpected hashtags: %v", d.Hashtags)
	}
	if len(d.Places) != 1 || d.Places[0].ID != "123" {
		t.Fatalf("unexpected places: %+v", d.Places)
	}
	want := []string{"foodie", "kabsa", "mandi"}
	if len(d.RelatedHashtags) != len(want) {
		t.Fatalf("unexpected related: %v", d.RelatedHashtags)
	}
	for i := range want {
		if d.RelatedHashtags[i] != want[i] {
			t.Fatalf("related[%d] = %q, want %q", i, d.RelatedHashtags[i], want[i])
		}
	}

	if _, err := f.collector.Discover(context.Background(), DiscoveryRequest{Term: "  "}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for blank term, got %v", err)
	}
}

func TestDiscoverAndSave(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	discoveryScraper(f)
	ctx := context.Background()

	res, err := f.collector.DiscoverAndSave(ctx, DefaultDiscoveryRequest("saudi food"), AddOptions{Priority: 3}, true)
	if err != nil {
		t.Fatalf("discover and save: %v", err)
	}
	// saudifood, kabsa, foodie, mandi; the related kabsa is a duplicate.
	if got := res.Added[domain.TargetHashtag]; got.Added != 4 || got.Skipped != 1 {
		t.Fatalf("unexpected hashtag result: %+v", got)
	}
	if res.Added[domain.TargetPlace].Added != 1 || res.Added[domain.TargetUser].Added != 1 {
		t.Fatalf("unexpected results: %+v", res.Added)
	}

	place, err := f.targets.List(ctx, domain.TargetPlace, false)
	if err != nil || len(place) != 1 || place[0].DisplayName != "Riyadh Park" || place[0].Priority != 3 {
		t.Fatalf("place target not stored: %v %+v", err, place)
	}
}

func TestRunTargets(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	for kind, keys := range map[domain.TargetKind][]string{
		domain.TargetHashtag: {"coffee"},
		domain.TargetUser:    {"barista"},
		domain.TargetPlace:   {"555"},
	} {
		if _, err := f.targets.Add(ctx, kind, specs(keys...), AddOptions{}); err != nil {
			t.Fatalf("add %s: %v", kind, err)
		}
	}
	f.scraper.byHashtag = []domain.RawRecord{{"id": "h1"}}
	f.scraper.profiles = []domain.RawRecord{{
		"username":    "barista",
		"latestPosts": []any{map[string]any{"id": "u1"}, map[string]any{"id": "u2"}, map[string]any{"id": "u3"}},
	}}

	res, err := f.collector.RunTargets(ctx, TargetRunRequest{PostsPerTarget: 2, UpdateMetadata: true})
	if err != nil {
		t.Fatalf("run targets: %v", err)
	}
	if res.Posts.Added != 3 {
		t.Fatalf("expected 1 hashtag post and 2 profile posts, got %+v", res.Posts)
	}
	if len(res.SkippedKinds) != 1 || res.SkippedKinds[0] != domain.TargetPlace {
		t.Fatalf("places should be skipped: %v", res.SkippedKinds)
	}
	if res.Targets[domain.TargetPlace] != 1 {
		t.Fatalf("unexpected target counts: %+v", res.Targets)
	}

	users, _ := f.targets.GetActive(ctx, domain.TargetUser)
	if users[0].LastScrapedAt == nil {
		t.Fatalf("user target not touched")
	}
	places, _ := f.targets.GetActive(ctx, domain.TargetPlace)
	if places[0].LastScrapedAt != nil {
		t.Fatalf("skipped place target must not be touched")
	}
	if f.post(t, 2).Source != domain.SourceTargetUser {
		t.Fatalf("unexpected provenance %q", f.post(t, 2).Source)
	}

	plan, err := f.collector.RunIncremental(ctx, nil)
	if err != nil {
		t.Fatalf("incremental: %v", err)
	}
	if plan.Supported || len(plan.Targets) != 2 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
}

func TestRunTargetsValidates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := f.collector.RunTargets(context.Background(), TargetRunRequest{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunFull(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	discoveryScraper(f)
	f.scraper.byHashtag = []domain.RawRecord{{"id": "h1"}, {"id": "shared"}}
	f.scraper.profiles = []domain.RawRecord{{"latestPosts": []any{map[string]any{"id": "shared"}}}}
	f.scraper.mentions = []domain.RawRecord{{"id": "m1"}}

	res, err := f.collector.RunFull(context.Background(), FullRequest{
		Discovery:           DefaultDiscoveryRequest("saudi food"),
		MaxUsersToScrape:    5,
		MaxHashtagsToScrape: 1,
		PostsPerTarget:      10,
	})
	if err != nil {
		t.Fatalf("run full: %v", err)
	}
	if res.Posts.Added != 3 || res.Posts.Skipped != 1 {
		t.Fatalf("unexpected posts: %+v", res.Posts)
	}
	if len(f.scraper.hashtagCalls) != 1 || len(f.scraper.hashtagCalls[0]) != 1 {
		t.Fatalf("hashtag fan-out not bounded: %v", f.scraper.hashtagCalls)
	}
	if f.post(t, 3).Source != domain.SourceMentions {
		t.Fatalf("mention provenance lost: %q", f.post(t, 3).Source)
	}
}
