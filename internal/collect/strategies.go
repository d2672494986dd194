package collect

import (
	"context"
	"fmt"

	"SocialInsights/internal/domain"
	"SocialInsights/internal/ports"
)

// HashtagStrategy fetches recent posts per monitored hashtag.
type HashtagStrategy struct {
	Scraper ports.Scraper
	Source  string
}

func (s HashtagStrategy) Kind() domain.TargetKind { return domain.TargetHashtag }

func (s HashtagStrategy) Collect(ctx context.Context, req Request) (Batch, error) {
	if len(req.Keys) == 0 {
		return Batch{Source: s.Source}, nil
	}
	records, err := s.Scraper.FetchByHashtag(ctx, req.Keys, req.Limit)
	if err != nil {
		return Batch{}, fmt.Errorf("fetch hashtags: %w", err)
	}
	return Batch{Records: records, Source: s.Source}, nil
}

// UserStrategy fetches profiles and unwraps the posts embedded in each.
type UserStrategy struct {
	Scraper ports.Scraper
	Source  string
}

func (s UserStrategy) Kind() domain.TargetKind { return domain.TargetUser }

func (s UserStrategy) Collect(ctx context.Context, req Request) (Batch, error) {
	if len(req.Keys) == 0 {
		return Batch{Source: s.Source}, nil
	}
	profiles, err := s.Scraper.FetchByUser(ctx, req.Keys)
	if err != nil {
		return Batch{}, fmt.Errorf("fetch profiles: %w", err)
	}
	return Batch{Records: FlattenProfiles(profiles, req.Limit), Source: s.Source}, nil
}

// FlattenProfiles returns the latestPosts of every profile, keeping at most
// perProfile posts of each when perProfile > 0.
func FlattenProfiles(profiles []domain.RawRecord, perProfile int) []domain.RawRecord {
	var out []domain.RawRecord
	for _, p := range profiles {
		posts := p.Records("latestPosts")
		if perProfile > 0 && len(posts) > perProfile {
			posts = posts[:perProfile]
		}
		out = append(out, posts...)
	}
	return out
}

// NewTargetRegistry registers the strategies used for target-driven runs.
// Places have no strategy yet.
func NewTargetRegistry(scraper ports.Scraper) *Registry {
	r := NewRegistry()
	r.Register(HashtagStrategy{Scraper: scraper, Source: domain.SourceTargetHashtag})
	r.Register(UserStrategy{Scraper: scraper, Source: domain.SourceTargetUser})
	return r
}
