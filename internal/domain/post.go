package domain

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Post is a collected social-media post keyed by its external id.
type Post struct {
	ID            int64
	ExternalID    string
	Shortcode     string
	URL           string
	OwnerUsername string
	OwnerID       string
	Caption       string
	Type          string
	LikesCount    int
	CommentsCount int
	Timestamp     *time.Time
	CollectedAt   time.Time
	Source        string
	AIResults     *AIResults
}

// Comment belongs to exactly one Post; PostID references Post.ID.
type Comment struct {
	ID            int64
	ExternalID    string
	PostID        int64
	Text          string
	OwnerUsername string
	OwnerID       string
	LikesCount    int
	Timestamp     *time.Time
	CollectedAt   time.Time
	AIResults     *AIResults
}

// Post sources recorded for provenance.
const (
	SourceHashtag       = "hashtag"
	SourceUserProfile   = "user_profile"
	SourceMentions      = "mentions"
	SourceTargetHashtag = "target_hashtag"
	SourceTargetUser    = "target_user"
)

// EnrichableKind selects which entity an enrichment batch works on.
type EnrichableKind string

const (
	KindPost    EnrichableKind = "post"
	KindComment EnrichableKind = "comment"
)

// ParseEnrichableKind validates a kind received from callers.
func ParseEnrichableKind(s string) (EnrichableKind, error) {
	switch EnrichableKind(s) {
	case KindPost, KindComment:
		return EnrichableKind(s), nil
	default:
		return "", Invalid("unknown entity kind %q", s)
	}
}

// KindStats summarises enrichment coverage for one entity kind.
type KindStats struct {
	Total         int       `json:"total"`
	WithAIResults int       `json:"with_ai_results"`
	Analyzed      int       `json:"analyzed"`
	Breakdown     Breakdown `json:"sentiment_breakdown"`
}

// Pending reports how many rows still lack a sentiment result.
func (k KindStats) Pending() int {
	return k.Total - k.Analyzed
}

// CoveragePercent is the analyzed share rounded to one decimal.
func (k KindStats) CoveragePercent() float64 {
	if k.Total == 0 {
		return 0
	}
	return roundTo(float64(k.Analyzed)/float64(k.Total)*100, 1)
}

// ContentStats aggregates counters over posts and comments.
type ContentStats struct {
	Posts    KindStats `json:"posts"`
	Comments KindStats `json:"comments"`
}

// TagCount is one row of a frequency ranking.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

var hashtagExpr = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// ExtractHashtags returns the lower-cased hashtags of a caption in order of appearance.
func ExtractHashtags(caption string) []string {
	matches := hashtagExpr.FindAllStringSubmatch(strings.ToLower(caption), -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return tags
}

// RankTags counts occurrences and returns the top entries, most frequent first.
func RankTags(tags []string, limit int) []TagCount {
	counts := map[string]int{}
	for _, t := range tags {
		counts[t]++
	}
	out := make([]TagCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, TagCount{Tag: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
