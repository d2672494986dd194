package usecase

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"SocialInsights/internal/domain"
)

// plainText strips markup and decodes entities from provider text fields.
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// CanonicalPostURL drops query and fragment and ends the path with exactly one slash.
func CanonicalPostURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawPath = ""
	return u.String()
}

// postFromRecord maps a provider item onto a Post. The bool is false when the
// record has neither id nor shortCode.
func postFromRecord(r domain.RawRecord, source string) (domain.Post, bool) {
	id := r.String("id")
	if id == "" {
		id = r.String("shortCode")
	}
	if id == "" {
		return domain.Post{}, false
	}

	return domain.Post{
		ExternalID:    id,
		Shortcode:     r.String("shortCode"),
		URL:           CanonicalPostURL(r.String("url")),
		OwnerUsername: r.String("ownerUsername"),
		OwnerID:       r.String("ownerId"),
		Caption:       plainText(r.String("caption")),
		Type:          r.String("type"),
		LikesCount:    nonNegative(r.Int("likesCount")),
		CommentsCount: nonNegative(r.Int("commentsCount")),
		Timestamp:     r.Time("timestamp"),
		Source:        source,
	}, true
}

// commentFromRecord maps a provider comment and returns its parent post URL.
func commentFromRecord(r domain.RawRecord) (domain.Comment, string, bool) {
	id := r.String("id")
	if id == "" {
		return domain.Comment{}, "", false
	}
	return domain.Comment{
		ExternalID:    id,
		Text:          plainText(r.String("text")),
		OwnerUsername: r.String("ownerUsername"),
		OwnerID:       r.String("ownerId"),
		LikesCount:    nonNegative(r.Int("likesCount")),
		Timestamp:     r.Time("timestamp"),
	}, CanonicalPostURL(r.String("postUrl")), true
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
