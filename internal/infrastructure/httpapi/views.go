package httpapi

import (
	"time"

	"SocialInsights/internal/domain"
)

type postView struct {
	ID            int64             `json:"id"`
	PostID        string            `json:"post_id"`
	Shortcode     string            `json:"shortcode,omitempty"`
	URL           string            `json:"url"`
	OwnerUsername string            `json:"owner_username"`
	OwnerID       string            `json:"owner_id,omitempty"`
	Caption       string            `json:"caption"`
	PostType      string            `json:"post_type,omitempty"`
	LikesCount    int               `json:"likes_count"`
	CommentsCount int               `json:"comments_count"`
	Timestamp     *time.Time        `json:"timestamp"`
	CollectedAt   time.Time         `json:"collected_at"`
	Source        string            `json:"source"`
	AIResults     *domain.AIResults `json:"ai_results"`
}

func newPostView(p domain.Post) postView {
	return postView{
		ID:            p.ID,
		PostID:        p.ExternalID,
		Shortcode:     p.Shortcode,
		URL:           p.URL,
		OwnerUsername: p.OwnerUsername,
		OwnerID:       p.OwnerID,
		Caption:       p.Caption,
		PostType:      p.Type,
		LikesCount:    p.LikesCount,
		CommentsCount: p.CommentsCount,
		Timestamp:     p.Timestamp,
		CollectedAt:   p.CollectedAt,
		Source:        p.Source,
		AIResults:     p.AIResults,
	}
}

type commentView struct {
	ID            int64             `json:"id"`
	CommentID     string            `json:"comment_id"`
	PostID        int64             `json:"post_id"`
	Text          string            `json:"text"`
	OwnerUsername string            `json:"owner_username"`
	LikesCount    int               `json:"likes_count"`
	Timestamp     *time.Time        `json:"timestamp"`
	AIResults     *domain.AIResults `json:"ai_results"`
}

func newCommentView(c domain.Comment) commentView {
	return commentView{
		ID:            c.ID,
		CommentID:     c.ExternalID,
		PostID:        c.PostID,
		Text:          c.Text,
		OwnerUsername: c.OwnerUsername,
		LikesCount:    c.LikesCount,
		Timestamp:     c.Timestamp,
		AIResults:     c.AIResults,
	}
}

type targetView struct {
	Kind          domain.TargetKind `json:"type"`
	Key           string            `json:"identifier"`
	DisplayName   string            `json:"display_name,omitempty"`
	FollowerCount *int              `json:"follower_count,omitempty"`
	IsVerified    bool              `json:"is_verified"`
	PostCount     *int              `json:"post_count,omitempty"`
	City          string            `json:"city,omitempty"`
	Country       string            `json:"country,omitempty"`
	Priority      int               `json:"priority"`
	IsActive      bool              `json:"is_active"`
	AddedAt       time.Time         `json:"added_at"`
	LastScrapedAt *time.Time        `json:"last_scraped_at"`
	Notes         string            `json:"notes,omitempty"`
	Tags          []string          `json:"tags"`
}

func newTargetView(t domain.Target) targetView {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return targetView{
		Kind:          t.Kind,
		Key:           t.Key,
		DisplayName:   t.DisplayName,
		FollowerCount: t.FollowerCount,
		IsVerified:    t.IsVerified,
		PostCount:     t.PostCount,
		City:          t.City,
		Country:       t.Country,
		Priority:      t.Priority,
		IsActive:      t.IsActive,
		AddedAt:       t.AddedAt,
		LastScrapedAt: t.LastScrapedAt,
		Notes:         t.Notes,
		Tags:          tags,
	}
}

func targetViews(ts []domain.Target) []targetView {
	out := make([]targetView, 0, len(ts))
	for _, t := range ts {
		out = append(out, newTargetView(t))
	}
	return out
}
