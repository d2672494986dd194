package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"SocialInsights/internal/domain"
)

func (r *repo) ExistingPostIDs(_ context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, id := range ids {
		if _, ok := r.st.postByExt[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (r *repo) InsertPosts(_ context.Context, posts []domain.Post) (int64, error) {
	var inserted int64
	for _, p := range posts {
		if p.ExternalID == "" {
			return inserted, fmt.Errorf("insert post: empty post_id")
		}
		if _, ok := r.st.postByExt[p.ExternalID]; ok {
			continue
		}
		r.st.nextPost++
		p.ID = r.st.nextPost
		if p.CollectedAt.IsZero() {
			p.CollectedAt = r.now().UTC()
		}
		r.st.posts[p.ID] = p
		r.st.postByExt[p.ExternalID] = p.ID
		inserted++
	}
	return inserted, nil
}

func (r *repo) GetPost(_ context.Context, id int64) (domain.Post, error) {
	p, ok := r.st.posts[id]
	if !ok {
		return domain.Post{}, domain.NotFound("post", id)
	}
	return p, nil
}

func (r *repo) PostIDsByURL(_ context.Context, urls []string) (map[string]int64, error) {
	want := make(map[string]bool, len(urls))
	for _, u := range urls {
		want[u] = true
	}
	out := make(map[string]int64)
	for _, p := range r.st.posts {
		if p.URL != "" && want[p.URL] {
			if prev, ok := out[p.URL]; !ok || p.ID < prev {
				out[p.URL] = p.ID
			}
		}
	}
	return out, nil
}

func (r *repo) PostsAwaitingComments(_ context.Context, limit int) ([]domain.Post, error) {
	withComments := make(map[int64]bool)
	for _, c := range r.st.comments {
		withComments[c.PostID] = true
	}
	var out []domain.Post
	for _, p := range r.st.posts {
		if p.CommentsCount > 0 && !withComments[p.ID] {
			out = append(out, p)
		}
	}
	sortNewestFirst(out)
	return limitPosts(out, limit), nil
}

func (r *repo) PostsWithoutSentiment(_ context.Context, limit int) ([]domain.Post, error) {
	var out []domain.Post
	for _, p := range r.st.posts {
		if strings.TrimSpace(p.Caption) != "" && !p.AIResults.HasSentiment() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return limitPosts(out, limit), nil
}

func (r *repo) PostsInWindow(_ context.Context, from, to time.Time) ([]domain.Post, error) {
	var out []domain.Post
	for _, p := range r.st.posts {
		if inWindow(p.Timestamp, from, to) {
			out = append(out, p)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *repo) MergePostAIResults(_ context.Context, id int64, patch domain.AIResults) error {
	p, ok := r.st.posts[id]
	if !ok {
		return domain.NotFound("post", id)
	}
	p.AIResults = p.AIResults.Merge(patch)
	r.st.posts[id] = p
	return nil
}

func (r *repo) ExistingCommentIDs(_ context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, id := range ids {
		if _, ok := r.st.commentByExt[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (r *repo) InsertComments(_ context.Context, comments []domain.Comment) (int64, error) {
	var inserted int64
	for _, c := range comments {
		if c.ExternalID == "" {
			return inserted, fmt.Errorf("insert comment: empty comment_id")
		}
		if _, ok := r.st.posts[c.PostID]; !ok {
			return inserted, fmt.Errorf("insert comment %s: parent post %d does not exist", c.ExternalID, c.PostID)
		}
		if _, ok := r.st.commentByExt[c.ExternalID]; ok {
			continue
		}
		r.st.nextComment++
		c.ID = r.st.nextComment
		if c.CollectedAt.IsZero() {
			c.CollectedAt = r.now().UTC()
		}
		r.st.comments[c.ID] = c
		r.st.commentByExt[c.ExternalID] = c.ID
		inserted++
	}
	return inserted, nil
}

func (r *repo) GetComment(_ context.Context, id int64) (domain.Comment, error) {
	c, ok := r.st.comments[id]
	if !ok {
		return domain.Comment{}, domain.NotFound("comment", id)
	}
	return c, nil
}

func (r *repo) CommentsForPost(_ context.Context, postID int64, limit int) ([]domain.Comment, error) {
	var out []domain.Comment
	for _, c := range r.st.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LikesCount != out[j].LikesCount {
			return out[i].LikesCount > out[j].LikesCount
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *repo) CommentsWithoutSentiment(_ context.Context, limit int) ([]domain.Comment, error) {
	var out []domain.Comment
	for _, c := range r.st.comments {
		if strings.TrimSpace(c.Text) != "" && !c.AIResults.HasSentiment() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *repo) CommentsInWindow(_ context.Context, postIDs []int64, from, to time.Time) ([]domain.Comment, error) {
	want := make(map[int64]bool, len(postIDs))
	for _, id := range postIDs {
		want[id] = true
	}
	var out []domain.Comment
	for _, c := range r.st.comments {
		if want[c.PostID] && inWindow(c.Timestamp, from, to) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *repo) MergeCommentAIResults(_ context.Context, id int64, patch domain.AIResults) error {
	c, ok := r.st.comments[id]
	if !ok {
		return domain.NotFound("comment", id)
	}
	c.AIResults = c.AIResults.Merge(patch)
	r.st.comments[id] = c
	return nil
}

func (r *repo) ContentStats(_ context.Context) (domain.ContentStats, error) {
	var stats domain.ContentStats
	for _, p := range r.st.posts {
		countAI(&stats.Posts, p.AIResults)
	}
	for _, c := range r.st.comments {
		countAI(&stats.Comments, c.AIResults)
	}
	return stats, nil
}

func (r *repo) TopHashtags(_ context.Context, limit int) ([]domain.TagCount, error) {
	var tags []string
	for _, p := range r.st.posts {
		tags = append(tags, domain.ExtractHashtags(p.Caption)...)
	}
	return domain.RankTags(tags, limit), nil
}

func (r *repo) TopTopics(_ context.Context, limit int) ([]domain.TagCount, error) {
	var topics []string
	for _, p := range r.st.posts {
		if p.AIResults != nil {
			topics = append(topics, p.AIResults.Topics...)
		}
	}
	return domain.RankTags(topics, limit), nil
}

func countAI(k *domain.KindStats, ai *domain.AIResults) {
	k.Total++
	if ai == nil {
		return
	}
	k.WithAIResults++
	if ai.Sentiment != nil {
		k.Analyzed++
		k.Breakdown.Add(ai.Sentiment.Label)
	}
}

func inWindow(ts *time.Time, from, to time.Time) bool {
	return ts != nil && !ts.Before(from) && !ts.After(to)
}

func sortNewestFirst(posts []domain.Post) {
	sort.Slice(posts, func(i, j int) bool {
		a, b := posts[i].Timestamp, posts[j].Timestamp
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return posts[i].ID > posts[j].ID
	})
}

func limitPosts(posts []domain.Post, limit int) []domain.Post {
	if limit > 0 && len(posts) > limit {
		return posts[:limit]
	}
	return posts
}
