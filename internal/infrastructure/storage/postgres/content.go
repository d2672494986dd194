package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"SocialInsights/internal/domain"
)

var postColumns = []string{
	"id", "post_id", "COALESCE(shortcode, '')", "COALESCE(post_url, '')",
	"COALESCE(owner_username, '')", "COALESCE(owner_id, '')", "COALESCE(caption, '')",
	"COALESCE(post_type, '')", "likes_count", "comments_count", "timestamp",
	"collected_at", "COALESCE(source, '')", "ai_results",
}

var commentColumns = []string{
	"id", "comment_id", "post_id", "comment_text", "COALESCE(owner_username, '')",
	"COALESCE(owner_id, '')", "likes_count", "timestamp", "collected_at", "ai_results",
}

const withoutSentiment = "ai_results->'sentiment' IS NULL"

func scanPost(row pgx.Row) (domain.Post, error) {
	var (
		p  domain.Post
		ai []byte
	)
	err := row.Scan(&p.ID, &p.ExternalID, &p.Shortcode, &p.URL, &p.OwnerUsername, &p.OwnerID,
		&p.Caption, &p.Type, &p.LikesCount, &p.CommentsCount, &p.Timestamp, &p.CollectedAt,
		&p.Source, &ai)
	if err != nil {
		return domain.Post{}, err
	}
	p.AIResults, err = decodeAIResults(ai)
	return p, err
}

func scanComment(row pgx.Row) (domain.Comment, error) {
	var (
		c  domain.Comment
		ai []byte
	)
	err := row.Scan(&c.ID, &c.ExternalID, &c.PostID, &c.Text, &c.OwnerUsername, &c.OwnerID,
		&c.LikesCount, &c.Timestamp, &c.CollectedAt, &ai)
	if err != nil {
		return domain.Comment{}, err
	}
	c.AIResults, err = decodeAIResults(ai)
	return c, err
}

func (r *repo) existingKeys(ctx context.Context, table, column string, ids []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.query(ctx, r.psql.Select(column).From(table).Where(sq.Eq{column: ids}))
	if err != nil {
		return nil, fmt.Errorf("query existing %s: %w", table, err)
	}
	keys, err := collect(rows, func(row pgx.Row) (string, error) {
		var id string
		return id, row.Scan(&id)
	})
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		result[k] = true
	}
	return result, nil
}

func (r *repo) ExistingPostIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	return r.existingKeys(ctx, "posts", "post_id", ids)
}

func (r *repo) InsertPosts(ctx context.Context, posts []domain.Post) (int64, error) {
	var inserted int64
	for _, chunk := range chunks(posts, insertChunk) {
		b := r.psql.Insert("posts").Columns(
			"post_id", "shortcode", "post_url", "owner_username", "owner_id", "caption",
			"post_type", "likes_count", "comments_count", "timestamp", "collected_at", "source",
		)
		for _, p := range chunk {
			b = b.Values(p.ExternalID, nullIfEmpty(p.Shortcode), nullIfEmpty(p.URL),
				nullIfEmpty(p.OwnerUsername), nullIfEmpty(p.OwnerID), p.Caption,
				nullIfEmpty(p.Type), p.LikesCount, p.CommentsCount, p.Timestamp,
				collectedAt(p.CollectedAt), nullIfEmpty(p.Source))
		}
		tag, err := r.exec(ctx, b.Suffix("ON CONFLICT (post_id) DO NOTHING"))
		if err != nil {
			return inserted, fmt.Errorf("insert posts: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

func (r *repo) GetPost(ctx context.Context, id int64) (domain.Post, error) {
	row, err := r.queryRow(ctx, r.psql.Select(postColumns...).From("posts").Where(sq.Eq{"id": id}))
	if err != nil {
		return domain.Post{}, err
	}
	p, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Post{}, domain.NotFound("post", id)
	}
	if err != nil {
		return domain.Post{}, fmt.Errorf("get post %d: %w", id, err)
	}
	return p, nil
}

func (r *repo) PostIDsByURL(ctx context.Context, urls []string) (map[string]int64, error) {
	result := make(map[string]int64)
	if len(urls) == 0 {
		return result, nil
	}

	rows, err := r.query(ctx, r.psql.Select("post_url", "MIN(id)").From("posts").
		Where(sq.Eq{"post_url": urls}).GroupBy("post_url"))
	if err != nil {
		return nil, fmt.Errorf("query post urls: %w", err)
	}
	type pair struct {
		url string
		id  int64
	}
	pairs, err := collect(rows, func(row pgx.Row) (pair, error) {
		var p pair
		return p, row.Scan(&p.url, &p.id)
	})
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		result[p.url] = p.id
	}
	return result, nil
}

func (r *repo) selectPosts(ctx context.Context, b sq.SelectBuilder) ([]domain.Post, error) {
	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	return collect(rows, scanPost)
}

func (r *repo) PostsAwaitingComments(ctx context.Context, limit int) ([]domain.Post, error) {
	b := r.psql.Select(postColumns...).From("posts").
		Where("comments_count > 0").
		Where("NOT EXISTS (SELECT 1 FROM comments c WHERE c.post_id = posts.id)").
		OrderBy("timestamp DESC NULLS LAST", "id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return r.selectPosts(ctx, b)
}

func (r *repo) PostsWithoutSentiment(ctx context.Context, limit int) ([]domain.Post, error) {
	b := r.psql.Select(postColumns...).From("posts").
		Where("btrim(COALESCE(caption, '')) <> ''").
		Where(withoutSentiment).
		OrderBy("id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return r.selectPosts(ctx, b)
}

func (r *repo) PostsInWindow(ctx context.Context, from, to time.Time) ([]domain.Post, error) {
	return r.selectPosts(ctx, r.psql.Select(postColumns...).From("posts").
		Where(sq.GtOrEq{"timestamp": from}).
		Where(sq.LtOrEq{"timestamp": to}).
		OrderBy("timestamp DESC", "id DESC"))
}

func (r *repo) mergeAIResults(ctx context.Context, table string, id int64, patch domain.AIResults) error {
	doc, err := encodeJSON(patch)
	if err != nil {
		return fmt.Errorf("encode ai_results: %w", err)
	}
	tag, err := r.exec(ctx, r.psql.Update(table).
		Set("ai_results", sq.Expr("COALESCE(ai_results, '{}'::jsonb) || ?::jsonb", *doc)).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("merge %s ai_results: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(table[:len(table)-1], id)
	}
	return nil
}

func (r *repo) MergePostAIResults(ctx context.Context, id int64, patch domain.AIResults) error {
	return r.mergeAIResults(ctx, "posts", id, patch)
}

func (r *repo) ExistingCommentIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	return r.existingKeys(ctx, "comments", "comment_id", ids)
}

func (r *repo) InsertComments(ctx context.Context, comments []domain.Comment) (int64, error) {
	var inserted int64
	for _, chunk := range chunks(comments, insertChunk) {
		b := r.psql.Insert("comments").Columns(
			"comment_id", "post_id", "comment_text", "owner_username", "owner_id",
			"likes_count", "timestamp", "collected_at",
		)
		for _, c := range chunk {
			b = b.Values(c.ExternalID, c.PostID, c.Text, nullIfEmpty(c.OwnerUsername),
				nullIfEmpty(c.OwnerID), c.LikesCount, c.Timestamp, collectedAt(c.CollectedAt))
		}
		tag, err := r.exec(ctx, b.Suffix("ON CONFLICT (comment_id) DO NOTHING"))
		if err != nil {
			return inserted, fmt.Errorf("insert comments: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

func (r *repo) GetComment(ctx context.Context, id int64) (domain.Comment, error) {
	row, err := r.queryRow(ctx, r.psql.Select(commentColumns...).From("comments").Where(sq.Eq{"id": id}))
	if err != nil {
		return domain.Comment{}, err
	}
	c, err := scanComment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Comment{}, domain.NotFound("comment", id)
	}
	if err != nil {
		return domain.Comment{}, fmt.Errorf("get comment %d: %w", id, err)
	}
	return c, nil
}

func (r *repo) selectComments(ctx context.Context, b sq.SelectBuilder) ([]domain.Comment, error) {
	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	return collect(rows, scanComment)
}

func (r *repo) CommentsForPost(ctx context.Context, postID int64, limit int) ([]domain.Comment, error) {
	b := r.psql.Select(commentColumns...).From("comments").
		Where(sq.Eq{"post_id": postID}).
		OrderBy("likes_count DESC", "id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return r.selectComments(ctx, b)
}

func (r *repo) CommentsWithoutSentiment(ctx context.Context, limit int) ([]domain.Comment, error) {
	b := r.psql.Select(commentColumns...).From("comments").
		Where("btrim(comment_text) <> ''").
		Where(withoutSentiment).
		OrderBy("id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return r.selectComments(ctx, b)
}

func (r *repo) CommentsInWindow(ctx context.Context, postIDs []int64, from, to time.Time) ([]domain.Comment, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	return r.selectComments(ctx, r.psql.Select(commentColumns...).From("comments").
		Where(sq.Eq{"post_id": postIDs}).
		Where(sq.GtOrEq{"timestamp": from}).
		Where(sq.LtOrEq{"timestamp": to}).
		OrderBy("id"))
}

func (r *repo) MergeCommentAIResults(ctx context.Context, id int64, patch domain.AIResults) error {
	return r.mergeAIResults(ctx, "comments", id, patch)
}

func (r *repo) ContentStats(ctx context.Context) (domain.ContentStats, error) {
	var stats domain.ContentStats
	for _, t := range []struct {
		table string
		dst   *domain.KindStats
	}{{"posts", &stats.Posts}, {"comments", &stats.Comments}} {
		table, dst := t.table, t.dst
		row, err := r.queryRow(ctx, r.psql.Select(
			"count(*)",
			"count(ai_results)",
			"count(*) FILTER (WHERE ai_results->'sentiment' IS NOT NULL)",
			"count(*) FILTER (WHERE ai_results->'sentiment'->>'label' = 'positive')",
			"count(*) FILTER (WHERE ai_results->'sentiment'->>'label' = 'neutral')",
			"count(*) FILTER (WHERE ai_results->'sentiment'->>'label' = 'negative')",
		).From(table))
		if err != nil {
			return stats, err
		}
		err = row.Scan(&dst.Total, &dst.WithAIResults, &dst.Analyzed,
			&dst.Breakdown.Positive, &dst.Breakdown.Neutral, &dst.Breakdown.Negative)
		if err != nil {
			return stats, fmt.Errorf("count %s: %w", table, err)
		}
	}
	return stats, nil
}

func (r *repo) TopHashtags(ctx context.Context, limit int) ([]domain.TagCount, error) {
	b := r.psql.Select("m[1] AS tag", "count(*) AS n").
		From("posts, regexp_matches(lower(caption), '#([[:alnum:]_]+)', 'g') AS m").
		GroupBy("tag").
		OrderBy("n DESC", "tag")
	return r.rankTags(ctx, b, limit)
}

func (r *repo) TopTopics(ctx context.Context, limit int) ([]domain.TagCount, error) {
	b := r.psql.Select("t.topic AS tag", "count(*) AS n").
		From("posts, jsonb_array_elements_text(CASE WHEN jsonb_typeof(ai_results->'topics') = 'array' " +
			"THEN ai_results->'topics' ELSE '[]'::jsonb END) AS t(topic)").
		GroupBy("tag").
		OrderBy("n DESC", "tag")
	return r.rankTags(ctx, b, limit)
}

func (r *repo) rankTags(ctx context.Context, b sq.SelectBuilder, limit int) ([]domain.TagCount, error) {
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("rank tags: %w", err)
	}
	return collect(rows, func(row pgx.Row) (domain.TagCount, error) {
		var tc domain.TagCount
		return tc, row.Scan(&tc.Tag, &tc.Count)
	})
}

func collectedAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
