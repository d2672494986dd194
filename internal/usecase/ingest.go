package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"SocialInsights/internal/domain"
	"SocialInsights/internal/ports"
)

// Touch asks an ingestion to stamp last_scraped_at on the listed targets in
// the same transaction as the insert.
type Touch struct {
	Kind domain.TargetKind
	Keys []string
}

// IngestionResult reports a post batch. Added follows the pre-insert check and
// may exceed Inserted when a concurrent ingestion wins the race for a key.
type IngestionResult struct {
	Added    int   `json:"added"`
	Skipped  int   `json:"skipped"`
	Dropped  int   `json:"dropped"`
	Inserted int64 `json:"inserted"`
}

// Merge accumulates another batch result.
func (r *IngestionResult) Merge(o IngestionResult) {
	r.Added += o.Added
	r.Skipped += o.Skipped
	r.Dropped += o.Dropped
	r.Inserted += o.Inserted
}

// CommentIngestionResult reports a comment batch.
type CommentIngestionResult struct {
	Added    int   `json:"added"`
	Skipped  int   `json:"skipped"`
	Dropped  int   `json:"dropped"`
	Unmapped int   `json:"unmapped"`
	Inserted int64 `json:"inserted"`
}

// Ingestor normalizes provider records and writes them to the Record Store.
type Ingestor struct {
	store  ports.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewIngestor builds the ingestion engine.
func NewIngestor(store ports.Store, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{store: store, logger: logger, now: time.Now}
}

// IngestPosts deduplicates and inserts a batch of provider posts in one transaction.
func (i *Ingestor) IngestPosts(ctx context.Context, raws []domain.RawRecord, source string, touch *Touch) (IngestionResult, error) {
	var res IngestionResult
	if len(raws) == 0 && (touch == nil || len(touch.Keys) == 0) {
		return res, nil
	}

	seen := make(map[string]bool, len(raws))
	batch := make([]domain.Post, 0, len(raws))
	keys := make([]string, 0, len(raws))
	for _, raw := range raws {
		post, ok := postFromRecord(raw, source)
		if !ok {
			res.Dropped++
			continue
		}
		if seen[post.ExternalID] {
			res.Skipped++
			continue
		}
		seen[post.ExternalID] = true
		batch = append(batch, post)
		keys = append(keys, post.ExternalID)
	}
	if res.Dropped > 0 {
		i.logger.Warn("dropped posts without id or shortCode", "count", res.Dropped, "source", source)
	}

	err := i.store.InTx(ctx, func(repo ports.Repository) error {
		if len(batch) > 0 {
			existing, err := repo.ExistingPostIDs(ctx, keys)
			if err != nil {
				return fmt.Errorf("load existing posts: %w", err)
			}
			fresh := batch[:0:0]
			for _, p := range batch {
				if existing[p.ExternalID] {
					res.Skipped++
					continue
				}
				fresh = append(fresh, p)
			}
			res.Added = len(fresh)

			if len(fresh) > 0 {
				now := i.now().UTC()
				for k := range fresh {
					fresh[k].CollectedAt = now
				}
				if res.Inserted, err = repo.InsertPosts(ctx, fresh); err != nil {
					return fmt.Errorf("insert posts: %w", err)
				}
			}
		}

		if touch != nil && len(touch.Keys) > 0 {
			if err := repo.TouchTargets(ctx, touch.Kind, touch.Keys, i.now()); err != nil {
				return fmt.Errorf("touch %s targets: %w", touch.Kind, err)
			}
		}
		return nil
	})
	if err != nil {
		return IngestionResult{}, err
	}

	if lost := int64(res.Added) - res.Inserted; lost > 0 {
		i.logger.Info("posts inserted concurrently by another run", "count", lost)
	}
	i.logger.Info("posts ingested", "source", source, "added", res.Added, "skipped", res.Skipped, "dropped", res.Dropped)
	return res, nil
}

// IngestComments maps provider comments to stored posts by URL and inserts
// the new ones in one transaction.
func (i *Ingestor) IngestComments(ctx context.Context, raws []domain.RawRecord) (CommentIngestionResult, error) {
	var res CommentIngestionResult
	if len(raws) == 0 {
		return res, nil
	}

	type pending struct {
		comment domain.Comment
		postURL string
	}
	seen := make(map[string]bool, len(raws))
	batch := make([]pending, 0, len(raws))
	var urls []string
	urlSeen := map[string]bool{}
	for _, raw := range raws {
		c, postURL, ok := commentFromRecord(raw)
		if !ok {
			res.Dropped++
			continue
		}
		if postURL == "" {
			res.Unmapped++
			continue
		}
		if seen[c.ExternalID] {
			res.Skipped++
			continue
		}
		seen[c.ExternalID] = true
		batch = append(batch, pending{comment: c, postURL: postURL})
		if !urlSeen[postURL] {
			urlSeen[postURL] = true
			urls = append(urls, postURL)
		}
	}
	if len(batch) == 0 {
		i.logComments(res)
		return res, nil
	}

	err := i.store.InTx(ctx, func(repo ports.Repository) error {
		parents, err := repo.PostIDsByURL(ctx, urls)
		if err != nil {
			return fmt.Errorf("resolve parent posts: %w", err)
		}

		mapped := make([]domain.Comment, 0, len(batch))
		keys := make([]string, 0, len(batch))
		for _, p := range batch {
			postID, ok := parents[p.postURL]
			if !ok {
				res.Unmapped++
				continue
			}
			p.comment.PostID = postID
			mapped = append(mapped, p.comment)
			keys = append(keys, p.comment.ExternalID)
		}
		if len(mapped) == 0 {
			return nil
		}

		existing, err := repo.ExistingCommentIDs(ctx, keys)
		if err != nil {
			return fmt.Errorf("load existing comments: %w", err)
		}
		fresh := mapped[:0:0]
		for _, c := range mapped {
			if existing[c.ExternalID] {
				res.Skipped++
				continue
			}
			fresh = append(fresh, c)
		}
		res.Added = len(fresh)
		if len(fresh) == 0 {
			return nil
		}

		now := i.now().UTC()
		for k := range fresh {
			fresh[k].CollectedAt = now
		}
		res.Inserted, err = repo.InsertComments(ctx, fresh)
		if err != nil {
			return fmt.Errorf("insert comments: %w", err)
		}
		return nil
	})
	if err != nil {
		return CommentIngestionResult{}, err
	}

	i.logComments(res)
	return res, nil
}

func (i *Ingestor) logComments(res CommentIngestionResult) {
	if res.Unmapped > 0 {
		i.logger.Warn("comments without a stored parent post", "count", res.Unmapped)
	}
	i.logger.Info("comments ingested", "added", res.Added, "skipped", res.Skipped, "dropped", res.Dropped)
}
