package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"SocialInsights/internal/config"
	"SocialInsights/internal/domain"
	"SocialInsights/internal/ports"
)

const previewLength = 100

// EnricherConfig bundles the length budgets and thresholds the engine applies.
type EnricherConfig struct {
	Summary               config.SummaryConfig
	Sentiment             config.SentimentConfig
	SummarizeLongCaptions bool
}

// Enricher applies AI collaborators to stored posts and comments.
type Enricher struct {
	store      ports.Store
	summarizer ports.Summarizer
	classifier ports.Classifier
	cfg        EnricherConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewEnricher builds the enrichment engine around explicitly constructed collaborators.
func NewEnricher(store ports.Store, summarizer ports.Summarizer, classifier ports.Classifier, cfg EnricherConfig, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		store:      store,
		summarizer: summarizer,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// SentimentItem is one classified entity of a batch.
type SentimentItem struct {
	ID          int64                 `json:"id"`
	TextPreview string                `json:"text_preview"`
	Sentiment   domain.Classification `json:"sentiment"`
}

// SentimentBatchResult reports one EnrichSentiment call.
type SentimentBatchResult struct {
	Kind      domain.EnrichableKind `json:"kind"`
	Processed int                   `json:"processed"`
	Failed    int                   `json:"failed"`
	Breakdown domain.Breakdown      `json:"sentiment_breakdown"`
	Items     []SentimentItem       `json:"results"`
}

type textItem struct {
	id   int64
	text string
}

// EnrichSentiment classifies up to batchSize entities of kind that have text
// and no sentiment yet. Entities the classifier fails on stay unmarked.
func (e *Enricher) EnrichSentiment(ctx context.Context, kind domain.EnrichableKind, batchSize int) (SentimentBatchResult, error) {
	res := SentimentBatchResult{Kind: kind, Items: []SentimentItem{}}
	if _, err := domain.ParseEnrichableKind(string(kind)); err != nil {
		return res, err
	}
	if batchSize <= 0 {
		return res, domain.Invalid("batch size must be positive, got %d", batchSize)
	}

	var items []textItem
	err := e.store.InTx(ctx, func(repo ports.Repository) error {
		if kind == domain.KindPost {
			posts, err := repo.PostsWithoutSentiment(ctx, batchSize)
			for _, p := range posts {
				items = append(items, textItem{id: p.ID, text: p.Caption})
			}
			return err
		}
		comments, err := repo.CommentsWithoutSentiment(ctx, batchSize)
		for _, c := range comments {
			items = append(items, textItem{id: c.ID, text: c.Text})
		}
		return err
	})
	if err != nil {
		return res, fmt.Errorf("select unenriched %ss: %w", kind, err)
	}
	if len(items) == 0 {
		return res, nil
	}

	texts := make([]string, len(items))
	for k, it := range items {
		texts[k] = it.text
	}
	results := e.classifyAll(ctx, texts)

	analyzedAt := e.now().UTC()
	patches := make(map[int64]domain.AIResults, len(items))
	for k, it := range items {
		r := results[k]
		if r == nil {
			res.Failed++
			continue
		}
		patch := domain.AIResults{Sentiment: &domain.SentimentResult{Label: r.Label, Score: r.Score, AnalyzedAt: analyzedAt}}
		if kind == domain.KindPost {
			patch.Summary = e.captionSummary(ctx, it)
		}
		patches[it.id] = patch
		res.Breakdown.Add(r.Label)
		res.Items = append(res.Items, SentimentItem{ID: it.id, TextPreview: preview(it.text), Sentiment: *r})
	}

	if len(patches) > 0 {
		err = e.store.InTx(ctx, func(repo ports.Repository) error {
			for _, it := range items {
				patch, ok := patches[it.id]
				if !ok {
					continue
				}
				var mErr error
				if kind == domain.KindPost {
					mErr = repo.MergePostAIResults(ctx, it.id, patch)
				} else {
					mErr = repo.MergeCommentAIResults(ctx, it.id, patch)
				}
				if mErr != nil {
					return fmt.Errorf("store sentiment for %s %d: %w", kind, it.id, mErr)
				}
			}
			return nil
		})
		if err != nil {
			return SentimentBatchResult{Kind: kind, Items: []SentimentItem{}}, err
		}
	}
	res.Processed = len(patches)

	e.logger.Info("sentiment batch enriched", "kind", kind, "processed", res.Processed, "failed", res.Failed)
	return res, nil
}

// captionSummary summarizes long captions when enabled; failures only log.
func (e *Enricher) captionSummary(ctx context.Context, it textItem) *domain.SummaryResult {
	if !e.cfg.SummarizeLongCaptions || utf8.RuneCountInString(it.text) <= e.cfg.Summary.LongCommentThreshold {
		return nil
	}
	maxLen := e.cfg.Summary.CaptionMaxLength
	summary, err := e.summarizer.Summarize(ctx, it.text, maxLen, minLength(e.cfg.Summary.MinLength, maxLen))
	if err != nil {
		e.logger.Warn("caption summary failed", "post_id", it.id, "error", err)
		return nil
	}
	return &domain.SummaryResult{
		Text:           summary,
		OriginalLength: utf8.RuneCountInString(it.text),
		SummaryLength:  utf8.RuneCountInString(summary),
		GeneratedAt:    e.now().UTC(),
	}
}

// classifyAll returns one classification per text, nil where the collaborator
// failed. A failed or malformed batch call is retried item by item.
func (e *Enricher) classifyAll(ctx context.Context, texts []string) []*domain.Classification {
	out := make([]*domain.Classification, len(texts))
	if len(texts) == 0 {
		return out
	}

	inputs := make([]string, len(texts))
	for k, t := range texts {
		inputs[k] = truncateRunes(t, e.cfg.Sentiment.MaxTextLength)
	}

	batch, err := e.classifier.ClassifyBatch(ctx, inputs)
	if err == nil && len(batch) == len(inputs) {
		for k := range batch {
			c := domain.NewClassification(string(batch[k].Label), batch[k].Score)
			out[k] = &c
		}
		return out
	}
	if err == nil {
		err = fmt.Errorf("classifier returned %d results for %d texts", len(batch), len(inputs))
	}
	e.logger.Warn("batch classification failed, retrying per item", "count", len(inputs), "error", err)

	for k, text := range inputs {
		if ctx.Err() != nil {
			break
		}
		c, err := e.classifier.Classify(ctx, text)
		if err != nil {
			e.logger.Warn("classification failed", "index", k, "error", err)
			continue
		}
		c = domain.NewClassification(string(c.Label), c.Score)
		out[k] = &c
	}
	return out
}

// summarize degrades to the source text when the collaborator rejects it as too short.
func (e *Enricher) summarize(ctx context.Context, text string, maxLen int) (string, bool, error) {
	summary, err := e.summarizer.Summarize(ctx, text, maxLen, minLength(e.cfg.Summary.MinLength, maxLen))
	if errors.Is(err, domain.ErrInputTooShort) {
		return text, false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: summarize: %v", domain.ErrCollaborator, err)
	}
	return summary, true, nil
}

// CommentSummaryResult reports SummarizePostComments.
type CommentSummaryResult struct {
	PostID        int64  `json:"post_id"`
	Summary       string `json:"summary"`
	IsSummarized  bool   `json:"is_summarized"`
	CommentCount  int    `json:"comment_count"`
	TotalComments int    `json:"total_comments"`
	Prioritized   bool   `json:"prioritized"`
}

// SelectTopComments keeps the most-liked half of comments, but never fewer
// than min(10, len). comments must already be ordered by likes descending.
func SelectTopComments(comments []domain.Comment) []domain.Comment {
	n := len(comments)
	top := n / 2
	if floor := min(10, n); floor > top {
		top = floor
	}
	return comments[:top]
}

// SummarizePostComments summarizes a post's comments in one collaborator call
// and stores the result under ai_results.comment_summary.
func (e *Enricher) SummarizePostComments(ctx context.Context, postID int64, prioritizeEngagement bool) (CommentSummaryResult, error) {
	res := CommentSummaryResult{PostID: postID, Prioritized: prioritizeEngagement}

	var comments []domain.Comment
	err := e.store.InTx(ctx, func(repo ports.Repository) error {
		if _, err := repo.GetPost(ctx, postID); err != nil {
			return err
		}
		var err error
		comments, err = repo.CommentsForPost(ctx, postID, 0)
		return err
	})
	if err != nil {
		return res, err
	}

	res.TotalComments = len(comments)
	if len(comments) == 0 {
		res.Summary = "No comments to summarize"
		return res, nil
	}

	selected := comments
	if prioritizeEngagement {
		selected = SelectTopComments(comments)
	} else {
		selected = append([]domain.Comment(nil), comments...)
		sort.Slice(selected, func(i, j int) bool { return selected[i].ID < selected[j].ID })
	}
	res.CommentCount = len(selected)

	lines := make([]string, 0, len(selected))
	for _, c := range selected {
		lines = append(lines, e.cfg.Summary.CommentPrefix+c.Text)
	}
	combined := strings.Join(lines, "\n")

	res.Summary, res.IsSummarized, err = e.summarize(ctx, combined, e.cfg.Summary.TimePeriodMaxLength)
	if err != nil {
		return res, err
	}
	if !res.IsSummarized {
		return res, nil
	}

	patch := domain.AIResults{CommentSummary: &domain.CommentSummary{
		Text:          res.Summary,
		CommentCount:  res.CommentCount,
		TotalComments: res.TotalComments,
		Prioritized:   prioritizeEngagement,
		GeneratedAt:   e.now().UTC(),
	}}
	err = e.store.InTx(ctx, func(repo ports.Repository) error {
		return repo.MergePostAIResults(ctx, postID, patch)
	})
	if err != nil {
		return res, fmt.Errorf("store comment summary: %w", err)
	}
	return res, nil
}

// CommentSummaryOutcome reports SummarizeComment.
type CommentSummaryOutcome struct {
	CommentID      int64  `json:"comment_id"`
	Summary        string `json:"summary"`
	IsSummarized   bool   `json:"is_summarized"`
	OriginalLength int    `json:"original_length"`
	Reason         string `json:"reason,omitempty"`
}

// SummarizeComment summarizes one comment. Comments shorter than the
// configured threshold are returned verbatim without a collaborator call.
func (e *Enricher) SummarizeComment(ctx context.Context, commentID int64) (CommentSummaryOutcome, error) {
	res := CommentSummaryOutcome{CommentID: commentID}

	var comment domain.Comment
	err := e.store.InTx(ctx, func(repo ports.Repository) error {
		var err error
		comment, err = repo.GetComment(ctx, commentID)
		return err
	})
	if err != nil {
		return res, err
	}

	res.OriginalLength = utf8.RuneCountInString(comment.Text)
	if threshold := e.cfg.Summary.LongCommentThreshold; res.OriginalLength < threshold {
		res.Summary = comment.Text
		res.Reason = fmt.Sprintf("comment shorter than %d characters", threshold)
		return res, nil
	}

	res.Summary, res.IsSummarized, err = e.summarize(ctx, comment.Text, e.cfg.Summary.ShortMaxLength)
	if err != nil {
		return res, err
	}
	if !res.IsSummarized {
		res.Reason = "input rejected as too short"
		return res, nil
	}

	patch := domain.AIResults{Summary: &domain.SummaryResult{
		Text:           res.Summary,
		OriginalLength: res.OriginalLength,
		SummaryLength:  utf8.RuneCountInString(res.Summary),
		GeneratedAt:    e.now().UTC(),
	}}
	err = e.store.InTx(ctx, func(repo ports.Repository) error {
		return repo.MergeCommentAIResults(ctx, commentID, patch)
	})
	if err != nil {
		return res, fmt.Errorf("store comment summary: %w", err)
	}
	return res, nil
}

// AnalyzeComment classifies one comment and stores its sentiment.
func (e *Enricher) AnalyzeComment(ctx context.Context, commentID int64) (domain.SentimentResult, error) {
	var comment domain.Comment
	err := e.store.InTx(ctx, func(repo ports.Repository) error {
		var err error
		comment, err = repo.GetComment(ctx, commentID)
		return err
	})
	if err != nil {
		return domain.SentimentResult{}, err
	}
	if strings.TrimSpace(comment.Text) == "" {
		return domain.SentimentResult{}, domain.Invalid("comment %d has no text", commentID)
	}

	c, err := e.classifier.Classify(ctx, truncateRunes(comment.Text, e.cfg.Sentiment.MaxTextLength))
	if err != nil {
		return domain.SentimentResult{}, fmt.Errorf("%w: classify comment %d: %v", domain.ErrCollaborator, commentID, err)
	}
	c = domain.NewClassification(string(c.Label), c.Score)

	result := domain.SentimentResult{Label: c.Label, Score: c.Score, AnalyzedAt: e.now().UTC()}
	err = e.store.InTx(ctx, func(repo ports.Repository) error {
		return repo.MergeCommentAIResults(ctx, commentID, domain.AIResults{Sentiment: &result})
	})
	if err != nil {
		return domain.SentimentResult{}, fmt.Errorf("store comment sentiment: %w", err)
	}
	return result, nil
}

// PostSentimentResult reports AggregatePostSentiment.
type PostSentimentResult struct {
	PostID       int64                  `json:"post_id"`
	Label        domain.SentimentLabel  `json:"overall_label"`
	Score        domain.SignedSentiment `json:"average_score"`
	CommentCount int                    `json:"comment_count"`
	Failed       int                    `json:"failed"`
	Breakdown    domain.Breakdown       `json:"sentiment_breakdown"`
}

// AggregatePostSentiment classifies every comment of a post and stores the
// signed average on the post together with each comment's own result, all in
// one transaction.
func (e *Enricher) AggregatePostSentiment(ctx context.Context, postID int64) (PostSentimentResult, error) {
	res := PostSentimentResult{PostID: postID, Label: domain.Neutral}

	var comments []domain.Comment
	err := e.store.InTx(ctx, func(repo ports.Repository) error {
		if _, err := repo.GetPost(ctx, postID); err != nil {
			return err
		}
		var err error
		comments, err = repo.CommentsForPost(ctx, postID, 0)
		return err
	})
	if err != nil {
		return res, err
	}

	withText := comments[:0:0]
	for _, c := range comments {
		if strings.TrimSpace(c.Text) != "" {
			withText = append(withText, c)
		}
	}
	if len(withText) == 0 {
		return res, nil
	}

	texts := make([]string, len(withText))
	for k, c := range withText {
		texts[k] = c.Text
	}
	results := e.classifyAll(ctx, texts)

	analyzedAt := e.now().UTC()
	var classified []domain.Classification
	commentPatches := make(map[int64]domain.AIResults, len(withText))
	for k, c := range withText {
		r := results[k]
		if r == nil {
			res.Failed++
			continue
		}
		classified = append(classified, *r)
		res.Breakdown.Add(r.Label)
		commentPatches[c.ID] = domain.AIResults{Sentiment: &domain.SentimentResult{Label: r.Label, Score: r.Score, AnalyzedAt: analyzedAt}}
	}
	if len(classified) == 0 {
		return res, fmt.Errorf("%w: no comment of post %d could be classified", domain.ErrCollaborator, postID)
	}

	res.CommentCount = len(classified)
	res.Score = domain.AverageSentiment(classified)
	res.Label = res.Score.Label(e.cfg.Sentiment.PositiveThreshold, e.cfg.Sentiment.NegativeThreshold)

	aggregate := domain.AIResults{CommentSentiment: &domain.CommentSentiment{
		Label:        res.Label,
		Score:        res.Score,
		Breakdown:    res.Breakdown,
		CommentCount: res.CommentCount,
		AnalyzedAt:   analyzedAt,
	}}
	err = e.store.InTx(ctx, func(repo ports.Repository) error {
		if err := repo.MergePostAIResults(ctx, postID, aggregate); err != nil {
			return err
		}
		for _, c := range withText {
			patch, ok := commentPatches[c.ID]
			if !ok {
				continue
			}
			if err := repo.MergeCommentAIResults(ctx, c.ID, patch); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PostSentimentResult{PostID: postID}, fmt.Errorf("store post sentiment: %w", err)
	}

	e.logger.Info("post sentiment aggregated", "post_id", postID, "comments", res.CommentCount, "label", res.Label)
	return res, nil
}

// WindowSummary is the summary of all content in a time window.
type WindowSummary struct {
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	Summary      string    `json:"summary"`
	IsSummarized bool      `json:"is_summarized"`
	PostCount    int       `json:"post_count"`
	CommentCount int       `json:"comment_count"`
}

const windowCommentsPerPost = 3

// SummarizeWindow summarizes captions and the top comments of every post with
// from <= timestamp <= to.
func (e *Enricher) SummarizeWindow(ctx context.Context, from, to time.Time) (WindowSummary, error) {
	res := WindowSummary{From: from, To: to}
	if to.Before(from) {
		return res, domain.Invalid("window end %s precedes start %s", to.Format(time.RFC3339), from.Format(time.RFC3339))
	}

	var lines []string
	err := e.store.InTx(ctx, func(repo ports.Repository) error {
		posts, err := repo.PostsInWindow(ctx, from, to)
		if err != nil {
			return err
		}
		res.PostCount = len(posts)
		for _, p := range posts {
			if p.Caption != "" {
				lines = append(lines, e.cfg.Summary.PostPrefix+p.Caption)
			}
			top, err := repo.CommentsForPost(ctx, p.ID, windowCommentsPerPost)
			if err != nil {
				return err
			}
			for _, c := range top {
				lines = append(lines, e.cfg.Summary.CommentPrefix+c.Text)
				res.CommentCount++
			}
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("load window content: %w", err)
	}

	if res.PostCount == 0 {
		res.Summary = "No posts found in the specified period"
		return res, nil
	}
	if len(lines) == 0 {
		res.Summary = "No text content in the specified period"
		return res, nil
	}

	res.Summary, res.IsSummarized, err = e.summarize(ctx, strings.Join(lines, "\n"), e.cfg.Summary.TimePeriodMaxLength)
	if err != nil {
		return res, err
	}
	return res, nil
}

// WindowSentiment is the report-scale sentiment of a time window.
type WindowSentiment struct {
	From         time.Time             `json:"from"`
	To           time.Time             `json:"to"`
	Label        domain.SentimentLabel `json:"sentiment_label"`
	Score        domain.ReportScore    `json:"sentiment_score"`
	Breakdown    domain.Breakdown      `json:"sentiment_breakdown"`
	PostCount    int                   `json:"post_count"`
	CommentCount int                   `json:"comment_count"`
	Failed       int                   `json:"failed"`
}

// AnalyzeWindowSentiment classifies captions and in-window comments of the
// window's posts and scores them on the -100..100 scale.
func (e *Enricher) AnalyzeWindowSentiment(ctx context.Context, from, to time.Time) (WindowSentiment, error) {
	res := WindowSentiment{From: from, To: to, Label: domain.Neutral}
	if to.Before(from) {
		return res, domain.Invalid("window end %s precedes start %s", to.Format(time.RFC3339), from.Format(time.RFC3339))
	}

	var texts []string
	err := e.store.InTx(ctx, func(repo ports.Repository) error {
		posts, err := repo.PostsInWindow(ctx, from, to)
		if err != nil {
			return err
		}
		res.PostCount = len(posts)
		ids := make([]int64, 0, len(posts))
		for _, p := range posts {
			ids = append(ids, p.ID)
			if strings.TrimSpace(p.Caption) != "" {
				texts = append(texts, p.Caption)
			}
		}
		comments, err := repo.CommentsInWindow(ctx, ids, from, to)
		if err != nil {
			return err
		}
		res.CommentCount = len(comments)
		for _, c := range comments {
			if strings.TrimSpace(c.Text) != "" {
				texts = append(texts, c.Text)
			}
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("load window content: %w", err)
	}
	if len(texts) == 0 {
		return res, nil
	}

	for _, r := range e.classifyAll(ctx, texts) {
		if r == nil {
			res.Failed++
			continue
		}
		res.Breakdown.Add(r.Label)
	}
	if res.Breakdown.Total() == 0 {
		return res, fmt.Errorf("%w: no window content could be classified", domain.ErrCollaborator)
	}

	res.Score = domain.NewReportScore(res.Breakdown)
	res.Label = res.Score.Label(e.cfg.Sentiment.TimePeriodThreshold)
	return res, nil
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewLength {
		return s
	}
	return string([]rune(s)[:previewLength]) + "..."
}

func minLength(configured, maxLen int) int {
	if maxLen > 0 && configured > maxLen {
		return maxLen
	}
	return configured
}
