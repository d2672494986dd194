package domain

import (
	"math"
	"strings"
	"time"
)

// SentimentLabel is the 3-way classification shared by every sentiment result.
type SentimentLabel string

const (
	Positive SentimentLabel = "positive"
	Neutral  SentimentLabel = "neutral"
	Negative SentimentLabel = "negative"
)

// NormalizeLabel collapses model-specific labels ("Very Negative", "LABEL_positive")
// onto the 3-way scale.
func NormalizeLabel(raw string) SentimentLabel {
	l := strings.ToLower(raw)
	switch {
	case strings.Contains(l, "negative"):
		return Negative
	case strings.Contains(l, "positive"):
		return Positive
	default:
		return Neutral
	}
}

// Weight maps a label to +1, 0 or -1.
func (l SentimentLabel) Weight() float64 {
	switch l {
	case Positive:
		return 1
	case Negative:
		return -1
	default:
		return 0
	}
}

// Classification is one result returned by a classifier.
type Classification struct {
	Label SentimentLabel `json:"label"`
	Score float64        `json:"score"`
}

// NewClassification normalizes the label and rounds the confidence to 4 decimals.
func NewClassification(rawLabel string, score float64) Classification {
	return Classification{Label: NormalizeLabel(rawLabel), Score: roundTo(score, 4)}
}

// Breakdown counts results per label.
type Breakdown struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// Add counts one label.
func (b *Breakdown) Add(l SentimentLabel) {
	switch l {
	case Positive:
		b.Positive++
	case Negative:
		b.Negative++
	default:
		b.Neutral++
	}
}

// Total is the number of counted labels.
func (b Breakdown) Total() int {
	return b.Positive + b.Neutral + b.Negative
}

// SignedSentiment is the post-level average of weighted confidences, in [-1, 1].
type SignedSentiment float64

// AverageSentiment computes Σ(weight*score)/N over the classifications.
func AverageSentiment(results []Classification) SignedSentiment {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Label.Weight() * r.Score
	}
	return SignedSentiment(roundTo(sum/float64(len(results)), 4))
}

// Label applies the configured bounds; both comparisons are strict.
func (s SignedSentiment) Label(positiveThreshold, negativeThreshold float64) SentimentLabel {
	switch {
	case float64(s) > positiveThreshold:
		return Positive
	case float64(s) < negativeThreshold:
		return Negative
	default:
		return Neutral
	}
}

// ReportScore is the window-level score on the -100..+100 integer scale.
type ReportScore int

// NewReportScore computes round((positive-negative)/total*100).
func NewReportScore(b Breakdown) ReportScore {
	total := b.Total()
	if total == 0 {
		return 0
	}
	return ReportScore(math.Round(float64(b.Positive-b.Negative) / float64(total) * 100))
}

// Label applies a symmetric percentage threshold.
func (s ReportScore) Label(threshold int) SentimentLabel {
	switch {
	case int(s) > threshold:
		return Positive
	case int(s) < -threshold:
		return Negative
	default:
		return Neutral
	}
}

// SentimentResult is stored under ai_results.sentiment.
type SentimentResult struct {
	Label      SentimentLabel `json:"label"`
	Score      float64        `json:"score"`
	AnalyzedAt time.Time      `json:"analyzed_at"`
}

// CommentSentiment is the aggregate over a post's comments, stored under
// ai_results.comment_sentiment.
type CommentSentiment struct {
	Label        SentimentLabel  `json:"label"`
	Score        SignedSentiment `json:"score"`
	Breakdown    Breakdown       `json:"breakdown"`
	CommentCount int             `json:"comment_count"`
	AnalyzedAt   time.Time       `json:"analyzed_at"`
}

// SummaryResult is stored under ai_results.summary.
type SummaryResult struct {
	Text           string    `json:"text"`
	OriginalLength int       `json:"original_length"`
	SummaryLength  int       `json:"summary_length"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// CommentSummary is stored on a post under ai_results.comment_summary.
type CommentSummary struct {
	Text          string    `json:"text"`
	CommentCount  int       `json:"comment_count"`
	TotalComments int       `json:"total_comments"`
	Prioritized   bool      `json:"prioritized"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// AIResults is the additive result document persisted with posts and comments.
// Writers set only their own field; Merge keeps everything else.
type AIResults struct {
	Sentiment        *SentimentResult  `json:"sentiment,omitempty"`
	CommentSentiment *CommentSentiment `json:"comment_sentiment,omitempty"`
	Summary          *SummaryResult    `json:"summary,omitempty"`
	CommentSummary   *CommentSummary   `json:"comment_summary,omitempty"`
	Topics           []string          `json:"topics,omitempty"`
}

// HasSentiment reports whether a sentiment result is present.
func (a *AIResults) HasSentiment() bool {
	return a != nil && a.Sentiment != nil
}

// Merge returns a copy of a with every field set in patch overwritten.
func (a *AIResults) Merge(patch AIResults) *AIResults {
	var out AIResults
	if a != nil {
		out = *a
	}
	if patch.Sentiment != nil {
		out.Sentiment = patch.Sentiment
	}
	if patch.CommentSentiment != nil {
		out.CommentSentiment = patch.CommentSentiment
	}
	if patch.Summary != nil {
		out.Summary = patch.Summary
	}
	if patch.CommentSummary != nil {
		out.CommentSummary = patch.CommentSummary
	}
	if patch.Topics != nil {
		out.Topics = patch.Topics
	}
	return &out
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
