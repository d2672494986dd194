package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"SocialInsights/internal/config"
	"SocialInsights/internal/domain"
	"SocialInsights/internal/ports"
)

// Client runs Instagram scraping actors synchronously and returns their
// dataset items.
type Client struct {
	baseURL string
	token   string
	actors  config.ActorConfig
	retry   config.RetryConfig
	http    *http.Client
	logger  *slog.Logger
}

var _ ports.Scraper = (*Client)(nil)

// NewClient builds the scraper adapter.
func NewClient(cfg config.ApifyConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		actors:  cfg.Actors,
		retry:   cfg.Retry,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type hashtagInput struct {
	Hashtags      []string `json:"hashtags"`
	ResultsType   string   `json:"resultsType"`
	ResultsLimit  int      `json:"resultsLimit"`
	KeywordSearch bool     `json:"keywordSearch"`
}

type profileInput struct {
	Usernames           []string `json:"usernames"`
	IncludeAboutSection bool     `json:"includeAboutSection"`
}

type taggedInput struct {
	Username     []string `json:"username"`
	ResultsLimit int      `json:"resultsLimit"`
}

type commentInput struct {
	DirectURLs            []string `json:"directUrls"`
	ResultsLimit          int      `json:"resultsLimit"`
	IsNewestComments      bool     `json:"isNewestComments"`
	IncludeNestedComments bool     `json:"includeNestedComments"`
}

type searchInput struct {
	Search                            string `json:"search"`
	SearchType                        string `json:"searchType"`
	SearchLimit                       int    `json:"searchLimit"`
	EnhanceUserSearchWithFacebookPage bool   `json:"enhanceUserSearchWithFacebookPage"`
}

type statsInput struct {
	Hashtags           []string `json:"hashtags"`
	IncludeLatestPosts bool     `json:"includeLatestPosts"`
	IncludeTopPosts    bool     `json:"includeTopPosts"`
}

// FetchByHashtag returns recent posts for each hashtag.
func (c *Client) FetchByHashtag(ctx context.Context, tags []string, limit int) ([]domain.RawRecord, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	return c.run(ctx, c.actors.Hashtag, hashtagInput{Hashtags: tags, ResultsType: "posts", ResultsLimit: limit})
}

// FetchByUser returns profiles with their latest posts embedded.
func (c *Client) FetchByUser(ctx context.Context, usernames []string) ([]domain.RawRecord, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	return c.run(ctx, c.actors.Profile, profileInput{Usernames: usernames})
}

// FetchMentions returns posts in which the given accounts are tagged.
func (c *Client) FetchMentions(ctx context.Context, terms []string, limit int) ([]domain.RawRecord, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	return c.run(ctx, c.actors.Tagged, taggedInput{Username: terms, ResultsLimit: limit})
}

// FetchComments returns up to limit comments per post URL.
func (c *Client) FetchComments(ctx context.Context, postURLs []string, limit int) ([]domain.RawRecord, error) {
	if len(postURLs) == 0 {
		return nil, nil
	}
	return c.run(ctx, c.actors.Comment, commentInput{DirectURLs: postURLs, ResultsLimit: limit})
}

// Search looks up users, hashtags or places matching term.
func (c *Client) Search(ctx context.Context, term string, kind domain.SearchKind, limit int) ([]domain.RawRecord, error) {
	switch kind {
	case domain.SearchUser, domain.SearchHashtag, domain.SearchPlace:
	default:
		return nil, domain.Invalid("unknown search type %q", kind)
	}
	return c.run(ctx, c.actors.Search, searchInput{Search: term, SearchType: string(kind), SearchLimit: limit})
}

// HashtagStats returns post counts and related hashtags.
func (c *Client) HashtagStats(ctx context.Context, tags []string) ([]domain.RawRecord, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	return c.run(ctx, c.actors.HashtagStats, statsInput{Hashtags: tags})
}

// SupportsIncremental is false: the actors used here accept no since-parameter.
func (c *Client) SupportsIncremental() bool { return false }

// actorPath turns "owner/name" into the "owner~name" form the API expects.
func actorPath(actor string) string {
	return strings.ReplaceAll(actor, "/", "~")
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if c.retry.InitialInterval > 0 {
		exp.InitialInterval = c.retry.InitialInterval
	}
	if c.retry.MaxInterval > 0 {
		exp.MaxInterval = c.retry.MaxInterval
	}
	exp.MaxElapsedTime = 0
	attempts := c.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

func (c *Client) run(ctx context.Context, actor string, input any) ([]domain.RawRecord, error) {
	if c.token == "" {
		return nil, fmt.Errorf("%w: apify token is not configured", domain.ErrCollaborator)
	}
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal %s input: %w", actor, err)
	}

	start := time.Now()
	op := func() ([]domain.RawRecord, error) {
		return c.call(ctx, actor, body)
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("actor call failed, retrying", "actor", actor, "wait", wait, "error", err)
	}
	items, err := backoff.RetryNotifyWithData(op, c.policy(ctx), notify)
	if err != nil {
		c.logger.Error("actor call failed", "actor", actor, "error", err)
		return nil, fmt.Errorf("%w: actor %s: %v", domain.ErrCollaborator, actor, err)
	}

	c.logger.Info("actor run finished", "actor", actor, "items", len(items), "took", time.Since(start).Round(time.Millisecond))
	return items, nil
}

func (c *Client) call(ctx context.Context, actor string, body []byte) ([]domain.RawRecord, error) {
	endpoint := fmt.Sprintf("%s/acts/%s/run-sync-get-dataset-items", c.baseURL, actorPath(actor))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var items []map[string]any
	if err := dec.Decode(&items); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode dataset items: %w", err)
	}

	out := make([]domain.RawRecord, 0, len(items))
	for _, it := range items {
		out = append(out, domain.RawRecord(it))
	}
	return out, nil
}
