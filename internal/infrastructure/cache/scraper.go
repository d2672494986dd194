package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"SocialInsights/internal/config"
	"SocialInsights/internal/domain"
	"SocialInsights/internal/ports"
)

// Scraper caches the discovery lookups of another scraper in Redis. Only
// Search and HashtagStats are cached; post and comment fetches always reach
// the provider.
type Scraper struct {
	ports.Scraper
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.Scraper = (*Scraper)(nil)

// NewScraper wraps next with a Redis cache built from cfg.
func NewScraper(next ports.Scraper, cfg config.CacheConfig, logger *slog.Logger) *Scraper {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newScraper(next, client, cfg, logger)
}

func newScraper(next ports.Scraper, client *redis.Client, cfg config.CacheConfig, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "socialinsights:"
	}
	return &Scraper{Scraper: next, client: client, prefix: prefix, ttl: cfg.TTL, logger: logger}
}

// Ping checks the Redis connection.
func (s *Scraper) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (s *Scraper) Close() error {
	return s.client.Close()
}

func (s *Scraper) searchKey(term string, kind domain.SearchKind, limit int) string {
	return fmt.Sprintf("%ssearch:%s:%d:%s", s.prefix, kind, limit, strings.ToLower(strings.TrimSpace(term)))
}

func (s *Scraper) statsKey(tags []string) string {
	sorted := make([]string, len(tags))
	for i, t := range tags {
		sorted[i] = strings.ToLower(t)
	}
	sort.Strings(sorted)
	return fmt.Sprintf("%sstats:%s", s.prefix, strings.Join(sorted, ","))
}

// Search serves repeated lookups from the cache.
func (s *Scraper) Search(ctx context.Context, term string, kind domain.SearchKind, limit int) ([]domain.RawRecord, error) {
	return s.cached(ctx, s.searchKey(term, kind, limit), func() ([]domain.RawRecord, error) {
		return s.Scraper.Search(ctx, term, kind, limit)
	})
}

// HashtagStats serves repeated lookups from the cache.
func (s *Scraper) HashtagStats(ctx context.Context, tags []string) ([]domain.RawRecord, error) {
	if len(tags) == 0 {
		return s.Scraper.HashtagStats(ctx, tags)
	}
	return s.cached(ctx, s.statsKey(tags), func() ([]domain.RawRecord, error) {
		return s.Scraper.HashtagStats(ctx, tags)
	})
}

// cached returns the stored value for key or calls load and stores its
// result. Redis failures degrade to calling load.
func (s *Scraper) cached(ctx context.Context, key string, load func() ([]domain.RawRecord, error)) ([]domain.RawRecord, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		items, decErr := decode(data)
		if decErr == nil {
			s.logger.Debug("cache hit", "key", key)
			return items, nil
		}
		s.logger.Warn("cache entry unreadable", "key", key, "error", decErr)
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("cache read failed", "key", key, "error", err)
	}

	items, err := load()
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(items)
	if err != nil {
		return items, nil
	}
	if err := s.client.Set(ctx, key, encoded, s.ttl).Err(); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return items, nil
}

// decode keeps numbers as json.Number so large provider ids survive.
func decode(data []byte) ([]domain.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	out := make([]domain.RawRecord, 0, len(raw))
	for _, r := range raw {
		out = append(out, domain.RawRecord(r))
	}
	return out, nil
}
