package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"SocialInsights/internal/domain"
)

// targetTable maps one target kind onto its table. Columns a kind lacks are
// selected as typed constants so every kind scans the same way.
type targetTable struct {
	name        string
	key         string
	displayName string
	followers   string
	verified    string
	postCount   string
	city        string
	country     string
}

var targetTables = map[domain.TargetKind]targetTable{
	domain.TargetHashtag: {
		name: "target_hashtags", key: "hashtag",
		displayName: "''", followers: "NULL::integer", verified: "FALSE",
		postCount: "post_count", city: "''", country: "''",
	},
	domain.TargetUser: {
		name: "target_users", key: "username",
		displayName: "COALESCE(display_name, '')", followers: "follower_count", verified: "is_verified",
		postCount: "NULL::integer", city: "''", country: "''",
	},
	domain.TargetPlace: {
		name: "target_places", key: "place_id",
		displayName: "place_name", followers: "NULL::integer", verified: "FALSE",
		postCount: "post_count", city: "COALESCE(city, '')", country: "COALESCE(country, '')",
	},
}

func tableFor(kind domain.TargetKind) (targetTable, error) {
	t, ok := targetTables[kind]
	if !ok {
		return targetTable{}, domain.Invalid("unknown target kind %q", kind)
	}
	return t, nil
}

func (t targetTable) columns() []string {
	return []string{
		t.key, t.displayName, t.followers, t.verified, t.postCount, t.city, t.country,
		"priority", "is_active", "added_at", "last_scraped_at", "COALESCE(notes, '')", "tags",
	}
}

// values returns the kind-specific writable columns of target.
func (t targetTable) values(target domain.Target) map[string]any {
	switch target.Kind {
	case domain.TargetUser:
		return map[string]any{
			"display_name":   nullIfEmpty(target.DisplayName),
			"follower_count": target.FollowerCount,
			"is_verified":    target.IsVerified,
		}
	case domain.TargetPlace:
		name := target.DisplayName
		if name == "" {
			name = target.Key
		}
		return map[string]any{
			"place_name": name,
			"city":       nullIfEmpty(target.City),
			"country":    nullIfEmpty(target.Country),
			"post_count": target.PostCount,
		}
	default:
		return map[string]any{"post_count": target.PostCount}
	}
}

func scanTarget(kind domain.TargetKind) func(pgx.Row) (domain.Target, error) {
	return func(row pgx.Row) (domain.Target, error) {
		t := domain.Target{Kind: kind}
		var tags []byte
		err := row.Scan(&t.Key, &t.DisplayName, &t.FollowerCount, &t.IsVerified, &t.PostCount,
			&t.City, &t.Country, &t.Priority, &t.IsActive, &t.AddedAt, &t.LastScrapedAt, &t.Notes, &tags)
		if err != nil {
			return domain.Target{}, err
		}
		if len(tags) > 0 && string(tags) != "null" {
			if err := json.Unmarshal(tags, &t.Tags); err != nil {
				return domain.Target{}, fmt.Errorf("decode tags: %w", err)
			}
		}
		return t, nil
	}
}

func encodeTags(tags []string) (*string, error) {
	if tags == nil {
		return nil, nil
	}
	return encodeJSON(tags)
}

func (r *repo) InsertTargets(ctx context.Context, kind domain.TargetKind, targets []domain.Target) (int64, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, err
	}

	var inserted int64
	for _, target := range targets {
		target.Kind = kind
		tags, err := encodeTags(target.Tags)
		if err != nil {
			return inserted, fmt.Errorf("encode tags: %w", err)
		}
		values := table.values(target)
		values[table.key] = target.Key
		values["priority"] = target.Priority
		values["is_active"] = target.IsActive
		values["notes"] = nullIfEmpty(target.Notes)
		values["tags"] = tags
		if !target.AddedAt.IsZero() {
			values["added_at"] = target.AddedAt
		}

		tag, err := r.exec(ctx, r.psql.Insert(table.name).SetMap(values).
			Suffix(fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", table.key)))
		if err != nil {
			return inserted, fmt.Errorf("insert %s: %w", table.name, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

func (r *repo) GetTarget(ctx context.Context, kind domain.TargetKind, key string) (domain.Target, error) {
	table, err := tableFor(kind)
	if err != nil {
		return domain.Target{}, err
	}
	row, err := r.queryRow(ctx, r.psql.Select(table.columns()...).From(table.name).Where(sq.Eq{table.key: key}))
	if err != nil {
		return domain.Target{}, err
	}
	t, err := scanTarget(kind)(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Target{}, domain.NotFound(string(kind)+" target", key)
	}
	if err != nil {
		return domain.Target{}, fmt.Errorf("get %s target %q: %w", kind, key, err)
	}
	return t, nil
}

func (r *repo) SaveTarget(ctx context.Context, target domain.Target) error {
	table, err := tableFor(target.Kind)
	if err != nil {
		return err
	}
	tags, err := encodeTags(target.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	values := table.values(target)
	values["priority"] = target.Priority
	values["is_active"] = target.IsActive
	values["notes"] = nullIfEmpty(target.Notes)
	values["tags"] = tags
	values["last_scraped_at"] = target.LastScrapedAt

	tag, err := r.exec(ctx, r.psql.Update(table.name).SetMap(values).Where(sq.Eq{table.key: target.Key}))
	if err != nil {
		return fmt.Errorf("update %s: %w", table.name, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(string(target.Kind)+" target", target.Key)
	}
	return nil
}

func (r *repo) DeleteTarget(ctx context.Context, kind domain.TargetKind, key string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	tag, err := r.exec(ctx, r.psql.Delete(table.name).Where(sq.Eq{table.key: key}))
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table.name, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound(string(kind)+" target", key)
	}
	return nil
}

func (r *repo) ListTargets(ctx context.Context, kind domain.TargetKind, includeInactive bool) ([]domain.Target, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	b := r.psql.Select(table.columns()...).From(table.name).
		OrderBy("priority", table.key+` COLLATE "C"`)
	if !includeInactive {
		b = b.Where(sq.Eq{"is_active": true})
	}
	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table.name, err)
	}
	return collect(rows, scanTarget(kind))
}

func (r *repo) TouchTargets(ctx context.Context, kind domain.TargetKind, keys []string, at time.Time) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	_, err = r.exec(ctx, r.psql.Update(table.name).
		Set("last_scraped_at", at.UTC()).
		Where(sq.Eq{table.key: keys}))
	if err != nil {
		return fmt.Errorf("touch %s: %w", table.name, err)
	}
	return nil
}
