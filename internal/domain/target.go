package domain

import (
	"sort"
	"strings"
	"time"
)

// TargetKind identifies one of the three monitoring target variants.
type TargetKind string

const (
	TargetHashtag TargetKind = "hashtag"
	TargetUser    TargetKind = "user"
	TargetPlace   TargetKind = "place"
)

// TargetKinds lists every kind in collection order.
var TargetKinds = []TargetKind{TargetHashtag, TargetUser, TargetPlace}

// ParseTargetKind accepts singular or plural kind names.
func ParseTargetKind(s string) (TargetKind, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s") {
	case "hashtag":
		return TargetHashtag, nil
	case "user":
		return TargetUser, nil
	case "place":
		return TargetPlace, nil
	default:
		return "", Invalid("unknown target kind %q", s)
	}
}

const (
	MinPriority     = 1
	MaxPriority     = 10
	DefaultPriority = 5
)

// Target is a hashtag, user or place under monitoring. Key holds the natural
// key of the variant: hashtag text without '#', username, or place id.
type Target struct {
	Kind          TargetKind
	Key           string
	DisplayName   string
	FollowerCount *int
	IsVerified    bool
	PostCount     *int
	City          string
	Country       string
	Priority      int
	IsActive      bool
	AddedAt       time.Time
	LastScrapedAt *time.Time
	Notes         string
	Tags          []string
}

// TargetSpec carries the identity and optional metadata of a target to add.
type TargetSpec struct {
	Key           string `json:"key"`
	DisplayName   string `json:"display_name,omitempty"`
	FollowerCount *int   `json:"follower_count,omitempty"`
	IsVerified    bool   `json:"is_verified,omitempty"`
	PostCount     *int   `json:"post_count,omitempty"`
	City          string `json:"city,omitempty"`
	Country       string `json:"country,omitempty"`
}

// NormalizeTargetKey trims the key and strips a leading '#' from hashtags.
func NormalizeTargetKey(kind TargetKind, key string) string {
	key = strings.TrimSpace(key)
	if kind == TargetHashtag {
		key = strings.TrimLeft(key, "#")
	}
	return key
}

// TargetPatch lists the fields an update may change; nil means unchanged.
type TargetPatch struct {
	Priority      *int      `json:"priority,omitempty"`
	IsActive      *bool     `json:"is_active,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	Tags          *[]string `json:"tags,omitempty"`
	DisplayName   *string   `json:"display_name,omitempty"`
	FollowerCount *int      `json:"follower_count,omitempty"`
	IsVerified    *bool     `json:"is_verified,omitempty"`
	PostCount     *int      `json:"post_count,omitempty"`
	City          *string   `json:"city,omitempty"`
	Country       *string   `json:"country,omitempty"`
}

// Apply returns t with the patch applied.
func (p TargetPatch) Apply(t Target) Target {
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.Tags != nil {
		t.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.DisplayName != nil {
		t.DisplayName = *p.DisplayName
	}
	if p.FollowerCount != nil {
		v := *p.FollowerCount
		t.FollowerCount = &v
	}
	if p.IsVerified != nil {
		t.IsVerified = *p.IsVerified
	}
	if p.PostCount != nil {
		v := *p.PostCount
		t.PostCount = &v
	}
	if p.City != nil {
		t.City = *p.City
	}
	if p.Country != nil {
		t.Country = *p.Country
	}
	return t
}

// SortTargets orders by priority ascending, then key ascending.
func SortTargets(ts []Target) {
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].Priority != ts[j].Priority {
			return ts[i].Priority < ts[j].Priority
		}
		return ts[i].Key < ts[j].Key
	})
}

// TargetKeys returns the natural keys of ts in order.
func TargetKeys(ts []Target) []string {
	keys := make([]string, 0, len(ts))
	for _, t := range ts {
		keys = append(keys, t.Key)
	}
	return keys
}
