package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// RawRecord is one provider item as decoded from JSON. Accessors never fail:
// absent or mistyped fields yield zero values.
type RawRecord map[string]any

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// String returns the field as text; numbers are formatted without exponent.
func (r RawRecord) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// Int returns the field as an integer, 0 when absent or unparsable.
func (r RawRecord) Int(key string) int {
	switch v := r[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
		if f, err := v.Float64(); err == nil {
			return int(f)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}

// Bool returns the field as a boolean.
func (r RawRecord) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Time parses the field as a timestamp; unparsable values yield nil.
func (r RawRecord) Time(key string) *time.Time {
	switch v := r[key].(type) {
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				return &t
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return unixTime(n)
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return unixTime(n)
		}
	case float64:
		return unixTime(int64(v))
	}
	return nil
}

// Records returns a nested list of objects.
func (r RawRecord) Records(key string) []RawRecord {
	switch v := r[key].(type) {
	case []RawRecord:
		return v
	case []map[string]any:
		out := make([]RawRecord, 0, len(v))
		for _, m := range v {
			out = append(out, RawRecord(m))
		}
		return out
	case []any:
		out := make([]RawRecord, 0, len(v))
		for _, item := range v {
			switch m := item.(type) {
			case map[string]any:
				out = append(out, RawRecord(m))
			case RawRecord:
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func unixTime(n int64) *time.Time {
	if n <= 0 {
		return nil
	}
	var t time.Time
	if n > 1_000_000_000_000 {
		t = time.UnixMilli(n).UTC()
	} else {
		t = time.Unix(n, 0).UTC()
	}
	return &t
}
