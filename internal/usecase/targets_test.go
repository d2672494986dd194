package usecase

import (
	"context"
	"errors"
	"testing"

	"SocialInsights/internal/domain"
)

func specs(keys ...string) []domain.TargetSpec {
	out := make([]domain.TargetSpec, 0, len(keys))
	for _, k := range keys {
		out = append(out, domain.TargetSpec{Key: k})
	}
	return out
}

func TestTargetAddSkipsExisting(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	res, err := f.targets.Add(ctx, domain.TargetHashtag, specs("#food", "food", "travel"), AddOptions{})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if res.Added != 2 || res.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	res, err = f.targets.Add(ctx, domain.TargetHashtag, specs("travel", "art"), AddOptions{Priority: 2, Tags: []string{"ksa"}})
	if err != nil {
		t.Fatalf("add again: %v", err)
	}
	if res.Added != 1 || res.Skipped != 1 {
		t.Fatalf("unexpected second result: %+v", res)
	}

	list, err := f.targets.List(ctx, domain.TargetHashtag, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var keys []string
	for _, tg := range list {
		keys = append(keys, tg.Key)
	}
	if len(keys) != 3 || keys[0] != "art" || keys[1] != "food" || keys[2] != "travel" {
		t.Fatalf("unexpected order: %v", keys)
	}
	if list[1].Priority != domain.DefaultPriority {
		t.Fatalf("default priority not applied: %d", list[1].Priority)
	}
}

func TestTargetAddValidates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		kind  domain.TargetKind
		specs []domain.TargetSpec
		opts  AddOptions
	}{
		{"unknown kind", "story", specs("x"), AddOptions{}},
		{"no keys", domain.TargetUser, nil, AddOptions{}},
		{"blank key", domain.TargetUser, specs("  "), AddOptions{}},
		{"priority too high", domain.TargetUser, specs("nasa"), AddOptions{Priority: 11}},
		{"negative priority", domain.TargetUser, specs("nasa"), AddOptions{Priority: -1}},
	}
	for _, tc := range cases {
		if _, err := f.targets.Add(ctx, tc.kind, tc.specs, tc.opts); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}
}

func TestTargetLifecycle(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.targets.Add(ctx, domain.TargetUser, specs("nasa", "esa"), AddOptions{}); err != nil {
		t.Fatalf("add: %v", err)
	}

	prio := 1
	notes := "agency"
	updated, err := f.targets.Update(ctx, domain.TargetUser, "esa", domain.TargetPatch{Priority: &prio, Notes: &notes})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Priority != 1 || updated.Notes != "agency" || !updated.IsActive {
		t.Fatalf("unexpected update: %+v", updated)
	}

	if _, err := f.targets.Deactivate(ctx, domain.TargetUser, "nasa"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, err := f.targets.GetActive(ctx, domain.TargetUser)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(active) != 1 || active[0].Key != "esa" {
		t.Fatalf("deactivated target still active: %+v", active)
	}
	all, err := f.targets.List(ctx, domain.TargetUser, true)
	if err != nil || len(all) != 2 {
		t.Fatalf("inactive target lost: %v %+v", err, all)
	}

	if _, err := f.targets.Activate(ctx, domain.TargetUser, "nasa"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := f.targets.Delete(ctx, domain.TargetUser, "esa"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.targets.Delete(ctx, domain.TargetUser, "esa"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if _, err := f.targets.Update(ctx, domain.TargetUser, "ghost", domain.TargetPatch{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}

	byKind, err := f.targets.ListAll(ctx, false)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(byKind[domain.TargetUser]) != 1 || len(byKind[domain.TargetPlace]) != 0 {
		t.Fatalf("unexpected grouping: %+v", byKind)
	}
}
