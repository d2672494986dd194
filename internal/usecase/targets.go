package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"SocialInsights/internal/domain"
	"SocialInsights/internal/ports"
)

// AddOptions carries the lifecycle fields shared by every target of one Add call.
type AddOptions struct {
	Priority int      `json:"priority"`
	Notes    string   `json:"notes,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// AddResult reports an Add call.
type AddResult struct {
	Kind    domain.TargetKind `json:"kind"`
	Added   int64             `json:"added"`
	Skipped int64             `json:"skipped"`
}

// TargetManager owns the lifecycle of monitoring targets.
type TargetManager struct {
	store  ports.Store
	logger *slog.Logger
}

// NewTargetManager builds the lifecycle manager.
func NewTargetManager(store ports.Store, logger *slog.Logger) *TargetManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TargetManager{store: store, logger: logger}
}

func validatePriority(p int) error {
	if p < domain.MinPriority || p > domain.MaxPriority {
		return domain.Invalid("priority %d out of range %d..%d", p, domain.MinPriority, domain.MaxPriority)
	}
	return nil
}

// Add inserts new targets and leaves existing keys untouched.
func (m *TargetManager) Add(ctx context.Context, kind domain.TargetKind, specs []domain.TargetSpec, opts AddOptions) (AddResult, error) {
	res := AddResult{Kind: kind}
	if _, err := domain.ParseTargetKind(string(kind)); err != nil {
		return res, err
	}
	if len(specs) == 0 {
		return res, domain.Invalid("no %s targets given", kind)
	}
	if opts.Priority == 0 {
		opts.Priority = domain.DefaultPriority
	}
	if err := validatePriority(opts.Priority); err != nil {
		return res, err
	}

	seen := make(map[string]bool, len(specs))
	targets := make([]domain.Target, 0, len(specs))
	for _, s := range specs {
		key := domain.NormalizeTargetKey(kind, s.Key)
		if key == "" {
			return res, domain.Invalid("empty %s key", kind)
		}
		if seen[key] {
			res.Skipped++
			continue
		}
		seen[key] = true
		targets = append(targets, domain.Target{
			Kind:          kind,
			Key:           key,
			DisplayName:   s.DisplayName,
			FollowerCount: s.FollowerCount,
			IsVerified:    s.IsVerified,
			PostCount:     s.PostCount,
			City:          s.City,
			Country:       s.Country,
			Priority:      opts.Priority,
			IsActive:      true,
			Notes:         opts.Notes,
			Tags:          append([]string(nil), opts.Tags...),
		})
	}

	err := m.store.InTx(ctx, func(repo ports.Repository) error {
		added, err := repo.InsertTargets(ctx, kind, targets)
		res.Added = added
		return err
	})
	if err != nil {
		return AddResult{Kind: kind}, fmt.Errorf("add %s targets: %w", kind, err)
	}
	res.Skipped += int64(len(targets)) - res.Added

	m.logger.Info("targets added", "kind", kind, "added", res.Added, "skipped", res.Skipped)
	return res, nil
}

// Update applies a partial change to one target.
func (m *TargetManager) Update(ctx context.Context, kind domain.TargetKind, key string, patch domain.TargetPatch) (domain.Target, error) {
	if _, err := domain.ParseTargetKind(string(kind)); err != nil {
		return domain.Target{}, err
	}
	if patch.Priority != nil {
		if err := validatePriority(*patch.Priority); err != nil {
			return domain.Target{}, err
		}
	}
	key = domain.NormalizeTargetKey(kind, key)

	var updated domain.Target
	err := m.store.InTx(ctx, func(repo ports.Repository) error {
		current, err := repo.GetTarget(ctx, kind, key)
		if err != nil {
			return err
		}
		updated = patch.Apply(current)
		return repo.SaveTarget(ctx, updated)
	})
	if err != nil {
		return domain.Target{}, err
	}
	return updated, nil
}

// Activate marks a target for collection.
func (m *TargetManager) Activate(ctx context.Context, kind domain.TargetKind, key string) (domain.Target, error) {
	active := true
	return m.Update(ctx, kind, key, domain.TargetPatch{IsActive: &active})
}

// Deactivate keeps a target and its history but stops collecting it.
func (m *TargetManager) Deactivate(ctx context.Context, kind domain.TargetKind, key string) (domain.Target, error) {
	active := false
	return m.Update(ctx, kind, key, domain.TargetPatch{IsActive: &active})
}

// Delete removes a target permanently.
func (m *TargetManager) Delete(ctx context.Context, kind domain.TargetKind, key string) error {
	if _, err := domain.ParseTargetKind(string(kind)); err != nil {
		return err
	}
	key = domain.NormalizeTargetKey(kind, key)
	err := m.store.InTx(ctx, func(repo ports.Repository) error {
		return repo.DeleteTarget(ctx, kind, key)
	})
	if err == nil {
		m.logger.Info("target deleted", "kind", kind, "key", key)
	}
	return err
}

// List returns targets ordered by priority, then key.
func (m *TargetManager) List(ctx context.Context, kind domain.TargetKind, includeInactive bool) ([]domain.Target, error) {
	if _, err := domain.ParseTargetKind(string(kind)); err != nil {
		return nil, err
	}
	var out []domain.Target
	err := m.store.InTx(ctx, func(repo ports.Repository) error {
		var err error
		out, err = repo.ListTargets(ctx, kind, includeInactive)
		return err
	})
	return out, err
}

// GetActive is the read path for collection: active targets by priority.
func (m *TargetManager) GetActive(ctx context.Context, kind domain.TargetKind) ([]domain.Target, error) {
	return m.List(ctx, kind, false)
}

// ListAll returns the targets of every kind.
func (m *TargetManager) ListAll(ctx context.Context, includeInactive bool) (map[domain.TargetKind][]domain.Target, error) {
	out := make(map[domain.TargetKind][]domain.Target, len(domain.TargetKinds))
	err := m.store.InTx(ctx, func(repo ports.Repository) error {
		for _, kind := range domain.TargetKinds {
			ts, err := repo.ListTargets(ctx, kind, includeInactive)
			if err != nil {
				return err
			}
			out[kind] = ts
		}
		return nil
	})
	return out, err
}
