package collect

import (
	"context"
	"errors"
	"fmt"

	"SocialInsights/internal/domain"
)

// ErrNoStrategy is returned by Resolve for target kinds nothing can collect.
var ErrNoStrategy = errors.New("no collection strategy")

// Request carries the natural keys of the targets to collect in one call.
type Request struct {
	Keys  []string
	Limit int
}

// Batch is the raw post set a strategy produced, tagged with its provenance.
type Batch struct {
	Records []domain.RawRecord
	Source  string
}

// Strategy collects posts for one target kind.
type Strategy interface {
	Kind() domain.TargetKind
	Collect(ctx context.Context, req Request) (Batch, error)
}

// Registry keeps a mapping from target kinds to their strategies.
type Registry struct {
	strategies map[domain.TargetKind]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[domain.TargetKind]Strategy{}}
}

// Register adds or replaces the strategy for its kind.
func (r *Registry) Register(s Strategy) {
	if r.strategies == nil {
		r.strategies = map[domain.TargetKind]Strategy{}
	}
	r.strategies[s.Kind()] = s
}

// Resolve returns the strategy for kind or ErrNoStrategy.
func (r *Registry) Resolve(kind domain.TargetKind) (Strategy, error) {
	if s, ok := r.strategies[kind]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w for %s targets", ErrNoStrategy, kind)
}

// Kinds lists the registered kinds in collection order.
func (r *Registry) Kinds() []domain.TargetKind {
	var out []domain.TargetKind
	for _, k := range domain.TargetKinds {
		if _, ok := r.strategies[k]; ok {
			out = append(out, k)
		}
	}
	return out
}
