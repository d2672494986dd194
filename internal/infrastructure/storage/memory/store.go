// Package memory is an in-process Record Store with the same uniqueness,
// cascade and transaction semantics as the Postgres store.
package memory

import (
	"context"
	"sync"
	"time"

	"SocialInsights/internal/domain"
	"SocialInsights/internal/ports"
)

type reportKey struct{ year, week int }

type state struct {
	posts        map[int64]domain.Post
	postByExt    map[string]int64
	comments     map[int64]domain.Comment
	commentByExt map[string]int64
	targets      map[domain.TargetKind]map[string]domain.Target
	reports      map[reportKey]domain.WeeklyReport
	schedules    map[string]domain.JobSchedule
	executions   []domain.JobExecution

	nextPost, nextComment, nextReport, nextExec int64
}

func newState() *state {
	st := &state{
		posts:        map[int64]domain.Post{},
		postByExt:    map[string]int64{},
		comments:     map[int64]domain.Comment{},
		commentByExt: map[string]int64{},
		targets:      map[domain.TargetKind]map[string]domain.Target{},
		reports:      map[reportKey]domain.WeeklyReport{},
		schedules:    map[string]domain.JobSchedule{},
	}
	for _, k := range domain.TargetKinds {
		st.targets[k] = map[string]domain.Target{}
	}
	return st
}

// clone copies every index. Stored values are treated as immutable: writers
// replace entries instead of mutating shared pointers or slices.
func (s *state) clone() *state {
	out := &state{
		posts:        make(map[int64]domain.Post, len(s.posts)),
		postByExt:    make(map[string]int64, len(s.postByExt)),
		comments:     make(map[int64]domain.Comment, len(s.comments)),
		commentByExt: make(map[string]int64, len(s.commentByExt)),
		targets:      make(map[domain.TargetKind]map[string]domain.Target, len(s.targets)),
		reports:      make(map[reportKey]domain.WeeklyReport, len(s.reports)),
		schedules:    make(map[string]domain.JobSchedule, len(s.schedules)),
		executions:   append([]domain.JobExecution(nil), s.executions...),
		nextPost:     s.nextPost,
		nextComment:  s.nextComment,
		nextReport:   s.nextReport,
		nextExec:     s.nextExec,
	}
	for k, v := range s.posts {
		out.posts[k] = v
	}
	for k, v := range s.postByExt {
		out.postByExt[k] = v
	}
	for k, v := range s.comments {
		out.comments[k] = v
	}
	for k, v := range s.commentByExt {
		out.commentByExt[k] = v
	}
	for kind, byKey := range s.targets {
		m := make(map[string]domain.Target, len(byKey))
		for k, v := range byKey {
			m[k] = v
		}
		out.targets[kind] = m
	}
	for k, v := range s.reports {
		out.reports[k] = v
	}
	for k, v := range s.schedules {
		out.schedules[k] = v
	}
	return out
}

// Store serializes sessions; each session works on a copy that replaces the
// committed state only when the callback succeeds.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ ports.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

// InTx runs fn against a private copy of the state and commits it on success.
func (s *Store) InTx(ctx context.Context, fn func(ports.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&repo{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

type repo struct {
	st  *state
	now func() time.Time
}

var _ ports.Repository = (*repo)(nil)
