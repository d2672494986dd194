package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"SocialInsights/internal/domain"
	"SocialInsights/internal/ports"
)

// ErrNotRunning is returned by TriggerNow before Start or after Stop.
var ErrNotRunning = errors.New("scheduler is not running")

// CronScheduler runs the registered jobs on their stored schedules and records
// every run in the execution log.
type CronScheduler struct {
	store  ports.Store
	cron   *cron.Cron
	jobs   map[string]ports.Job
	order  []string
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time

	mu       sync.Mutex
	ctx      context.Context
	started  bool
	entries  map[string]cron.EntryID
	wrapped  map[string]cron.Job
	running  map[string]bool
	inflight sync.WaitGroup // manual triggers; cron.Stop waits for scheduled runs
}

// NewCronScheduler builds a scheduler for jobs evaluated in loc.
func NewCronScheduler(store ports.Store, jobs []ports.Job, loc *time.Location, logger *slog.Logger) *CronScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	s := &CronScheduler{
		store:   store,
		jobs:    make(map[string]ports.Job, len(jobs)),
		logger:  logger,
		loc:     loc,
		now:     time.Now,
		ctx:     context.Background(),
		entries: map[string]cron.EntryID{},
		wrapped: map[string]cron.Job{},
		running: map[string]bool{},
	}
	s.cron = cron.New(cron.WithLocation(loc), cron.WithLogger(cronLogger{logger}))

	// One chain per job: a scheduled run and a manual trigger share the
	// same SkipIfStillRunning guard.
	for _, j := range jobs {
		id := j.Default.JobID
		s.jobs[id] = j
		s.order = append(s.order, id)
		s.wrapped[id] = cron.NewChain(cron.SkipIfStillRunning(cronLogger{logger})).Then(cron.FuncJob(func() { s.execute(id) }))
	}
	return s
}

// Start seeds missing schedules, registers the active ones and starts the
// cron loop. ctx bounds every job run.
func (s *CronScheduler) Start(ctx context.Context) error {
	defaults := make([]domain.JobSchedule, 0, len(s.order))
	for _, id := range s.order {
		defaults = append(defaults, s.jobs[id].Default)
	}

	var schedules []domain.JobSchedule
	err := s.store.InTx(ctx, func(repo ports.Repository) error {
		created, err := repo.EnsureJobSchedules(ctx, defaults)
		if err != nil {
			return err
		}
		if created > 0 {
			s.logger.Info("default job schedules created", "count", created)
		}
		schedules, err = repo.ListJobSchedules(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("load job schedules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.ctx = ctx
	for _, sched := range schedules {
		if _, known := s.jobs[sched.JobID]; !known {
			s.logger.Warn("stored schedule has no job", "job_id", sched.JobID)
			continue
		}
		if err := s.registerLocked(sched); err != nil {
			return err
		}
	}
	s.cron.Start()
	s.started = true
	s.logger.Info("scheduler started", "jobs", len(s.entries), "timezone", s.loc.String())
	return nil
}

// Stop halts the cron loop and waits for scheduled and triggered runs until
// ctx expires.
func (s *CronScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	stopped := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scheduler: %w", ctx.Err())
	}
}

// Status lists every stored schedule with its next fire time.
func (s *CronScheduler) Status(ctx context.Context) ([]domain.JobStatus, error) {
	var schedules []domain.JobSchedule
	err := s.store.InTx(ctx, func(repo ports.Repository) error {
		var err error
		schedules, err = repo.ListJobSchedules(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.JobStatus, 0, len(schedules))
	for _, sched := range schedules {
		st := domain.JobStatus{JobSchedule: sched, Running: s.running[sched.JobID]}
		if id, ok := s.entries[sched.JobID]; ok && s.started {
			if next := s.cron.Entry(id).Next; !next.IsZero() {
				st.NextRun = &next
			}
		}
		out = append(out, st)
	}
	return out, nil
}

// UpdateSchedule persists a schedule change and reschedules the job.
func (s *CronScheduler) UpdateSchedule(ctx context.Context, jobID string, patch domain.JobSchedulePatch) (domain.JobSchedule, error) {
	if _, ok := s.jobs[jobID]; !ok {
		return domain.JobSchedule{}, domain.NotFound("job", jobID)
	}

	var updated domain.JobSchedule
	err := s.store.InTx(ctx, func(repo ports.Repository) error {
		current, err := repo.GetJobSchedule(ctx, jobID)
		if err != nil {
			return err
		}
		updated, err = patch.Apply(current)
		if err != nil {
			return err
		}
		if _, err := cronSpec(updated); err != nil {
			return err
		}
		updated.UpdatedAt = s.now().UTC()
		return repo.SaveJobSchedule(ctx, updated)
	})
	if err != nil {
		return domain.JobSchedule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.registerLocked(updated); err != nil {
		return updated, err
	}
	s.logger.Info("job rescheduled", "job_id", jobID, "active", updated.IsActive, "type", updated.Type)
	return updated, nil
}

// TriggerNow runs a job once in the background through the same wrapper as
// scheduled runs. A run is skipped if the job is already running.
func (s *CronScheduler) TriggerNow(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.wrapped[jobID]
	if !ok {
		return domain.NotFound("job", jobID)
	}
	if !s.started {
		return ErrNotRunning
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		job.Run()
	}()
	return nil
}

// History returns the newest executions first.
func (s *CronScheduler) History(ctx context.Context, limit int) ([]domain.JobExecution, error) {
	if limit <= 0 {
		return nil, domain.Invalid("limit must be positive, got %d", limit)
	}
	var out []domain.JobExecution
	err := s.store.InTx(ctx, func(repo ports.Repository) error {
		var err error
		out, err = repo.ListJobExecutions(ctx, limit)
		return err
	})
	return out, err
}

// registerLocked replaces the cron entry of a job; inactive jobs are left
// unscheduled.
func (s *CronScheduler) registerLocked(sched domain.JobSchedule) error {
	if id, ok := s.entries[sched.JobID]; ok {
		s.cron.Remove(id)
		delete(s.entries, sched.JobID)
	}
	if !sched.IsActive {
		return nil
	}
	spec, err := cronSpec(sched)
	if err != nil {
		return err
	}
	id, err := s.cron.AddJob(spec, s.wrapped[sched.JobID])
	if err != nil {
		return domain.Invalid("schedule for %s: %v", sched.JobID, err)
	}
	s.entries[sched.JobID] = id
	return nil
}

// cronSpec renders a stored schedule as a robfig/cron expression.
func cronSpec(sched domain.JobSchedule) (string, error) {
	switch sched.Type {
	case domain.ScheduleInterval:
		minutes := 60
		if sched.IntervalMinutes != nil {
			minutes = *sched.IntervalMinutes
		}
		if minutes <= 0 {
			return "", domain.Invalid("interval_minutes must be positive")
		}
		return fmt.Sprintf("@every %dm", minutes), nil
	case domain.ScheduleSpecificTime:
		spec := fmt.Sprintf("%s %s %s * %s",
			field(sched.Minute), field(sched.Hour), orStar(sched.DayOfMonth), orStar(sched.DayOfWeek))
		if _, err := cron.ParseStandard(spec); err != nil {
			return "", domain.Invalid("invalid schedule %q: %v", spec, err)
		}
		return spec, nil
	default:
		return "", domain.Invalid("unknown schedule type %q", sched.Type)
	}
}

func field(v *int) string {
	if v == nil {
		return "*"
	}
	return fmt.Sprint(*v)
}

func orStar(s string) string {
	if s == "" {
		return "*"
	}
	return s
}

func (s *CronScheduler) setRunning(jobID string, running bool) {
	s.mu.Lock()
	s.running[jobID] = running
	s.mu.Unlock()
}

// execute records a running execution, runs the handler and records the
// outcome. Panics are recovered and stored as failures.
func (s *CronScheduler) execute(jobID string) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	exec := domain.JobExecution{
		JobID:     jobID,
		RunID:     uuid.NewString(),
		Status:    domain.ExecutionRunning,
		StartedAt: s.now().UTC(),
	}
	logger := s.logger.With("job_id", jobID, "run_id", exec.RunID)

	err := s.store.InTx(ctx, func(repo ports.Repository) error {
		var err error
		exec.ID, err = repo.InsertJobExecution(ctx, exec)
		return err
	})
	if err != nil {
		logger.Error("cannot record job start", "error", err)
		return
	}

	s.setRunning(jobID, true)
	defer s.setRunning(jobID, false)
	logger.Info("job started")

	summary, runErr := s.run(ctx, jobID)

	completed := s.now().UTC()
	exec.CompletedAt = &completed
	if runErr != nil {
		exec.Status = domain.ExecutionFailed
		exec.ErrorMessage = runErr.Error()
		logger.Error("job failed", "error", runErr, "took", completed.Sub(exec.StartedAt))
	} else {
		exec.Status = domain.ExecutionCompleted
		exec.ResultSummary = summary
		logger.Info("job completed", "took", completed.Sub(exec.StartedAt))
	}

	finishCtx := context.WithoutCancel(ctx)
	err = s.store.InTx(finishCtx, func(repo ports.Repository) error {
		return repo.FinishJobExecution(finishCtx, exec)
	})
	if err != nil {
		logger.Error("cannot record job outcome", "error", err)
	}
}

func (s *CronScheduler) run(ctx context.Context, jobID string) (summary map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("job panicked", "job_id", jobID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.jobs[jobID].Run(ctx)
}

// cronLogger routes robfig/cron logs to slog.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
