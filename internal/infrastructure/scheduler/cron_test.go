package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SocialInsights/internal/domain"
	"SocialInsights/internal/infrastructure/storage/memory"
	"SocialInsights/internal/ports"
)

func every(id string, minutes int) domain.JobSchedule {
	return domain.JobSchedule{JobID: id, Name: id, IsActive: true, Type: domain.ScheduleInterval, IntervalMinutes: &minutes}
}

func newScheduler(t *testing.T, jobs ...ports.Job) (*CronScheduler, *memory.Store) {
	t.Helper()
	store := memory.New()
	s := NewCronScheduler(store, jobs, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s, store
}

func TestStartSeedsDefaults(t *testing.T) {
	noop := func(context.Context) (map[string]any, error) { return nil, nil }
	s, _ := newScheduler(t,
		ports.Job{Default: every("b_job", 60), Run: noop},
		ports.Job{Default: every("a_job", 30), Run: noop},
	)

	status, err := s.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, status, 2)
	assert.Equal(t, "a_job", status[0].JobID)
	require.NotNil(t, status[0].NextRun)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), *status[0].NextRun, time.Minute)
	assert.False(t, status[0].Running)
}

func TestTriggerNowRecordsCompletedRun(t *testing.T) {
	s, _ := newScheduler(t, ports.Job{
		Default: every("report", 720),
		Run: func(context.Context) (map[string]any, error) {
			return map[string]any{"post_count": 4}, nil
		},
	})
	ctx := context.Background()

	require.NoError(t, s.TriggerNow(ctx, "report"))
	require.Eventually(t, func() bool {
		h, err := s.History(ctx, 10)
		return err == nil && len(h) == 1 && h[0].Status == domain.ExecutionCompleted
	}, 2*time.Second, 10*time.Millisecond)

	h, err := s.History(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "report", h[0].JobID)
	assert.NotEmpty(t, h[0].RunID)
	assert.NotNil(t, h[0].CompletedAt)
	assert.Equal(t, 4, h[0].ResultSummary["post_count"])
}

func TestFailuresAndPanicsAreRecorded(t *testing.T) {
	s, _ := newScheduler(t,
		ports.Job{Default: every("fails", 60), Run: func(context.Context) (map[string]any, error) {
			return nil, errors.New("scraper down")
		}},
		ports.Job{Default: every("panics", 60), Run: func(context.Context) (map[string]any, error) {
			panic("boom")
		}},
	)
	ctx := context.Background()

	require.NoError(t, s.TriggerNow(ctx, "fails"))
	require.NoError(t, s.TriggerNow(ctx, "panics"))
	require.Eventually(t, func() bool {
		h, err := s.History(ctx, 10)
		if err != nil || len(h) != 2 {
			return false
		}
		for _, e := range h {
			if e.Status != domain.ExecutionFailed {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	h, _ := s.History(ctx, 10)
	msgs := map[string]string{}
	for _, e := range h {
		msgs[e.JobID] = e.ErrorMessage
	}
	assert.Equal(t, "scraper down", msgs["fails"])
	assert.Equal(t, "panic: boom", msgs["panics"])
}

func TestTriggerSkipsWhileRunning(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int32
	s, _ := newScheduler(t, ports.Job{
		Default: every("slow", 60),
		Run: func(context.Context) (map[string]any, error) {
			runs.Add(1)
			<-release
			return nil, nil
		},
	})
	ctx := context.Background()

	require.NoError(t, s.TriggerNow(ctx, "slow"))
	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	status, err := s.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status[0].Running)

	require.NoError(t, s.TriggerNow(ctx, "slow"))
	time.Sleep(50 * time.Millisecond)
	close(release)

	require.Eventually(t, func() bool {
		h, err := s.History(ctx, 10)
		return err == nil && len(h) == 1 && h[0].Status == domain.ExecutionCompleted
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestUpdateSchedule(t *testing.T) {
	noop := func(context.Context) (map[string]any, error) { return nil, nil }
	s, _ := newScheduler(t, ports.Job{Default: every("weekly_report", 720), Run: noop})
	ctx := context.Background()

	specific := domain.ScheduleSpecificTime
	hour, minute, dow := 9, 30, "1"
	updated, err := s.UpdateSchedule(ctx, "weekly_report", domain.JobSchedulePatch{
		Type: &specific, Hour: &hour, Minute: &minute, DayOfWeek: &dow,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleSpecificTime, updated.Type)

	status, err := s.Status(ctx)
	require.NoError(t, err)
	require.NotNil(t, status[0].NextRun)
	next := status[0].NextRun.UTC()
	assert.Equal(t, time.Monday, next.Weekday())
	assert.Equal(t, 9, next.Hour())
	assert.Equal(t, 30, next.Minute())

	inactive := false
	_, err = s.UpdateSchedule(ctx, "weekly_report", domain.JobSchedulePatch{IsActive: &inactive})
	require.NoError(t, err)
	status, _ = s.Status(ctx)
	assert.Nil(t, status[0].NextRun)
	assert.False(t, status[0].IsActive)
}

func TestUpdateScheduleRejectsBadInput(t *testing.T) {
	noop := func(context.Context) (map[string]any, error) { return nil, nil }
	s, _ := newScheduler(t, ports.Job{Default: every("job", 60), Run: noop})
	ctx := context.Background()

	_, err := s.UpdateSchedule(ctx, "missing", domain.JobSchedulePatch{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	hour := 25
	_, err = s.UpdateSchedule(ctx, "job", domain.JobSchedulePatch{Hour: &hour, Type: ptr(domain.ScheduleSpecificTime)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	dow := "someday"
	_, err = s.UpdateSchedule(ctx, "job", domain.JobSchedulePatch{DayOfWeek: &dow, Type: ptr(domain.ScheduleSpecificTime)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.ErrorIs(t, s.TriggerNow(ctx, "missing"), domain.ErrNotFound)
	_, err = s.History(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCronSpec(t *testing.T) {
	h, m := 6, 0
	spec, err := cronSpec(domain.JobSchedule{Type: domain.ScheduleSpecificTime, Hour: &h, Minute: &m, DayOfMonth: "1"})
	require.NoError(t, err)
	assert.Equal(t, "0 6 1 * *", spec)

	spec, err = cronSpec(domain.JobSchedule{Type: domain.ScheduleInterval})
	require.NoError(t, err)
	assert.Equal(t, "@every 60m", spec)
}

func ptr[T any](v T) *T { return &v }

func TestTriggerNowRequiresRunningScheduler(t *testing.T) {
	noop := func(context.Context) (map[string]any, error) { return nil, nil }
	s := NewCronScheduler(memory.New(), []ports.Job{{Default: every("job", 60), Run: noop}}, time.UTC,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.ErrorIs(t, s.TriggerNow(context.Background(), "job"), ErrNotRunning)
	assert.ErrorIs(t, s.TriggerNow(context.Background(), "missing"), domain.ErrNotFound)
}

func TestStopWaitsForTriggeredRuns(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	s, _ := newScheduler(t, ports.Job{
		Default: every("slow", 60),
		Run: func(context.Context) (map[string]any, error) {
			started <- struct{}{}
			<-release
			return map[string]any{"done": true}, nil
		},
	})
	ctx := context.Background()

	require.NoError(t, s.TriggerNow(ctx, "slow"))
	<-started

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(short), context.DeadlineExceeded)
	assert.ErrorIs(t, s.TriggerNow(ctx, "slow"), ErrNotRunning)

	close(release)
	require.Eventually(t, func() bool {
		h, err := s.History(ctx, 10)
		return err == nil && len(h) == 1 && h[0].Status == domain.ExecutionCompleted
	}, 2*time.Second, 10*time.Millisecond)
}
