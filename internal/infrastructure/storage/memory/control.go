package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"SocialInsights/internal/domain"
)

func (r *repo) targetsOf(kind domain.TargetKind) (map[string]domain.Target, error) {
	m, ok := r.st.targets[kind]
	if !ok {
		return nil, domain.Invalid("unknown target kind %q", kind)
	}
	return m, nil
}

func (r *repo) InsertTargets(_ context.Context, kind domain.TargetKind, targets []domain.Target) (int64, error) {
	byKey, err := r.targetsOf(kind)
	if err != nil {
		return 0, err
	}
	var inserted int64
	for _, t := range targets {
		if _, ok := byKey[t.Key]; ok {
			continue
		}
		t.Kind = kind
		if t.AddedAt.IsZero() {
			t.AddedAt = r.now().UTC()
		}
		byKey[t.Key] = t
		inserted++
	}
	return inserted, nil
}

func (r *repo) GetTarget(_ context.Context, kind domain.TargetKind, key string) (domain.Target, error) {
	byKey, err := r.targetsOf(kind)
	if err != nil {
		return domain.Target{}, err
	}
	t, ok := byKey[key]
	if !ok {
		return domain.Target{}, domain.NotFound(string(kind)+" target", key)
	}
	return t, nil
}

func (r *repo) SaveTarget(_ context.Context, target domain.Target) error {
	byKey, err := r.targetsOf(target.Kind)
	if err != nil {
		return err
	}
	if _, ok := byKey[target.Key]; !ok {
		return domain.NotFound(string(target.Kind)+" target", target.Key)
	}
	byKey[target.Key] = target
	return nil
}

func (r *repo) DeleteTarget(_ context.Context, kind domain.TargetKind, key string) error {
	byKey, err := r.targetsOf(kind)
	if err != nil {
		return err
	}
	if _, ok := byKey[key]; !ok {
		return domain.NotFound(string(kind)+" target", key)
	}
	delete(byKey, key)
	return nil
}

func (r *repo) ListTargets(_ context.Context, kind domain.TargetKind, includeInactive bool) ([]domain.Target, error) {
	byKey, err := r.targetsOf(kind)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Target, 0, len(byKey))
	for _, t := range byKey {
		if t.IsActive || includeInactive {
			out = append(out, t)
		}
	}
	domain.SortTargets(out)
	return out, nil
}

func (r *repo) TouchTargets(_ context.Context, kind domain.TargetKind, keys []string, at time.Time) error {
	byKey, err := r.targetsOf(kind)
	if err != nil {
		return err
	}
	for _, k := range keys {
		t, ok := byKey[k]
		if !ok {
			continue
		}
		ts := at.UTC()
		t.LastScrapedAt = &ts
		byKey[k] = t
	}
	return nil
}

func (r *repo) UpsertWeeklyReport(_ context.Context, report domain.WeeklyReport) (int64, error) {
	key := reportKey{report.Year, report.WeekNumber}
	if prev, ok := r.st.reports[key]; ok {
		report.ID = prev.ID
	} else {
		r.st.nextReport++
		report.ID = r.st.nextReport
	}
	r.st.reports[key] = report
	return report.ID, nil
}

func (r *repo) GetWeeklyReport(_ context.Context, year, week int) (domain.WeeklyReport, error) {
	rep, ok := r.st.reports[reportKey{year, week}]
	if !ok {
		return domain.WeeklyReport{}, domain.NotFound("weekly report", fmt.Sprintf("%d-W%02d", year, week))
	}
	return rep, nil
}

func (r *repo) ListWeeklyReports(_ context.Context, limit int) ([]domain.WeeklyReport, error) {
	out := make([]domain.WeeklyReport, 0, len(r.st.reports))
	for _, rep := range r.st.reports {
		out = append(out, rep)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].WeekNumber > out[j].WeekNumber
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *repo) EnsureJobSchedules(_ context.Context, defaults []domain.JobSchedule) (int64, error) {
	var created int64
	for _, s := range defaults {
		if _, ok := r.st.schedules[s.JobID]; ok {
			continue
		}
		s.UpdatedAt = r.now().UTC()
		r.st.schedules[s.JobID] = s
		created++
	}
	return created, nil
}

func (r *repo) ListJobSchedules(_ context.Context) ([]domain.JobSchedule, error) {
	out := make([]domain.JobSchedule, 0, len(r.st.schedules))
	for _, s := range r.st.schedules {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out, nil
}

func (r *repo) GetJobSchedule(_ context.Context, jobID string) (domain.JobSchedule, error) {
	s, ok := r.st.schedules[jobID]
	if !ok {
		return domain.JobSchedule{}, domain.NotFound("job", jobID)
	}
	return s, nil
}

func (r *repo) SaveJobSchedule(_ context.Context, schedule domain.JobSchedule) error {
	if _, ok := r.st.schedules[schedule.JobID]; !ok {
		return domain.NotFound("job", schedule.JobID)
	}
	schedule.UpdatedAt = r.now().UTC()
	r.st.schedules[schedule.JobID] = schedule
	return nil
}

func (r *repo) InsertJobExecution(_ context.Context, exec domain.JobExecution) (int64, error) {
	r.st.nextExec++
	exec.ID = r.st.nextExec
	r.st.executions = append(r.st.executions, exec)
	return exec.ID, nil
}

func (r *repo) FinishJobExecution(_ context.Context, exec domain.JobExecution) error {
	for i := range r.st.executions {
		if r.st.executions[i].ID == exec.ID {
			r.st.executions[i] = exec
			return nil
		}
	}
	return domain.NotFound("job execution", exec.ID)
}

func (r *repo) ListJobExecutions(_ context.Context, limit int) ([]domain.JobExecution, error) {
	out := append([]domain.JobExecution(nil), r.st.executions...)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
