package domain

import "time"

// ScheduleType selects how a job is triggered.
type ScheduleType string

const (
	ScheduleInterval     ScheduleType = "interval"
	ScheduleSpecificTime ScheduleType = "specific_time"
)

// JobSchedule is the mutable trigger configuration of a named job.
type JobSchedule struct {
	JobID           string       `json:"id"`
	Name            string       `json:"name"`
	IsActive        bool         `json:"is_active"`
	Type            ScheduleType `json:"schedule_type"`
	IntervalMinutes *int         `json:"interval_minutes,omitempty"`
	Hour            *int         `json:"hour,omitempty"`
	Minute          *int         `json:"minute,omitempty"`
	DayOfWeek       string       `json:"day_of_week,omitempty"`
	DayOfMonth      string       `json:"day_of_month,omitempty"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// JobSchedulePatch lists the schedule fields an update may change.
type JobSchedulePatch struct {
	IsActive        *bool         `json:"is_active,omitempty"`
	Type            *ScheduleType `json:"schedule_type,omitempty"`
	IntervalMinutes *int          `json:"interval_minutes,omitempty"`
	Hour            *int          `json:"hour,omitempty"`
	Minute          *int          `json:"minute,omitempty"`
	DayOfWeek       *string       `json:"day_of_week,omitempty"`
	DayOfMonth      *string       `json:"day_of_month,omitempty"`
}

// Apply returns s with the patch applied and validates the result.
func (p JobSchedulePatch) Apply(s JobSchedule) (JobSchedule, error) {
	if p.IsActive != nil {
		s.IsActive = *p.IsActive
	}
	if p.Type != nil {
		s.Type = *p.Type
	}
	if p.IntervalMinutes != nil {
		v := *p.IntervalMinutes
		s.IntervalMinutes = &v
	}
	if p.Hour != nil {
		v := *p.Hour
		s.Hour = &v
	}
	if p.Minute != nil {
		v := *p.Minute
		s.Minute = &v
	}
	if p.DayOfWeek != nil {
		s.DayOfWeek = *p.DayOfWeek
	}
	if p.DayOfMonth != nil {
		s.DayOfMonth = *p.DayOfMonth
	}
	return s, s.Validate()
}

// Validate checks field ranges for the selected schedule type.
func (s JobSchedule) Validate() error {
	switch s.Type {
	case ScheduleInterval:
		if s.IntervalMinutes != nil && *s.IntervalMinutes <= 0 {
			return Invalid("interval_minutes must be positive")
		}
	case ScheduleSpecificTime:
		if s.Hour != nil && (*s.Hour < 0 || *s.Hour > 23) {
			return Invalid("hour %d out of range 0..23", *s.Hour)
		}
		if s.Minute != nil && (*s.Minute < 0 || *s.Minute > 59) {
			return Invalid("minute %d out of range 0..59", *s.Minute)
		}
	default:
		return Invalid("unknown schedule type %q", s.Type)
	}
	return nil
}

// ExecutionStatus tracks a JobExecution from dispatch to completion.
type ExecutionStatus string

const (
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// JobExecution is one audit row per dispatched run.
type JobExecution struct {
	ID            int64           `json:"id"`
	JobID         string          `json:"job_id"`
	RunID         string          `json:"run_id"`
	Status        ExecutionStatus `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	ResultSummary map[string]any  `json:"result_summary,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`
}

// JobStatus is the live view of one scheduled job.
type JobStatus struct {
	JobSchedule
	NextRun *time.Time `json:"next_run_time"`
	Running bool       `json:"running"`
}
