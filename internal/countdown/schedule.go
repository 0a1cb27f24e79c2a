package countdown

import (
	"fmt"
	"time"

	dErrors "github.com/Ziel-Global/community-healers-sub001/pkg/domain-errors"
)

// DefaultStartHour is the local hour every exam opens at, whatever time of day
// the exam date carries.
const DefaultStartHour = 10

var (
	// ErrInvalidExamDate is returned for a missing exam date.
	ErrInvalidExamDate = dErrors.New(dErrors.CodeValidation, "exam date is required")

	// ErrInvalidStartHour is returned when the start hour is outside 0..23.
	ErrInvalidStartHour = dErrors.New(dErrors.CodeValidation, "start hour must be between 0 and 23")
)

// Schedule is the immutable exam schedule: the date as supplied and the
// normalized instant the exam becomes startable.
type Schedule struct {
	ExamDate time.Time
	Target   time.Time
}

type scheduleConfig struct {
	startHour int
	location  *time.Location
}

// ScheduleOption customizes schedule normalization.
type ScheduleOption func(*scheduleConfig)

// WithStartHour overrides the local start hour.
func WithStartHour(hour int) ScheduleOption {
	return func(c *scheduleConfig) {
		c.startHour = hour
	}
}

// InLocation sets the location whose wall clock defines "10:00 local".
// Defaults to time.Local.
func InLocation(loc *time.Location) ScheduleOption {
	return func(c *scheduleConfig) {
		if loc != nil {
			c.location = loc
		}
	}
}

// NewSchedule normalizes examDate to the start hour on the same local calendar
// day. The time-of-day of examDate is ignored.
func NewSchedule(examDate time.Time, opts ...ScheduleOption) (Schedule, error) {
	cfg := scheduleConfig{startHour: DefaultStartHour, location: time.Local}
	for _, opt := range opts {
		opt(&cfg)
	}
	if examDate.IsZero() {
		return Schedule{}, ErrInvalidExamDate
	}
	if cfg.startHour < 0 || cfg.startHour > 23 {
		return Schedule{}, ErrInvalidStartHour
	}

	y, m, d := examDate.In(cfg.location).Date()
	return Schedule{
		ExamDate: examDate,
		Target:   time.Date(y, m, d, cfg.startHour, 0, 0, 0, cfg.location),
	}, nil
}

// MustSchedule is NewSchedule for fixtures; it panics on error.
func MustSchedule(examDate time.Time, opts ...ScheduleOption) Schedule {
	s, err := NewSchedule(examDate, opts...)
	if err != nil {
		panic(fmt.Sprintf("countdown: %v", err))
	}
	return s
}
