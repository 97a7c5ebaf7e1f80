package task

import (
	"strings"
	"time"

	"collab-workspace-system/api/internal/es"
)

const (
	RecurrenceDaily   = "daily"
	RecurrenceWeekly  = "weekly"
	RecurrenceMonthly = "monthly"
)

type RecurrenceRule struct {
	Type     string     `json:"type"`
	Interval int        `json:"interval"`
	EndDate  *time.Time `json:"endDate,omitempty"`
}

func (r RecurrenceRule) Normalize() RecurrenceRule {
	r.Type = strings.ToLower(strings.TrimSpace(r.Type))
	if r.EndDate != nil {
		end := r.EndDate.UTC()
		r.EndDate = &end
	}
	return r
}

func (r RecurrenceRule) Validate() error {
	switch r.Type {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
	default:
		return es.Validation("unknown recurrence type %q", r.Type)
	}
	if r.Interval < 1 {
		return es.Validation("recurrence interval must be >= 1")
	}
	return nil
}

// Next returns the occurrence one interval after from. Calendar arithmetic
// is used so daily steps keep the wall-clock time across DST changes.
func (r RecurrenceRule) Next(from time.Time) time.Time {
	switch r.Type {
	case RecurrenceWeekly:
		return from.AddDate(0, 0, 7*r.Interval)
	case RecurrenceMonthly:
		return from.AddDate(0, r.Interval, 0)
	default:
		return from.AddDate(0, 0, r.Interval)
	}
}

// Ended reports whether occurrence falls outside the series. The end date
// is exclusive.
func (r RecurrenceRule) Ended(occurrence time.Time) bool {
	return r.EndDate != nil && !occurrence.Before(*r.EndDate)
}

func (r RecurrenceRule) Equal(o RecurrenceRule) bool {
	if r.Type != o.Type || r.Interval != o.Interval {
		return false
	}
	if (r.EndDate == nil) != (o.EndDate == nil) {
		return false
	}
	return r.EndDate == nil || r.EndDate.Equal(*o.EndDate)
}
