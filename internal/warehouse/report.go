package warehouse

import (
	"time"

	"dwbuild/pkg/errors"
)

// InputSummary describes one raw extract as it was loaded
type InputSummary struct {
	Source   string `json:"source"`
	Entity   string `json:"entity"`
	Path     string `json:"path,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	Rows     int    `json:"rows"`
	Missing  bool   `json:"missing"`
	Repairs  int    `json:"repairs"`
}

// DimensionSummary describes a built dimension
type DimensionSummary struct {
	Rows               int `json:"rows"`
	Duplicates         int `json:"duplicates"`
	AttributeConflicts int `json:"attribute_conflicts"`
}

// Report is the outcome of one build run
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Inputs    []InputSummary   `json:"inputs"`
	Customers DimensionSummary `json:"customers"`
	Employees DimensionSummary `json:"employees"`

	CalendarStart    time.Time `json:"calendar_start"`
	CalendarEnd      time.Time `json:"calendar_end"`
	CalendarDays     int       `json:"calendar_days"`
	CalendarFallback bool      `json:"calendar_fallback"`

	Facts             int       `json:"facts"`
	Resolution        FactStats `json:"resolution"`
	UnparsableDates   int       `json:"unparsable_dates"`
	UnparsableAmounts int       `json:"unparsable_amounts"`

	Published []Published `json:"published"`
	Loaded    bool        `json:"loaded"`
}

// AttributeConflicts counts deduplicated rows whose dropped twin disagreed
// on a descriptive attribute.
func (r *Report) AttributeConflicts() int {
	return r.Customers.AttributeConflicts + r.Employees.AttributeConflicts
}

// MissingInputs counts extracts that were absent
func (r *Report) MissingInputs() int {
	n := 0
	for _, in := range r.Inputs {
		if in.Missing {
			n++
		}
	}
	return n
}

// Duration is the wall time of the run
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RequireFacts fails for consumers that cannot work on an empty fact table.
func (r *Report) RequireFacts() error {
	if r == nil || r.Facts == 0 {
		return errors.EmptyFactSetError()
	}
	return nil
}
