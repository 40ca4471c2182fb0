package models

import (
	"fmt"
	"time"
)

// Frequency is how often a scheduled export runs.
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

// IntervalDays returns the run interval in days.
func (f Frequency) IntervalDays() int {
	if f == FrequencyWeekly {
		return 7
	}
	return 1
}

// Schedule is the persisted recurring-export configuration.
//
// LastExportDate records when a run last executed with at least one
// success, not the data-day it covered. By convention a run on day N
// exports day N-1's data, so the two are offset by one day.
type Schedule struct {
	IsEnabled       bool       `json:"is_enabled"`
	Frequency       Frequency  `json:"frequency"`
	PreferredHour   int        `json:"preferred_hour"`
	PreferredMinute int        `json:"preferred_minute"`
	LastExportDate  *time.Time `json:"last_export_date,omitempty"`
}

// DefaultSchedule returns a disabled daily schedule at 23:00.
func DefaultSchedule() Schedule {
	return Schedule{
		IsEnabled:       false,
		Frequency:       FrequencyDaily,
		PreferredHour:   23,
		PreferredMinute: 0,
	}
}

// Validate checks field ranges.
func (s *Schedule) Validate() error {
	if !s.Frequency.Valid() {
		return fmt.Errorf("invalid frequency: %s", s.Frequency)
	}
	if s.PreferredHour < 0 || s.PreferredHour > 23 {
		return fmt.Errorf("preferred hour out of range: %d", s.PreferredHour)
	}
	if s.PreferredMinute < 0 || s.PreferredMinute > 59 {
		return fmt.Errorf("preferred minute out of range: %d", s.PreferredMinute)
	}
	return nil
}

// MarkExported advances the run-time watermark after a run with at
// least one success.
func (s *Schedule) MarkExported(now time.Time) {
	t := now
	s.LastExportDate = &t
}
