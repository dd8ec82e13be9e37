// Package cronexpr evaluates the restricted 5-field cron expressions used by
// job definitions: minute, hour, day-of-month, month, day-of-week. Each field
// is "*", a single integer, or a comma-separated list. Ranges and step values
// are a presentation concern and never reach this package.
package cronexpr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidExpression is returned when an expression fails to parse.
	// Definitions carrying such an expression are rejected before storage.
	ErrInvalidExpression = errors.New("invalid cron expression")

	// ErrNoUpcomingOccurrence is returned when no matching instant exists
	// within the scan bound (e.g. "0 0 30 2 *").
	ErrNoUpcomingOccurrence = errors.New("cron expression has no upcoming occurrence")
)

// scanBound limits how far Next searches for a match. Four years covers
// every satisfiable expression including Feb 29.
const scanBound = 4 * 366 * 24 * time.Hour

type fieldSpec struct {
	any    bool
	values map[int]bool
}

func (f fieldSpec) matches(v int) bool {
	return f.any || f.values[v]
}

// Schedule is a parsed cron expression. Schedules are immutable and safe for
// concurrent use.
type Schedule struct {
	minute   fieldSpec
	hour     fieldSpec
	dom      fieldSpec
	month    fieldSpec
	dow      fieldSpec
	original string
}

// String returns the original expression.
func (s *Schedule) String() string {
	return s.original
}

var fieldRanges = []struct {
	name string
	min  int
	max  int
}{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// Parse validates an expression and returns its schedule. Malformed
// expressions fail here, never at evaluation time.
func Parse(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("%w: expected 5 fields, got %d in %q", ErrInvalidExpression, len(fields), expr)
	}

	specs := make([]fieldSpec, 5)
	for i, raw := range fields {
		spec, err := parseField(raw, fieldRanges[i].min, fieldRanges[i].max)
		if err != nil {
			return nil, fmt.Errorf("%w: %s field %q: %v", ErrInvalidExpression, fieldRanges[i].name, raw, err)
		}
		specs[i] = spec
	}

	return &Schedule{
		minute:   specs[0],
		hour:     specs[1],
		dom:      specs[2],
		month:    specs[3],
		dow:      specs[4],
		original: expr,
	}, nil
}

func parseField(raw string, min, max int) (fieldSpec, error) {
	if raw == "*" {
		return fieldSpec{any: true}, nil
	}

	values := make(map[int]bool)
	for _, part := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return fieldSpec{}, fmt.Errorf("not an integer")
		}
		if n < min || n > max {
			return fieldSpec{}, fmt.Errorf("value %d out of range [%d,%d]", n, min, max)
		}
		values[n] = true
	}

	return fieldSpec{values: values}, nil
}

// Matches reports whether the schedule fires at the given instant, at minute
// granularity. Seconds and finer are ignored.
func (s *Schedule) Matches(t time.Time) bool {
	return s.minute.matches(t.Minute()) &&
		s.hour.matches(t.Hour()) &&
		s.dom.matches(t.Day()) &&
		s.month.matches(int(t.Month())) &&
		s.dow.matches(int(t.Weekday()))
}

// Next returns the earliest instant strictly after the given time that
// matches the schedule. It scans forward minute by minute and returns
// ErrNoUpcomingOccurrence once the scan bound is exceeded.
func (s *Schedule) Next(after time.Time) (time.Time, error) {
	t := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(scanBound)

	for !t.After(limit) {
		if s.Matches(t) {
			return t, nil
		}
		t = t.Add(time.Minute)
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrNoUpcomingOccurrence, s.original)
}

// NextOccurrence is a convenience wrapper that parses and evaluates in one
// step, used at definition time to validate that an expression is satisfiable.
func NextOccurrence(expr string, after time.Time) (time.Time, error) {
	sched, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after)
}

// Matches parses and evaluates an expression against one instant.
func Matches(expr string, t time.Time) (bool, error) {
	sched, err := Parse(expr)
	if err != nil {
		return false, err
	}
	return sched.Matches(t), nil
}
