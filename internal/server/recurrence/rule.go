// Package recurrence turns a medication schedule rule into concrete due
// instants. It depends on nothing but the caller-supplied clock.
package recurrence

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/careconnect/internal/common"
)

// TimeOfDay is a wall-clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) minutes() int { return t.Hour*60 + t.Minute }

// ParseTimeOfDay parses "HH:MM" (a single-digit hour is accepted).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hs) < 1 || len(hs) > 2 || len(ms) != 2 || !digits(hs) || !digits(ms) {
		return TimeOfDay{}, fmt.Errorf("%w: time %q is not HH:MM", common.ErrValidation, s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 23 {
		return TimeOfDay{}, fmt.Errorf("%w: hour in %q out of range", common.ErrValidation, s)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("%w: minute in %q out of range", common.ErrValidation, s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Rule is a validated recurrence rule. Times are unique and ascending.
// A nil DaysOfWeek means every day.
type Rule struct {
	Times      []TimeOfDay
	DaysOfWeek []time.Weekday
}

// ParseRule validates the stored form of a rule. Weekdays use 0 = Sunday.
func ParseRule(times []string, days []int) (Rule, error) {
	if len(times) == 0 {
		return Rule{}, fmt.Errorf("%w: at least one time is required", common.ErrValidation)
	}

	var r Rule
	for _, s := range times {
		t, err := ParseTimeOfDay(s)
		if err != nil {
			return Rule{}, err
		}
		r.Times = append(r.Times, t)
	}
	slices.SortFunc(r.Times, func(a, b TimeOfDay) int { return a.minutes() - b.minutes() })
	r.Times = slices.Compact(r.Times)

	if len(days) > 0 {
		for _, d := range days {
			if d < 0 || d > 6 {
				return Rule{}, fmt.Errorf("%w: weekday %d out of range 0-6", common.ErrValidation, d)
			}
			r.DaysOfWeek = append(r.DaysOfWeek, time.Weekday(d))
		}
		slices.Sort(r.DaysOfWeek)
		r.DaysOfWeek = slices.Compact(r.DaysOfWeek)
	}
	return r, nil
}

// TimeStrings returns the times in canonical "HH:MM" form.
func (r Rule) TimeStrings() []string {
	out := make([]string, len(r.Times))
	for i, t := range r.Times {
		out[i] = t.String()
	}
	return out
}

// DayNumbers returns the weekday filter as 0-6 numbers, nil for every day.
func (r Rule) DayNumbers() []int {
	if len(r.DaysOfWeek) == 0 {
		return nil
	}
	out := make([]int, len(r.DaysOfWeek))
	for i, d := range r.DaysOfWeek {
		out[i] = int(d)
	}
	return out
}

func (r Rule) onDay(wd time.Weekday) bool {
	return len(r.DaysOfWeek) == 0 || slices.Contains(r.DaysOfWeek, wd)
}
