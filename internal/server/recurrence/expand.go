package recurrence

import (
	"iter"
	"slices"
	"time"
)

// Window bounds an expansion. Start and End are calendar dates (only their
// year, month and day are used). Horizon is an instant; every day up to and
// including the horizon's date in the schedule's location is eligible.
type Window struct {
	Start   time.Time
	End     *time.Time
	Horizon time.Time
	Now     time.Time
}

// All yields due instants day by day, in UTC. Instants are built in loc
// (nil means UTC), so "08:00" stays 08:00 local across DST changes.
// Anything strictly before w.Now is skipped.
func All(rule Rule, w Window, loc *time.Location) iter.Seq[time.Time] {
	if loc == nil {
		loc = time.UTC
	}
	return func(yield func(time.Time) bool) {
		first := civil(w.Start)
		last := civil(w.Horizon.In(loc))
		if w.End != nil {
			if end := civil(*w.End); end.Before(last) {
				last = end
			}
		}
		if today := civil(w.Now.In(loc)); today.After(first) {
			first = today
		}

		for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
			if !rule.onDay(d.Weekday()) {
				continue
			}
			for _, t := range rule.Times {
				at := time.Date(d.Year(), d.Month(), d.Day(), t.Hour, t.Minute, 0, 0, loc)
				if at.Before(w.Now) {
					continue
				}
				if !yield(at.UTC()) {
					return
				}
			}
		}
	}
}

// Expand collects All into an ascending slice without duplicates. Times that
// fall into a DST gap are shifted by time.Date and may collide with, or
// overtake, a later configured time of the same day.
func Expand(rule Rule, w Window, loc *time.Location) []time.Time {
	out := slices.Collect(All(rule, w, loc))
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(out, time.Time.Equal)
}

// civil drops the clock and zone, keeping the calendar date as UTC midnight.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
