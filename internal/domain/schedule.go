package domain

import "strings"

// Weekday keys used by WorkSchedule. Lowercase English day names keep the
// persisted representation stable across clients.
const (
	Monday    = "monday"
	Tuesday   = "tuesday"
	Wednesday = "wednesday"
	Thursday  = "thursday"
	Friday    = "friday"
	Saturday  = "saturday"
	Sunday    = "sunday"
)

var weekdays = []string{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// DaySlots marks which parts of a day the arrangement covers.
type DaySlots struct {
	Morning   bool
	Afternoon bool
	Evening   bool
}

// Any reports whether at least one slot of the day is marked.
func (d DaySlots) Any() bool {
	return d.Morning || d.Afternoon || d.Evening
}

// WorkSchedule is the per-day, per-timeslot availability matrix of an offer:
// seven weekdays, each with morning/afternoon/evening booleans. Days without
// any marked slot are omitted from the map.
type WorkSchedule map[string]DaySlots

// NormalizeWorkSchedule lowercases day keys, drops unknown days and empty
// entries, and reports whether every provided key was a valid weekday.
func NormalizeWorkSchedule(in WorkSchedule) (WorkSchedule, bool) {
	if len(in) == 0 {
		return nil, true
	}
	out := make(WorkSchedule, len(in))
	valid := true
	for day, slots := range in {
		key := strings.ToLower(strings.TrimSpace(day))
		if !isWeekday(key) {
			valid = false
			continue
		}
		if slots.Any() {
			out[key] = slots
		}
	}
	if len(out) == 0 {
		out = nil
	}
	return out, valid
}

// Clone returns a copy so callers cannot mutate stored schedules through the map.
func (s WorkSchedule) Clone() WorkSchedule {
	if len(s) == 0 {
		return nil
	}
	out := make(WorkSchedule, len(s))
	for day, slots := range s {
		out[day] = slots
	}
	return out
}

func isWeekday(day string) bool {
	for _, d := range weekdays {
		if d == day {
			return true
		}
	}
	return false
}
