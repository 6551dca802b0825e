package interval

import "time"

// Interval is a half-open [Start, End) time-of-day range within a single
// calendar day, expressed as offsets from midnight.
type Interval struct {
	Start time.Duration
	End   time.Duration
}

// Day is the exclusive upper bound for time-of-day offsets.
const Day = 24 * time.Hour

// Valid reports whether the interval lies within a single day and has a
// positive length.
func (iv Interval) Valid() bool {
	return iv.Start >= 0 && iv.End <= Day && iv.Start < iv.End
}

// Overlaps reports whether two half-open intervals intersect. Touching
// endpoints do not count as an overlap, so back-to-back bookings coexist.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// Booked associates an interval with the booking occupying it.
type Booked struct {
	BookingID int64
	UserID    string
	Interval  Interval
}

// FirstConflict returns the first existing entry whose interval overlaps the
// candidate, scanning in slice order.
func FirstConflict(existing []Booked, candidate Interval) (Booked, bool) {
	for _, b := range existing {
		if b.Interval.Overlaps(candidate) {
			return b, true
		}
	}
	return Booked{}, false
}

// Conflicts returns every existing entry whose interval overlaps the candidate.
func Conflicts(existing []Booked, candidate Interval) []Booked {
	var out []Booked
	for _, b := range existing {
		if b.Interval.Overlaps(candidate) {
			out = append(out, b)
		}
	}
	return out
}

// DateOf truncates a timestamp to its calendar date, midnight UTC. Dates are
// compared and stored at this granularity throughout the booking model.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// TimeOfDay returns the offset of a timestamp from its date's midnight.
func TimeOfDay(t time.Time) time.Duration {
	u := t.UTC()
	return time.Duration(u.Hour())*time.Hour +
		time.Duration(u.Minute())*time.Minute +
		time.Duration(u.Second())*time.Second
}

// Combine reassembles an absolute timestamp from a calendar date and a
// time-of-day offset.
func Combine(date time.Time, offset time.Duration) time.Time {
	return DateOf(date).Add(offset)
}
