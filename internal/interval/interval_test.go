package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a    Interval
		b    Interval
		want bool
	}{
		{
			name: "disjoint",
			a:    Interval{Start: 9 * time.Hour, End: 10 * time.Hour},
			b:    Interval{Start: 11 * time.Hour, End: 12 * time.Hour},
			want: false,
		},
		{
			name: "touching endpoints do not overlap",
			a:    Interval{Start: 9 * time.Hour, End: 10 * time.Hour},
			b:    Interval{Start: 10 * time.Hour, End: 11 * time.Hour},
			want: false,
		},
		{
			name: "partial overlap",
			a:    Interval{Start: 9 * time.Hour, End: 11 * time.Hour},
			b:    Interval{Start: 10 * time.Hour, End: 12 * time.Hour},
			want: true,
		},
		{
			name: "containment",
			a:    Interval{Start: 9 * time.Hour, End: 12 * time.Hour},
			b:    Interval{Start: 10 * time.Hour, End: 11 * time.Hour},
			want: true,
		},
		{
			name: "identical",
			a:    Interval{Start: 9 * time.Hour, End: 10 * time.Hour},
			b:    Interval{Start: 9 * time.Hour, End: 10 * time.Hour},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a), "overlap must be symmetric")
		})
	}
}

func TestIntervalValid(t *testing.T) {
	tests := []struct {
		name string
		iv   Interval
		want bool
	}{
		{name: "normal", iv: Interval{Start: 9 * time.Hour, End: 10 * time.Hour}, want: true},
		{name: "zero length", iv: Interval{Start: 9 * time.Hour, End: 9 * time.Hour}, want: false},
		{name: "inverted", iv: Interval{Start: 10 * time.Hour, End: 9 * time.Hour}, want: false},
		{name: "negative start", iv: Interval{Start: -time.Hour, End: time.Hour}, want: false},
		{name: "past midnight", iv: Interval{Start: 23 * time.Hour, End: 25 * time.Hour}, want: false},
		{name: "full day", iv: Interval{Start: 0, End: Day}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.iv.Valid())
		})
	}
}

func TestFirstConflict(t *testing.T) {
	existing := []Booked{
		{BookingID: 1, Interval: Interval{Start: 9 * time.Hour, End: 10 * time.Hour}},
		{BookingID: 2, Interval: Interval{Start: 13 * time.Hour, End: 14 * time.Hour}},
	}

	hit, ok := FirstConflict(existing, Interval{Start: 13*time.Hour + 30*time.Minute, End: 15 * time.Hour})
	require.True(t, ok)
	assert.Equal(t, int64(2), hit.BookingID)

	_, ok = FirstConflict(existing, Interval{Start: 10 * time.Hour, End: 13 * time.Hour})
	assert.False(t, ok, "gap between bookings should be free")

	_, ok = FirstConflict(nil, Interval{Start: 9 * time.Hour, End: 10 * time.Hour})
	assert.False(t, ok)
}

func TestConflictsReturnsAll(t *testing.T) {
	existing := []Booked{
		{BookingID: 1, Interval: Interval{Start: 9 * time.Hour, End: 10 * time.Hour}},
		{BookingID: 2, Interval: Interval{Start: 10 * time.Hour, End: 11 * time.Hour}},
		{BookingID: 3, Interval: Interval{Start: 12 * time.Hour, End: 13 * time.Hour}},
	}

	got := Conflicts(existing, Interval{Start: 9*time.Hour + 30*time.Minute, End: 10*time.Hour + 30*time.Minute})
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].BookingID)
	assert.Equal(t, int64(2), got[1].BookingID)
}

func TestDateArithmetic(t *testing.T) {
	instant := time.Date(2024, time.March, 5, 9, 30, 0, 0, time.UTC)

	date := DateOf(instant)
	assert.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), date)

	offset := TimeOfDay(instant)
	assert.Equal(t, 9*time.Hour+30*time.Minute, offset)

	assert.Equal(t, instant, Combine(date, offset))

	// Non-UTC inputs are interpreted on the UTC calendar.
	est := time.FixedZone("EST", -5*60*60)
	late := time.Date(2024, time.March, 5, 22, 0, 0, 0, est)
	assert.Equal(t, time.Date(2024, time.March, 6, 0, 0, 0, 0, time.UTC), DateOf(late))
	assert.Equal(t, 3*time.Hour, TimeOfDay(late))
}
