package ledger

import (
	"strings"
	"time"
)

// =============================================================================
// DATE KEY - Timezone-neutral calendar date
// =============================================================================

// DateKey is a calendar date with the time of day discarded. Attendance is
// keyed by it, so two marks submitted at different times of "the same day"
// always collide on the same record regardless of submission timezone.
//
// The zero DateKey is "no date".
type DateKey struct {
	t time.Time // always UTC midnight
}

func NewDateKey(year int, month time.Month, day int) DateKey {
	return DateKey{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateKeyOf normalizes an arbitrary instant to its calendar date.
func DateKeyOf(t time.Time) DateKey {
	y, m, d := t.Date()
	return NewDateKey(y, m, d)
}

// ParseDateKey parses the canonical "2006-01-02" form. Anything else is a
// validation error, rejected before any mutation happens.
func ParseDateKey(s string) (DateKey, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return DateKey{}, &ValidationError{Field: "date", Reason: "expected YYYY-MM-DD, got " + s}
	}
	return DateKeyOf(t), nil
}

func Today() DateKey { return DateKeyOf(time.Now().UTC()) }

// Comparison
func (d DateKey) Before(other DateKey) bool { return d.t.Before(other.t) }
func (d DateKey) After(other DateKey) bool  { return d.t.After(other.t) }
func (d DateKey) Equal(other DateKey) bool  { return d.t.Equal(other.t) }
func (d DateKey) IsZero() bool              { return d.t.IsZero() }

// Max returns the later of the two dates.
func (d DateKey) Max(other DateKey) DateKey {
	if other.After(d) {
		return other
	}
	return d
}

// Arithmetic / properties
func (d DateKey) AddDays(n int) DateKey { return DateKey{t: d.t.AddDate(0, 0, n)} }
func (d DateKey) Year() int             { return d.t.Year() }
func (d DateKey) Month() time.Month     { return d.t.Month() }
func (d DateKey) Day() int              { return d.t.Day() }
func (d DateKey) Time() time.Time       { return d.t }

func (d DateKey) String() string { return d.t.Format("2006-01-02") }

// JSON form is the canonical "2006-01-02" string.
func (d DateKey) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *DateKey) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = DateKey{}
		return nil
	}
	parsed, err := ParseDateKey(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthRange returns the first and last DateKey of a month.
func MonthRange(year int, month time.Month) (DateKey, DateKey) {
	start := NewDateKey(year, month, 1)
	end := DateKey{t: time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)}
	return start, end
}

// ValidMonth reports whether (year, month) is a plausible accounting month.
func ValidMonth(year, month int) bool {
	return year >= 2000 && year <= 2200 && month >= 1 && month <= 12
}
