// Package core holds the revenue domain: period identity, eligibility
// rules, bucket arithmetic and the change detector. Everything here is
// pure; persistence and transport live elsewhere.
package core

import (
	"errors"
	"fmt"
	"time"
)

// Period identifies one calendar month. Equality is by (year, month);
// the day and time-of-day of the source timestamp never matter.
type Period struct {
	Year  int
	Month time.Month
}

var ErrInvalidPeriod = errors.New("invalid period")

// PeriodOf normalizes a timestamp into its calendar-month period.
// This is the single place period normalization happens.
func PeriodOf(t time.Time) (Period, error) {
	if t.IsZero() {
		return Period{}, fmt.Errorf("%w: zero time", ErrInvalidPeriod)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// ParsePeriod accepts "YYYY-MM", "YYYY-MM-DD" or an RFC 3339 timestamp.
func ParsePeriod(s string) (Period, error) {
	for _, layout := range []string{"2006-01", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return PeriodOf(t)
		}
	}
	return Period{}, fmt.Errorf("%w: unparsable input %q", ErrInvalidPeriod, s)
}

func (p Period) Validate() error {
	if p.Year < 1 || p.Month < time.January || p.Month > time.December {
		return fmt.Errorf("%w: year=%d month=%d", ErrInvalidPeriod, p.Year, int(p.Month))
	}
	return nil
}

// Key returns the canonical "YYYY-MM" form used as map and store key.
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Start returns the first instant of the month in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Next returns the following calendar month.
func (p Period) Next() Period {
	t := p.Start().AddDate(0, 1, 0)
	return Period{Year: t.Year(), Month: t.Month()}
}

// Prev returns the preceding calendar month.
func (p Period) Prev() Period {
	t := p.Start().AddDate(0, -1, 0)
	return Period{Year: t.Year(), Month: t.Month()}
}

// Before reports whether p is an earlier month than other.
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}
