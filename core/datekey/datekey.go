// Package datekey computes the canonical "YYYY-MM-DD" day keys of the class.
//
// Every student and admin shares one day boundary: dates are always computed in
// Africa/Johannesburg, whatever the time zone of the caller or of the server.
package datekey

import (
	"fmt"
	"time"
	_ "time/tzdata" // the day boundary must not depend on the host zoneinfo

	"github.com/pkg/errors"
)

const (
	// TimeZone is the shared day-boundary time zone.
	TimeZone = "Africa/Johannesburg"
	// Layout is the date key layout.
	Layout = "2006-01-02"
)

var (
	ErrInvalid = errors.New("invalid date key")

	location = mustLoadLocation()
)

func mustLoadLocation() *time.Location {
	loc, err := time.LoadLocation(TimeZone)
	if err != nil {
		panic(errors.Wrapf(err, "loading %s", TimeZone))
	}
	return loc
}

// Location returns the shared day-boundary location.
func Location() *time.Location { return location }

// Today returns the date key of t in the shared time zone.
func Today(t time.Time) string {
	return t.In(location).Format(Layout)
}

// Parse returns midnight of the given date key in the shared time zone.
func Parse(key string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, key, location)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalid, "%q", key)
	}
	return t, nil
}

// Valid reports whether key is a well-formed calendar date key.
func Valid(key string) bool {
	_, err := Parse(key)
	return err == nil
}

// AddDays shifts key by n calendar days.
func AddDays(key string, n int) (string, error) {
	t, err := Parse(key)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(Layout), nil
}

// DaysBetween returns the number of whole calendar days from `from` to `to`.
// It is negative when `to` is before `from`.
func DaysBetween(from, to string) (int, error) {
	f, err := Parse(from)
	if err != nil {
		return 0, err
	}
	t, err := Parse(to)
	if err != nil {
		return 0, err
	}
	// compare as UTC dates so DST shifts never yield fractional days
	fu := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, time.UTC)
	tu := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(tu.Sub(fu).Hours() / 24), nil
}

// WeekKey returns the ISO 8601 week of key, formatted "YYYY-Www".
func WeekKey(key string) (string, error) {
	t, err := Parse(key)
	if err != nil {
		return "", err
	}
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week), nil
}
