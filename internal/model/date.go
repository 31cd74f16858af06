package model

import (
	"fmt"
	"time"
)

// DateLayout is the day/month/year textual form used on the Omie wire.
// Internally dates are plain time.Time calendar dates.
const DateLayout = "02/01/2006"

func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// AddMonths shifts a date forward by the given number of calendar months,
// clipping to the last day of the target month when the original day does
// not exist there (31 Jan + 1 month = 28/29 Feb, never 2/3 Mar).
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	target := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := lastDayOfMonth(target); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, 0, 0, 0, 0, t.Location())
}

func lastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
