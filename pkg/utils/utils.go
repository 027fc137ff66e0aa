package utils

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Decimal places stored for money amounts and for monthly rates
const (
	CurrencyPlaces = 2
	RatePlaces     = 4
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseDate accepts a calendar date or an RFC3339 timestamp, returned in UTC
func ParseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a date", value)
}

// TruncateToDate drops the time of day, working in UTC
func TruncateToDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last instant of t's UTC calendar day
func EndOfDay(t time.Time) time.Time {
	return TruncateToDate(t).Add(24*time.Hour - time.Nanosecond)
}

// DaysBetween counts calendar days from start to end.
// Negative when end is before start.
func DaysBetween(start time.Time, end time.Time) int {
	duration := TruncateToDate(end).Sub(TruncateToDate(start))
	return int(duration.Hours() / 24)
}

// RoundCurrency rounds to cents (half away from zero)
func RoundCurrency(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(CurrencyPlaces)
}

// FitsScale reports whether amount needs no more than places decimal places.
// Trailing zeros do not count.
func FitsScale(amount decimal.Decimal, places int32) bool {
	return amount.Equal(amount.Round(places))
}

// ClampZero returns zero for negative amounts
func ClampZero(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// SumDecimals adds up a list of amounts
func SumDecimals(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
