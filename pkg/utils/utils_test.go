package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDaysBetween(t *testing.T) {
	baseDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		expected int
	}{
		{
			name:     "same day",
			start:    baseDate,
			end:      baseDate.Add(20 * time.Hour),
			expected: 0,
		},
		{
			name:     "across leap day",
			start:    baseDate,
			end:      time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
			expected: 60,
		},
		{
			name:     "end before start",
			start:    baseDate,
			end:      baseDate.AddDate(0, 0, -10),
			expected: -10,
		},
		{
			name:     "other time zone is read in UTC",
			start:    baseDate,
			end:      time.Date(2024, 1, 11, 1, 0, 0, 0, time.FixedZone("UTC+7", 7*3600)),
			expected: 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DaysBetween(tt.start, tt.end))
		})
	}
}

func TestRoundCurrency(t *testing.T) {
	tests := []struct {
		name     string
		amount   decimal.Decimal
		expected decimal.Decimal
	}{
		{name: "rounds half up", amount: decimal.RequireFromString("61.205"), expected: decimal.RequireFromString("61.21")},
		{name: "rounds down", amount: decimal.RequireFromString("61.2049"), expected: decimal.RequireFromString("61.20")},
		{name: "already cents", amount: decimal.RequireFromString("10.50"), expected: decimal.RequireFromString("10.5")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundCurrency(tt.amount)
			assert.True(t, result.Equal(tt.expected),
				"Expected %v, but got %v", tt.expected, result)
		})
	}
}

func TestFitsScale(t *testing.T) {
	tests := []struct {
		amount   string
		places   int32
		expected bool
	}{
		{amount: "100", places: CurrencyPlaces, expected: true},
		{amount: "100.05", places: CurrencyPlaces, expected: true},
		{amount: "100.5000", places: CurrencyPlaces, expected: true},
		{amount: "100.005", places: CurrencyPlaces, expected: false},
		{amount: "0.004", places: CurrencyPlaces, expected: false},
		{amount: "1.1234", places: RatePlaces, expected: true},
		{amount: "1.123456", places: RatePlaces, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.expected, FitsScale(decimal.RequireFromString(tt.amount), tt.places))
		})
	}
}

func TestClampZero(t *testing.T) {
	assert.True(t, ClampZero(decimal.NewFromInt(-5)).IsZero())
	assert.True(t, ClampZero(decimal.NewFromInt(5)).Equal(decimal.NewFromInt(5)))
}

func TestSumDecimals(t *testing.T) {
	total := SumDecimals(decimal.NewFromInt(1), decimal.RequireFromString("2.5"), decimal.RequireFromString("0.25"))
	assert.True(t, total.Equal(decimal.RequireFromString("3.75")))
	assert.True(t, SumDecimals().IsZero())
}

func TestParseDate(t *testing.T) {
	parsed, err := ParseDate("2024-02-29")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), parsed)

	parsed, err = ParseDate("2024-02-29T23:00:00-05:00")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 4, 0, 0, 0, time.UTC), parsed)

	_, err = ParseDate("02/29/2024")
	assert.Error(t, err)
}

func TestEndOfDay(t *testing.T) {
	end := EndOfDay(time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 5, 10, 23, 59, 59, 999999999, time.UTC), end)
}
