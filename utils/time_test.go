package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestMonthsBetween(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		expected int
	}{
		{"same instant", date(2024, 1, 15), date(2024, 1, 15), 0},
		{"end before start", date(2024, 3, 1), date(2024, 1, 1), 0},
		{"one day short of a month", date(2024, 1, 15), date(2024, 2, 14), 0},
		{"exactly one month", date(2024, 1, 15), date(2024, 2, 15), 1},
		{"two and a half months", date(2024, 1, 15), date(2024, 3, 30), 2},
		{"across year end", date(2023, 11, 20), date(2024, 2, 21), 3},
		{"end of month into short month", date(2024, 1, 31), date(2024, 2, 29), 0},
		{"full year", date(2023, 6, 1), date(2024, 6, 1), 12},
		{
			"same day earlier clock",
			time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC),
			time.Date(2024, 2, 15, 9, 0, 0, 0, time.UTC),
			0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MonthsBetween(tt.start, tt.end))
		})
	}
}

func TestMonthsBetween_NormalizesZones(t *testing.T) {
	tehran := time.FixedZone("IRST", 3*3600+1800)
	start := time.Date(2024, 1, 15, 2, 0, 0, 0, tehran) // 2024-01-14 22:30 UTC
	end := time.Date(2024, 2, 14, 23, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, MonthsBetween(start, end))
}

func TestStartOfDay(t *testing.T) {
	in := time.Date(2024, 5, 10, 23, 59, 59, 999, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), StartOfDay(in))
}

func TestDaysAgo(t *testing.T) {
	now := date(2024, 3, 8)
	assert.Equal(t, date(2024, 3, 1), DaysAgo(now, 7))
	assert.Equal(t, now, DaysAgo(now, 0))
}

func TestMoneyHelpers(t *testing.T) {
	t.Run("truncation never rounds up", func(t *testing.T) {
		assert.True(t, TruncMoney(decimal.RequireFromString("10.999")).Equal(decimal.RequireFromString("10.99")))
		assert.True(t, TruncMoney(decimal.RequireFromString("-1.239")).Equal(decimal.RequireFromString("-1.23")))
	})

	t.Run("percent of amount", func(t *testing.T) {
		assert.True(t, PercentOf(decimal.NewFromInt(30), decimal.NewFromInt(50)).Equal(decimal.NewFromInt(15)))
		assert.True(t, PercentOf(decimal.RequireFromString("33.33"), decimal.NewFromInt(25)).Equal(decimal.RequireFromString("8.33")))
	})

	t.Run("sum", func(t *testing.T) {
		sum := SumDecimals(decimal.RequireFromString("1.10"), decimal.RequireFromString("2.20"), decimal.RequireFromString("3.30"))
		assert.True(t, sum.Equal(decimal.RequireFromString("6.60")))
		assert.True(t, SumDecimals().IsZero())
	})
}
