package utils

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places money amounts are stored with
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// TruncMoney cuts an amount down to storable precision without ever rounding up
func TruncMoney(d decimal.Decimal) decimal.Decimal {
	return d.Truncate(MoneyPlaces)
}

// PercentOf returns amount × percent / 100, truncated to money precision
func PercentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return TruncMoney(amount.Mul(percent).Div(hundred))
}

// SumDecimals adds a list of amounts
func SumDecimals(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
