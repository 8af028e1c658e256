package normalize

import (
	"fmt"
	"math"
)

// DollarsToCents converts a float64 dollar amount to int64 cents.
// Uses math.Round to avoid truncation bias.
func DollarsToCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

// CentsToDollars formats int64 cents as a dollar string, e.g. 18050 → "180.50".
func CentsToDollars(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
