// internal/agent/coupon.go
package agent

import (
	"strconv"
	"strings"
)

// Known coupon codes and their discount semantics.
const (
	couponWelcome10 = "WELCOME10" // 10% off the item price
	couponFreeShip  = "FREESHIP"  // shipping is free
	couponSave20    = "SAVE20"    // flat 20 off orders of 100 or more
)

// ParseAmount extracts the numeric value from a displayed monetary string.
// All characters other than digits and the decimal point are stripped before
// parsing; an empty or unparsable remainder yields 0.
func ParseAmount(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

// EstimateSavings computes the expected discount for a coupon given the item
// price and shipping cost, based on the coupon's display text. Unknown
// coupons save nothing.
func EstimateSavings(display string, price, shippingCost float64) float64 {
	switch {
	case strings.Contains(display, couponWelcome10):
		return price * 0.10
	case strings.Contains(display, couponFreeShip):
		return shippingCost
	case strings.Contains(display, couponSave20) && price >= 100:
		return 20
	}
	return 0
}

// BestCoupon returns the index of the coupon with the strictly greatest
// estimated savings, along with that savings value. Ties keep the earliest
// candidate: only a strictly greater value replaces the current best, so
// when every coupon computes to zero the first one wins. Returns -1 for an
// empty list.
func BestCoupon(displays []string, price, shippingCost float64) (int, float64) {
	if len(displays) == 0 {
		return -1, 0
	}

	bestIndex := 0
	bestSavings := 0.0
	for i, display := range displays {
		if savings := EstimateSavings(display, price, shippingCost); savings > bestSavings {
			bestSavings = savings
			bestIndex = i
		}
	}
	return bestIndex, bestSavings
}
