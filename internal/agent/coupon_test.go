// internal/agent/coupon_test.go
package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"$1,299.99", 1299.99},
		{"₹ 450", 450},
		{"Total: $30.00", 30},
		{"Free", 0},
		{"", 0},
		{"$.", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseAmount(tc.in), "input %q", tc.in)
	}
}

func TestEstimateSavings(t *testing.T) {
	assert.Equal(t, 15.0, EstimateSavings("WELCOME10 - 10% off", 150, 30))
	assert.Equal(t, 30.0, EstimateSavings("FREESHIP - free shipping", 150, 30))
	assert.Equal(t, 20.0, EstimateSavings("SAVE20 - $20 off orders over $100", 150, 30))

	// SAVE20 requires the qualifying order value.
	assert.Equal(t, 0.0, EstimateSavings("SAVE20 - $20 off orders over $100", 99.99, 30))

	assert.Equal(t, 0.0, EstimateSavings("MYSTERY50", 150, 30))
}

func TestBestCoupon(t *testing.T) {
	t.Run("picks highest estimated savings", func(t *testing.T) {
		// WELCOME10 saves 15, SAVE20 saves 20.
		idx, savings := BestCoupon([]string{"WELCOME10 - 10% off", "SAVE20 - flat $20"}, 150, 30)
		assert.Equal(t, 1, idx)
		assert.Equal(t, 20.0, savings)
	})

	t.Run("shipping rebate beats unqualified flat discount", func(t *testing.T) {
		// SAVE20 does not qualify at price 50, FREESHIP saves the full 40.
		idx, savings := BestCoupon([]string{"SAVE20 - flat $20", "FREESHIP"}, 50, 40)
		assert.Equal(t, 1, idx)
		assert.Equal(t, 40.0, savings)
	})

	t.Run("all zero keeps the first coupon", func(t *testing.T) {
		idx, savings := BestCoupon([]string{"MYSTERY", "UNKNOWN", "NOPE"}, 50, 0)
		assert.Equal(t, 0, idx)
		assert.Equal(t, 0.0, savings)
	})

	t.Run("empty list", func(t *testing.T) {
		idx, _ := BestCoupon(nil, 100, 10)
		assert.Equal(t, -1, idx)
	})
}
