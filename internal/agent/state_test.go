// internal/agent/state_test.go
package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "init", StateInit.String())
	assert.Equal(t, "on_checkout_page", StateOnCheckoutPage.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, StateSucceeded.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateInit.Terminal())
	assert.False(t, StateOrderSubmitted.Terminal())
}

func TestStateProgressMonotonic(t *testing.T) {
	order := []State{
		StateInit, StateNavigated, StateSearchSubmitted, StateProductSelected,
		StateOnCheckoutPage, StateShippingFilled, StateShippingMethodChosen,
		StateCouponApplied, StatePaymentFilled, StateOrderSubmitted, StateSucceeded,
	}
	prev := -1
	for _, s := range order {
		p := s.Progress()
		assert.Greater(t, p, prev, "state %s", s)
		assert.LessOrEqual(t, p, 100)
		prev = p
	}
	assert.Equal(t, 100, StateFailed.Progress())
}
