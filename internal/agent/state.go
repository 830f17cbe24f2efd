// internal/agent/state.go
package agent

// State identifies the agent's position in the checkout sequence. The
// machine is linear: each transition either advances to the next state or
// fails the run. The page's structure is never the source of truth for
// control flow.
type State int

const (
	StateInit State = iota
	StateNavigated
	StateSearchSubmitted
	StateProductSelected
	StateOnCheckoutPage
	StateShippingFilled
	StateShippingMethodChosen
	StateCouponApplied
	StatePaymentFilled
	StateOrderSubmitted
	StateSucceeded
	StateFailed
)

var stateNames = map[State]string{
	StateInit:                 "init",
	StateNavigated:            "navigated",
	StateSearchSubmitted:      "search_submitted",
	StateProductSelected:      "product_selected",
	StateOnCheckoutPage:       "on_checkout_page",
	StateShippingFilled:       "shipping_filled",
	StateShippingMethodChosen: "shipping_method_chosen",
	StateCouponApplied:        "coupon_applied",
	StatePaymentFilled:        "payment_filled",
	StateOrderSubmitted:       "order_submitted",
	StateSucceeded:            "succeeded",
	StateFailed:               "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the state ends the run.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Progress maps a state to a completion percentage for job reporting.
func (s State) Progress() int {
	switch s {
	case StateInit:
		return 0
	case StateNavigated:
		return 10
	case StateSearchSubmitted:
		return 25
	case StateProductSelected:
		return 35
	case StateOnCheckoutPage:
		return 45
	case StateShippingFilled:
		return 60
	case StateShippingMethodChosen:
		return 70
	case StateCouponApplied:
		return 80
	case StatePaymentFilled:
		return 90
	case StateOrderSubmitted:
		return 95
	case StateSucceeded, StateFailed:
		return 100
	}
	return 0
}
