// internal/agent/errors.go
package agent

import "errors"

// Hard failure classes. Any of these aborts the run, triggers an error
// screenshot, and surfaces as an unsuccessful report — never as an escaped
// fault. Soft failures (coupon and shipping-method selection) are logged
// in-line and are not represented here.
var (
	// ErrNavigation marks a page that failed to reach the expected URL or
	// ready state within the configured timeout.
	ErrNavigation = errors.New("navigation failed")

	// ErrNoResults marks a search that produced no result cards.
	ErrNoResults = errors.New("search produced no results")

	// ErrNoProducts marks a results page with no purchasable products.
	ErrNoProducts = errors.New("no products with buy affordances found")

	// ErrCheckoutNavigation marks a product selection that did not land on
	// the checkout page.
	ErrCheckoutNavigation = errors.New("did not navigate to checkout page")

	// ErrOrderNotConfirmed marks an order submission that reached neither
	// the confirmation URL nor the confirmation marker.
	ErrOrderNotConfirmed = errors.New("order completion not confirmed")
)
