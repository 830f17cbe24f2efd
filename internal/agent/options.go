// internal/agent/options.go
package agent

// ShippingInfo carries the address used for the shipping form. Empty fields
// are filled from defaults at merge time; the caller's struct is never
// mutated.
type ShippingInfo struct {
	Name    string
	Street  string
	City    string
	State   string
	Zip     string
	Country string
	Email   string
}

// PaymentInfo carries the card details for the payment form. The defaults
// are fixed sample values: this agent targets test and staging checkouts,
// never real financial instruments.
type PaymentInfo struct {
	CardHolder string
	CardNumber string
	CardExpiry string
	CardCVV    string
}

// Preference selects which presented shipping option the agent picks.
type Preference string

const (
	PreferFastest   Preference = "fastest"
	PreferCheapest  Preference = "cheapest"
	PreferBestValue Preference = "best_value"
)

// RunOptions configures a single checkout run.
type RunOptions struct {
	// BaseURL is the storefront entry point.
	BaseURL string
	// ProductID, when set, is resolved to a matching buy affordance. Absent
	// a reliable match the agent falls back to the first result and flags it
	// on the report.
	ProductID string
	// Query is an optional free-text search query.
	Query string
	// ImagePath, when set, is uploaded as a reference image before search.
	ImagePath string

	Shipping           ShippingInfo
	Payment            PaymentInfo
	ShippingPreference Preference

	// ArtifactsDir receives the confirmation or error screenshot.
	ArtifactsDir string
}

func defaultShipping() ShippingInfo {
	return ShippingInfo{
		Name:    "John Doe",
		Street:  "123 Main Street",
		City:    "Bangalore",
		State:   "Karnataka",
		Zip:     "560001",
		Country: "India",
		Email:   "test@example.com",
	}
}

func defaultPayment() PaymentInfo {
	return PaymentInfo{
		CardHolder: "John Doe",
		CardNumber: "4111111111111111",
		CardExpiry: "12/25",
		CardCVV:    "123",
	}
}

// MergeShipping fills every absent field of override from base and returns
// the result. Pure: neither argument is modified.
func MergeShipping(base, override ShippingInfo) ShippingInfo {
	out := base
	if override.Name != "" {
		out.Name = override.Name
	}
	if override.Street != "" {
		out.Street = override.Street
	}
	if override.City != "" {
		out.City = override.City
	}
	if override.State != "" {
		out.State = override.State
	}
	if override.Zip != "" {
		out.Zip = override.Zip
	}
	if override.Country != "" {
		out.Country = override.Country
	}
	if override.Email != "" {
		out.Email = override.Email
	}
	return out
}

// MergePayment fills every absent field of override from base and returns
// the result. Pure: neither argument is modified.
func MergePayment(base, override PaymentInfo) PaymentInfo {
	out := base
	if override.CardHolder != "" {
		out.CardHolder = override.CardHolder
	}
	if override.CardNumber != "" {
		out.CardNumber = override.CardNumber
	}
	if override.CardExpiry != "" {
		out.CardExpiry = override.CardExpiry
	}
	if override.CardCVV != "" {
		out.CardCVV = override.CardCVV
	}
	return out
}

// withDefaults resolves the effective options for a run.
func (o RunOptions) withDefaults() RunOptions {
	out := o
	out.Shipping = MergeShipping(defaultShipping(), o.Shipping)
	out.Payment = MergePayment(defaultPayment(), o.Payment)
	if out.ShippingPreference == "" {
		out.ShippingPreference = PreferBestValue
	}
	if out.ArtifactsDir == "" {
		out.ArtifactsDir = "."
	}
	return out
}
