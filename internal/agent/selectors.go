// internal/agent/selectors.go
package agent

// Selectors for the storefront the agent drives. These mirror the page
// structure the checkout flow is built against; URL markers identify the
// checkout and confirmation pages.
const (
	selUploadButton = "#uploadBtn"
	selImageInput   = "#imageUpload"
	selImagePreview = "#previewImg"

	selSearchInput  = "#userInput"
	selSearchSubmit = `#chatForm button[type="submit"]`
	selProductCard  = ".product-card"
	selBuyButton    = ".buy-now-btn"

	selSavedAddress    = ".address-card.selected"
	selShippingName    = "#shipping_name"
	selShippingStreet  = "#shipping_street"
	selShippingCity    = "#shipping_city"
	selShippingState   = "#shipping_state"
	selShippingZip     = "#shipping_zip"
	selShippingCountry = "#shipping_country"
	selGuestEmail      = "#email"

	selShippingOption     = ".shipping-option"
	selShippingOptionName = ".shipping-name"

	selCouponToggle = `[onclick="toggleCoupons()"]`
	selCouponList   = "#coupon-list"
	selCouponItem   = ".coupon-item"
	selItemPrice    = ".item-price"
	selShippingCost = "#shipping"
	selPromoCode    = "#promo_code"

	selCardHolder = "#card_holder"
	selCardNumber = "#card_number"
	selCardExpiry = "#card_expiry"
	selCardCVV    = "#card_cvv"

	selSubmitOrder       = ".btn-success.btn-block"
	selConfirmationTitle = ".confirmation-title"
	selOrderNumber       = ".order-number"

	selShippingPanel = ".checkout-panel:nth-child(1)"
	selMethodPanel   = ".checkout-panel:nth-child(2)"
	selPaymentPanel  = ".checkout-panel:nth-child(3)"
	selSidebar       = ".checkout-sidebar"

	urlCheckoutMarker = "/checkout/"
	urlSuccessMarker  = "/checkout/success/"
)

// Artifact file names, fixed by convention.
const (
	ConfirmationScreenshot = "order_confirmation.png"
	ErrorScreenshot        = "checkout_error.png"
)
