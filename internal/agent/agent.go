// internal/agent/agent.go
package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cartpilot-io/cartpilot/internal/browser"
	"github.com/cartpilot-io/cartpilot/internal/config"
)

const (
	// submitPause is the brief pause before clicking the order-submit
	// control, giving late-rendering content a chance to attach.
	submitPause = 1 * time.Second
	// scrollSettle lets a smooth scroll finish before the next interaction.
	scrollSettle = 500 * time.Millisecond
)

// Agent executes complete checkout runs. One page session is exclusively
// owned by one run for its entire lifetime; the Agent itself is safe for
// concurrent use across runs.
type Agent struct {
	sessions  browser.PageFactory
	cfg       config.BrowserConfig
	logger    *zap.Logger
	logSink   func(line string)
	stateSink func(state State)
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogSink registers a callback receiving every run log line as it is
// produced, in order.
func WithLogSink(fn func(line string)) Option {
	return func(a *Agent) { a.logSink = fn }
}

// WithStateSink registers a callback receiving every state transition.
func WithStateSink(fn func(state State)) Option {
	return func(a *Agent) { a.stateSink = fn }
}

// New creates an Agent backed by the given page factory.
func New(sessions browser.PageFactory, cfg config.BrowserConfig, logger *zap.Logger, opts ...Option) *Agent {
	a := &Agent{
		sessions: sessions,
		cfg:      cfg,
		logger:   logger.Named("agent"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RunReport is the complete record of one checkout run.
type RunReport struct {
	Success    bool
	FinalState State
	// ProductID echoes the requested product, empty when none was asked for.
	ProductID string
	// MatchedByFallback is set when a specific product was requested but the
	// agent substituted the first listed result.
	MatchedByFallback bool
	AppliedCoupon     string
	ShippingMethod    string
	OrderRef          string
	ScreenshotPath    string
	Error             string
	Log               []string
}

// run carries the mutable state of a single checkout execution.
type run struct {
	agent   *Agent
	page    browser.PageDriver
	opts    RunOptions
	report  *RunReport
	logger  *zap.Logger
	lastURL string
}

// RunFullCheckout executes the full checkout chain. The page session is
// initialized here and torn down on every exit path; no error escapes to
// the caller — the report's Success flag is the authoritative outcome.
func (a *Agent) RunFullCheckout(ctx context.Context, opts RunOptions) *RunReport {
	opts = opts.withDefaults()
	report := &RunReport{ProductID: opts.ProductID}
	r := &run{agent: a, opts: opts, report: report, logger: a.logger}

	r.logf("Initializing checkout agent")
	page, err := a.sessions.NewPage(ctx)
	if err != nil {
		r.logf("Error initializing page session: %v", err)
		report.Error = err.Error()
		report.FinalState = StateFailed
		a.emitState(StateFailed)
		return report
	}
	r.page = page
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := page.Close(closeCtx); err != nil {
			a.logger.Warn("Error closing page session.", zap.Error(err))
		}
	}()

	state := StateInit
	for !state.Terminal() {
		next, err := r.advance(ctx, state)
		if err != nil {
			r.logf("Checkout process failed at %s: %v", state, err)
			report.Error = err.Error()
			r.captureScreenshot(ctx, ErrorScreenshot)
			next = StateFailed
		}
		state = next
		a.emitState(state)
	}

	report.FinalState = state
	report.Success = state == StateSucceeded
	if report.Success {
		r.logf("Checkout automation completed successfully")
	}
	return report
}

// advance executes the transition out of the given state and returns the
// next state or a failure.
func (r *run) advance(ctx context.Context, state State) (State, error) {
	switch state {
	case StateInit:
		return r.openStorefront(ctx)
	case StateNavigated:
		return r.submitSearch(ctx)
	case StateSearchSubmitted:
		return r.selectProduct(ctx)
	case StateProductSelected:
		return r.confirmCheckoutPage(ctx)
	case StateOnCheckoutPage:
		return r.fillShipping(ctx)
	case StateShippingFilled:
		return r.chooseShippingMethod(ctx)
	case StateShippingMethodChosen:
		return r.applyBestCoupon(ctx)
	case StateCouponApplied:
		return r.fillPayment(ctx)
	case StatePaymentFilled:
		return r.submitOrder(ctx)
	case StateOrderSubmitted:
		return r.verifyOrder(ctx)
	}
	return StateFailed, fmt.Errorf("no transition defined from state %s", state)
}

func (r *run) openStorefront(ctx context.Context) (State, error) {
	r.logf("Navigating to %s", r.opts.BaseURL)
	if err := r.page.Navigate(ctx, r.opts.BaseURL); err != nil {
		return StateFailed, fmt.Errorf("%w: %v", ErrNavigation, err)
	}
	return StateNavigated, nil
}

func (r *run) submitSearch(ctx context.Context) (State, error) {
	if r.opts.ImagePath != "" {
		if err := r.uploadReferenceImage(ctx); err != nil {
			return StateFailed, err
		}
	}
	if r.opts.Query != "" {
		if err := r.page.Type(ctx, selSearchInput, r.opts.Query); err != nil {
			return StateFailed, err
		}
	}

	r.logf("Submitting search")
	if err := r.page.Click(ctx, selSearchSubmit); err != nil {
		return StateFailed, err
	}
	if err := r.page.WaitVisible(ctx, selProductCard, r.agent.cfg.SelectorTimeout); err != nil {
		return StateFailed, fmt.Errorf("%w: %v", ErrNoResults, err)
	}
	r.logf("Search submitted, products loaded")
	return StateSearchSubmitted, nil
}

func (r *run) uploadReferenceImage(ctx context.Context) error {
	r.logf("Uploading reference image %s", r.opts.ImagePath)
	if err := r.page.Click(ctx, selUploadButton); err != nil {
		return err
	}
	if err := r.page.UploadFile(ctx, selImageInput, r.opts.ImagePath); err != nil {
		return err
	}
	// The preview only gains a src once the upload has been processed.
	if err := r.page.WaitVisible(ctx, selImagePreview+"[src]", r.agent.cfg.SelectorTimeout); err != nil {
		return err
	}
	r.logf("Reference image uploaded successfully")
	return nil
}

func (r *run) selectProduct(ctx context.Context) (State, error) {
	count, err := r.page.Count(ctx, selBuyButton)
	if err != nil {
		return StateFailed, err
	}
	if count == 0 {
		return StateFailed, ErrNoProducts
	}

	r.lastURL, err = r.page.Location(ctx)
	if err != nil {
		return StateFailed, err
	}

	if r.opts.ProductID != "" {
		matchSel := fmt.Sprintf(`.product-card[data-product-id=%q] %s`, r.opts.ProductID, selBuyButton)
		matched, err := r.page.Exists(ctx, matchSel)
		if err != nil {
			return StateFailed, err
		}
		if matched {
			r.logf("Selecting product %s", r.opts.ProductID)
			if err := r.page.Click(ctx, matchSel); err != nil {
				return StateFailed, err
			}
			return StateProductSelected, nil
		}
		// Known approximation: an unresolvable product id falls back to the
		// first listed result, surfaced on the report rather than hidden.
		r.report.MatchedByFallback = true
		r.logf("Product %s not found on results page, falling back to first result", r.opts.ProductID)
	} else {
		r.logf("Selecting first listed product")
	}

	if err := r.page.ClickNth(ctx, selBuyButton, 0); err != nil {
		return StateFailed, err
	}
	return StateProductSelected, nil
}

func (r *run) confirmCheckoutPage(ctx context.Context) (State, error) {
	if err := r.page.WaitForURLChange(ctx, r.lastURL, r.agent.cfg.NavigationTimeout); err != nil {
		return StateFailed, fmt.Errorf("%w: %v", ErrCheckoutNavigation, err)
	}
	loc, err := r.page.Location(ctx)
	if err != nil {
		return StateFailed, err
	}
	if !strings.Contains(loc, urlCheckoutMarker) {
		return StateFailed, fmt.Errorf("%w: landed on %s", ErrCheckoutNavigation, loc)
	}
	r.logf("Successfully navigated to checkout page")
	return StateOnCheckoutPage, nil
}

func (r *run) fillShipping(ctx context.Context) (State, error) {
	r.scrollTo(ctx, selShippingPanel)

	saved, err := r.page.Exists(ctx, selSavedAddress)
	if err != nil {
		return StateFailed, err
	}
	if saved {
		r.logf("Saved address already selected, skipping shipping form")
		return StateShippingFilled, nil
	}

	r.logf("Filling shipping information")
	shipping := r.opts.Shipping
	fields := []struct {
		selector string
		value    string
	}{
		{selShippingName, shipping.Name},
		{selShippingStreet, shipping.Street},
		{selShippingCity, shipping.City},
		{selShippingState, shipping.State},
		{selShippingZip, shipping.Zip},
	}
	for _, f := range fields {
		if err := r.page.Type(ctx, f.selector, f.value); err != nil {
			return StateFailed, err
		}
	}
	if err := r.page.SelectOption(ctx, selShippingCountry, shipping.Country); err != nil {
		return StateFailed, err
	}

	// Guest checkouts expose an email field; fill it only when present.
	hasEmail, err := r.page.Exists(ctx, selGuestEmail)
	if err != nil {
		return StateFailed, err
	}
	if hasEmail {
		if err := r.page.Type(ctx, selGuestEmail, shipping.Email); err != nil {
			return StateFailed, err
		}
	}

	r.logf("Shipping information completed")
	return StateShippingFilled, nil
}

// chooseShippingMethod is best-effort: a page without options, or a failed
// click, is logged and the run continues.
func (r *run) chooseShippingMethod(ctx context.Context) (State, error) {
	r.scrollTo(ctx, selMethodPanel)

	count, err := r.page.Count(ctx, selShippingOption)
	if err != nil {
		r.logf("Error enumerating shipping options: %v", err)
		return StateShippingMethodChosen, nil
	}

	index := OptionIndex(r.opts.ShippingPreference, count)
	if index < 0 {
		r.logf("Error: no shipping options found")
		return StateShippingMethodChosen, nil
	}

	r.logf("Selecting shipping method with preference: %s", r.opts.ShippingPreference)
	if err := r.page.ClickNth(ctx, selShippingOption, index); err != nil {
		r.logf("Error selecting shipping option: %v", err)
		return StateShippingMethodChosen, nil
	}

	if names, err := r.page.TextAll(ctx, selShippingOption+" "+selShippingOptionName); err == nil && index < len(names) {
		r.report.ShippingMethod = names[index]
		r.logf("Selected shipping method: %s", names[index])
	}
	return StateShippingMethodChosen, nil
}

// applyBestCoupon fails soft: any error is logged and the run proceeds with
// no coupon applied.
func (r *run) applyBestCoupon(ctx context.Context) (State, error) {
	r.scrollTo(ctx, selSidebar)
	r.logf("Analyzing available coupons")

	if err := r.page.Click(ctx, selCouponToggle); err != nil {
		r.logf("Error revealing coupons: %v", err)
		return StateCouponApplied, nil
	}
	if err := r.page.WaitVisible(ctx, selCouponList, r.agent.cfg.SelectorTimeout); err != nil {
		r.logf("Error revealing coupons: %v", err)
		return StateCouponApplied, nil
	}

	displays, err := r.page.TextAll(ctx, selCouponItem)
	if err != nil {
		r.logf("Error reading coupons: %v", err)
		return StateCouponApplied, nil
	}
	if len(displays) == 0 {
		r.logf("No coupons available")
		return StateCouponApplied, nil
	}
	r.logf("Found %d available coupons", len(displays))

	priceText, err := r.page.Text(ctx, selItemPrice)
	if err != nil {
		r.logf("Error reading item price: %v", err)
		return StateCouponApplied, nil
	}
	shippingText, err := r.page.Text(ctx, selShippingCost)
	if err != nil {
		r.logf("Error reading shipping cost: %v", err)
		return StateCouponApplied, nil
	}
	price := ParseAmount(priceText)
	shippingCost := ParseAmount(shippingText)

	index, savings := BestCoupon(displays, price, shippingCost)
	if err := r.page.ClickNth(ctx, selCouponItem, index); err != nil {
		r.logf("Error applying coupon: %v", err)
		return StateCouponApplied, nil
	}

	code, err := r.page.Value(ctx, selPromoCode)
	if err != nil {
		r.logf("Error reading applied coupon code: %v", err)
		return StateCouponApplied, nil
	}
	r.report.AppliedCoupon = code
	r.logf("Applied best coupon: %s (estimated savings %.2f)", code, savings)
	return StateCouponApplied, nil
}

func (r *run) fillPayment(ctx context.Context) (State, error) {
	r.scrollTo(ctx, selPaymentPanel)
	r.logf("Filling payment information")

	payment := r.opts.Payment
	fields := []struct {
		selector string
		value    string
	}{
		{selCardHolder, payment.CardHolder},
		{selCardNumber, payment.CardNumber},
		{selCardExpiry, payment.CardExpiry},
		{selCardCVV, payment.CardCVV},
	}
	for _, f := range fields {
		if err := r.page.Type(ctx, f.selector, f.value); err != nil {
			return StateFailed, err
		}
	}

	r.logf("Payment information completed")
	return StatePaymentFilled, nil
}

func (r *run) submitOrder(ctx context.Context) (State, error) {
	r.logf("Completing order")

	if err := r.page.ScrollToBottom(ctx); err != nil {
		r.logf("Error scrolling to submit control: %v", err)
	}
	if err := pause(ctx, submitPause); err != nil {
		return StateFailed, err
	}

	var err error
	r.lastURL, err = r.page.Location(ctx)
	if err != nil {
		return StateFailed, err
	}
	if err := r.page.Click(ctx, selSubmitOrder); err != nil {
		return StateFailed, err
	}
	if err := r.page.WaitForURLChange(ctx, r.lastURL, r.agent.cfg.NavigationTimeout); err != nil {
		return StateFailed, fmt.Errorf("%w: %v", ErrNavigation, err)
	}
	return StateOrderSubmitted, nil
}

func (r *run) verifyOrder(ctx context.Context) (State, error) {
	loc, err := r.page.Location(ctx)
	if err != nil {
		return StateFailed, err
	}

	confirmed := strings.Contains(loc, urlSuccessMarker)
	if !confirmed {
		confirmed, err = r.page.Exists(ctx, selConfirmationTitle)
		if err != nil {
			return StateFailed, err
		}
	}
	if !confirmed {
		return StateFailed, ErrOrderNotConfirmed
	}

	orderRef, err := r.page.Text(ctx, selOrderNumber)
	if err != nil || orderRef == "" {
		orderRef = "Unknown"
	}
	r.report.OrderRef = orderRef
	r.logf("Order completed successfully, reference: %s", orderRef)

	r.captureScreenshot(ctx, ConfirmationScreenshot)
	return StateSucceeded, nil
}

// scrollTo is purely cosmetic pacing; failures are logged and ignored.
func (r *run) scrollTo(ctx context.Context, selector string) {
	if err := r.page.ScrollIntoView(ctx, selector); err != nil {
		r.logf("Error scrolling to section %s: %v", selector, err)
		return
	}
	if err := pause(ctx, scrollSettle); err != nil {
		r.logf("Scroll settle interrupted: %v", err)
	}
}

// captureScreenshot records the page state as a run artifact. Screenshots
// are side effects: failures never influence the run outcome.
func (r *run) captureScreenshot(ctx context.Context, name string) {
	if r.page == nil {
		return
	}
	path := filepath.Join(r.opts.ArtifactsDir, name)
	if err := r.page.Screenshot(ctx, path); err != nil {
		r.logger.Warn("Could not capture screenshot.", zap.String("path", path), zap.Error(err))
		return
	}
	r.report.ScreenshotPath = path
}

func (r *run) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	r.report.Log = append(r.report.Log, line)
	r.logger.Info(line)
	if r.agent.logSink != nil {
		r.agent.logSink(line)
	}
}

func (a *Agent) emitState(state State) {
	if a.stateSink != nil {
		a.stateSink(state)
	}
}

func pause(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
