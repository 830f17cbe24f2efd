// internal/agent/agent_test.go
package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cartpilot-io/cartpilot/internal/browser"
	"github.com/cartpilot-io/cartpilot/internal/config"
)

// mockPage is a testify mock of browser.PageDriver.
type mockPage struct {
	mock.Mock
}

func (m *mockPage) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *mockPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return m.Called(ctx, selector, timeout).Error(0)
}

func (m *mockPage) WaitForURLChange(ctx context.Context, fromURL string, timeout time.Duration) error {
	return m.Called(ctx, fromURL, timeout).Error(0)
}

func (m *mockPage) Click(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *mockPage) ClickNth(ctx context.Context, selector string, index int) error {
	return m.Called(ctx, selector, index).Error(0)
}

func (m *mockPage) Type(ctx context.Context, selector, text string) error {
	return m.Called(ctx, selector, text).Error(0)
}

func (m *mockPage) SelectOption(ctx context.Context, selector, value string) error {
	return m.Called(ctx, selector, value).Error(0)
}

func (m *mockPage) UploadFile(ctx context.Context, selector, path string) error {
	return m.Called(ctx, selector, path).Error(0)
}

func (m *mockPage) Exists(ctx context.Context, selector string) (bool, error) {
	args := m.Called(ctx, selector)
	return args.Bool(0), args.Error(1)
}

func (m *mockPage) Count(ctx context.Context, selector string) (int, error) {
	args := m.Called(ctx, selector)
	return args.Int(0), args.Error(1)
}

func (m *mockPage) Text(ctx context.Context, selector string) (string, error) {
	args := m.Called(ctx, selector)
	return args.String(0), args.Error(1)
}

func (m *mockPage) TextAll(ctx context.Context, selector string) ([]string, error) {
	args := m.Called(ctx, selector)
	var texts []string
	if v := args.Get(0); v != nil {
		texts = v.([]string)
	}
	return texts, args.Error(1)
}

func (m *mockPage) Value(ctx context.Context, selector string) (string, error) {
	args := m.Called(ctx, selector)
	return args.String(0), args.Error(1)
}

func (m *mockPage) Attribute(ctx context.Context, selector, name string) (string, error) {
	args := m.Called(ctx, selector, name)
	return args.String(0), args.Error(1)
}

func (m *mockPage) ScrollIntoView(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *mockPage) ScrollToBottom(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockPage) Location(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockPage) Screenshot(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

func (m *mockPage) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// staticFactory hands out a fixed page, or a fixed error.
type staticFactory struct {
	page browser.PageDriver
	err  error
}

func (f *staticFactory) NewPage(ctx context.Context) (browser.PageDriver, error) {
	return f.page, f.err
}

func testBrowserConfig() config.BrowserConfig {
	return config.BrowserConfig{
		NavigationTimeout: time.Second,
		SelectorTimeout:   time.Second,
	}
}

func newTestAgent(t *testing.T, page browser.PageDriver, opts ...Option) *Agent {
	t.Helper()
	return New(&staticFactory{page: page}, testBrowserConfig(), zap.NewNop(), opts...)
}

// scriptSearchPhase covers navigation through the loaded results page.
func scriptSearchPhase(p *mockPage, resultsURL string, buyCount int) {
	p.On("Navigate", mock.Anything, mock.Anything).Return(nil)
	p.On("Type", mock.Anything, selSearchInput, mock.Anything).Return(nil)
	p.On("Click", mock.Anything, selSearchSubmit).Return(nil)
	p.On("WaitVisible", mock.Anything, selProductCard, mock.Anything).Return(nil)
	p.On("Count", mock.Anything, selBuyButton).Return(buyCount, nil)
	p.On("Location", mock.Anything).Return(resultsURL, nil).Once()
}

// scriptCheckoutPhase covers everything from product selection through the
// confirmed order. Location is scripted in call order: post-selection,
// pre-submit, post-submit.
func scriptCheckoutPhase(p *mockPage) {
	p.On("ClickNth", mock.Anything, selBuyButton, 0).Return(nil)
	p.On("WaitForURLChange", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	p.On("Location", mock.Anything).Return("http://shop.test/checkout/", nil).Twice()
	p.On("Location", mock.Anything).Return("http://shop.test/checkout/success/42/", nil).Once()

	p.On("ScrollIntoView", mock.Anything, mock.Anything).Return(nil)
	p.On("Exists", mock.Anything, selSavedAddress).Return(false, nil)
	p.On("Exists", mock.Anything, selGuestEmail).Return(true, nil)
	p.On("Type", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	p.On("SelectOption", mock.Anything, selShippingCountry, mock.Anything).Return(nil)

	p.On("Count", mock.Anything, selShippingOption).Return(3, nil)
	p.On("ClickNth", mock.Anything, selShippingOption, 1).Return(nil)
	p.On("TextAll", mock.Anything, selShippingOption+" "+selShippingOptionName).
		Return([]string{"Standard", "Express", "Overnight"}, nil)

	p.On("Click", mock.Anything, selCouponToggle).Return(nil)
	p.On("WaitVisible", mock.Anything, selCouponList, mock.Anything).Return(nil)
	p.On("TextAll", mock.Anything, selCouponItem).
		Return([]string{"WELCOME10 - 10% off your order", "SAVE20 - $20 off orders over $100"}, nil)
	p.On("Text", mock.Anything, selItemPrice).Return("$150.00", nil)
	p.On("Text", mock.Anything, selShippingCost).Return("$30.00", nil)
	p.On("ClickNth", mock.Anything, selCouponItem, 1).Return(nil)
	p.On("Value", mock.Anything, selPromoCode).Return("SAVE20", nil)

	p.On("ScrollToBottom", mock.Anything).Return(nil)
	p.On("Click", mock.Anything, selSubmitOrder).Return(nil)
	p.On("Text", mock.Anything, selOrderNumber).Return("ORD-12345", nil)
	p.On("Screenshot", mock.Anything, mock.Anything).Return(nil)
}

func TestRunFullCheckout_Success(t *testing.T) {
	page := &mockPage{}
	scriptSearchPhase(page, "http://shop.test/results", 3)
	scriptCheckoutPhase(page)
	page.On("Close", mock.Anything).Return(nil)

	var states []State
	a := newTestAgent(t, page, WithStateSink(func(s State) { states = append(states, s) }))

	report := a.RunFullCheckout(context.Background(), RunOptions{
		BaseURL:      "http://shop.test",
		Query:        "wireless headphones",
		ArtifactsDir: t.TempDir(),
	})

	require.True(t, report.Success)
	assert.Equal(t, StateSucceeded, report.FinalState)
	assert.False(t, report.MatchedByFallback)
	assert.Equal(t, "SAVE20", report.AppliedCoupon)
	assert.Equal(t, "Express", report.ShippingMethod)
	assert.Equal(t, "ORD-12345", report.OrderRef)
	assert.Equal(t, ConfirmationScreenshot, filepath.Base(report.ScreenshotPath))
	assert.Empty(t, report.Error)

	assert.Equal(t, StateSucceeded, states[len(states)-1])
	page.AssertNumberOfCalls(t, "Close", 1)
}

func TestRunFullCheckout_ProductIDFallback(t *testing.T) {
	page := &mockPage{}
	scriptSearchPhase(page, "http://shop.test/results", 3)
	// The requested product is not on the page.
	page.On("Exists", mock.Anything, `.product-card[data-product-id="SKU-9"] `+selBuyButton).
		Return(false, nil)
	scriptCheckoutPhase(page)
	page.On("Close", mock.Anything).Return(nil)

	a := newTestAgent(t, page)
	report := a.RunFullCheckout(context.Background(), RunOptions{
		BaseURL:      "http://shop.test",
		ProductID:    "SKU-9",
		ArtifactsDir: t.TempDir(),
	})

	require.True(t, report.Success)
	assert.True(t, report.MatchedByFallback)
	page.AssertCalled(t, "ClickNth", mock.Anything, selBuyButton, 0)
}

func TestRunFullCheckout_NoProducts(t *testing.T) {
	page := &mockPage{}
	scriptSearchPhase(page, "http://shop.test/results", 0)
	page.On("Screenshot", mock.Anything, mock.Anything).Return(nil)
	page.On("Close", mock.Anything).Return(nil)

	a := newTestAgent(t, page)
	report := a.RunFullCheckout(context.Background(), RunOptions{
		BaseURL:      "http://shop.test",
		Query:        "anything",
		ArtifactsDir: t.TempDir(),
	})

	require.False(t, report.Success)
	assert.Equal(t, StateFailed, report.FinalState)
	assert.Equal(t, ErrNoProducts.Error(), report.Error)
	assert.Equal(t, ErrorScreenshot, filepath.Base(report.ScreenshotPath))
	page.AssertNumberOfCalls(t, "Close", 1)
}

func TestRunFullCheckout_CheckoutMismatchStopsRun(t *testing.T) {
	page := &mockPage{}
	scriptSearchPhase(page, "http://shop.test/results", 2)
	page.On("ClickNth", mock.Anything, selBuyButton, 0).Return(nil)
	page.On("WaitForURLChange", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	// Selection landed somewhere other than checkout.
	page.On("Location", mock.Anything).Return("http://shop.test/cart/", nil).Once()
	page.On("Screenshot", mock.Anything, mock.Anything).Return(nil)
	page.On("Close", mock.Anything).Return(nil)

	a := newTestAgent(t, page)
	report := a.RunFullCheckout(context.Background(), RunOptions{
		BaseURL:      "http://shop.test",
		ArtifactsDir: t.TempDir(),
	})

	require.False(t, report.Success)
	assert.Contains(t, report.Error, ErrCheckoutNavigation.Error())

	// No checkout-form interaction happened after the mismatch.
	page.AssertNotCalled(t, "SelectOption", mock.Anything, mock.Anything, mock.Anything)
	page.AssertNotCalled(t, "Click", mock.Anything, selSubmitOrder)
	page.AssertNumberOfCalls(t, "Close", 1)
}

func TestRunFullCheckout_CouponFailureIsSoft(t *testing.T) {
	page := &mockPage{}
	scriptSearchPhase(page, "http://shop.test/results", 3)
	// Register the failing toggle before the happy-path script so it wins.
	page.On("Click", mock.Anything, selCouponToggle).Return(errors.New("element detached")).Once()
	scriptCheckoutPhase(page)
	page.On("Close", mock.Anything).Return(nil)

	a := newTestAgent(t, page)
	report := a.RunFullCheckout(context.Background(), RunOptions{
		BaseURL:      "http://shop.test",
		ArtifactsDir: t.TempDir(),
	})

	require.True(t, report.Success)
	assert.Empty(t, report.AppliedCoupon)
	assert.True(t, logContains(report.Log, "Error revealing coupons"))
}

func TestRunFullCheckout_PageInitFailure(t *testing.T) {
	a := New(
		&staticFactory{err: errors.New("allocator unavailable")},
		testBrowserConfig(),
		zap.NewNop(),
	)

	report := a.RunFullCheckout(context.Background(), RunOptions{BaseURL: "http://shop.test"})

	require.False(t, report.Success)
	assert.Equal(t, StateFailed, report.FinalState)
	assert.Equal(t, "allocator unavailable", report.Error)
	assert.Empty(t, report.ScreenshotPath)
}

func TestRunFullCheckout_LogSinkReceivesLinesInOrder(t *testing.T) {
	page := &mockPage{}
	scriptSearchPhase(page, "http://shop.test/results", 0)
	page.On("Screenshot", mock.Anything, mock.Anything).Return(nil)
	page.On("Close", mock.Anything).Return(nil)

	var sunk []string
	a := newTestAgent(t, page, WithLogSink(func(line string) { sunk = append(sunk, line) }))

	report := a.RunFullCheckout(context.Background(), RunOptions{
		BaseURL:      "http://shop.test",
		ArtifactsDir: t.TempDir(),
	})

	assert.Equal(t, report.Log, sunk)
}

func logContains(log []string, substr string) bool {
	for _, line := range log {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
