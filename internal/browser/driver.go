// internal/browser/driver.go
package browser

import (
	"context"
	"time"
)

// PageDriver is the capability surface the checkout agent needs from a
// browser page. It abstracts the underlying implementation (chromedp here)
// so the agent's decision logic can be exercised against fakes in tests.
//
// All selectors are CSS. Every method is a bounded blocking call: it either
// completes, fails, or times out via the supplied context/timeout — it never
// hangs indefinitely.
type PageDriver interface {
	// Navigate loads the URL and waits for the document to become ready,
	// then grants the configured settle period for late-rendering content.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until the selector matches a visible element.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	// WaitForURLChange blocks until the page location differs from fromURL,
	// i.e. a navigation triggered by a prior action has landed.
	WaitForURLChange(ctx context.Context, fromURL string, timeout time.Duration) error

	// Click clicks the first element matching the selector.
	Click(ctx context.Context, selector string) error

	// ClickNth clicks the index-th (0-based) element matching the selector.
	ClickNth(ctx context.Context, selector string, index int) error

	// Type sends the text to the first element matching the selector.
	Type(ctx context.Context, selector, text string) error

	// SelectOption chooses the option with the given value in a <select>.
	SelectOption(ctx context.Context, selector, value string) error

	// UploadFile attaches a local file to a file input.
	UploadFile(ctx context.Context, selector, path string) error

	// Exists reports whether any element matches the selector right now.
	Exists(ctx context.Context, selector string) (bool, error)

	// Count returns the number of elements matching the selector.
	Count(ctx context.Context, selector string) (int, error)

	// Text returns the trimmed text content of the first match, or "" if
	// nothing matches.
	Text(ctx context.Context, selector string) (string, error)

	// TextAll returns the text content of every match, in document order.
	TextAll(ctx context.Context, selector string) ([]string, error)

	// Value returns the form value of the first match, or "" if nothing
	// matches.
	Value(ctx context.Context, selector string) (string, error)

	// Attribute returns the given attribute of the first match, or "" if the
	// element or attribute is absent.
	Attribute(ctx context.Context, selector, name string) (string, error)

	// ScrollIntoView scrolls the first match into the viewport.
	ScrollIntoView(ctx context.Context, selector string) error

	// ScrollToBottom scrolls the page to the bottom of the document.
	ScrollToBottom(ctx context.Context) error

	// Location returns the page's current URL.
	Location(ctx context.Context) (string, error)

	// Screenshot captures the full page to the given path.
	Screenshot(ctx context.Context, path string) error

	// Close releases the page and its tab. Safe to call more than once.
	Close(ctx context.Context) error
}

// PageFactory creates isolated pages. One page is exclusively owned by one
// checkout run for its entire lifetime.
type PageFactory interface {
	NewPage(ctx context.Context) (PageDriver, error)
}
