// internal/browser/chromedp.go
package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	cdppage "github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cartpilot-io/cartpilot/internal/config"
)

// Page drives a single browser tab over CDP and implements PageDriver.
type Page struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    config.BrowserConfig

	onClose   func()
	closeOnce sync.Once
}

var _ PageDriver = (*Page)(nil)

// newPage wraps an already-created chromedp tab context.
func newPage(ctx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger, onClose func()) *Page {
	id := uuid.New().String()
	p := &Page{
		id:      id,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With(zap.String("page_id", id)),
		cfg:     cfg,
		onClose: onClose,
	}
	p.listenTarget()
	return p
}

// listenTarget surfaces page exceptions in the log and accepts any
// JavaScript dialog so a stray confirm() cannot stall the run.
func (p *Page) listenTarget() {
	chromedp.ListenTarget(p.ctx, func(ev any) {
		switch e := ev.(type) {
		case *cdpruntime.EventExceptionThrown:
			p.logger.Debug("Page threw an exception.", zap.String("detail", e.ExceptionDetails.Error()))
		case *cdppage.EventJavascriptDialogOpening:
			p.logger.Debug("Dismissing JavaScript dialog.", zap.String("message", e.Message))
			go func() {
				if err := chromedp.Run(p.ctx, cdppage.HandleJavaScriptDialog(true)); err != nil {
					p.logger.Debug("Could not dismiss dialog.", zap.Error(err))
				}
			}()
		}
	})
}

// ID returns the unique identifier for this page.
func (p *Page) ID() string {
	return p.id
}

// runActions executes chromedp actions, ensuring they respect both the page
// lifetime (p.ctx) and the incoming request context (ctx).
func (p *Page) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// runActionsWithTimeout is runActions with an additional upper bound.
func (p *Page) runActionsWithTimeout(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	boundedCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.runActions(boundedCtx, actions...)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("Navigating.", zap.String("url", url))

	err := p.runActionsWithTimeout(ctx, p.cfg.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigation to '%s' failed: %w", url, err)
	}
	return p.settle(ctx)
}

// settle grants the configured quiet period so late-rendering content can
// attach before the next interaction.
func (p *Page) settle(ctx context.Context) error {
	if p.cfg.SettleWait <= 0 {
		return nil
	}
	settleCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()

	select {
	case <-time.After(p.cfg.SettleWait):
		return nil
	case <-settleCtx.Done():
		return settleCtx.Err()
	}
}

func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := p.runActionsWithTimeout(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("element '%s' did not become visible within %s: %w", selector, timeout, err)
	}
	return nil
}

func (p *Page) WaitForURLChange(ctx context.Context, fromURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		current, err := p.Location(ctx)
		if err != nil {
			return err
		}
		if current != fromURL && current != "" {
			// A navigation landed; wait for the new document too.
			if err := p.runActionsWithTimeout(ctx, timeout, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
				p.logger.Debug("WaitReady after URL change failed.", zap.Error(err))
			}
			return p.settle(ctx)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("page did not navigate away from '%s' within %s", fromURL, timeout)
		}

		waitCtx, cancel := CombineContext(p.ctx, ctx)
		select {
		case <-time.After(100 * time.Millisecond):
			cancel()
		case <-waitCtx.Done():
			cancel()
			return waitCtx.Err()
		}
	}
}

func (p *Page) Click(ctx context.Context, selector string) error {
	err := p.runActionsWithTimeout(ctx, p.cfg.SelectorTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("click on '%s' failed: %w", selector, err)
	}
	return nil
}

func (p *Page) ClickNth(ctx context.Context, selector string, index int) error {
	// chromedp targets single nodes; dispatching the click from the page
	// itself is the reliable way to hit the n-th match.
	script := fmt.Sprintf(`(function() {
        const nodes = document.querySelectorAll(%q);
        if (nodes.length <= %d) { return false; }
        nodes[%d].click();
        return true;
    })()`, selector, index, index)

	var clicked bool
	if err := p.runActionsWithTimeout(ctx, p.cfg.SelectorTimeout, chromedp.Evaluate(script, &clicked)); err != nil {
		return fmt.Errorf("click on '%s'[%d] failed: %w", selector, index, err)
	}
	if !clicked {
		return fmt.Errorf("no element at index %d for selector '%s'", index, selector)
	}
	return nil
}

func (p *Page) Type(ctx context.Context, selector, text string) error {
	err := p.runActionsWithTimeout(ctx, p.cfg.SelectorTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("typing into '%s' failed: %w", selector, err)
	}
	return nil
}

func (p *Page) SelectOption(ctx context.Context, selector, value string) error {
	err := p.runActionsWithTimeout(ctx, p.cfg.SelectorTimeout,
		chromedp.SetValue(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("selecting '%s' in '%s' failed: %w", value, selector, err)
	}
	return nil
}

func (p *Page) UploadFile(ctx context.Context, selector, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("could not resolve upload path '%s': %w", path, err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return fmt.Errorf("upload file not accessible: %w", err)
	}

	err = p.runActionsWithTimeout(ctx, p.cfg.SelectorTimeout,
		chromedp.SetUploadFiles(selector, []string{absPath}, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("file upload via '%s' failed: %w", selector, err)
	}
	return nil
}

func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	var exists bool
	script := fmt.Sprintf(`document.querySelector(%q) !== null`, selector)
	if err := p.runActions(ctx, chromedp.Evaluate(script, &exists)); err != nil {
		return false, fmt.Errorf("existence check for '%s' failed: %w", selector, err)
	}
	return exists, nil
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	var count int
	script := fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
	if err := p.runActions(ctx, chromedp.Evaluate(script, &count)); err != nil {
		return 0, fmt.Errorf("count for '%s' failed: %w", selector, err)
	}
	return count, nil
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	var text string
	script := fmt.Sprintf(`(function() {
        const el = document.querySelector(%q);
        return el ? el.textContent.trim() : "";
    })()`, selector)
	if err := p.runActions(ctx, chromedp.Evaluate(script, &text)); err != nil {
		return "", fmt.Errorf("text extraction for '%s' failed: %w", selector, err)
	}
	return text, nil
}

func (p *Page) TextAll(ctx context.Context, selector string) ([]string, error) {
	var texts []string
	script := fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).map(el => el.textContent.trim())`, selector)
	if err := p.runActions(ctx, chromedp.Evaluate(script, &texts)); err != nil {
		return nil, fmt.Errorf("text extraction for all '%s' failed: %w", selector, err)
	}
	return texts, nil
}

func (p *Page) Value(ctx context.Context, selector string) (string, error) {
	var value string
	script := fmt.Sprintf(`(function() {
        const el = document.querySelector(%q);
        return el && el.value !== undefined ? String(el.value) : "";
    })()`, selector)
	if err := p.runActions(ctx, chromedp.Evaluate(script, &value)); err != nil {
		return "", fmt.Errorf("value extraction for '%s' failed: %w", selector, err)
	}
	return value, nil
}

func (p *Page) Attribute(ctx context.Context, selector, name string) (string, error) {
	var value string
	script := fmt.Sprintf(`(function() {
        const el = document.querySelector(%q);
        return el ? (el.getAttribute(%q) || "") : "";
    })()`, selector, name)
	if err := p.runActions(ctx, chromedp.Evaluate(script, &value)); err != nil {
		return "", fmt.Errorf("attribute extraction for '%s' failed: %w", selector, err)
	}
	return value, nil
}

func (p *Page) ScrollIntoView(ctx context.Context, selector string) error {
	script := fmt.Sprintf(`(function() {
        const el = document.querySelector(%q);
        if (el) { el.scrollIntoView({behavior: "smooth", block: "center"}); }
    })()`, selector)
	if err := p.runActions(ctx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("scroll to '%s' failed: %w", selector, err)
	}
	return nil
}

func (p *Page) ScrollToBottom(ctx context.Context) error {
	if err := p.runActions(ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil)); err != nil {
		return fmt.Errorf("scroll to bottom failed: %w", err)
	}
	return nil
}

func (p *Page) Location(ctx context.Context) (string, error) {
	var url string
	if err := p.runActions(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("could not read page location: %w", err)
	}
	return url, nil
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := p.runActions(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return fmt.Errorf("screenshot capture failed: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("screenshot write to '%s' failed: %w", path, err)
	}
	p.logger.Debug("Screenshot captured.", zap.String("path", path))
	return nil
}

// Close releases the tab. Idempotent: teardown happens exactly once no
// matter how many exit paths reach it.
func (p *Page) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.logger.Debug("Closing page.")
		if p.cancel != nil {
			p.cancel()
		}
		if p.onClose != nil {
			p.onClose()
		}
	})
	return nil
}

// CombineContext creates a new context that is canceled when either parent
// is canceled. Browser operations must respect both the page lifecycle and
// the caller's deadline.
func CombineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)

	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
