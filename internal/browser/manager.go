// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/cartpilot-io/cartpilot/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Manager owns the browser process lifecycle and creates one isolated tab
// per checkout run. Initialization is deferred until the first page is
// requested.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu    sync.Mutex
	pages map[string]*Page
	wg    sync.WaitGroup

	initOnce sync.Once
}

var _ PageFactory = (*Manager)(nil)

// NewManager creates a browser manager. The Chrome process is not launched
// until NewPage is first called.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.Named("browser_manager"),
		pages:  make(map[string]*Page),
	}
}

// initialize builds the exec allocator that owns the Chrome process.
// Allocator construction cannot fail; launch errors surface from the first
// chromedp.Run against a tab context.
func (m *Manager) initialize() {
	m.initOnce.Do(func() {
		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if !m.cfg.Headless {
			opts = append(opts, chromedp.Flag("headless", false))
		}
		// Stability flags for containerized environments.
		opts = append(opts,
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		for _, arg := range m.cfg.Args {
			opts = append(opts, chromedp.Flag(arg, true))
		}

		// The allocator must outlive the caller's context: pages created later
		// hang off it, so it is anchored to Background and torn down in Shutdown.
		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
		m.logger.Info("Browser allocator initialized.", zap.Bool("headless", m.cfg.Headless))
	})
}

// NewPage creates a fresh, isolated tab for a single run.
func (m *Manager) NewPage(ctx context.Context) (PageDriver, error) {
	m.initialize()

	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx)

	// Force target creation now so failures surface here, not mid-run.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to create browser tab: %w", err)
	}

	m.wg.Add(1)
	var page *Page
	page = newPage(tabCtx, tabCancel, m.cfg, m.logger, func() {
		m.mu.Lock()
		delete(m.pages, page.ID())
		m.mu.Unlock()
		m.wg.Done()
	})

	m.mu.Lock()
	m.pages[page.ID()] = page
	m.mu.Unlock()

	m.logger.Info("New page created.", zap.String("page_id", page.ID()))
	return page, nil
}

// Shutdown closes all outstanding pages and the browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager.")

	m.mu.Lock()
	pagesToClose := make([]*Page, 0, len(m.pages))
	for _, p := range m.pages {
		pagesToClose = append(pagesToClose, p)
	}
	m.mu.Unlock()

	for _, p := range pagesToClose {
		go func(p *Page) {
			if err := p.Close(ctx); err != nil {
				m.logger.Warn("Error closing page during shutdown.", zap.String("page_id", p.ID()), zap.Error(err))
			}
		}(p)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All pages closed gracefully.")
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for pages to close.", zap.Error(ctx.Err()))
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Grace period elapsed waiting for pages to close.")
	}

	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
