// Package chrome scrapes marketplaces with a headless Chrome driven by chromedp.
// Every task gets its own browser so sessions never share tabs or cookies.
package chrome

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/Zakerman110/master-work-644/config"
	"github.com/Zakerman110/master-work-644/models"
	"github.com/Zakerman110/master-work-644/scraper"
	"github.com/Zakerman110/master-work-644/utils"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Adapter is a selector-driven marketplace scraper
type Adapter struct {
	site        Site
	cfg         *config.Config
	logger      *utils.Logger
	rateLimiter *utils.RateLimiter
}

// NewAdapter creates an adapter for one site. Page loads are rate limited
// per adapter, across all of its sessions.
func NewAdapter(site Site, cfg *config.Config, logger *utils.Logger) *Adapter {
	return &Adapter{
		site:        site,
		cfg:         cfg,
		logger:      logger.With("marketplace", site.Marketplace),
		rateLimiter: utils.NewRateLimiter(cfg.RateLimitDelay),
	}
}

// NewAdapters builds adapters for the named marketplaces, in order
func NewAdapters(names []string, cfg *config.Config, logger *utils.Logger) ([]scraper.Adapter, error) {
	var out []scraper.Adapter
	for _, name := range names {
		site, ok := SiteFor(name)
		if !ok {
			return nil, fmt.Errorf("unknown marketplace %q (known: %s)", name, strings.Join(Known(), ", "))
		}
		out = append(out, NewAdapter(site, cfg, logger))
	}
	return out, nil
}

func (a *Adapter) Marketplace() models.Marketplace { return a.site.Marketplace }

// Open starts a dedicated browser. It fails if Chrome does not come up before ctx ends.
func (a *Adapter) Open(ctx context.Context) (scraper.Session, error) {
	browserCtx, cancel := a.newContext()

	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	select {
	case err := <-started:
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}

	s := &session{
		site:       a.site,
		cfg:        a.cfg,
		logger:     a.logger,
		limiter:    a.rateLimiter,
		browserCtx: browserCtx,
		cancel:     cancel,
	}
	if a.site.Searchable {
		return &searchSession{s}, nil
	}
	return s, nil
}

// newContext creates a fresh chromedp context (one browser, one tab)
func (a *Adapter) newContext() (context.Context, context.CancelFunc) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", a.cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("log-level", "3"),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1280, 900),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	cancel := func() {
		cancelCtx()
		cancelAlloc()
	}
	return ctx, cancel
}
