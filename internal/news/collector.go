package news

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/hyperalpha/arena/internal/model"
)

// Config controls the headline collector.
type Config struct {
	// SourceURL is the page to scrape.
	SourceURL string
	// Selector matches headline anchor elements.
	Selector string
	// Interval is how often the page is re-fetched.
	Interval time.Duration
	// Headless toggles the browser window; always true in production.
	Headless bool
	// MaxItems caps the cached headline count.
	MaxItems int
}

func (c Config) withDefaults() Config {
	if c.Selector == "" {
		c.Selector = "a.headline"
	}
	if c.Interval <= 0 {
		c.Interval = 10 * time.Minute
	}
	if c.MaxItems <= 0 {
		c.MaxItems = 10
	}
	return c
}

// rawHeadline mirrors the JS extraction shape.
type rawHeadline struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Collector fetches headlines on an interval and serves them from an
// in-memory cache.
type Collector struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.RWMutex
	items []model.NewsItem

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	browserCtx  context.Context
	wg          sync.WaitGroup
}

// NewCollector creates a headline collector.
func NewCollector(cfg Config, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{cfg: cfg.withDefaults(), logger: logger}
}

// Headlines returns the cached headlines, newest fetch first.
func (c *Collector) Headlines() []model.NewsItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.NewsItem, len(c.items))
	copy(out, c.items)
	return out
}

// Start launches the browser and begins the fetch loop.
func (c *Collector) Start(ctx context.Context) error {
	if c.cfg.SourceURL == "" {
		return fmt.Errorf("news: source url not configured")
	}
	c.ctx, c.cancel = context.WithCancel(ctx)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.NoSandbox,
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(c.ctx, opts...)
	c.allocCancel = allocCancel

	browserCtx, _ := chromedp.NewContext(allocCtx)
	c.browserCtx = browserCtx

	// Fail fast if no browser binary is available.
	if err := chromedp.Run(browserCtx, chromedp.Navigate("about:blank")); err != nil {
		allocCancel()
		c.cancel()
		return fmt.Errorf("news: browser start: %w", err)
	}

	if err := c.FetchOnce(c.ctx); err != nil {
		c.logger.Warn("initial headline fetch failed", "error", err)
	}

	c.wg.Add(1)
	go c.fetchLoop()

	c.logger.Info("news collector started",
		"url", c.cfg.SourceURL, "interval", c.cfg.Interval)
	return nil
}

// Stop closes the browser and halts the loop.
func (c *Collector) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warn("news collector shutdown timeout")
	}
	return nil
}

func (c *Collector) fetchLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.FetchOnce(c.ctx); err != nil {
				c.logger.Warn("headline fetch failed", "error", err)
			}
		}
	}
}

// FetchOnce loads the source page and replaces the cache.
func (c *Collector) FetchOnce(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(c.browserCtx, 60*time.Second)
	defer cancel()

	var raw []rawHeadline
	script := fmt.Sprintf(`
		(() => {
			const nodes = document.querySelectorAll(%q);
			return Array.from(nodes).map(n => ({
				title: n.textContent.trim(),
				url: n.href || "",
			}));
		})()
	`, c.cfg.Selector)

	err := chromedp.Run(fetchCtx,
		chromedp.Navigate(c.cfg.SourceURL),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(script, &raw),
	)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", c.cfg.SourceURL, err)
	}

	items := Normalize(raw, c.cfg.SourceURL, c.cfg.MaxItems, time.Now().UTC())

	c.mu.Lock()
	c.items = items
	c.mu.Unlock()

	c.logger.Debug("headlines refreshed", "count", len(items))
	return nil
}

// Normalize dedupes, trims and caps scraped headlines.
func Normalize(raw []rawHeadline, source string, maxItems int, fetchedAt time.Time) []model.NewsItem {
	seen := make(map[string]struct{}, len(raw))
	items := make([]model.NewsItem, 0, maxItems)

	for _, r := range raw {
		title := strings.TrimSpace(r.Title)
		if title == "" || len(title) < 10 {
			continue
		}
		if _, dup := seen[title]; dup {
			continue
		}
		seen[title] = struct{}{}

		items = append(items, model.NewsItem{
			Title:     title,
			URL:       strings.TrimSpace(r.URL),
			Source:    source,
			FetchedAt: fetchedAt,
		})
		if len(items) >= maxItems {
			break
		}
	}
	return items
}
