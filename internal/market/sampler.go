package market

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hyperalpha/arena/internal/hyperliquid"
)

// snapshotEvery is the cadence of the price snapshot line written to
// the system log.
const snapshotEvery = time.Minute

// ErrNoSamples is returned when a symbol has no recorded samples yet.
var ErrNoSamples = errors.New("market: no samples for symbol")

// Sample is one recorded price observation.
type Sample struct {
	Price   decimal.Decimal
	TakenAt time.Time
}

// sampleWindow is a fixed-size ring of samples, oldest overwritten
// first.
type sampleWindow struct {
	samples []Sample
	pos     int
	full    bool
}

func newSampleWindow(size int) *sampleWindow {
	return &sampleWindow{samples: make([]Sample, size)}
}

func (w *sampleWindow) add(s Sample) {
	w.samples[w.pos] = s
	w.pos = (w.pos + 1) % len(w.samples)
	if !w.full && w.pos == 0 {
		w.full = true
	}
}

func (w *sampleWindow) count() int {
	if w.full {
		return len(w.samples)
	}
	return w.pos
}

// ordered returns samples oldest first.
func (w *sampleWindow) ordered() []Sample {
	n := w.count()
	out := make([]Sample, 0, n)
	if w.full {
		for i := 0; i < len(w.samples); i++ {
			out = append(out, w.samples[(w.pos+i)%len(w.samples)])
		}
	} else {
		out = append(out, w.samples[:w.pos]...)
	}
	return out
}

// Sampler records watchlist prices on a fixed cadence and answers
// price-change queries over the recorded window.
type Sampler struct {
	cache  *PriceCache
	logger *slog.Logger
	events hyperliquid.EventSink

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	interval   time.Duration
	windowSize int
	symbols    []string
	windows    map[string]*sampleWindow

	// Signals the loop to rebuild its ticker after SetInterval.
	reconfigure chan struct{}
}

// NewSampler creates a sampler over the given price cache.
func NewSampler(cache *PriceCache, interval time.Duration, windowSize int, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 18 * time.Second
	}
	if windowSize < 2 {
		windowSize = 200
	}
	return &Sampler{
		cache:       cache,
		logger:      logger,
		interval:    interval,
		windowSize:  windowSize,
		windows:     make(map[string]*sampleWindow),
		reconfigure: make(chan struct{}, 1),
	}
}

// SetEvents routes periodic price snapshot lines to the system log.
// Must be called before Start.
func (s *Sampler) SetEvents(sink hyperliquid.EventSink) {
	s.events = sink
}

// Start begins the sampling loop.
func (s *Sampler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("price sampler started",
		"interval", s.Interval(),
		"window", s.windowSize,
	)
	return nil
}

// Stop halts the sampling loop.
func (s *Sampler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("sampler shutdown timeout")
	}
	return nil
}

// SetSymbols replaces the watchlist being sampled. Windows for removed
// symbols are dropped.
func (s *Sampler) SetSymbols(symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		keep[sym] = struct{}{}
		if _, ok := s.windows[sym]; !ok {
			s.windows[sym] = newSampleWindow(s.windowSize)
		}
	}
	for sym := range s.windows {
		if _, ok := keep[sym]; !ok {
			delete(s.windows, sym)
		}
	}
	s.symbols = append([]string(nil), symbols...)
}

// Interval returns the current sampling cadence.
func (s *Sampler) Interval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interval
}

// SetInterval changes the sampling cadence at runtime.
func (s *Sampler) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	changed := interval != s.interval
	s.interval = interval
	s.mu.Unlock()

	if changed {
		select {
		case s.reconfigure <- struct{}{}:
		default:
		}
		s.logger.Info("sampling interval updated", "interval", interval)
	}
}

func (s *Sampler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	snapTicker := time.NewTicker(snapshotEvery)
	defer snapTicker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.reconfigure:
			ticker.Reset(s.Interval())
		case <-ticker.C:
			s.sampleOnce()
		case <-snapTicker.C:
			s.logSnapshot()
		}
	}
}

// logSnapshot writes one line with the latest sampled price per symbol
// to the system log so the dashboard log viewer shows market state.
func (s *Sampler) logSnapshot() {
	if s.events == nil {
		return
	}

	s.mu.RLock()
	parts := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		w, ok := s.windows[sym]
		if !ok {
			continue
		}
		samples := w.ordered()
		if len(samples) == 0 {
			continue
		}
		parts = append(parts, sym+"="+samples[len(samples)-1].Price.String())
	}
	s.mu.RUnlock()

	if len(parts) == 0 {
		return
	}
	s.events.Info("price snapshot: %s", strings.Join(parts, " "))
}

// sampleOnce records one price sample per watched symbol.
func (s *Sampler) sampleOnce() {
	s.mu.RLock()
	symbols := append([]string(nil), s.symbols...)
	s.mu.RUnlock()

	now := time.Now().UTC()
	for _, sym := range symbols {
		px, _, err := s.cache.GetPrice(s.ctx, sym)
		if err != nil {
			s.logger.Debug("sample skipped", "symbol", sym, "error", err)
			continue
		}

		s.mu.Lock()
		if w, ok := s.windows[sym]; ok {
			w.add(Sample{Price: px, TakenAt: now})
		}
		s.mu.Unlock()
	}
}

// Record inserts a sample directly. Used by tests and by callers that
// sample out of band.
func (s *Sampler) Record(symbol string, price decimal.Decimal, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[symbol]
	if !ok {
		w = newSampleWindow(s.windowSize)
		s.windows[symbol] = w
		s.symbols = append(s.symbols, symbol)
	}
	w.add(Sample{Price: price, TakenAt: at})
}

// Window returns the recorded samples for a symbol, oldest first.
func (s *Sampler) Window(symbol string) []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.windows[symbol]
	if !ok {
		return nil
	}
	return w.ordered()
}

// ChangeSince returns the percent price change for a symbol between the
// newest sample and the oldest sample taken at or after since.
func (s *Sampler) ChangeSince(symbol string, since time.Time) (decimal.Decimal, error) {
	samples := s.Window(symbol)
	if len(samples) == 0 {
		return decimal.Decimal{}, ErrNoSamples
	}

	newest := samples[len(samples)-1]
	var base *Sample
	for i := range samples {
		if !samples[i].TakenAt.Before(since) {
			base = &samples[i]
			break
		}
	}
	if base == nil {
		// Everything predates since; fall back to the oldest sample.
		base = &samples[0]
	}
	if base.Price.IsZero() {
		return decimal.Decimal{}, ErrNoSamples
	}

	hundred := decimal.NewFromInt(100)
	return newest.Price.Sub(base.Price).Div(base.Price).Mul(hundred), nil
}
