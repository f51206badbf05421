package market

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSampleWindowOrdering(t *testing.T) {
	w := newSampleWindow(3)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		w.add(Sample{
			Price:   decimal.NewFromInt(int64(100 + i)),
			TakenAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	if w.count() != 3 {
		t.Fatalf("count() = %d, want 3", w.count())
	}

	ordered := w.ordered()
	want := []int64{102, 103, 104}
	for i, s := range ordered {
		if !s.Price.Equal(decimal.NewFromInt(want[i])) {
			t.Errorf("ordered[%d].Price = %v, want %d", i, s.Price, want[i])
		}
	}
}

func TestSamplerChangeSince(t *testing.T) {
	s := NewSampler(nil, 18*time.Second, 10, nil)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	s.Record("BTC", decimal.NewFromInt(100000), base)
	s.Record("BTC", decimal.NewFromInt(101000), base.Add(18*time.Second))
	s.Record("BTC", decimal.NewFromInt(103000), base.Add(36*time.Second))

	// Change from the very first sample: (103000-100000)/100000 = 3%.
	change, err := s.ChangeSince("BTC", base)
	if err != nil {
		t.Fatalf("ChangeSince() error: %v", err)
	}
	if !change.Equal(decimal.NewFromInt(3)) {
		t.Errorf("change = %v, want 3", change)
	}

	// Change from mid-window: (103000-101000)/101000 ≈ 1.98%.
	change, err = s.ChangeSince("BTC", base.Add(10*time.Second))
	if err != nil {
		t.Fatalf("ChangeSince() error: %v", err)
	}
	if change.LessThan(decimal.NewFromFloat(1.9)) || change.GreaterThan(decimal.NewFromInt(2)) {
		t.Errorf("change = %v, want ~1.98", change)
	}

	// since later than every sample falls back to the oldest.
	change, err = s.ChangeSince("BTC", base.Add(time.Hour))
	if err != nil {
		t.Fatalf("ChangeSince() error: %v", err)
	}
	if !change.Equal(decimal.NewFromInt(3)) {
		t.Errorf("change with future since = %v, want 3", change)
	}
}

func TestSamplerChangeSinceNoSamples(t *testing.T) {
	s := NewSampler(nil, 18*time.Second, 10, nil)

	if _, err := s.ChangeSince("BTC", time.Now()); !errors.Is(err, ErrNoSamples) {
		t.Errorf("ChangeSince() error = %v, want ErrNoSamples", err)
	}
}

func TestSamplerSetSymbols(t *testing.T) {
	s := NewSampler(nil, 18*time.Second, 10, nil)
	now := time.Now().UTC()

	s.SetSymbols([]string{"BTC", "ETH"})
	s.Record("BTC", decimal.NewFromInt(100000), now)
	s.Record("ETH", decimal.NewFromInt(3500), now)

	// Dropping ETH discards its window.
	s.SetSymbols([]string{"BTC"})
	if got := s.Window("ETH"); got != nil {
		t.Errorf("Window(ETH) after removal = %v, want nil", got)
	}
	if got := s.Window("BTC"); len(got) != 1 {
		t.Errorf("len(Window(BTC)) = %d, want 1", len(got))
	}

	// Re-adding ETH starts a fresh window.
	s.SetSymbols([]string{"BTC", "ETH"})
	if got := s.Window("ETH"); len(got) != 0 {
		t.Errorf("len(Window(ETH)) after re-add = %d, want 0", len(got))
	}
}

func TestSamplerSetInterval(t *testing.T) {
	s := NewSampler(nil, 18*time.Second, 10, nil)

	s.SetInterval(30 * time.Second)
	if s.Interval() != 30*time.Second {
		t.Errorf("Interval() = %v, want 30s", s.Interval())
	}

	// Non-positive intervals are ignored.
	s.SetInterval(0)
	if s.Interval() != 30*time.Second {
		t.Errorf("Interval() after SetInterval(0) = %v, want 30s", s.Interval())
	}
}

type fakeEventSink struct {
	infos []string
}

func (f *fakeEventSink) Info(message string, args ...any) {
	f.infos = append(f.infos, fmt.Sprintf(message, args...))
}
func (f *fakeEventSink) Warn(message string, args ...any) {}
func (f *fakeEventSink) Error(message string, err error)  {}

func TestSamplerLogSnapshot(t *testing.T) {
	s := NewSampler(nil, time.Second, 10, nil)
	sink := &fakeEventSink{}
	s.SetEvents(sink)

	now := time.Now().UTC()
	s.Record("BTC", decimal.NewFromInt(97000), now)
	s.Record("ETH", decimal.NewFromFloat(3456.5), now)

	s.logSnapshot()

	if len(sink.infos) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.infos))
	}
	got := sink.infos[0]
	if !strings.Contains(got, "price snapshot:") ||
		!strings.Contains(got, "BTC=97000") ||
		!strings.Contains(got, "ETH=3456.5") {
		t.Errorf("snapshot line = %q", got)
	}
}

func TestSamplerLogSnapshotNoSink(t *testing.T) {
	s := NewSampler(nil, time.Second, 10, nil)
	s.Record("BTC", decimal.NewFromInt(97000), time.Now().UTC())
	// Without a sink this must be a no-op, not a panic.
	s.logSnapshot()
}
