package snapshot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hyperalpha/arena/internal/hyperliquid"
	"github.com/hyperalpha/arena/internal/model"
)

type fakeAccounts struct {
	accounts []model.Account
}

func (f *fakeAccounts) ListActive(ctx context.Context) ([]model.Account, error) {
	return f.accounts, nil
}

type fakeStates struct {
	mu       sync.Mutex
	inflight int
	peak     int
	err      error
}

func (f *fakeStates) GetClearinghouseState(ctx context.Context, user string) (*hyperliquid.ClearinghouseState, error) {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.peak {
		f.peak = f.inflight
	}
	f.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	state := &hyperliquid.ClearinghouseState{Withdrawable: "500.25"}
	state.MarginSummary.AccountValue = "1000.5"
	state.MarginSummary.TotalMarginUsed = "120"
	return state, nil
}

type fakeSink struct {
	mu    sync.Mutex
	rows  []model.AccountSnapshot
	later []model.AccountSnapshot
}

func (f *fakeSink) Insert(ctx context.Context, snap model.AccountSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, snap)
	return nil
}

func (f *fakeSink) Latest(ctx context.Context) ([]model.AccountSnapshot, error) {
	return f.later, nil
}

type fakeHub struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeHub) Broadcast(event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func makeAccounts(n int) []model.Account {
	out := make([]model.Account, n)
	for i := range out {
		out[i] = model.Account{
			ID:            uuid.New(),
			Name:          fmt.Sprintf("agent-%d", i),
			WalletAddress: fmt.Sprintf("0x%040d", i),
			IsActive:      true,
		}
	}
	return out
}

func TestCollectOnce(t *testing.T) {
	sink := &fakeSink{}
	states := &fakeStates{}
	c := NewCollector(Config{}, &fakeAccounts{accounts: makeAccounts(3)}, states, sink, nil, nil)

	c.CollectOnce(context.Background())

	if len(sink.rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(sink.rows))
	}
	for _, row := range sink.rows {
		if row.Equity.String() != "1000.5" {
			t.Errorf("equity = %s, want 1000.5", row.Equity)
		}
		if row.Balance.String() != "500.25" {
			t.Errorf("balance = %s, want 500.25", row.Balance)
		}
		if row.TakenAt.IsZero() {
			t.Error("taken_at not set")
		}
	}

	// All rows of one pass share a timestamp so curves align.
	for _, row := range sink.rows[1:] {
		if !row.TakenAt.Equal(sink.rows[0].TakenAt) {
			t.Error("snapshot timestamps differ within one pass")
		}
	}
}

func TestCollectOnceBoundsConcurrency(t *testing.T) {
	sink := &fakeSink{}
	states := &fakeStates{}
	cfg := Config{Concurrency: 2}
	c := NewCollector(cfg, &fakeAccounts{accounts: makeAccounts(8)}, states, sink, nil, nil)

	c.CollectOnce(context.Background())

	if states.peak > 2 {
		t.Errorf("peak concurrent fetches = %d, want <= 2", states.peak)
	}
	if len(sink.rows) != 8 {
		t.Errorf("rows = %d, want 8", len(sink.rows))
	}
}

func TestCollectOnceSkipsFailedAccounts(t *testing.T) {
	sink := &fakeSink{}
	states := &fakeStates{err: fmt.Errorf("rate limited")}
	c := NewCollector(Config{}, &fakeAccounts{accounts: makeAccounts(2)}, states, sink, nil, nil)

	c.CollectOnce(context.Background())

	if len(sink.rows) != 0 {
		t.Errorf("rows = %d, want 0", len(sink.rows))
	}
}

func TestBroadcastLatest(t *testing.T) {
	hub := &fakeHub{}
	sink := &fakeSink{later: []model.AccountSnapshot{{AccountID: uuid.New()}}}
	c := NewCollector(Config{}, &fakeAccounts{}, &fakeStates{}, sink, hub, nil)

	c.broadcastLatest(context.Background())

	if len(hub.events) != 1 || hub.events[0] != "asset_curve_update" {
		t.Fatalf("events = %v, want [asset_curve_update]", hub.events)
	}
}

func TestCollectorLifecycle(t *testing.T) {
	sink := &fakeSink{}
	cfg := Config{Interval: 20 * time.Millisecond, BroadcastInterval: time.Hour}
	c := NewCollector(cfg, &fakeAccounts{accounts: makeAccounts(1)}, &fakeStates{}, sink, nil, nil)

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		sink.mu.Lock()
		n := len(sink.rows)
		sink.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no snapshots collected")
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Stop(stopCtx); err != nil {
		t.Fatal(err)
	}
}
