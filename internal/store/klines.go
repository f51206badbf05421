package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hyperalpha/arena/internal/model"
)

// KlineStore reads persisted candles.
type KlineStore struct {
	db *pgxpool.Pool
}

// NewKlineStore creates a kline repository.
func NewKlineStore(db *pgxpool.Pool) *KlineStore {
	return &KlineStore{db: db}
}

// Recent returns the latest candles for a symbol and interval, oldest
// first.
func (s *KlineStore) Recent(ctx context.Context, symbol, interval string, limit int) ([]model.Kline, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	rows, err := s.db.Query(ctx, `
		SELECT symbol, interval, open_time, close_time, open, high, low, close, volume, trades
		FROM (
			SELECT * FROM klines
			WHERE symbol = $1 AND interval = $2
			ORDER BY open_time DESC LIMIT $3
		) recent
		ORDER BY open_time`, symbol, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("query klines: %w", err)
	}
	defer rows.Close()

	var out []model.Kline
	for rows.Next() {
		var k model.Kline
		if err := rows.Scan(&k.Symbol, &k.Interval, &k.OpenTime, &k.CloseTime,
			&k.Open, &k.High, &k.Low, &k.Close, &k.Volume, &k.Trades); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// KlineWriter consumes candles from a buffer and batch-upserts them.
// Only mainnet candles are fed in; testnet data is never persisted.
type KlineWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	input *Buffer[model.Kline]
	db    *pgxpool.Pool

	batch       []model.Kline
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewKlineWriter creates a batching kline writer.
func NewKlineWriter(cfg WriterConfig, input *Buffer[model.Kline], db *pgxpool.Pool, logger *slog.Logger) *KlineWriter {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &KlineWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]model.Kline, 0, cfg.BatchSize),
	}
}

// Start begins consuming candles and writing to the database.
func (w *KlineWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("kline writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer and flushes the final batch.
func (w *KlineWriter) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("kline writer stopped")
	case <-ctx.Done():
		w.logger.Warn("kline writer stop timed out")
	}

	w.flush()
	return nil
}

// Stats returns current metrics.
func (w *KlineWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

func (w *KlineWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			k, ok := w.input.TryReceive()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}
			w.handle(k)
		}
	}
}

func (w *KlineWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

func (w *KlineWriter) handle(k model.Kline) {
	w.batchMu.Lock()
	w.batch = append(w.batch, k)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush()
	}
}

func (w *KlineWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]model.Kline, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchUpsert(batch)
	if err != nil {
		w.logger.Error("kline batch upsert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed klines",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchUpsert writes candles, replacing any existing row for the same
// symbol, interval and open time. In-progress candles are updated in
// place as new WS snapshots of the same bucket arrive.
func (w *KlineWriter) batchUpsert(klines []model.Kline) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, k := range klines {
		batch.Queue(`
			INSERT INTO klines (symbol, interval, open_time, close_time, open, high, low, close, volume, trades)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (symbol, interval, open_time) DO UPDATE SET
				close_time = EXCLUDED.close_time,
				open = EXCLUDED.open,
				high = EXCLUDED.high,
				low = EXCLUDED.low,
				close = EXCLUDED.close,
				volume = EXCLUDED.volume,
				trades = EXCLUDED.trades
		`, k.Symbol, k.Interval, k.OpenTime, k.CloseTime, k.Open, k.High, k.Low, k.Close, k.Volume, k.Trades)
	}

	results := w.db.SendBatch(w.ctx, batch)
	defer results.Close()

	for range klines {
		if _, err := results.Exec(); err != nil {
			return 0, err
		}
	}
	return 0, nil
}
