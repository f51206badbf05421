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

// SystemLogStore reads persisted operational logs.
type SystemLogStore struct {
	db *pgxpool.Pool
}

// NewSystemLogStore creates a system log repository.
func NewSystemLogStore(db *pgxpool.Pool) *SystemLogStore {
	return &SystemLogStore{db: db}
}

// LogQuery filters the system log listing.
type LogQuery struct {
	Level  string
	Source string
	Limit  int
}

// Query returns system logs newest first.
func (s *SystemLogStore) Query(ctx context.Context, q LogQuery) ([]model.SystemLog, error) {
	if q.Limit <= 0 || q.Limit > 1000 {
		q.Limit = 100
	}

	sql := `SELECT id, level, source, message, detail, created_at FROM system_logs WHERE true`
	args := []any{}
	if q.Level != "" {
		args = append(args, q.Level)
		sql += fmt.Sprintf(" AND level = $%d", len(args))
	}
	if q.Source != "" {
		args = append(args, q.Source)
		sql += fmt.Sprintf(" AND source = $%d", len(args))
	}
	args = append(args, q.Limit)
	sql += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query system logs: %w", err)
	}
	defer rows.Close()

	var out []model.SystemLog
	for rows.Next() {
		var l model.SystemLog
		if err := rows.Scan(&l.ID, &l.Level, &l.Source, &l.Message, &l.Detail, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LogWriter consumes system log rows from a buffer and batch-inserts
// them so event producers never block on the database.
type LogWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	input *Buffer[model.SystemLog]
	db    *pgxpool.Pool

	batch       []model.SystemLog
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewLogWriter creates a batching system log writer.
func NewLogWriter(cfg WriterConfig, input *Buffer[model.SystemLog], db *pgxpool.Pool, logger *slog.Logger) *LogWriter {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &LogWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]model.SystemLog, 0, cfg.BatchSize),
	}
}

// Start begins consuming log rows.
func (w *LogWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("system log writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts down the writer and flushes the final batch.
func (w *LogWriter) Stop(ctx context.Context) error {
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
		w.logger.Info("system log writer stopped")
	case <-ctx.Done():
		w.logger.Warn("system log writer stop timed out")
	}

	w.flush()
	return nil
}

// Stats returns current metrics.
func (w *LogWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

func (w *LogWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			l, ok := w.input.TryReceive()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			w.batchMu.Lock()
			w.batch = append(w.batch, l)
			shouldFlush := len(w.batch) >= w.cfg.BatchSize
			w.batchMu.Unlock()

			if shouldFlush {
				w.flush()
			}
		}
	}
}

func (w *LogWriter) flushLoop() {
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

func (w *LogWriter) flush() {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]model.SystemLog, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	if err := w.batchInsert(batch); err != nil {
		w.logger.Error("system log batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch))
	w.metrics.Flushes++
	w.batchMu.Unlock()
}

func (w *LogWriter) batchInsert(logs []model.SystemLog) error {
	batch := &pgx.Batch{}
	for _, l := range logs {
		created := l.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		batch.Queue(`
			INSERT INTO system_logs (level, source, message, detail, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, l.Level, l.Source, l.Message, l.Detail, created)
	}

	results := w.db.SendBatch(w.ctx, batch)
	defer results.Close()

	for range logs {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
