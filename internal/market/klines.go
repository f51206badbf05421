package market

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hyperalpha/arena/internal/hyperliquid"
	"github.com/hyperalpha/arena/internal/model"
	"github.com/hyperalpha/arena/internal/store"
)

// KlineService fetches candle history from the exchange and optionally
// tees fetched candles into a persistence buffer. The sink is only set
// on mainnet; testnet candles are never persisted.
type KlineService struct {
	client *hyperliquid.Client
	sink   *store.Buffer[model.Kline]
	logger *slog.Logger
}

// NewKlineService creates a kline service. sink may be nil to disable
// persistence.
func NewKlineService(client *hyperliquid.Client, sink *store.Buffer[model.Kline], logger *slog.Logger) *KlineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &KlineService{client: client, sink: sink, logger: logger}
}

// Klines returns the most recent count candles, oldest first.
func (s *KlineService) Klines(ctx context.Context, coin, interval string, count int) ([]model.Kline, error) {
	if count <= 0 {
		count = 200
	}
	span, err := IntervalDuration(interval)
	if err != nil {
		return nil, err
	}

	end := time.Now().UTC()
	start := end.Add(-span * time.Duration(count+1))

	candles, err := s.client.GetCandleSnapshot(ctx, coin, interval, start, end)
	if err != nil {
		return nil, fmt.Errorf("candle snapshot %s %s: %w", coin, interval, err)
	}

	klines := make([]model.Kline, 0, len(candles))
	for _, c := range candles {
		klines = append(klines, ConvertCandle(c))
	}
	if len(klines) > count {
		klines = klines[len(klines)-count:]
	}

	if s.sink != nil {
		for _, k := range klines {
			s.sink.Send(k)
		}
	}
	return klines, nil
}

// ConvertCandle maps an exchange candle onto the domain type.
func ConvertCandle(c hyperliquid.Candle) model.Kline {
	return model.Kline{
		Symbol:    c.Symbol,
		Interval:  c.Interval,
		OpenTime:  time.UnixMilli(c.OpenTime).UTC(),
		CloseTime: time.UnixMilli(c.CloseTime).UTC(),
		Open:      parseDecimal(c.Open),
		High:      parseDecimal(c.High),
		Low:       parseDecimal(c.Low),
		Close:     parseDecimal(c.Close),
		Volume:    parseDecimal(c.Volume),
		Trades:    c.Trades,
	}
}

// IntervalDuration parses an exchange interval string such as "15m",
// "4h", "1d", "1w" or "1M".
func IntervalDuration(interval string) (time.Duration, error) {
	if len(interval) < 2 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	unit := interval[len(interval)-1]
	n, err := strconv.Atoi(strings.TrimSuffix(interval, string(unit)))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}

	switch unit {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case 'M':
		return time.Duration(n) * 30 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("invalid interval %q", interval)
}
