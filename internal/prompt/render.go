package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/hyperalpha/arena/internal/indicators"
	"github.com/hyperalpha/arena/internal/model"
)

// defaultKlineCount is how many candles a klines variable renders when
// no explicit (count) suffix is present.
const defaultKlineCount = 30

// indicatorKlineCount is how many candles are fetched when computing
// indicator variables. EMA100 needs the deepest history.
const indicatorKlineCount = 200

// MarketSource provides current per-symbol market data.
type MarketSource interface {
	SymbolInfo(coin string) (model.SymbolInfo, bool)
}

// KlineSource provides recent candle history, newest last.
type KlineSource interface {
	Klines(ctx context.Context, coin, interval string, count int) ([]model.Kline, error)
}

// dynamicVar matches per-symbol template variables:
// {BTC_market_data}, {BTC_klines_15m}(200), {BTC_RSI14_1h}.
var dynamicVar = regexp.MustCompile(
	`\{([A-Z][A-Z0-9]*)_(market_data|klines_([0-9]+[a-zA-Z])|(RSI14|RSI7|MACD|STOCH|MA|EMA|BOLL|ATR14|VWAP|OBV|INDICATORS)_([0-9]+[a-zA-Z]))\}(?:\((\d+)\))?`,
)

// staticResidue matches leftover lowercase placeholders that nothing
// resolved. They render as empty sections.
var staticResidue = regexp.MustCompile(`\{[a-z][a-z0-9_]*\}`)

// Renderer substitutes template variables against live market data.
type Renderer struct {
	market MarketSource
	klines KlineSource
	logger *slog.Logger
}

// NewRenderer creates a renderer. Either source may be nil, in which
// case the corresponding dynamic variables render empty.
func NewRenderer(market MarketSource, klines KlineSource, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{market: market, klines: klines, logger: logger}
}

// Render fills a template body. Static placeholders come from vars,
// dynamic per-symbol variables are resolved against the market and
// kline sources, and anything left unresolved is blanked out.
func (r *Renderer) Render(ctx context.Context, body string, vars map[string]string) string {
	if _, ok := vars["output_format"]; !ok {
		if vars == nil {
			vars = map[string]string{}
		}
		vars["output_format"] = OutputFormat
	}

	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	out := strings.NewReplacer(pairs...).Replace(body)

	out = dynamicVar.ReplaceAllStringFunc(out, func(match string) string {
		return r.resolveDynamic(ctx, match)
	})

	return staticResidue.ReplaceAllString(out, "")
}

func (r *Renderer) resolveDynamic(ctx context.Context, match string) string {
	groups := dynamicVar.FindStringSubmatch(match)
	if groups == nil {
		return ""
	}
	coin := groups[1]

	switch {
	case groups[2] == "market_data":
		return r.marketDataSection(coin)
	case groups[3] != "":
		count := defaultKlineCount
		if groups[6] != "" {
			if n, err := strconv.Atoi(groups[6]); err == nil && n > 0 {
				count = min(n, 500)
			}
		}
		return r.klinesSection(ctx, coin, groups[3], count)
	case groups[4] != "":
		return r.indicatorSection(ctx, coin, groups[4], groups[5])
	}
	return ""
}

func (r *Renderer) marketDataSection(coin string) string {
	if r.market == nil {
		return ""
	}
	info, ok := r.market.SymbolInfo(coin)
	if !ok {
		r.logger.Debug("prompt variable skipped: unknown symbol", "coin", coin)
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s Market Data:\n", coin)
	fmt.Fprintf(&b, "  Mark Price: $%s\n", info.MarkPrice)
	fmt.Fprintf(&b, "  Oracle Price: $%s\n", info.OraclePrice)
	fmt.Fprintf(&b, "  Funding Rate: %s\n", info.Funding)
	fmt.Fprintf(&b, "  Open Interest: %s\n", info.OpenInterest)
	fmt.Fprintf(&b, "  24h Volume: $%s\n", info.DayVolume)
	fmt.Fprintf(&b, "  Max Leverage: %dx", info.MaxLeverage)
	return b.String()
}

func (r *Renderer) klinesSection(ctx context.Context, coin, interval string, count int) string {
	if r.klines == nil {
		return ""
	}
	klines, err := r.klines.Klines(ctx, coin, interval, count)
	if err != nil || len(klines) == 0 {
		r.logger.Debug("prompt variable skipped: no klines",
			"coin", coin, "interval", interval, "error", err)
		return ""
	}
	if len(klines) > count {
		klines = klines[len(klines)-count:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s K-lines (%s, last %d candles, oldest first):\n", coin, interval, len(klines))
	for _, k := range klines {
		fmt.Fprintf(&b, "  %s O:%s H:%s L:%s C:%s V:%s\n",
			k.OpenTime.UTC().Format("2006-01-02 15:04"),
			k.Open, k.High, k.Low, k.Close, k.Volume)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Renderer) indicatorSection(ctx context.Context, coin, name, interval string) string {
	if r.klines == nil {
		return ""
	}
	klines, err := r.klines.Klines(ctx, coin, interval, indicatorKlineCount)
	if err != nil || len(klines) == 0 {
		r.logger.Debug("prompt variable skipped: no klines for indicator",
			"coin", coin, "indicator", name, "interval", interval, "error", err)
		return ""
	}
	closes := indicators.Closes(klines)

	head := fmt.Sprintf("%s %s (%s): ", coin, name, interval)
	switch name {
	case "RSI14":
		if v, err := indicators.RSI(closes, 14); err == nil {
			return head + fmt.Sprintf("%.2f", v)
		}
	case "RSI7":
		if v, err := indicators.RSI(closes, 7); err == nil {
			return head + fmt.Sprintf("%.2f", v)
		}
	case "MACD":
		if v, err := indicators.MACD(closes, 12, 26, 9); err == nil {
			return head + fmt.Sprintf("MACD=%.4f Signal=%.4f Histogram=%.4f",
				v.MACD, v.Signal, v.Histogram)
		}
	case "STOCH":
		if v, err := indicators.Stochastic(klines, 14, 3); err == nil {
			return head + fmt.Sprintf("%%K=%.2f %%D=%.2f", v.K, v.D)
		}
	case "MA":
		parts := make([]string, 0, 3)
		for _, p := range []int{5, 10, 20} {
			if v, err := indicators.SMA(closes, p); err == nil {
				parts = append(parts, fmt.Sprintf("MA%d=%.4f", p, v))
			}
		}
		if len(parts) > 0 {
			return head + strings.Join(parts, " ")
		}
	case "EMA":
		parts := make([]string, 0, 3)
		for _, p := range []int{20, 50, 100} {
			if v, err := indicators.EMA(closes, p); err == nil {
				parts = append(parts, fmt.Sprintf("EMA%d=%.4f", p, v))
			}
		}
		if len(parts) > 0 {
			return head + strings.Join(parts, " ")
		}
	case "BOLL":
		if v, err := indicators.Bollinger(closes, 20, 2.0); err == nil {
			return head + fmt.Sprintf("Upper=%.4f Middle=%.4f Lower=%.4f",
				v.Upper, v.Middle, v.Lower)
		}
	case "ATR14":
		if v, err := indicators.ATR(klines, 14); err == nil {
			return head + fmt.Sprintf("%.4f", v)
		}
	case "VWAP":
		if v, err := indicators.VWAP(klines); err == nil {
			return head + fmt.Sprintf("%.4f", v)
		}
	case "OBV":
		if v, err := indicators.OBV(klines); err == nil {
			return head + fmt.Sprintf("%.2f", v)
		}
	case "INDICATORS":
		if line := formatSummary(indicators.Summarize(klines)); line != "" {
			return head + line
		}
	}
	return ""
}

// formatSummary renders the combined indicator set as one line,
// omitting indicators the series was too short for.
func formatSummary(s indicators.Summary) string {
	parts := make([]string, 0, 12)
	if s.LastPrice != 0 {
		parts = append(parts, fmt.Sprintf("Last=%.4f", s.LastPrice))
	}
	for _, p := range []int{5, 10, 20, 50} {
		if v, ok := s.MA[p]; ok {
			parts = append(parts, fmt.Sprintf("MA%d=%.4f", p, v))
		}
	}
	for _, p := range []int{12, 26} {
		if v, ok := s.EMA[p]; ok {
			parts = append(parts, fmt.Sprintf("EMA%d=%.4f", p, v))
		}
	}
	if s.RSI != 0 {
		parts = append(parts, fmt.Sprintf("RSI14=%.2f", s.RSI))
	}
	if s.MACD != nil {
		parts = append(parts, fmt.Sprintf("MACD=%.4f/%.4f/%.4f",
			s.MACD.MACD, s.MACD.Signal, s.MACD.Histogram))
	}
	if s.Bollinger != nil {
		parts = append(parts, fmt.Sprintf("BOLL=%.4f/%.4f/%.4f",
			s.Bollinger.Upper, s.Bollinger.Middle, s.Bollinger.Lower))
	}
	if s.Stochastic != nil {
		parts = append(parts, fmt.Sprintf("STOCH=%.2f/%.2f", s.Stochastic.K, s.Stochastic.D))
	}
	if s.ATR != 0 {
		parts = append(parts, fmt.Sprintf("ATR14=%.4f", s.ATR))
	}
	if s.VWAP != 0 {
		parts = append(parts, fmt.Sprintf("VWAP=%.4f", s.VWAP))
	}
	if s.OBV != 0 {
		parts = append(parts, fmt.Sprintf("OBV=%.2f", s.OBV))
	}
	return strings.Join(parts, " ")
}
