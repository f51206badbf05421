// Package indicators computes technical indicators over candle series.
// All functions operate on chronologically ordered input (oldest first)
// and return an error when the series is too short for the requested
// period.
package indicators

import (
	"errors"
	"fmt"
	"math"

	"github.com/hyperalpha/arena/internal/model"
)

// ErrInsufficientData is returned when a series is shorter than the
// indicator's lookback period.
var ErrInsufficientData = errors.New("indicators: insufficient data")

// MACDResult holds the three MACD series values at the latest candle.
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// BollingerResult holds the band values at the latest candle.
type BollingerResult struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// StochasticResult holds %K and %D at the latest candle.
type StochasticResult struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

// Summary is the full indicator set rendered into model prompts.
type Summary struct {
	LastPrice  float64           `json:"last_price"`
	MA         map[int]float64   `json:"ma"`
	EMA        map[int]float64   `json:"ema"`
	RSI        float64           `json:"rsi"`
	MACD       *MACDResult       `json:"macd,omitempty"`
	Bollinger  *BollingerResult  `json:"bollinger,omitempty"`
	Stochastic *StochasticResult `json:"stochastic,omitempty"`
	ATR        float64           `json:"atr"`
	VWAP       float64           `json:"vwap"`
	OBV        float64           `json:"obv"`
}

// Closes extracts the close-price series from candles.
func Closes(klines []model.Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Close.InexactFloat64()
	}
	return out
}

// SMA returns the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("indicators: invalid SMA period %d", period)
	}
	if len(values) < period {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// EMA returns the exponential moving average at the final value, seeded
// with the first value of the series.
func EMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("indicators: invalid EMA period %d", period)
	}
	if len(values) < period {
		return 0, ErrInsufficientData
	}
	return emaSeries(values, period)[len(values)-1], nil
}

func emaSeries(values []float64, period int) []float64 {
	multiplier := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*multiplier + out[i-1]*(1-multiplier)
	}
	return out
}

// RSI returns the relative strength index over the final period changes,
// using simple averages of gains and losses.
func RSI(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("indicators: invalid RSI period %d", period)
	}
	if len(values) < period+1 {
		return 0, ErrInsufficientData
	}
	var gains, losses float64
	start := len(values) - period
	for i := start; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	if losses == 0 {
		return 100, nil
	}
	rs := gains / losses
	return 100 - 100/(1+rs), nil
}

// MACD returns the MACD line, signal line and histogram at the latest
// value, using the standard fast/slow/signal EMA periods.
func MACD(values []float64, fast, slow, signal int) (MACDResult, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
		return MACDResult{}, fmt.Errorf("indicators: invalid MACD periods %d/%d/%d", fast, slow, signal)
	}
	if len(values) < slow+signal {
		return MACDResult{}, ErrInsufficientData
	}
	fastEMA := emaSeries(values, fast)
	slowEMA := emaSeries(values, slow)
	macdLine := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := emaSeries(macdLine, signal)
	last := len(values) - 1
	return MACDResult{
		MACD:      macdLine[last],
		Signal:    signalLine[last],
		Histogram: macdLine[last] - signalLine[last],
	}, nil
}

// Bollinger returns the Bollinger Bands at the latest value.
func Bollinger(values []float64, period int, stdDev float64) (BollingerResult, error) {
	mid, err := SMA(values, period)
	if err != nil {
		return BollingerResult{}, err
	}
	window := values[len(values)-period:]
	variance := 0.0
	for _, v := range window {
		diff := v - mid
		variance += diff * diff
	}
	sd := math.Sqrt(variance / float64(period))
	return BollingerResult{
		Upper:  mid + stdDev*sd,
		Middle: mid,
		Lower:  mid - stdDev*sd,
	}, nil
}

// Stochastic returns %K and %D for the latest candle using high/low
// ranges from the candles themselves.
func Stochastic(klines []model.Kline, kPeriod, dPeriod int) (StochasticResult, error) {
	if kPeriod <= 0 || dPeriod <= 0 {
		return StochasticResult{}, fmt.Errorf("indicators: invalid stochastic periods %d/%d", kPeriod, dPeriod)
	}
	if len(klines) < kPeriod+dPeriod-1 {
		return StochasticResult{}, ErrInsufficientData
	}
	kValues := make([]float64, 0, dPeriod)
	for off := dPeriod - 1; off >= 0; off-- {
		end := len(klines) - off
		window := klines[end-kPeriod : end]
		hi := math.Inf(-1)
		lo := math.Inf(1)
		for _, k := range window {
			if h := k.High.InexactFloat64(); h > hi {
				hi = h
			}
			if l := k.Low.InexactFloat64(); l < lo {
				lo = l
			}
		}
		c := window[len(window)-1].Close.InexactFloat64()
		if hi == lo {
			kValues = append(kValues, 50)
			continue
		}
		kValues = append(kValues, (c-lo)/(hi-lo)*100)
	}
	d := 0.0
	for _, v := range kValues {
		d += v
	}
	return StochasticResult{
		K: kValues[len(kValues)-1],
		D: d / float64(len(kValues)),
	}, nil
}

// ATR returns the average true range over the final period candles.
func ATR(klines []model.Kline, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("indicators: invalid ATR period %d", period)
	}
	if len(klines) < period+1 {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	start := len(klines) - period
	for i := start; i < len(klines); i++ {
		h := klines[i].High.InexactFloat64()
		l := klines[i].Low.InexactFloat64()
		prevClose := klines[i-1].Close.InexactFloat64()
		tr := math.Max(h-l, math.Max(math.Abs(h-prevClose), math.Abs(l-prevClose)))
		sum += tr
	}
	return sum / float64(period), nil
}

// VWAP returns the volume-weighted average price over the whole series.
func VWAP(klines []model.Kline) (float64, error) {
	if len(klines) == 0 {
		return 0, ErrInsufficientData
	}
	var pvSum, volSum float64
	for _, k := range klines {
		typical := (k.High.InexactFloat64() + k.Low.InexactFloat64() + k.Close.InexactFloat64()) / 3
		vol := k.Volume.InexactFloat64()
		pvSum += typical * vol
		volSum += vol
	}
	if volSum == 0 {
		return 0, ErrInsufficientData
	}
	return pvSum / volSum, nil
}

// OBV returns the on-balance volume at the latest candle, starting from
// zero at the first candle.
func OBV(klines []model.Kline) (float64, error) {
	if len(klines) < 2 {
		return 0, ErrInsufficientData
	}
	obv := 0.0
	for i := 1; i < len(klines); i++ {
		cur := klines[i].Close.InexactFloat64()
		prev := klines[i-1].Close.InexactFloat64()
		vol := klines[i].Volume.InexactFloat64()
		switch {
		case cur > prev:
			obv += vol
		case cur < prev:
			obv -= vol
		}
	}
	return obv, nil
}

// Summarize computes the standard indicator set used in prompt context.
// Indicators whose lookback exceeds the series are omitted rather than
// failing the whole summary.
func Summarize(klines []model.Kline) Summary {
	closes := Closes(klines)
	s := Summary{
		MA:  make(map[int]float64),
		EMA: make(map[int]float64),
	}
	if len(closes) > 0 {
		s.LastPrice = closes[len(closes)-1]
	}
	for _, period := range []int{5, 10, 20, 50} {
		if v, err := SMA(closes, period); err == nil {
			s.MA[period] = v
		}
	}
	for _, period := range []int{12, 26} {
		if v, err := EMA(closes, period); err == nil {
			s.EMA[period] = v
		}
	}
	if v, err := RSI(closes, 14); err == nil {
		s.RSI = v
	}
	if v, err := MACD(closes, 12, 26, 9); err == nil {
		s.MACD = &v
	}
	if v, err := Bollinger(closes, 20, 2.0); err == nil {
		s.Bollinger = &v
	}
	if v, err := Stochastic(klines, 14, 3); err == nil {
		s.Stochastic = &v
	}
	if v, err := ATR(klines, 14); err == nil {
		s.ATR = v
	}
	if v, err := VWAP(klines); err == nil {
		s.VWAP = v
	}
	if v, err := OBV(klines); err == nil {
		s.OBV = v
	}
	return s
}
