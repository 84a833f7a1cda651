package features

import (
	"math"
)

const (
	rsiPeriod       = 14
	macdFast        = 12
	macdSlow        = 26
	macdSignal      = 9
	bollingerPeriod = 20
	bollingerStdDev = 2.0
	volWindow       = 20
)

// Extract computes the full indicator set for one closing-price series.
// Keys follow the <indicator>_<period> convention. Series too short for an
// indicator get that indicator's neutral value, never a missing key.
func Extract(closes []float64) map[string]float64 {
	features := make(map[string]float64)

	features["rsi_14"] = RSI(closes, rsiPeriod)

	macd, signal, histogram := MACD(closes, macdFast, macdSlow, macdSignal)
	features["macd"] = macd
	features["macd_signal"] = signal
	features["macd_histogram"] = histogram

	upper, middle, lower := BollingerBands(closes, bollingerPeriod, bollingerStdDev)
	features["bb_upper"] = upper
	features["bb_middle"] = middle
	features["bb_lower"] = lower
	features["bb_width"] = upper - lower

	features["sma_20"] = SMA(closes, 20)
	features["sma_50"] = SMA(closes, 50)
	features["ema_12"] = EMA(closes, 12)

	features["roc_1d"] = ROC(closes, 1)
	features["roc_5d"] = ROC(closes, 5)
	features["roc_20d"] = ROC(closes, 20)
	features["momentum_10"] = Momentum(closes, 10)

	features["realized_vol_20"] = RealizedVolatility(LogReturns(closes), volWindow)

	return features
}

// RSI computes the Relative Strength Index over the last period deltas.
// Returns the neutral 50 when the series is too short or flat.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50.0
	}

	var gain, loss float64
	for i := len(closes) - period; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	gain /= float64(period)
	loss /= float64(period)

	if loss == 0 {
		if gain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := gain / loss
	return 100.0 - 100.0/(1.0+rs)
}

// MACD returns the MACD line, its signal line and the histogram for the
// standard fast/slow/signal EMA spans. All zero when the series is shorter
// than the slow span.
func MACD(closes []float64, fast, slow, signal int) (float64, float64, float64) {
	if len(closes) < slow {
		return 0, 0, 0
	}

	emaFast := emaSeries(closes, fast)
	emaSlow := emaSeries(closes, slow)

	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = emaFast[i] - emaSlow[i]
	}
	signalLine := emaSeries(macdLine, signal)

	last := len(closes) - 1
	return macdLine[last], signalLine[last], macdLine[last] - signalLine[last]
}

// BollingerBands returns upper, middle and lower bands for the rolling
// window, all zero when the series is shorter than the window.
func BollingerBands(closes []float64, period int, stdDev float64) (float64, float64, float64) {
	if len(closes) < period {
		return 0, 0, 0
	}

	window := closes[len(closes)-period:]
	mean := mean(window)

	var sum2 float64
	for _, v := range window {
		d := v - mean
		sum2 += d * d
	}
	// sample std
	std := math.Sqrt(sum2 / float64(period-1))

	return mean + std*stdDev, mean, mean - std*stdDev
}

// SMA returns the simple moving average of the last window values, or 0 when
// the series is shorter than the window.
func SMA(closes []float64, window int) float64 {
	if len(closes) < window {
		return 0
	}
	return mean(closes[len(closes)-window:])
}

// EMA returns the latest exponential moving average for the span, seeded at
// the first value.
func EMA(closes []float64, span int) float64 {
	series := emaSeries(closes, span)
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

// ROC returns the percentage rate of change over period steps.
func ROC(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 0
	}
	base := closes[len(closes)-period-1]
	if base == 0 {
		return 0
	}
	return (closes[len(closes)-1] - base) / base * 100
}

// Momentum returns the absolute price change over period steps, 0 when the
// series is too short.
func Momentum(closes []float64, period int) float64 {
	if len(closes) < period {
		return 0
	}
	return closes[len(closes)-1] - closes[len(closes)-period]
}

// LogReturns computes r_t = ln(C_t / C_{t-1}). Non-positive prices produce a
// zero return for that step.
func LogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		cur := closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes the sample standard deviation of the latest
// window of log returns. Returns 0 when there are fewer returns than the
// window.
func RealizedVolatility(logReturns []float64, window int) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	var sum, sum2 float64
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	m := sum / n
	variance := (sum2 - n*m*m) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

func emaSeries(values []float64, span int) []float64 {
	if len(values) == 0 || span < 1 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
