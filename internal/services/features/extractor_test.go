package features

import (
	"math"
	"testing"
)

func constantSeries(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func ascendingSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func TestRSIShortSeries(t *testing.T) {
	if got := RSI([]float64{100, 101}, 14); got != 50 {
		t.Fatalf("short series must be neutral 50, got %v", got)
	}
}

func TestRSIFlat(t *testing.T) {
	if got := RSI(constantSeries(30, 100), 14); got != 50 {
		t.Fatalf("flat series must be neutral 50, got %v", got)
	}
}

func TestRSIAllGains(t *testing.T) {
	if got := RSI(ascendingSeries(30), 14); got != 100 {
		t.Fatalf("monotone rise must be 100, got %v", got)
	}
}

func TestRSIAllLosses(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	if got := RSI(closes, 14); got != 0 {
		t.Fatalf("monotone fall must be 0, got %v", got)
	}
}

func TestMACDShortSeries(t *testing.T) {
	m, s, h := MACD(constantSeries(10, 100), 12, 26, 9)
	if m != 0 || s != 0 || h != 0 {
		t.Fatalf("series shorter than slow span must be zeros, got %v %v %v", m, s, h)
	}
}

func TestMACDConstantSeries(t *testing.T) {
	m, s, h := MACD(constantSeries(60, 100), 12, 26, 9)
	if math.Abs(m) > 1e-9 || math.Abs(s) > 1e-9 || math.Abs(h) > 1e-9 {
		t.Fatalf("constant series must have zero MACD, got %v %v %v", m, s, h)
	}
}

func TestMACDRisingSeries(t *testing.T) {
	m, _, _ := MACD(ascendingSeries(60), 12, 26, 9)
	if m <= 0 {
		t.Fatalf("rising series must have positive MACD, got %v", m)
	}
}

func TestBollingerConstantSeries(t *testing.T) {
	up, mid, lo := BollingerBands(constantSeries(30, 50), 20, 2.0)
	if up != 50 || mid != 50 || lo != 50 {
		t.Fatalf("constant series bands must collapse to the mean, got %v %v %v", up, mid, lo)
	}
}

func TestBollingerOrdering(t *testing.T) {
	up, mid, lo := BollingerBands(ascendingSeries(40), 20, 2.0)
	if !(up > mid && mid > lo) {
		t.Fatalf("expected upper > middle > lower, got %v %v %v", up, mid, lo)
	}
}

func TestSMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	if got := SMA(closes, 5); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
	if got := SMA(closes, 3); got != 4 {
		t.Fatalf("expected mean of last 3 = 4, got %v", got)
	}
	if got := SMA(closes, 10); got != 0 {
		t.Fatalf("short series must be 0, got %v", got)
	}
}

func TestEMAConstantSeries(t *testing.T) {
	if got := EMA(constantSeries(30, 42), 12); math.Abs(got-42) > 1e-9 {
		t.Fatalf("EMA of a constant is the constant, got %v", got)
	}
}

func TestROC(t *testing.T) {
	if got := ROC([]float64{100, 110}, 1); math.Abs(got-10) > 1e-9 {
		t.Fatalf("expected 10%%, got %v", got)
	}
	if got := ROC([]float64{100}, 1); got != 0 {
		t.Fatalf("short series must be 0, got %v", got)
	}
	if got := ROC([]float64{0, 50}, 1); got != 0 {
		t.Fatalf("zero base must be 0, got %v", got)
	}
}

func TestMomentum(t *testing.T) {
	closes := ascendingSeries(20)
	if got := Momentum(closes, 10); math.Abs(got-9) > 1e-9 {
		t.Fatalf("expected 9, got %v", got)
	}
	if got := Momentum(closes[:5], 10); got != 0 {
		t.Fatalf("short series must be 0, got %v", got)
	}
}

func TestLogReturns(t *testing.T) {
	rets := LogReturns([]float64{100, 100 * math.E})
	if len(rets) != 1 {
		t.Fatalf("expected one return, got %d", len(rets))
	}
	if math.Abs(rets[0]-1) > 1e-9 {
		t.Fatalf("expected ln(e)=1, got %v", rets[0])
	}
	if rets := LogReturns([]float64{0, 100}); rets[0] != 0 {
		t.Fatalf("non-positive price must yield zero return, got %v", rets[0])
	}
}

func TestRealizedVolatilityConstantReturns(t *testing.T) {
	rets := constantSeries(25, 0.01)
	if got := RealizedVolatility(rets, 20); math.Abs(got) > 1e-9 {
		t.Fatalf("constant returns have zero vol, got %v", got)
	}
}

func TestExtractKeys(t *testing.T) {
	feats := Extract(ascendingSeries(60))
	for _, key := range []string{
		"rsi_14", "macd", "macd_signal", "macd_histogram",
		"bb_upper", "bb_middle", "bb_lower", "bb_width",
		"sma_20", "sma_50", "ema_12",
		"roc_1d", "roc_5d", "roc_20d", "momentum_10",
		"realized_vol_20",
	} {
		if _, ok := feats[key]; !ok {
			t.Fatalf("missing feature %q", key)
		}
	}
	if feats["rsi_14"] != 100 {
		t.Fatalf("monotone rise must have rsi 100, got %v", feats["rsi_14"])
	}
	if !(feats["bb_upper"] > feats["bb_middle"] && feats["bb_middle"] > feats["bb_lower"]) {
		t.Fatalf("band ordering violated: %v %v %v", feats["bb_upper"], feats["bb_middle"], feats["bb_lower"])
	}
	if feats["bb_width"] != feats["bb_upper"]-feats["bb_lower"] {
		t.Fatalf("bb_width mismatch")
	}
}

func TestExtractShortSeries(t *testing.T) {
	feats := Extract([]float64{100, 101})
	if feats["rsi_14"] != 50 {
		t.Fatalf("expected neutral rsi, got %v", feats["rsi_14"])
	}
	if feats["macd"] != 0 || feats["sma_50"] != 0 {
		t.Fatalf("short series must degrade to neutral values")
	}
}
