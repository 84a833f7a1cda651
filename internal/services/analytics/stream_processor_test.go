package analytics

import (
	"testing"
	"time"
)

func TestProcessTickColdStart(t *testing.T) {
	p := NewStreamProcessor()
	ts := time.Now()
	for i := 0; i < 29; i++ {
		v := 100.0
		if i%2 == 0 {
			v = 102.0
		}
		if sig := p.ProcessTick("SPY", v, ts); sig != nil {
			t.Fatalf("expected nil during cold start, got signal at tick %d", i)
		}
	}
}

func TestProcessTickEmitsOnSpike(t *testing.T) {
	p := NewStreamProcessor()
	ts := time.Now()
	for i := 0; i < 40; i++ {
		v := 99.0
		if i%2 == 0 {
			v = 101.0
		}
		p.ProcessTick("SPY", v, ts)
	}

	sig := p.ProcessTick("SPY", 150.0, ts)
	if sig == nil {
		t.Fatalf("expected signal for spike")
	}
	if sig.Symbol != "SPY" {
		t.Fatalf("unexpected symbol %q", sig.Symbol)
	}
	if sig.ZScore <= 2 {
		t.Fatalf("expected |z| > 2, got %v", sig.ZScore)
	}
	if sig.SignalType != "critical" {
		t.Fatalf("expected critical, got %q", sig.SignalType)
	}
	if sig.AnomalyScore != 100 {
		t.Fatalf("expected score 100, got %v", sig.AnomalyScore)
	}
	if sig.Metadata["std"] == 0 {
		t.Fatalf("expected non-zero std in metadata")
	}
}

func TestProcessTickZeroVarianceNeverEmits(t *testing.T) {
	p := NewStreamProcessor()
	ts := time.Now()
	for i := 0; i < 60; i++ {
		if sig := p.ProcessTick("TLT", 42.0, ts); sig != nil {
			t.Fatalf("zero-variance window must not emit, got signal at tick %d", i)
		}
	}
}

func TestProcessTickWindowEviction(t *testing.T) {
	p := NewStreamProcessor(WithWindowSize(50))
	ts := time.Now()
	for i := 0; i < 200; i++ {
		p.ProcessTick("GLD", float64(100+i%3), ts)
	}
	stats := p.GetStatistics("GLD")
	if stats == nil {
		t.Fatalf("expected stats")
	}
	if stats.Count != 50 {
		t.Fatalf("expected window of 50, got %d", stats.Count)
	}
}

func TestGetStatistics(t *testing.T) {
	p := NewStreamProcessor()
	ts := time.Now()
	for _, v := range []float64{10, 20, 30} {
		p.ProcessTick("VIX", v, ts)
	}

	stats := p.GetStatistics("VIX")
	if stats == nil {
		t.Fatalf("expected stats")
	}
	if stats.Count != 3 {
		t.Fatalf("expected count 3, got %d", stats.Count)
	}
	if stats.Mean != 20 {
		t.Fatalf("expected mean 20, got %v", stats.Mean)
	}
	if stats.Min != 10 || stats.Max != 30 {
		t.Fatalf("unexpected min/max %v/%v", stats.Min, stats.Max)
	}
	if stats.Current != 30 {
		t.Fatalf("expected current 30, got %v", stats.Current)
	}
	if stats.ChangePct != 200 {
		t.Fatalf("expected change 200%%, got %v", stats.ChangePct)
	}
}

func TestGetStatisticsUnknownSymbol(t *testing.T) {
	p := NewStreamProcessor()
	if stats := p.GetStatistics("NOPE"); stats != nil {
		t.Fatalf("expected nil for unknown symbol")
	}
}

func TestClearBuffer(t *testing.T) {
	p := NewStreamProcessor()
	ts := time.Now()
	p.ProcessTick("SPY", 100, ts)
	p.ProcessTick("VIX", 20, ts)

	p.ClearBuffer("SPY")
	if stats := p.GetStatistics("SPY"); stats != nil {
		t.Fatalf("expected nil after clear")
	}
	// other symbols untouched
	if stats := p.GetStatistics("VIX"); stats == nil {
		t.Fatalf("VIX buffer should survive SPY clear")
	}
}
