package analytics

import (
	"math"
	"sync"
	"time"

	"FlowSentry/internal/domain/models"
)

const (
	defaultWindowSize = 100
	minWindowFill     = 30 // cold-start suppression
	emitThreshold     = 2.0
)

// symbolWindow is one symbol's rolling buffer plus cached statistics.
// Guarded by its own mutex so ticks for different symbols never contend.
type symbolWindow struct {
	mu     sync.Mutex
	values []float64
	head   int
	full   bool
	mean   float64
	std    float64
}

func (w *symbolWindow) push(v float64) {
	if len(w.values) < cap(w.values) {
		w.values = append(w.values, v)
		return
	}
	w.values[w.head] = v
	w.head = (w.head + 1) % len(w.values)
	w.full = true
}

func (w *symbolWindow) snapshot() []float64 {
	out := make([]float64, 0, len(w.values))
	out = append(out, w.values[w.head:]...)
	out = append(out, w.values[:w.head]...)
	return out
}

// StreamProcessor maintains a fixed-capacity rolling window per symbol and
// flags ticks that deviate significantly from recent history.
type StreamProcessor struct {
	windowSize int

	mu      sync.RWMutex
	windows map[string]*symbolWindow
}

type StreamOption func(*StreamProcessor)

// WithWindowSize overrides the rolling window capacity.
func WithWindowSize(n int) StreamOption {
	return func(p *StreamProcessor) {
		if n > 0 {
			p.windowSize = n
		}
	}
}

// NewStreamProcessor creates a stream processor with default window capacity 100.
func NewStreamProcessor(opts ...StreamOption) *StreamProcessor {
	p := &StreamProcessor{
		windowSize: defaultWindowSize,
		windows:    make(map[string]*symbolWindow),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *StreamProcessor) window(symbol string) *symbolWindow {
	p.mu.RLock()
	w, ok := p.windows[symbol]
	p.mu.RUnlock()
	if ok {
		return w
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok = p.windows[symbol]; ok {
		return w
	}
	w = &symbolWindow{values: make([]float64, 0, p.windowSize)}
	p.windows[symbol] = w
	return w
}

// ProcessTick buffers the value and returns a ProcessedSignal when |z| > 2.0
// relative to the symbol's window. Returns nil during cold start (<30 values)
// and for unremarkable ticks, which is the common case. A zero-variance window
// yields z = 0 and never emits.
func (p *StreamProcessor) ProcessTick(symbol string, value float64, ts time.Time) *models.ProcessedSignal {
	if ts.IsZero() {
		ts = time.Now()
	}

	w := p.window(symbol)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.push(value)
	n := len(w.values)
	if n < minWindowFill {
		return nil
	}

	mean, std := meanStd(w.values)
	w.mean, w.std = mean, std

	z := 0.0
	if std != 0 {
		z = (value - mean) / std
	}
	if math.Abs(z) <= emitThreshold {
		return nil
	}

	score := anomalyScore(z)
	return &models.ProcessedSignal{
		Symbol:       symbol,
		Timestamp:    ts,
		Value:        value,
		ZScore:       z,
		AnomalyScore: score,
		SignalType:   classifySignal(score),
		Metadata: map[string]float64{
			"buffer_size": float64(n),
			"mean":        mean,
			"std":         std,
		},
	}
}

// GetStatistics returns the symbol's current window statistics, or nil when
// the symbol has no buffered values.
func (p *StreamProcessor) GetStatistics(symbol string) *models.WindowStats {
	p.mu.RLock()
	w, ok := p.windows[symbol]
	p.mu.RUnlock()
	if !ok {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.values) == 0 {
		return nil
	}

	ordered := w.snapshot()
	mean, std := meanStd(ordered)
	mn, mx := ordered[0], ordered[0]
	for _, v := range ordered {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	first, last := ordered[0], ordered[len(ordered)-1]
	changePct := 0.0
	if first != 0 {
		changePct = (last - first) / first * 100
	}
	return &models.WindowStats{
		Symbol:    symbol,
		Count:     len(ordered),
		Mean:      mean,
		Std:       std,
		Min:       mn,
		Max:       mx,
		Current:   last,
		ChangePct: changePct,
	}
}

// ClearBuffer resets history for one symbol only. There is no global reset.
func (p *StreamProcessor) ClearBuffer(symbol string) {
	p.mu.RLock()
	w, ok := p.windows[symbol]
	p.mu.RUnlock()
	if !ok {
		return
	}
	w.mu.Lock()
	w.values = w.values[:0]
	w.head = 0
	w.full = false
	w.mean, w.std = 0, 0
	w.mu.Unlock()
}

// anomalyScore maps |z| onto the 0-100 scale in fixed bands.
func anomalyScore(z float64) float64 {
	abs := math.Abs(z)
	switch {
	case abs < 2:
		return 0
	case abs < 3:
		return 50
	case abs < 4:
		return 75
	default:
		return 100
	}
}

func classifySignal(score float64) string {
	switch {
	case score >= 75:
		return "critical"
	case score >= 50:
		return "warning"
	default:
		return "normal"
	}
}

// meanStd computes the population mean and standard deviation.
func meanStd(xs []float64) (float64, float64) {
	n := float64(len(xs))
	if n == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range xs {
		sum += v
	}
	mean := sum / n
	ss := 0.0
	for _, v := range xs {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / n)
}
