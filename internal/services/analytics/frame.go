package analytics

import (
	"math"
	"sort"
	"strconv"
	"time"
)

// Frame is a column-oriented table of observations: one row per timestamp,
// one float64 column per tracked indicator. Missing cells are NaN.
type Frame struct {
	Timestamps []time.Time
	columns    map[string][]float64
	order      []string
}

// NewFrame creates an empty frame with capacity for n rows.
func NewFrame(n int) *Frame {
	return &Frame{
		Timestamps: make([]time.Time, 0, n),
		columns:    make(map[string][]float64),
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Timestamps) }

// Columns returns column names in insertion order.
func (f *Frame) Columns() []string { return f.order }

// Column returns the named column, or nil when absent.
func (f *Frame) Column(name string) []float64 { return f.columns[name] }

// AddRow appends one row. Columns absent from values get NaN; columns first
// seen here are back-filled with NaN for prior rows.
func (f *Frame) AddRow(ts time.Time, values map[string]float64) {
	n := f.Len()
	for name := range values {
		if _, ok := f.columns[name]; !ok {
			col := make([]float64, n, n+1)
			for i := range col {
				col[i] = math.NaN()
			}
			f.columns[name] = col
			f.order = append(f.order, name)
			sort.Strings(f.order)
		}
	}
	f.Timestamps = append(f.Timestamps, ts)
	for name, col := range f.columns {
		v, ok := values[name]
		if !ok {
			v = math.NaN()
		}
		f.columns[name] = append(col, v)
	}
}

// SetColumn installs a full column; its length must equal Len.
func (f *Frame) SetColumn(name string, values []float64) {
	if _, ok := f.columns[name]; !ok {
		f.order = append(f.order, name)
		sort.Strings(f.order)
	}
	f.columns[name] = values
}

// RowTimestamp formats the row's timestamp, falling back to the row index
// when the frame carries no timestamps.
func (f *Frame) RowTimestamp(i int) string {
	if i < len(f.Timestamps) && !f.Timestamps[i].IsZero() {
		return f.Timestamps[i].UTC().Format(time.RFC3339)
	}
	return "row_" + strconv.Itoa(i)
}

// columnStats returns mean and population std over non-NaN values, plus the
// non-NaN count.
func columnStats(col []float64) (mean, std float64, n int) {
	sum := 0.0
	for _, v := range col {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, 0, 0
	}
	mean = sum / float64(n)
	ss := 0.0
	for _, v := range col {
		if math.IsNaN(v) {
			continue
		}
		d := v - mean
		ss += d * d
	}
	std = math.Sqrt(ss / float64(n))
	return mean, std, n
}

// fillMean replaces NaN cells with the column mean. Columns that are entirely
// NaN are filled with zero.
func fillMean(col []float64) []float64 {
	mean, _, n := columnStats(col)
	if n == 0 {
		mean = 0
	}
	out := make([]float64, len(col))
	for i, v := range col {
		if math.IsNaN(v) {
			out[i] = mean
		} else {
			out[i] = v
		}
	}
	return out
}
