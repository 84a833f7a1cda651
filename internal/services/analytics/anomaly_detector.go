package analytics

import (
	"math"
	"sort"
	"sync"

	"FlowSentry/internal/domain/models"
	"FlowSentry/pkg/logger"
)

const (
	minStatRows    = 30
	minMLRows      = 100
	minPatternRows = 20
	volumeSpikeCut = 3.0
	fusionLimit    = 50
)

// modelState tracks the outlier model's lifecycle. The transition
// Untrained -> Trained happens exactly once per detector instance; retraining
// requires constructing a new detector.
type modelState int

const (
	modelUntrained modelState = iota
	modelTrained
)

// AnomalyDetector runs three independent detection methods over a batch frame
// and fuses their outputs into one ranked list.
type AnomalyDetector struct {
	zThreshold    float64
	contamination float64
	logger        *logger.Logger

	mu     sync.Mutex // guards state+forest during the one-shot training
	state  modelState
	forest *isolationForest
}

type DetectorOption func(*AnomalyDetector)

// WithZThreshold overrides the statistical |z| cutoff (default 2.0).
func WithZThreshold(t float64) DetectorOption {
	return func(d *AnomalyDetector) {
		if t > 0 {
			d.zThreshold = t
		}
	}
}

// WithContamination overrides the outlier-model contamination rate (default 0.1).
func WithContamination(c float64) DetectorOption {
	return func(d *AnomalyDetector) {
		if c > 0 && c < 1 {
			d.contamination = c
		}
	}
}

// WithDetectorLogger attaches a structured logger.
func WithDetectorLogger(l *logger.Logger) DetectorOption {
	return func(d *AnomalyDetector) { d.logger = l }
}

func NewAnomalyDetector(opts ...DetectorOption) *AnomalyDetector {
	d := &AnomalyDetector{
		zThreshold:    2.0,
		contamination: 0.1,
		state:         modelUntrained,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect runs all three methods and fuses the results: concatenated, sorted
// descending by score, truncated to the top 50. Duplicate detections of one
// underlying event by different methods are both retained if both rank;
// cross-method deduplication is intentionally not performed.
func (d *AnomalyDetector) Detect(frame *Frame) []models.Anomaly {
	if frame == nil || frame.Len() == 0 {
		return nil
	}

	anomalies := d.statisticalDetection(frame)
	if frame.Len() >= minMLRows {
		anomalies = append(anomalies, d.mlDetection(frame)...)
	}
	anomalies = append(anomalies, d.patternDetection(frame)...)

	sort.SliceStable(anomalies, func(i, j int) bool {
		return anomalies[i].Score > anomalies[j].Score
	})
	if len(anomalies) > fusionLimit {
		anomalies = anomalies[:fusionLimit]
	}
	if d.logger != nil {
		d.logger.Debug("anomaly detection complete",
			logger.Int("rows", frame.Len()),
			logger.Int("anomalies", len(anomalies)))
	}
	return anomalies
}

// statisticalDetection flags per-column Z-score outliers. Columns with fewer
// than 30 non-missing values or zero variance contribute nothing.
func (d *AnomalyDetector) statisticalDetection(frame *Frame) []models.Anomaly {
	var out []models.Anomaly
	for _, name := range frame.Columns() {
		col := frame.Column(name)
		mean, std, n := columnStats(col)
		if n < minStatRows || std == 0 {
			continue
		}
		for i, v := range col {
			if math.IsNaN(v) {
				continue
			}
			z := math.Abs((v - mean) / std)
			if z <= d.zThreshold {
				continue
			}
			out = append(out, models.Anomaly{
				Symbol:    name,
				Timestamp: frame.RowTimestamp(i),
				Method:    models.MethodStatistical,
				Severity:  severityFromZ(z),
				Score:     math.Min(z*20, 100),
				Details: map[string]float64{
					"z_score": z,
					"value":   v,
					"mean":    mean,
					"std":     std,
				},
			})
		}
	}
	return out
}

// mlDetection scores rows with the shared outlier model, training it lazily
// on the first qualifying batch. Scoring after training is read-only and may
// run concurrently.
func (d *AnomalyDetector) mlDetection(frame *Frame) []models.Anomaly {
	names := frame.Columns()
	if len(names) == 0 {
		return nil
	}

	filled := make([][]float64, len(names))
	for i, name := range names {
		filled[i] = fillMean(frame.Column(name))
	}
	rows := make([][]float64, frame.Len())
	for r := range rows {
		row := make([]float64, len(names))
		for c := range names {
			row[c] = filled[c][r]
		}
		rows[r] = row
	}

	forest := d.ensureTrained(rows)

	var out []models.Anomaly
	for i, row := range rows {
		s := forest.score(row)
		if !forest.isOutlier(s) {
			continue
		}
		score := s * 100
		sev := models.AnomalyLow
		switch {
		case score > 75:
			sev = models.AnomalyHigh
		case score > 50:
			sev = models.AnomalyMedium
		}
		out = append(out, models.Anomaly{
			Symbol:    "multi_feature",
			Timestamp: frame.RowTimestamp(i),
			Method:    models.MethodML,
			Severity:  sev,
			Score:     score,
			Details:   map[string]float64{"anomaly_score": s},
		})
	}
	return out
}

// ensureTrained performs the guarded Untrained -> Trained transition. The
// first caller trains; concurrent callers block until the forest exists.
func (d *AnomalyDetector) ensureTrained(rows [][]float64) *isolationForest {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == modelTrained {
		return d.forest
	}
	cfg := defaultForestConfig()
	cfg.contamination = d.contamination
	d.forest = fitIsolationForest(rows, cfg)
	d.state = modelTrained
	if d.logger != nil {
		d.logger.Info("outlier model trained",
			logger.Int("rows", len(rows)),
			logger.Any("contamination", d.contamination))
	}
	return d.forest
}

// patternDetection flags volume spikes against a 20-period rolling mean.
func (d *AnomalyDetector) patternDetection(frame *Frame) []models.Anomaly {
	volume := frame.Column("volume")
	if volume == nil {
		return nil
	}
	n := 0
	for _, v := range volume {
		if !math.IsNaN(v) {
			n++
		}
	}
	if n < minPatternRows {
		return nil
	}

	rolling := rollingMean(volume, minPatternRows)
	var out []models.Anomaly
	for i, v := range volume {
		avg := rolling[i]
		if math.IsNaN(v) || math.IsNaN(avg) || avg == 0 {
			continue
		}
		ratio := v / avg
		if ratio <= volumeSpikeCut {
			continue
		}
		out = append(out, models.Anomaly{
			Symbol:    "volume",
			Timestamp: frame.RowTimestamp(i),
			Method:    models.MethodPattern,
			Severity:  models.AnomalyMedium,
			Score:     math.Min(ratio*25, 100),
			Details: map[string]float64{
				"volume_ratio": ratio,
				"volume":       v,
				"avg_volume":   avg,
			},
		})
	}
	return out
}

// severityFromZ buckets raw |z| into the four anomaly severities.
func severityFromZ(z float64) string {
	switch {
	case z > 4:
		return models.AnomalyCritical
	case z > 3:
		return models.AnomalyHigh
	case z > 2:
		return models.AnomalyMedium
	default:
		return models.AnomalyLow
	}
}

// rollingMean returns the trailing window mean per index; indexes with fewer
// than window prior values are NaN, matching the warm-up of the source data.
func rollingMean(xs []float64, window int) []float64 {
	out := make([]float64, len(xs))
	for i := range out {
		if i+1 < window {
			out[i] = math.NaN()
			continue
		}
		sum := 0.0
		count := 0
		for j := i + 1 - window; j <= i; j++ {
			if math.IsNaN(xs[j]) {
				continue
			}
			sum += xs[j]
			count++
		}
		if count == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(count)
	}
	return out
}
