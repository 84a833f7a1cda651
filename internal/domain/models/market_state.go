package models

// MarketState is a flat snapshot of named indicators supplied fresh to the
// signal generator and risk scorer on each evaluation cycle. There is no
// schema: a missing key means the consumer's documented default applies.
type MarketState map[string]interface{}

// Float returns the indicator as float64, or def when absent or non-numeric.
func (m MarketState) Float(key string, def float64) float64 {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	default:
		return def
	}
}

// Bool returns the indicator as bool, or def when absent or non-boolean.
func (m MarketState) Bool(key string, def bool) bool {
	v, ok := m[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// Prediction is a stored model prediction (persistence contract only; model
// training is out of scope here).
type Prediction struct {
	ID         string                 `json:"id,omitempty"`
	ModelType  string                 `json:"model_type"` // lstm | transformer | ensemble
	Direction  string                 `json:"direction"`
	Confidence float64                `json:"confidence"`
	CreatedAt  int64                  `json:"created_at"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}
