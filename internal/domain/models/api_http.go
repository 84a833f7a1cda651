package models

// Requests for the presentation HTTP endpoints. Defined in domain for consistency and reuse.

type RecentAlertsRequest struct {
	Limit int `query:"limit" json:"limit" default:"10" validate:"gte=1,lte=1000"`
}

type StatisticsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type ActiveSignalsRequest struct {
	Severity string `query:"severity" json:"severity" validate:"omitempty,oneof=info warning critical emergency"`
	Limit    int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type AnomalyScanRequest struct {
	Symbols string `query:"symbols" json:"symbols" validate:"required"` // comma-separated
	Hours   int    `query:"hours" json:"hours" default:"24" validate:"gte=1,lte=720"`
	Limit   int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=50"`
}

type ObservationsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	Hours  int    `query:"hours" json:"hours" default:"24" validate:"gte=1,lte=720"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=5000"`
}
