package models

import "github.com/kartoza/gem-pricer/internal/features"

// PredictResponse is returned by a successful prediction
type PredictResponse struct {
	PredictedPrice string  `json:"predicted_price"`
	RawPrice       float64 `json:"raw_price"`
}

// ErrorResponse is returned by any failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// OptionsResponse lists the legal categorical values and numeric controls
type OptionsResponse struct {
	Cut     []features.Option       `json:"cut"`
	Color   []features.Option       `json:"color"`
	Clarity []features.Option       `json:"clarity"`
	Numeric []features.NumericInput `json:"numeric"`
}

// InfoResponse describes the running service
type InfoResponse struct {
	Version        string                 `json:"version"`
	ModelLoaded    bool                   `json:"model_loaded"`
	SchemaLoaded   bool                   `json:"schema_loaded"`
	FeatureCount   int                    `json:"feature_count"`
	MissingColumns []string               `json:"missing_columns,omitempty"`
	Policy         string                 `json:"policy"`
	Model          map[string]interface{} `json:"model"`
	HistoryEnabled bool                   `json:"history_enabled"`
}
