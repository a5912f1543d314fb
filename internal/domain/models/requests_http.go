package models

// Requests for the dashboard HTTP endpoints.

type RowsRequest struct {
	Filter string `query:"filter" json:"filter" default:"all" validate:"omitempty,oneof=all highCorrelation strongSignal hasSignal high-corr strong-signal has-signal"`
	Sort   string `query:"sort" json:"sort" validate:"omitempty,oneof=correlationDesc zScoreAbsDesc pairAsc corr-desc zscore-abs-desc pair-asc"`
	Query  string `query:"q" json:"q" validate:"max=64"`
}

type RecommendationsRequest struct {
	N int `query:"n" json:"n" default:"5" validate:"gte=1,lte=50"`
}

type TrackPairRequest struct {
	Asset1 string `json:"asset1" validate:"required,alphanum,max=20"`
	Asset2 string `json:"asset2" validate:"required,alphanum,max=20,nefield=Asset1"`
}

type PairIDRequest struct {
	ID string `param:"id" validate:"required"`
}

type WindowSizeRequest struct {
	WindowSize int `json:"windowSize" query:"windowSize" validate:"required,gte=10,lte=1000"`
}

type ChartRequest struct {
	Kind string `param:"kind" validate:"required,oneof=zscore spread z-score"`
}
