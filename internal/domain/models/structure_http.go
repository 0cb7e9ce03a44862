package models

// Requests for the structure HTTP endpoints.

type PrefilterRequest struct {
	Symbol  string `query:"symbol" json:"symbol" validate:"required,min=1,max=12"`
	Days    int    `query:"days" json:"days" default:"250" validate:"gte=1,lte=2000"`
	Version string `query:"version" json:"version" default:"v0.2" validate:"oneof=v0.1 v0.2"`
}

type PivotsRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,min=1,max=12"`
	Scale  string `query:"scale" json:"scale" default:"meso" validate:"oneof=macro meso micro"`
	Days   int    `query:"days" json:"days" default:"250" validate:"gte=1,lte=2000"`
}

type ScanSubmitRequest struct {
	Symbols []string `json:"symbols" validate:"omitempty,max=500,dive,min=1,max=12"`
	Days    int      `json:"days" default:"250" validate:"gte=1,lte=2000"`
	Version string   `json:"version" default:"v0.2" validate:"oneof=v0.1 v0.2"`
}

type ScanResultsRequest struct {
	ScanID string `param:"id" json:"scan_id" validate:"required,uuid4"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type TopSymbolsRequest struct {
	Limit    int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=200"`
	MinScore int    `query:"min_score" json:"min_score" validate:"gte=0,lte=100"`
	Days     int    `query:"days" json:"days" default:"7" validate:"gte=1,lte=90"`
	Since    string `query:"since" json:"since" validate:"omitempty"`
}
