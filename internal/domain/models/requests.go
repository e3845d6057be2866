package models

// Requests for the edge HTTP endpoints.

type ClassifyRequest struct {
	Date      string  `json:"date" query:"date"`
	PrevOpen  float64 `json:"prev_open" validate:"required,gt=0"`
	PrevHigh  float64 `json:"prev_high" validate:"required,gt=0,gtefield=PrevLow"`
	PrevLow   float64 `json:"prev_low" validate:"required,gt=0"`
	PrevClose float64 `json:"prev_close" validate:"required,gt=0"`
	TodayOpen float64 `json:"today_open" validate:"required,gt=0"`
}

// LiveInput converts the request into the classifier input.
func (r ClassifyRequest) LiveInput() LiveInput {
	return LiveInput{
		Date:      r.Date,
		PrevOpen:  r.PrevOpen,
		PrevHigh:  r.PrevHigh,
		PrevLow:   r.PrevLow,
		PrevClose: r.PrevClose,
		TodayOpen: r.TodayOpen,
	}
}

type HistoryRequest struct {
	Date string `query:"date" json:"date" validate:"required,datetime=2006-01-02"`
}

type StatsRequest struct {
	Limit int `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=5000"`
}

// BacktestRunRequest asks for a re-run. Input is a file name under the configured input
// directory; empty means the configured input.
type BacktestRunRequest struct {
	Input     string `json:"input"`
	HeaderRow int    `json:"header_row" default:"0" validate:"gte=0,lte=100"`
	Mode      string `json:"mode" validate:"omitempty,oneof=rolling frozen"`
}

// BacktestRunAccepted is returned when a re-run is queued.
type BacktestRunAccepted struct {
	JobID string `json:"job_id"`
	Input string `json:"input"`
	Mode  string `json:"mode"`
}
