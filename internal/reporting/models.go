package reporting

import "time"

// TimeRange bounds CreatedAt; From is inclusive, To exclusive. A zero range
// covers all time.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type StatsRequest struct {
	CampaignID string    `json:"campaign_id"`
	Range      TimeRange `json:"range"`
}

// CallStats aggregates the call records of one campaign.
type CallStats struct {
	CampaignID string `json:"campaign_id"`

	TotalCalls      int `json:"total_calls"`
	QueuedCalls     int `json:"queued_calls"`
	RingingCalls    int `json:"ringing_calls"`
	InProgressCalls int `json:"in_progress_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`
	BusyCalls       int `json:"busy_calls"`
	NoAnswerCalls   int `json:"no_answer_calls"`
	CanceledCalls   int `json:"canceled_calls"`

	AnsweredByHuman   int `json:"answered_by_human"`
	AnsweredByMachine int `json:"answered_by_machine"`

	// AverageDurationSeconds is over calls that reported a duration.
	AverageDurationSeconds float64 `json:"average_duration_seconds"`
	TotalDurationSeconds   int     `json:"total_duration_seconds"`

	// TotalCost sums absolute provider prices; providers report charges as negatives.
	TotalCost    float64 `json:"total_cost"`
	CostCurrency string  `json:"cost_currency,omitempty"`

	RecordedCalls int `json:"recorded_calls"`
}

// ConversionMetrics relates call outcomes to prospect progress.
type ConversionMetrics struct {
	CampaignID string `json:"campaign_id"`

	CallsAttempted int `json:"calls_attempted"`
	CallsConnected int `json:"calls_connected"`
	Interested     int `json:"interested"`
	Conversions    int `json:"conversions"`

	ConnectionRate float64 `json:"connection_rate"`
	ConversionRate float64 `json:"conversion_rate"`
}
