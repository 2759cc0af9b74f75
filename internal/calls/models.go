package calls

import (
	"encoding/json"
	"strings"
	"time"

	"outbound-dialer/internal/errs"
)

// Call is one placement attempt for a (campaign, prospect) pair.
//
// Rows are never deleted; they feed analytics and retry decisions.
// ProviderCallID stays empty until the gateway accepted the call.
type Call struct {
	ID         string `json:"id" db:"id"`
	CampaignID string `json:"campaign_id" db:"campaign_id"`
	ProspectID string `json:"prospect_id" db:"prospect_id"`

	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`

	FromNumber string `json:"from_number" db:"from_number"`
	ToNumber   string `json:"to_number" db:"to_number"`
	Direction  string `json:"direction" db:"direction"`

	Status Status `json:"status" db:"status"`

	// DurationSeconds is set once the provider reports it.
	DurationSeconds int `json:"duration,omitempty" db:"duration"`

	// Cost is the provider price as reported (e.g. "-0.0200"); providers report charges as negatives.
	Cost         string `json:"cost,omitempty" db:"cost"`
	CostCurrency string `json:"cost_currency,omitempty" db:"cost_currency"`

	ErrorCode    string `json:"error_code,omitempty" db:"error_code"`
	ErrorMessage string `json:"error_message,omitempty" db:"error_message"`

	AnsweredBy AnsweredBy `json:"answered_by,omitempty" db:"answered_by"`

	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`
	RecordingSID string `json:"recording_sid,omitempty" db:"recording_sid"`

	StartedAt *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	// Metadata holds free-form JSON (transcript, audio references).
	Metadata json.RawMessage `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const DirectionOutboundAPI = "outbound-api"

// Status is the call lifecycle state as reported by the provider.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusRinging    Status = "ringing"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusBusy       Status = "busy"
	StatusNoAnswer   Status = "no-answer"
	StatusCanceled   Status = "canceled"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusQueued,
	StatusRinging,
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
	StatusBusy,
	StatusNoAnswer,
	StatusCanceled,
}

// ParseStatus maps a provider status string onto the closed Status set.
// Unknown values are rejected rather than stored.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusQueued:
		return StatusQueued, nil
	case StatusRinging:
		return StatusRinging, nil
	case StatusInProgress:
		return StatusInProgress, nil
	case StatusCompleted:
		return StatusCompleted, nil
	case StatusFailed:
		return StatusFailed, nil
	case StatusBusy:
		return StatusBusy, nil
	case StatusNoAnswer:
		return StatusNoAnswer, nil
	case StatusCanceled:
		return StatusCanceled, nil
	}
	// Twilio reports "initiated" for the first callback event; it is still queued on our side.
	if strings.EqualFold(strings.TrimSpace(s), "initiated") {
		return StatusQueued, nil
	}
	return "", errs.ErrUnknownStatus
}

// IsTerminal reports whether no further transition may leave s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer, StatusCanceled:
		return true
	case StatusQueued, StatusRinging, StatusInProgress:
		return false
	}
	return false
}

// rank orders statuses along queued -> ringing -> in-progress -> terminal.
func (s Status) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusRinging:
		return 1
	case StatusInProgress:
		return 2
	case StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer, StatusCanceled:
		return 3
	}
	return 0
}

// CanMoveTo reports whether a call in s may take next. Statuses never move
// backwards and a terminal status is final.
func (s Status) CanMoveTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	return next.rank() >= s.rank()
}

// Outcome classifies a terminal status for campaign counters.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

// Outcome returns how a call ending in s counts toward campaign totals.
// Canceled calls are not counted, matching the campaign counters contract.
func (s Status) Outcome() Outcome {
	switch s {
	case StatusCompleted:
		return OutcomeSuccess
	case StatusFailed, StatusBusy, StatusNoAnswer:
		return OutcomeFailure
	case StatusQueued, StatusRinging, StatusInProgress, StatusCanceled:
		return OutcomeNone
	}
	return OutcomeNone
}

// NonTerminalStatuses are the statuses of calls still in flight.
func NonTerminalStatuses() []Status {
	return []Status{StatusQueued, StatusRinging, StatusInProgress}
}

// AnsweredBy classifies who picked up.
type AnsweredBy string

const (
	AnsweredByHuman             AnsweredBy = "human"
	AnsweredByMachineStart      AnsweredBy = "machine_start"
	AnsweredByMachineEndBeep    AnsweredBy = "machine_end_beep"
	AnsweredByMachineEndSilence AnsweredBy = "machine_end_silence"
	AnsweredByMachineEndOther   AnsweredBy = "machine_end_other"
	AnsweredByFax               AnsweredBy = "fax"
	AnsweredByUnknown           AnsweredBy = "unknown"
)

// ParseAnsweredBy never fails: unrecognised values collapse to unknown and
// an empty value stays empty (not yet classified).
func ParseAnsweredBy(s string) AnsweredBy {
	v := AnsweredBy(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case "":
		return ""
	case AnsweredByHuman, AnsweredByMachineStart, AnsweredByMachineEndBeep,
		AnsweredByMachineEndSilence, AnsweredByMachineEndOther, AnsweredByFax, AnsweredByUnknown:
		return v
	}
	return AnsweredByUnknown
}

func (a AnsweredBy) IsHuman() bool { return a == AnsweredByHuman }

func (a AnsweredBy) IsMachine() bool { return strings.HasPrefix(string(a), "machine") }
