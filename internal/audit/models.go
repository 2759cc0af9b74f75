package audit

import "time"

// Event is an append-only audit record of an operator or system action.
//
// Events are never updated or deleted. Actor fields are empty for actions
// taken by the worker sweep.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`
	CallID     string `json:"call_id,omitempty" db:"call_id"`

	Message string `json:"message,omitempty" db:"message"`
	// Metadata is optional JSON.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventCampaignCreated   EventType = "campaign_created"
	EventCampaignLaunched  EventType = "campaign_launched"
	EventCampaignPaused    EventType = "campaign_paused"
	EventCampaignCompleted EventType = "campaign_completed"
	EventDispatchRequested EventType = "dispatch_requested"
	EventRetryRequested    EventType = "retry_requested"
	EventCallCanceled      EventType = "call_canceled"
)

// Actor identifies who triggered an event.
type Actor struct {
	UserID string
	Role   string
	IP     string
}
