package campaigns

import "time"

// Campaign is a paced outbound calling run owned by one user.
//
// Counters are written only through call-outcome reconciliation; status only
// through Launch, Pause and Complete.
type Campaign struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`
	Name   string `json:"name" db:"name"`

	AudioURL string `json:"audio_url,omitempty" db:"audio_url"`

	DailyLimit      int    `json:"daily_limit" db:"daily_limit"`
	CallWindowStart string `json:"call_window_start" db:"call_window_start"`
	CallWindowEnd   string `json:"call_window_end" db:"call_window_end"`
	Timezone        string `json:"timezone" db:"timezone"`

	// ActiveDays holds weekdays with Sunday = 0. Empty means every day.
	ActiveDays  []int `json:"active_days" db:"active_days"`
	MaxAttempts int   `json:"max_attempts" db:"max_attempts"`

	Status Status `json:"status" db:"status"`

	TotalCalls      int `json:"total_calls" db:"total_calls"`
	SuccessfulCalls int `json:"successful_calls" db:"successful_calls"`
	FailedCalls     int `json:"failed_calls" db:"failed_calls"`

	LaunchedAt  *time.Time `json:"launched_at,omitempty" db:"launched_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

// ActiveOn reports whether weekday is one of the campaign's active days.
func (c Campaign) ActiveOn(weekday time.Weekday) bool {
	if len(c.ActiveDays) == 0 {
		return true
	}
	for _, d := range c.ActiveDays {
		if d == int(weekday) {
			return true
		}
	}
	return false
}

// Prospect is a person a campaign may call.
type Prospect struct {
	ID          string `json:"id" db:"id"`
	CampaignID  string `json:"campaign_id" db:"campaign_id"`
	FirstName   string `json:"first_name" db:"first_name"`
	LastName    string `json:"last_name" db:"last_name"`
	CompanyName string `json:"company_name,omitempty" db:"company_name"`
	ContactRole string `json:"contact_role,omitempty" db:"contact_role"`
	Email       string `json:"email,omitempty" db:"email"`
	PhoneNumber string `json:"phone_number" db:"phone_number"`

	Status ProspectStatus `json:"status" db:"status"`
	Notes  string         `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName is "First Last", trimmed when either part is missing.
func (p Prospect) DisplayName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

type ProspectStatus string

const (
	ProspectPending       ProspectStatus = "pending"
	ProspectContacted     ProspectStatus = "contacted"
	ProspectInterested    ProspectStatus = "interested"
	ProspectNotInterested ProspectStatus = "not-interested"
	ProspectConverted     ProspectStatus = "converted"
)

func (s ProspectStatus) Valid() bool {
	switch s {
	case ProspectPending, ProspectContacted, ProspectInterested, ProspectNotInterested, ProspectConverted:
		return true
	}
	return false
}

// ListFilter narrows ListCampaigns. Zero fields do not filter.
type ListFilter struct {
	UserID string
	Status Status
}
