package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"outbound-dialer/internal/errs"
	"outbound-dialer/internal/scheduler"
)

type Kind string

const (
	KindDispatch Kind = "dispatch"
	KindRetry    Kind = "retry"
)

// Job is one unit of campaign work handed from the API to the worker.
type Job struct {
	ID         string                 `json:"id"`
	Kind       Kind                   `json:"kind"`
	CampaignID string                 `json:"campaign_id"`
	MaxCalls   int                    `json:"max_calls,omitempty"`
	Retry      *scheduler.RetryConfig `json:"retry,omitempty"`

	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

func (j Job) Validate() error {
	if strings.TrimSpace(j.CampaignID) == "" {
		return errs.Invalid("campaign_id is required")
	}
	switch j.Kind {
	case KindDispatch:
		if j.MaxCalls < 0 {
			return errs.Invalid("max_calls must not be negative")
		}
	case KindRetry:
	default:
		return errs.Invalid(fmt.Sprintf("unknown job kind %q", j.Kind))
	}
	return nil
}

func decodeJob(body []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(body, &j); err != nil {
		return Job{}, errs.Invalid("malformed job: " + err.Error())
	}
	return j, j.Validate()
}
