package telephony

import (
	"context"
)

// Gateway is the provider-agnostic call control interface used by placement.
//
// Rules:
// - No provider HTTP calls outside gateway implementations.
// - Gateways persist nothing; the call store is owned by the caller.
// - Statuses are returned as the provider reports them; callers parse them.
type Gateway interface {
	Name() string
	// Simulated reports whether calls are fabricated instead of dialed.
	Simulated() bool

	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error)
	GetCallStatus(ctx context.Context, providerCallID string) (CallStatusResult, error)
	CancelCall(ctx context.Context, providerCallID string) error
}

// PlaceCallRequest describes one outbound call.
type PlaceCallRequest struct {
	To   string
	From string

	// TwiML is the inline call script, usually from RenderPlayTwiML.
	TwiML string

	StatusCallback       string
	StatusCallbackEvents []string

	MachineDetection        string
	MachineDetectionTimeout int

	Record                  bool
	RecordingStatusCallback string

	// Timeout is how long to let the phone ring, in seconds.
	Timeout int
}

// PlaceCallResult is the provider's acknowledgement of a new call.
type PlaceCallResult struct {
	ProviderCallID string
	Status         string
	Direction      string
	To             string
	From           string
}

// CallStatusResult is a point-in-time provider view of a call.
type CallStatusResult struct {
	ProviderCallID string
	Status         string

	// DurationSeconds is nil until the provider reports a duration.
	DurationSeconds *int
	Price           string
	PriceUnit       string
}

const (
	MachineDetectionDetectMessageEnd = "DetectMessageEnd"

	DefaultMachineDetectionTimeout = 30
	DefaultRingTimeout             = 60
)

// StatusCallbackEvents are the call progress events we subscribe to.
var StatusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}
