package errs

import (
	"errors"
	"fmt"
)

// Error kinds. Every domain error unwraps to exactly one of these so callers
// (HTTP mapping, metrics labels) can branch on the kind without knowing every case.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("invalid state")
	ErrProvider      = errors.New("provider error")
	ErrConfiguration = errors.New("configuration error")
	ErrInvalidInput  = errors.New("invalid input")
)

// Error is a user-facing domain error.
// Message is surfaced verbatim in API results; Kind drives classification.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// New returns an *Error of the given kind.
func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	ErrCampaignNotFound = New(ErrNotFound, "Campaign not found")
	ErrProspectNotFound = New(ErrNotFound, "Prospect not found")
	ErrCallNotFound     = New(ErrNotFound, "Call not found")

	ErrCampaignNotActive = New(ErrInvalidState, "Campaign is not active")
	ErrOutsideCallWindow = New(ErrInvalidState, "Outside call window")
	ErrDailyLimitReached = New(ErrInvalidState, "Daily call limit reached")
	ErrDispatchRunning   = New(ErrInvalidState, "Dispatch already running for this campaign")
	ErrInvalidTransition = New(ErrInvalidState, "Invalid status transition")

	ErrMissingFromNumber   = New(ErrConfiguration, "No from phone number configured")
	ErrMissingAudio        = New(ErrConfiguration, "No audio URL available for this campaign")
	ErrProviderUnavailable = New(ErrProvider, "Telephony provider unavailable")

	ErrUnknownStatus = New(ErrInvalidInput, "Unknown call status")
)

// OutsideCallWindow reports the configured window in the message while still
// matching ErrOutsideCallWindow with errors.Is.
func OutsideCallWindow(start, end string) error {
	return New(ErrOutsideCallWindow, fmt.Sprintf("Calls can only be placed between %s and %s", start, end))
}

// Transition reports a rejected lifecycle change with a specific message.
func Transition(msg string) error {
	return New(ErrInvalidTransition, msg)
}

// Provider wraps a provider failure. The message is kept for the caller; the
// cause stays reachable through errors.Unwrap on the returned chain.
func Provider(msg string, cause error) error {
	if cause == nil {
		return New(ErrProvider, msg)
	}
	return &providerError{domain: New(ErrProvider, msg), cause: cause}
}

type providerError struct {
	domain *Error
	cause  error
}

func (e *providerError) Error() string { return e.domain.Message }

func (e *providerError) Unwrap() []error { return []error{e.domain, e.cause} }

// Invalid reports bad caller input.
func Invalid(msg string) error {
	return New(ErrInvalidInput, msg)
}

// Message returns the user-facing message of err, falling back to fallback
// for errors that are not domain errors.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if fallback != "" {
		return fallback
	}
	return err.Error()
}
