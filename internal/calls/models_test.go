package calls

import (
	"errors"
	"testing"

	"outbound-dialer/internal/errs"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"queued":      StatusQueued,
		"initiated":   StatusQueued,
		"Ringing":     StatusRinging,
		"in-progress": StatusInProgress,
		"completed":   StatusCompleted,
		"failed":      StatusFailed,
		"busy":        StatusBusy,
		" no-answer ": StatusNoAnswer,
		"canceled":    StatusCanceled,
	}
	for in, want := range cases {
		got, err := ParseStatus(in)
		if err != nil {
			t.Fatalf("ParseStatus(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseStatus(%q) = %q, want %q", in, got, want)
		}
	}

	for _, in := range []string{"", "answered", "in_progress", "cancelled"} {
		if _, err := ParseStatus(in); !errors.Is(err, errs.ErrUnknownStatus) {
			t.Fatalf("ParseStatus(%q): expected ErrUnknownStatus, got %v", in, err)
		}
	}
}

func TestTerminalStatusesAndOutcome(t *testing.T) {
	for _, s := range AllStatuses {
		switch s {
		case StatusQueued, StatusRinging, StatusInProgress:
			if s.IsTerminal() {
				t.Fatalf("%s must not be terminal", s)
			}
			if s.Outcome() != OutcomeNone {
				t.Fatalf("%s must not count", s)
			}
		case StatusCompleted:
			if !s.IsTerminal() || s.Outcome() != OutcomeSuccess {
				t.Fatalf("completed must be a terminal success")
			}
		case StatusFailed, StatusBusy, StatusNoAnswer:
			if !s.IsTerminal() || s.Outcome() != OutcomeFailure {
				t.Fatalf("%s must be a terminal failure", s)
			}
		case StatusCanceled:
			if !s.IsTerminal() || s.Outcome() != OutcomeNone {
				t.Fatalf("canceled must be terminal without outcome")
			}
		}
	}
	if len(NonTerminalStatuses()) != 3 {
		t.Fatalf("expected 3 non-terminal statuses")
	}
}

func TestParseAnsweredBy(t *testing.T) {
	if got := ParseAnsweredBy(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	if got := ParseAnsweredBy("HUMAN"); !got.IsHuman() {
		t.Fatalf("expected human, got %q", got)
	}
	if got := ParseAnsweredBy("machine_end_beep"); !got.IsMachine() || got.IsHuman() {
		t.Fatalf("expected machine, got %q", got)
	}
	if got := ParseAnsweredBy("robot"); got != AnsweredByUnknown {
		t.Fatalf("expected unknown, got %q", got)
	}
	if AnsweredByFax.IsMachine() {
		t.Fatalf("fax is not a machine answer")
	}
}

func TestStatusCanMoveTo(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusQueued, StatusRinging, true},
		{StatusQueued, StatusCompleted, true},
		{StatusRinging, StatusRinging, true},
		{StatusRinging, StatusQueued, false},
		{StatusInProgress, StatusRinging, false},
		{StatusInProgress, StatusBusy, true},
		{StatusCompleted, StatusFailed, false},
		{StatusCanceled, StatusCanceled, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanMoveTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}
