package telephony

import (
	"net/http"
	"strconv"
	"strings"

	"outbound-dialer/internal/calls"
)

// TwilioStatusForm captures the status callback fields we reconcile.
// Twilio sends application/x-www-form-urlencoded by default.
type TwilioStatusForm struct {
	CallSid      string
	AccountSid   string
	CallStatus   string
	CallDuration string
	AnsweredBy   string
	ErrorCode    string
	ErrorMessage string
	Price        string
	PriceUnit    string
	RecordingURL string
	RecordingSid string
	Timestamp    string
}

func ParseTwilioStatusCallback(r *http.Request) (TwilioStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioStatusForm{}, err
	}
	return TwilioStatusForm{
		CallSid:      strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid:   r.PostFormValue("AccountSid"),
		CallStatus:   strings.TrimSpace(r.PostFormValue("CallStatus")),
		CallDuration: strings.TrimSpace(r.PostFormValue("CallDuration")),
		AnsweredBy:   r.PostFormValue("AnsweredBy"),
		ErrorCode:    r.PostFormValue("ErrorCode"),
		ErrorMessage: r.PostFormValue("ErrorMessage"),
		Price:        r.PostFormValue("Price"),
		PriceUnit:    r.PostFormValue("PriceUnit"),
		RecordingURL: r.PostFormValue("RecordingUrl"),
		RecordingSid: r.PostFormValue("RecordingSid"),
		Timestamp:    r.PostFormValue("Timestamp"),
	}, nil
}

// ToStatusUpdate maps the form onto the reconciler input. A malformed
// duration is dropped rather than failing the whole callback.
func (f TwilioStatusForm) ToStatusUpdate() calls.StatusUpdate {
	u := calls.StatusUpdate{
		ProviderCallID: f.CallSid,
		Status:         f.CallStatus,
		Price:          f.Price,
		PriceUnit:      f.PriceUnit,
		AnsweredBy:     f.AnsweredBy,
		ErrorCode:      f.ErrorCode,
		ErrorMessage:   f.ErrorMessage,
		RecordingURL:   f.RecordingURL,
		RecordingSID:   f.RecordingSid,
	}
	if f.CallDuration != "" {
		if n, err := strconv.Atoi(f.CallDuration); err == nil && n >= 0 {
			u.DurationSeconds = &n
		}
	}
	return u
}

// TwilioRecordingForm is the recording status callback.
type TwilioRecordingForm struct {
	CallSid         string
	RecordingSid    string
	RecordingURL    string
	RecordingStatus string
}

func ParseTwilioRecordingCallback(r *http.Request) (TwilioRecordingForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioRecordingForm{}, err
	}
	return TwilioRecordingForm{
		CallSid:         strings.TrimSpace(r.PostFormValue("CallSid")),
		RecordingSid:    r.PostFormValue("RecordingSid"),
		RecordingURL:    r.PostFormValue("RecordingUrl"),
		RecordingStatus: r.PostFormValue("RecordingStatus"),
	}, nil
}
