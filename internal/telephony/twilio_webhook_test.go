package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseTwilioStatusCallback(t *testing.T) {
	body := strings.NewReader("CallSid=CA123&CallStatus=completed&CallDuration=45&AnsweredBy=human&Price=-0.02&PriceUnit=USD")
	r := httptest.NewRequest(http.MethodPost, "/api/webhooks/twilio", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseTwilioStatusCallback(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	u := form.ToStatusUpdate()
	if u.ProviderCallID != "CA123" || u.Status != "completed" {
		t.Fatalf("unexpected update %+v", u)
	}
	if u.DurationSeconds == nil || *u.DurationSeconds != 45 {
		t.Fatalf("expected duration 45")
	}
	if u.AnsweredBy != "human" || u.Price != "-0.02" || u.PriceUnit != "USD" {
		t.Fatalf("unexpected update %+v", u)
	}
}

func TestStatusUpdateDropsMalformedDuration(t *testing.T) {
	u := TwilioStatusForm{CallSid: "CA1", CallStatus: "completed", CallDuration: "abc"}.ToStatusUpdate()
	if u.DurationSeconds != nil {
		t.Fatalf("expected malformed duration to be dropped")
	}
}
