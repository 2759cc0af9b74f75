package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"outbound-dialer/internal/errs"
)

func newTestTwilio(t *testing.T, h http.HandlerFunc) *TwilioGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	g, err := NewTwilioGateway(TwilioConfig{
		AccountSID:  "AC123",
		AuthToken:   "secret",
		PhoneNumber: "+15550001111",
		APIBaseURL:  srv.URL,
	}, srv.Client(), nil)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return g
}

func TestNewTwilioGateway_RejectsBadCredentials(t *testing.T) {
	if _, err := NewTwilioGateway(TwilioConfig{}, nil, nil); !errors.Is(err, errs.ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if _, err := NewTwilioGateway(TwilioConfig{AccountSID: "XX1", AuthToken: "t"}, nil, nil); !errors.Is(err, errs.ErrProviderUnavailable) || !errors.Is(err, errs.ErrProvider) {
		t.Fatalf("expected ErrProviderUnavailable for malformed sid, got %v", err)
	}
}

func TestTwilioGateway_PlaceCallSendsForm(t *testing.T) {
	g := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/2010-04-01/Accounts/AC123/Calls.json" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			t.Errorf("expected basic auth")
		}
		_ = r.ParseForm()
		if got := r.PostForm["StatusCallbackEvent"]; len(got) != 4 || got[0] != "initiated" {
			t.Errorf("unexpected callback events %v", got)
		}
		if r.PostForm.Get("MachineDetection") != "DetectMessageEnd" || r.PostForm.Get("Timeout") != "60" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		if !strings.Contains(r.PostForm.Get("Twiml"), "<Play>") {
			t.Errorf("expected inline twiml")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"CA999","status":"queued","direction":"outbound-api","to":"+15550002222","from":"+15550001111"}`))
	})

	twiml, _ := RenderPlayTwiML("https://cdn.example.com/a.mp3")
	res, err := g.PlaceCall(context.Background(), PlaceCallRequest{
		To:                      "+15550002222",
		From:                    "+15550001111",
		TwiML:                   twiml,
		StatusCallback:          "https://app.example.com/api/webhooks/twilio",
		StatusCallbackEvents:    StatusCallbackEvents,
		MachineDetection:        MachineDetectionDetectMessageEnd,
		MachineDetectionTimeout: DefaultMachineDetectionTimeout,
		Timeout:                 DefaultRingTimeout,
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if res.ProviderCallID != "CA999" || res.Status != "queued" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestTwilioGateway_ErrorCarriesProviderMessage(t *testing.T) {
	g := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number","status":400}`))
	})

	_, err := g.PlaceCall(context.Background(), PlaceCallRequest{To: "bad", From: "+15550001111"})
	if !errors.Is(err, errs.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
	if !strings.Contains(err.Error(), "21211") || !strings.Contains(err.Error(), "Invalid 'To' Phone Number") {
		t.Fatalf("expected provider code and message, got %q", err.Error())
	}
}

func TestTwilioGateway_GetCallStatusAndCancel(t *testing.T) {
	var canceled bool
	g := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2010-04-01/Accounts/AC123/Calls/CA1.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Method == http.MethodPost {
			_ = r.ParseForm()
			canceled = r.PostForm.Get("Status") == "canceled"
		}
		_, _ = w.Write([]byte(`{"sid":"CA1","status":"completed","duration":"37","price":"-0.0130","price_unit":"USD"}`))
	})

	st, err := g.GetCallStatus(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Status != "completed" || st.DurationSeconds == nil || *st.DurationSeconds != 37 || st.Price != "-0.0130" {
		t.Fatalf("unexpected status %+v", st)
	}
	if err := g.CancelCall(context.Background(), "CA1"); err != nil || !canceled {
		t.Fatalf("cancel: %v canceled=%v", err, canceled)
	}
}

func TestNewGateway_SelectsSimulationWithoutCredentials(t *testing.T) {
	g, err := NewGateway(TwilioConfig{AccountSID: "AC1", AuthToken: "t"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !g.Simulated() {
		t.Fatalf("missing phone number must select simulation")
	}
	g, err = NewGateway(TwilioConfig{AccountSID: "AC1", AuthToken: "t", PhoneNumber: "+1555"}, nil, nil)
	if err != nil || g.Simulated() || g.Name() != "twilio" {
		t.Fatalf("expected live gateway, got %v %v", g, err)
	}
}
