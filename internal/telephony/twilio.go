package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"outbound-dialer/internal/errs"
)

const DefaultTwilioAPIBase = "https://api.twilio.com"

// TwilioConfig carries the credentials of the live gateway.
type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string

	// APIBaseURL overrides the Twilio API host (tests, regional edges).
	APIBaseURL string
	Timeout    time.Duration
}

// Configured reports whether every credential needed for live calls is present.
func (c TwilioConfig) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.PhoneNumber != ""
}

// TwilioGateway places calls through the Twilio REST API over plain HTTP.
type TwilioGateway struct {
	accountSID string
	authToken  string
	baseURL    string
	client     *http.Client
	log        *slog.Logger
}

func NewTwilioGateway(cfg TwilioConfig, client *http.Client, log *slog.Logger) (*TwilioGateway, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errs.ErrProviderUnavailable
	}
	if !strings.HasPrefix(cfg.AccountSID, "AC") {
		return nil, errs.New(errs.ErrProviderUnavailable, "Twilio account SID must start with AC")
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = slog.Default()
	}
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	if base == "" {
		base = DefaultTwilioAPIBase
	}
	return &TwilioGateway{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		baseURL:    base,
		client:     client,
		log:        log,
	}, nil
}

func (g *TwilioGateway) Name() string { return "twilio" }

func (g *TwilioGateway) Simulated() bool { return false }

// twilioCall is the subset of the Calls resource we read.
type twilioCall struct {
	Sid       string  `json:"sid"`
	Status    string  `json:"status"`
	To        string  `json:"to"`
	From      string  `json:"from"`
	Direction string  `json:"direction"`
	Duration  *string `json:"duration"`
	Price     *string `json:"price"`
	PriceUnit string  `json:"price_unit"`
}

type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func (g *TwilioGateway) callsURL(sid string) string {
	u := g.baseURL + "/2010-04-01/Accounts/" + url.PathEscape(g.accountSID) + "/Calls"
	if sid != "" {
		u += "/" + url.PathEscape(sid)
	}
	return u + ".json"
}

func (g *TwilioGateway) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", req.From)
	if req.TwiML != "" {
		form.Set("Twiml", req.TwiML)
	}
	if req.StatusCallback != "" {
		form.Set("StatusCallback", req.StatusCallback)
		form.Set("StatusCallbackMethod", http.MethodPost)
		for _, ev := range req.StatusCallbackEvents {
			form.Add("StatusCallbackEvent", ev)
		}
	}
	if req.MachineDetection != "" {
		form.Set("MachineDetection", req.MachineDetection)
		if req.MachineDetectionTimeout > 0 {
			form.Set("MachineDetectionTimeout", strconv.Itoa(req.MachineDetectionTimeout))
		}
	}
	form.Set("Record", strconv.FormatBool(req.Record))
	if req.Record && req.RecordingStatusCallback != "" {
		form.Set("RecordingStatusCallback", req.RecordingStatusCallback)
		form.Set("RecordingStatusCallbackMethod", http.MethodPost)
	}
	if req.Timeout > 0 {
		form.Set("Timeout", strconv.Itoa(req.Timeout))
	}

	var out twilioCall
	if err := g.do(ctx, http.MethodPost, g.callsURL(""), form, &out); err != nil {
		return PlaceCallResult{}, err
	}
	g.log.Info("twilio call created", "call_sid", out.Sid, "status", out.Status)
	return PlaceCallResult{
		ProviderCallID: out.Sid,
		Status:         out.Status,
		Direction:      out.Direction,
		To:             out.To,
		From:           out.From,
	}, nil
}

func (g *TwilioGateway) GetCallStatus(ctx context.Context, providerCallID string) (CallStatusResult, error) {
	var out twilioCall
	if err := g.do(ctx, http.MethodGet, g.callsURL(providerCallID), nil, &out); err != nil {
		return CallStatusResult{}, err
	}
	res := CallStatusResult{ProviderCallID: out.Sid, Status: out.Status, PriceUnit: out.PriceUnit}
	if out.Duration != nil {
		if n, err := strconv.Atoi(*out.Duration); err == nil {
			res.DurationSeconds = &n
		}
	}
	if out.Price != nil {
		res.Price = *out.Price
	}
	return res, nil
}

func (g *TwilioGateway) CancelCall(ctx context.Context, providerCallID string) error {
	form := url.Values{}
	form.Set("Status", "canceled")
	return g.do(ctx, http.MethodPost, g.callsURL(providerCallID), form, nil)
}

func (g *TwilioGateway) do(ctx context.Context, method, endpoint string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return errs.Provider("Twilio request could not be built", err)
	}
	req.SetBasicAuth(g.accountSID, g.authToken)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return errs.Provider("Twilio request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errs.Provider("Twilio response could not be read", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var te twilioError
		_ = json.Unmarshal(raw, &te)
		msg := te.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		g.log.Warn("twilio api error", "status", resp.StatusCode, "code", te.Code, "message", msg)
		if te.Code != 0 {
			msg = fmt.Sprintf("%s (code %d)", msg, te.Code)
		}
		return errs.Provider(fmt.Sprintf("Twilio API error: %d - %s", resp.StatusCode, msg), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errs.Provider("Twilio response could not be decoded", err)
	}
	return nil
}
