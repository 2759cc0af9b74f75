package telephony

import (
	"log/slog"
	"net/http"
)

// NewGateway picks the live gateway when every credential is present and
// falls back to simulation otherwise.
func NewGateway(cfg TwilioConfig, client *http.Client, log *slog.Logger) (Gateway, error) {
	if log == nil {
		log = slog.Default()
	}
	if !cfg.Configured() {
		log.Warn("twilio credentials not configured; running in simulation mode")
		return NewSimulatedGateway(nil, log), nil
	}
	return NewTwilioGateway(cfg, client, log)
}
