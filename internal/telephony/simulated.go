package telephony

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SimulatedGateway stands in for the live provider when credentials are absent.
// It never dials; statuses are drawn from a fixed distribution.
type SimulatedGateway struct {
	mu  sync.Mutex
	rng *rand.Rand
	log *slog.Logger
}

// NewSimulatedGateway uses rng for call IDs and status draws. A nil rng is
// seeded from the clock; pass a fixed seed for reproducible runs.
func NewSimulatedGateway(rng *rand.Rand, log *slog.Logger) *SimulatedGateway {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log == nil {
		log = slog.Default()
	}
	return &SimulatedGateway{rng: rng, log: log}
}

func (g *SimulatedGateway) Name() string { return "simulated" }

func (g *SimulatedGateway) Simulated() bool { return true }

type weightedStatus struct {
	status string
	weight float64
}

// simulatedOutcomes sum to 1.
var simulatedOutcomes = []weightedStatus{
	{"completed", 0.70},
	{"busy", 0.10},
	{"no-answer", 0.15},
	{"failed", 0.05},
}

const (
	simulatedDuration = 45
	simulatedPrice    = "-0.0200"
	simulatedCurrency = "USD"
)

func (g *SimulatedGateway) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	g.mu.Lock()
	id, err := uuid.NewRandomFromReader(g.rng)
	g.mu.Unlock()
	if err != nil {
		id = uuid.New()
	}
	sid := "CA" + strings.ReplaceAll(id.String(), "-", "")

	g.log.Info("simulated call placed", "call_sid", sid, "to", req.To, "from", req.From)
	return PlaceCallResult{
		ProviderCallID: sid,
		Status:         "queued",
		Direction:      "outbound-api",
		To:             req.To,
		From:           req.From,
	}, nil
}

func (g *SimulatedGateway) GetCallStatus(ctx context.Context, providerCallID string) (CallStatusResult, error) {
	g.mu.Lock()
	r := g.rng.Float64()
	g.mu.Unlock()

	status := pickStatus(r)
	res := CallStatusResult{ProviderCallID: providerCallID, Status: status, PriceUnit: simulatedCurrency}
	if status == "completed" {
		d := simulatedDuration
		res.DurationSeconds = &d
		res.Price = simulatedPrice
	}
	return res, nil
}

func (g *SimulatedGateway) CancelCall(ctx context.Context, providerCallID string) error {
	return nil
}

func pickStatus(r float64) string {
	sum := 0.0
	for _, o := range simulatedOutcomes {
		sum += o.weight
		if r < sum {
			return o.status
		}
	}
	return "completed"
}
