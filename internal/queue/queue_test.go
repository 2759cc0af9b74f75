package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"outbound-dialer/internal/errs"
	"outbound-dialer/internal/scheduler"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecorder struct {
	acked    int
	nacked   int
	requeued int
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error { a.acked++; return nil }

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	if requeue {
		a.requeued++
	}
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestDecodeJob(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"dispatch", `{"id":"j1","kind":"dispatch","campaign_id":"c1","max_calls":5}`, false},
		{"retry with config", `{"kind":"retry","campaign_id":"c1","retry":{"maxRetries":2,"retryDelayMinutes":10}}`, false},
		{"missing campaign", `{"kind":"dispatch"}`, true},
		{"unknown kind", `{"kind":"purge","campaign_id":"c1"}`, true},
		{"negative max", `{"kind":"dispatch","campaign_id":"c1","max_calls":-1}`, true},
		{"not json", `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeJob([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, errs.ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConsumerHandle_AckRules(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		redelivered bool
		handlerErr  error
		acked       int
		nacked      int
		requeued    int
	}{
		{name: "ok", body: `{"kind":"dispatch","campaign_id":"c1"}`, acked: 1},
		{name: "malformed dropped", body: `nope`, nacked: 1},
		{name: "permanent error acked", body: `{"kind":"dispatch","campaign_id":"c1"}`, handlerErr: errs.ErrDispatchRunning, acked: 1},
		{name: "transient requeued", body: `{"kind":"dispatch","campaign_id":"c1"}`, handlerErr: errors.New("db down"), nacked: 1, requeued: 1},
		{name: "transient redelivered dropped", body: `{"kind":"retry","campaign_id":"c1"}`, redelivered: true, handlerErr: errors.New("db down"), nacked: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &ackRecorder{}
			c := &Consumer{queue: "q", log: quietLog(), handler: func(ctx context.Context, j Job) error { return tt.handlerErr }}
			c.handle(context.Background(), amqp.Delivery{Acknowledger: rec, DeliveryTag: 1, Body: []byte(tt.body), Redelivered: tt.redelivered})
			assert.Equal(t, tt.acked, rec.acked)
			assert.Equal(t, tt.nacked, rec.nacked)
			assert.Equal(t, tt.requeued, rec.requeued)
		})
	}
}

type fakeRunner struct {
	dispatchMax int
	retryCfg    scheduler.RetryConfig
	batch       scheduler.BatchResult
	retry       scheduler.RetryResult
}

func (f *fakeRunner) ScheduleCampaignCalls(ctx context.Context, campaignID string, maxCalls int) scheduler.BatchResult {
	f.dispatchMax = maxCalls
	return f.batch
}

func (f *fakeRunner) RetryFailedCalls(ctx context.Context, campaignID string, cfg scheduler.RetryConfig) scheduler.RetryResult {
	f.retryCfg = cfg
	return f.retry
}

func TestSchedulerHandler(t *testing.T) {
	r := &fakeRunner{batch: scheduler.BatchResult{Success: true, Scheduled: 2}}
	h := NewSchedulerHandler(r, 25, quietLog())

	require.NoError(t, h(context.Background(), Job{Kind: KindDispatch, CampaignID: "c1"}))
	assert.Equal(t, 25, r.dispatchMax, "default batch applies when max_calls is unset")

	require.NoError(t, h(context.Background(), Job{Kind: KindDispatch, CampaignID: "c1", MaxCalls: 3}))
	assert.Equal(t, 3, r.dispatchMax)

	r.retry = scheduler.RetryResult{Success: true}
	require.NoError(t, h(context.Background(), Job{Kind: KindRetry, CampaignID: "c1"}))
	assert.Equal(t, scheduler.DefaultRetryConfig(), r.retryCfg)

	r.batch = scheduler.BatchResult{Success: false, Errors: []string{"Campaign not found"}, Err: errs.ErrCampaignNotFound}
	err := h(context.Background(), Job{Kind: KindDispatch, CampaignID: "missing"})
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.True(t, permanent(err))

	assert.Error(t, h(context.Background(), Job{Kind: "bogus", CampaignID: "c1"}))
}
