package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"outbound-dialer/internal/errs"
	"outbound-dialer/internal/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one job. Returning an error of kind errs.ErrNotFound,
// errs.ErrInvalidInput or errs.ErrInvalidState drops the message; other
// errors requeue it once.
type Handler func(ctx context.Context, j Job) error

type Consumer struct {
	conn    *Connection
	queue   string
	handler Handler
	log     *slog.Logger
}

func NewConsumer(conn *Connection, queueName string, h Handler, log *slog.Logger) (*Consumer, error) {
	if conn == nil || queueName == "" || h == nil {
		return nil, fmt.Errorf("queue: consumer needs a connection, a queue name and a handler")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{conn: conn, queue: queueName, handler: h, log: log}, nil
}

// Run consumes until ctx is canceled or the delivery channel closes.
// Prefetch is one: campaign work is paced, so a worker holds a single job.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	if err := declare(ch, c.queue); err != nil {
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("queue: qos: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx,
		c.queue,
		"",    // generated consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("queue: consume: %w", err)
	}

	c.log.Info("consumer started", "queue", c.queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("queue: delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	j, err := decodeJob(d.Body)
	if err != nil {
		c.log.Warn("dropping malformed job", "message_id", d.MessageId, "err", err)
		metrics.IncrementJobConsumed("unknown", "malformed")
		_ = d.Nack(false, false)
		return
	}

	log := c.log.With("job_id", j.ID, "kind", j.Kind, "campaign_id", j.CampaignID)
	err = c.handler(ctx, j)
	switch {
	case err == nil:
		metrics.IncrementJobConsumed(string(j.Kind), "ok")
		_ = d.Ack(false)
	case permanent(err):
		log.Warn("job rejected", "err", err)
		metrics.IncrementJobConsumed(string(j.Kind), "rejected")
		_ = d.Ack(false)
	case d.Redelivered:
		log.Error("job failed after redelivery, dropping", "err", err)
		metrics.IncrementJobConsumed(string(j.Kind), "dropped")
		_ = d.Nack(false, false)
	default:
		log.Error("job failed, requeueing", "err", err)
		metrics.IncrementJobConsumed(string(j.Kind), "requeued")
		_ = d.Nack(false, true)
	}
}

func permanent(err error) bool {
	return errors.Is(err, errs.ErrNotFound) ||
		errors.Is(err, errs.ErrInvalidInput) ||
		errors.Is(err, errs.ErrInvalidState) ||
		errors.Is(err, errs.ErrConfiguration)
}
