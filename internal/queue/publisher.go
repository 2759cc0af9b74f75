package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher enqueues jobs as persistent JSON messages on the default exchange.
type Publisher struct {
	conn  *Connection
	queue string
}

func NewPublisher(conn *Connection, queueName string) (*Publisher, error) {
	if conn == nil || queueName == "" {
		return nil, fmt.Errorf("queue: publisher needs a connection and a queue name")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := declare(ch, queueName); err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, queue: queueName}, nil
}

// Publish fills ID and RequestedAt when empty and returns the job as sent.
func (p *Publisher) Publish(ctx context.Context, j Job) (Job, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.RequestedAt.IsZero() {
		j.RequestedAt = time.Now().UTC()
	}
	if err := j.Validate(); err != nil {
		return Job{}, err
	}
	body, err := json.Marshal(j)
	if err != nil {
		return Job{}, fmt.Errorf("queue: encode job: %w", err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return Job{}, err
	}
	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    j.ID,
			Timestamp:    j.RequestedAt,
			Type:         string(j.Kind),
			Body:         body,
		},
	)
	if err != nil {
		return Job{}, fmt.Errorf("queue: publish: %w", err)
	}
	return j, nil
}
