package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"mathtutor/internal/model"
)

// EvalPublisher enqueues proficiency-evaluation jobs for the worker.
type EvalPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewEvalPublisher(conn *amqp.Connection, queueName string) *EvalPublisher {
	return &EvalPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *EvalPublisher) Publish(ctx context.Context, job model.EvalJob) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal eval job failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish eval job failed: %w", err)
	}
	return nil
}
