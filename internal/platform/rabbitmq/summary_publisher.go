package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"yakunote/internal/model"
)

const SummarySavedType = "summary.saved"

type SummaryPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewSummaryPublisher(conn *amqp.Connection, queueName string) *SummaryPublisher {
	return &SummaryPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *SummaryPublisher) PublishSummarySaved(ctx context.Context, event model.SummarySavedEvent) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal summary event failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         SummarySavedType,
			MessageId:    event.ID,
			Timestamp:    time.Now().UTC(),
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish summary event failed: %w", err)
	}
	return nil
}
