package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"docexplorer/internal/model"
)

// NotePublisher sends research notes to the persistence queue.
type NotePublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewNotePublisher(conn *amqp.Connection, queueName string) *NotePublisher {
	return &NotePublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *NotePublisher) Publish(ctx context.Context, note model.ResearchNote) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if _, err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal note payload failed: %w", err)
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
			MessageId:    note.ID,
		},
	); err != nil {
		return fmt.Errorf("publish note failed: %w", err)
	}
	return nil
}

// DeclareQueue declares the durable queue shared by publisher and worker.
func DeclareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return q, fmt.Errorf("declare queue failed: %w", err)
	}
	return q, nil
}
