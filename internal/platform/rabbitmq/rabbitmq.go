package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultDialTimeout = 3 * time.Second
	defaultHeartbeat   = 10 * time.Second
)

type Options struct {
	// ConnectionName shows up in the broker's management UI.
	ConnectionName string
	DialTimeout    time.Duration
	Heartbeat      time.Duration
	// Queues are declared durable at startup so publishers and consumers
	// agree on the topology before the first message.
	Queues []string
}

// New dials the broker and declares opts.Queues. A failed declaration
// closes the connection.
func New(ctx context.Context, url string, opts Options) (*amqp.Connection, error) {
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	heartbeat := opts.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	cfg := amqp.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
		Properties: amqp.Table{
			"connection_name": opts.ConnectionName,
		},
	}
	conn, err := amqp.DialConfig(url, cfg)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq failed: %w", err)
	}

	if err := declareQueues(ctx, conn, opts.Queues); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func declareQueues(ctx context.Context, conn *amqp.Connection, queues []string) error {
	checkCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	done := make(chan error, 1)
	go func() {
		for _, name := range queues {
			if _, err := DeclareQueue(ch, name); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case <-checkCtx.Done():
		return fmt.Errorf("rabbitmq queue declare timeout: %w", checkCtx.Err())
	case err := <-done:
		return err
	}
}
