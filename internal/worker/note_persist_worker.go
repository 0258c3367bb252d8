package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"docexplorer/internal/model"
	"docexplorer/internal/platform/rabbitmq"
)

var errInvalidNote = errors.New("invalid note payload")

type NoteSaver interface {
	Save(ctx context.Context, note *model.ResearchNote) error
}

// NoteIndexer makes a persisted note searchable.
type NoteIndexer interface {
	IndexNote(ctx context.Context, note model.ResearchNote) error
}

// NotePersistWorker drains the note queue into the database and the search
// indices. Malformed payloads are dropped; storage failures are requeued once.
type NotePersistWorker struct {
	conn      *amqp.Connection
	saver     NoteSaver
	indexer   NoteIndexer
	queueName string
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewNotePersistWorker(conn *amqp.Connection, saver NoteSaver, indexer NoteIndexer, queueName string, logger *zap.Logger) *NotePersistWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotePersistWorker{
		conn:      conn,
		saver:     saver,
		indexer:   indexer,
		queueName: queueName,
		logger:    logger,
	}
}

func (w *NotePersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.deliver(workerCtx, d)
			}
		}
	}()

	w.logger.Info("note persist worker started", zap.String("queue", w.queueName))
	return nil
}

func (w *NotePersistWorker) deliver(ctx context.Context, d amqp.Delivery) {
	err := w.Handle(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, errInvalidNote):
		w.logger.Warn("drop malformed note", zap.Error(err))
		_ = d.Nack(false, false)
	default:
		w.logger.Error("persist note failed", zap.Error(err), zap.Bool("redelivered", d.Redelivered))
		_ = d.Nack(false, !d.Redelivered)
	}
}

// Handle persists one queued note and indexes it.
func (w *NotePersistWorker) Handle(ctx context.Context, body []byte) error {
	var note model.ResearchNote
	if err := json.Unmarshal(body, &note); err != nil {
		return fmt.Errorf("%w: %v", errInvalidNote, err)
	}
	if note.ID == "" || note.DocumentID == "" {
		return fmt.Errorf("%w: missing id or document_id", errInvalidNote)
	}

	if err := w.saver.Save(ctx, &note); err != nil {
		return err
	}
	if w.indexer != nil {
		if err := w.indexer.IndexNote(ctx, note); err != nil {
			// The row is stored; the index catches up on the next rebuild.
			w.logger.Warn("index note failed", zap.String("note_id", note.ID), zap.Error(err))
		}
	}
	return nil
}

func (w *NotePersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
