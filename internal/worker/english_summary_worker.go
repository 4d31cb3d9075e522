package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"yakunote/internal/model"
	rabbitmqClient "yakunote/internal/platform/rabbitmq"
)

const prefetchTimeout = 90 * time.Second

var errBadEvent = errors.New("malformed summary event")

type EnglishPrefetcher interface {
	PrefetchEnglish(ctx context.Context, id string) error
}

// EnglishSummaryWorker warms the English re-summary cache for newly saved summaries.
type EnglishSummaryWorker struct {
	conn       *amqp.Connection
	prefetcher EnglishPrefetcher
	queueName  string
	log        *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEnglishSummaryWorker(conn *amqp.Connection, prefetcher EnglishPrefetcher, queueName string, log *slog.Logger) *EnglishSummaryWorker {
	if log == nil {
		log = slog.Default()
	}
	return &EnglishSummaryWorker{
		conn:       conn,
		prefetcher: prefetcher,
		queueName:  queueName,
		log:        log.With("worker", "english_summary"),
	}
}

func (w *EnglishSummaryWorker) Start(ctx context.Context) error {
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

	if err := rabbitmqClient.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(4, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
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
					w.log.Warn("delivery channel closed")
					return
				}
				if err := w.handle(workerCtx, d.Body); err != nil {
					w.log.Error("english summary prefetch failed", "message_id", d.MessageId, "error", err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	w.log.Info("worker started", "queue", w.queueName)
	return nil
}

func (w *EnglishSummaryWorker) handle(ctx context.Context, body []byte) error {
	var event model.SummarySavedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%w: %w", errBadEvent, err)
	}
	if event.ID == "" {
		return fmt.Errorf("%w: missing id", errBadEvent)
	}

	ctx, cancel := context.WithTimeout(ctx, prefetchTimeout)
	defer cancel()
	return w.prefetcher.PrefetchEnglish(ctx, event.ID)
}

func (w *EnglishSummaryWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
