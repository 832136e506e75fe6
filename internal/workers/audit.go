// Package workers contains the background consumers run by cmd/worker.
package workers

import (
	"context"

	"github.com/quizroom/quizroom-api/internal/database"
	"github.com/quizroom/quizroom-api/internal/queue"
	"go.uber.org/zap"
)

// AuditWorker consumes auth audit events and persists them
type AuditWorker struct {
	queue    queue.EventQueue
	events   *database.AuthEventRepository
	logger   *zap.Logger
	prefetch int
}

// NewAuditWorker creates an audit worker
func NewAuditWorker(eventQueue queue.EventQueue, events *database.AuthEventRepository, logger *zap.Logger, prefetch int) *AuditWorker {
	return &AuditWorker{
		queue:    eventQueue,
		events:   events,
		logger:   logger,
		prefetch: prefetch,
	}
}

// Run consumes events until the context is cancelled or the queue fails
func (w *AuditWorker) Run(ctx context.Context) error {
	messages, errs, err := w.queue.Consume(ctx, w.prefetch)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if ok && err != nil {
				return err
			}
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			w.handle(ctx, msg)
		}
	}
}

func (w *AuditWorker) handle(ctx context.Context, msg *queue.Message) {
	event := msg.GetEvent()

	if err := w.events.Create(ctx, event); err != nil {
		w.logger.Error("failed_to_persist_auth_event",
			zap.String("event_id", event.ID.String()),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
		// Requeue so a transient store failure does not lose the event
		if nackErr := msg.Nack(true); nackErr != nil {
			w.logger.Warn("failed_to_nack_auth_event", zap.Error(nackErr))
		}
		return
	}

	w.logger.Info("auth_event_recorded",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", string(event.Type)),
		zap.String("user_id", event.UserID),
	)

	if err := msg.Ack(); err != nil {
		w.logger.Warn("failed_to_ack_auth_event", zap.Error(err))
	}
}
