package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/clinova/dentalsync/pkg/logging"
)

// TextSender is the downstream the worker delivers through.
type TextSender interface {
	SendText(ctx context.Context, to, body string) error
}

// DispatchWorker drains the outbound queue and delivers through the gateway.
// A message whose delivery fails is not deleted from the queue, so the queue
// redelivers it: at-least-once, with the message log recording each attempt.
type DispatchWorker struct {
	queue     Queue
	sender    TextSender
	log       *MessageLog
	logger    *logging.Logger
	batchSize int
	waitSecs  int
}

// NewDispatchWorker creates a dispatch worker.
func NewDispatchWorker(queue Queue, sender TextSender, log *MessageLog, logger *logging.Logger) *DispatchWorker {
	if logger == nil {
		logger = logging.Default()
	}
	return &DispatchWorker{
		queue:     queue,
		sender:    sender,
		log:       log,
		logger:    logger,
		batchSize: 10,
		waitSecs:  5,
	}
}

// WithBatchSize bounds how many messages one receive call drains.
func (w *DispatchWorker) WithBatchSize(n int) *DispatchWorker {
	if n > 0 {
		w.batchSize = n
	}
	return w
}

// Run consumes the queue until the context is cancelled.
func (w *DispatchWorker) Run(ctx context.Context) {
	w.logger.Info("messaging: dispatch worker started")
	for {
		if ctx.Err() != nil {
			w.logger.Info("messaging: dispatch worker stopped")
			return
		}
		msgs, err := w.queue.Receive(ctx, w.batchSize, w.waitSecs)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error("messaging: receive failed", "error", err)
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
			}
			continue
		}
		for _, msg := range msgs {
			w.deliver(ctx, msg)
		}
	}
}

func (w *DispatchWorker) deliver(ctx context.Context, raw queueMessage) {
	var msg OutboundMessage
	if err := json.Unmarshal([]byte(raw.Body), &msg); err != nil {
		w.logger.Error("messaging: malformed outbound payload, dropping", "error", err)
		_ = w.queue.Delete(ctx, raw.ReceiptHandle)
		return
	}

	err := w.sender.SendText(ctx, msg.To, msg.Body)
	status := StatusSent
	if err != nil {
		status = StatusFailed
		w.logger.Error("messaging: delivery failed", "id", msg.ID, "to", msg.To, "error", err)
	}

	if w.log != nil {
		if logErr := w.log.Insert(ctx, LogEntry{
			MessageID:     msg.ID,
			To:            msg.To,
			Body:          msg.Body,
			AppointmentID: msg.AppointmentID,
			TriggerType:   msg.TriggerType,
			Status:        status,
		}); logErr != nil {
			w.logger.Warn("messaging: message log write failed", "id", msg.ID, "error", logErr)
		}
	}

	if err == nil {
		if delErr := w.queue.Delete(ctx, raw.ReceiptHandle); delErr != nil {
			w.logger.Warn("messaging: queue delete failed", "id", msg.ID, "error", delErr)
		}
		w.logger.Info("messaging: delivered", "id", msg.ID, "to", msg.To)
	}
}
