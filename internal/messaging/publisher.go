package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinova/dentalsync/pkg/logging"
)

// Publisher enqueues outbound messages for the dispatch worker. It satisfies
// the automation engine's Sender interface: a successful enqueue is the send
// success the engine acts on, and the worker guarantees at-least-once
// delivery from there.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
}

// NewPublisher creates a publisher on top of a queue.
func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// SendText enqueues a message for delivery.
func (p *Publisher) SendText(ctx context.Context, to, body string) error {
	return p.Publish(ctx, OutboundMessage{To: to, Body: body})
}

// Publish enqueues a fully attributed outbound message.
func (p *Publisher) Publish(ctx context.Context, msg OutboundMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("messaging: marshal outbound message: %w", err)
	}
	if err := p.queue.Send(ctx, string(payload)); err != nil {
		return err
	}
	p.logger.Debug("messaging: outbound enqueued", "id", msg.ID, "to", msg.To)
	return nil
}
