package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueSendReceive(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, `{"to":"+34600111222"}`))
	require.NoError(t, q.Send(ctx, `{"to":"+34600333444"}`))

	msgs, err := q.Receive(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, `{"to":"+34600111222"}`, msgs[0].Body)
	assert.NotEmpty(t, msgs[0].ReceiptHandle)
	assert.NoError(t, q.Delete(ctx, msgs[0].ReceiptHandle))
}

func TestMemoryQueueReceiveRespectsBatchSize(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Send(ctx, "m"))
	}

	msgs, err := q.Receive(ctx, 3, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)

	msgs, err = q.Receive(ctx, 3, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestMemoryQueueReceiveTimesOutEmpty(t *testing.T) {
	q := NewMemoryQueue(1)

	start := time.Now()
	msgs, err := q.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestMemoryQueueReceiveHonorsContext(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Receive(ctx, 1, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublisherEnqueuesAttributedMessage(t *testing.T) {
	q := NewMemoryQueue(1)
	p := NewPublisher(q, nil)

	require.NoError(t, p.Publish(context.Background(), OutboundMessage{
		To:            "+34600111222",
		Body:          "Hola",
		AppointmentID: "a-1",
		TriggerType:   "appointment_day_before",
	}))

	msgs, err := q.Receive(context.Background(), 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var msg OutboundMessage
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Body), &msg))
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.EnqueuedAt.IsZero())
	assert.Equal(t, "+34600111222", msg.To)
	assert.Equal(t, "appointment_day_before", msg.TriggerType)
}

type fakeQueue struct {
	sent    []string
	batches [][]queueMessage
	deleted []string
	sendErr error
}

func (f *fakeQueue) Send(ctx context.Context, body string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, body)
	return nil
}

func (f *fakeQueue) Receive(ctx context.Context, maxMessages, waitSeconds int) ([]queueMessage, error) {
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeQueue) Delete(ctx context.Context, receiptHandle string) error {
	f.deleted = append(f.deleted, receiptHandle)
	return nil
}

type fakeTextSender struct {
	sent    []string
	failFor map[string]bool
}

func (f *fakeTextSender) SendText(ctx context.Context, to, body string) error {
	if f.failFor[to] {
		return errors.New("gateway rejected")
	}
	f.sent = append(f.sent, to)
	return nil
}

func outboundBody(t *testing.T, to string) string {
	t.Helper()
	payload, err := json.Marshal(OutboundMessage{ID: "m-" + to, To: to, Body: "hola"})
	require.NoError(t, err)
	return string(payload)
}

func TestWorkerDeletesOnlyDeliveredMessages(t *testing.T) {
	q := &fakeQueue{batches: [][]queueMessage{{
		{ID: "1", Body: outboundBody(t, "+34600111222"), ReceiptHandle: "rh-1"},
		{ID: "2", Body: outboundBody(t, "+34600333444"), ReceiptHandle: "rh-2"},
	}}}
	sender := &fakeTextSender{failFor: map[string]bool{"+34600333444": true}}
	w := NewDispatchWorker(q, sender, nil, nil)

	for _, msg := range q.batches[0] {
		w.deliver(context.Background(), msg)
	}

	// Only the delivered message leaves the queue; the failed one is
	// redelivered on a later receive.
	assert.Equal(t, []string{"+34600111222"}, sender.sent)
	assert.Equal(t, []string{"rh-1"}, q.deleted)
}

func TestWorkerDropsMalformedPayload(t *testing.T) {
	q := &fakeQueue{}
	sender := &fakeTextSender{}
	w := NewDispatchWorker(q, sender, nil, nil)

	w.deliver(context.Background(), queueMessage{ID: "1", Body: "not json", ReceiptHandle: "rh-1"})

	// Malformed payloads can never succeed; deleting them avoids a
	// redelivery loop.
	assert.Empty(t, sender.sent)
	assert.Equal(t, []string{"rh-1"}, q.deleted)
}
