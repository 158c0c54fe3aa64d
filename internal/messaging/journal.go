package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"github.com/clinova/dentalsync/pkg/logging"
)

const journalTTL = 90 * 24 * time.Hour

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// JournalEntry is one outbound attempt keyed by appointment and trigger type.
// The journal is an audit trail alongside the sent-flags; a bulk flag reset
// deliberately allows a resend, so the journal never blocks sends.
type JournalEntry struct {
	Key       string `dynamodbav:"sendKey"`
	AttemptAt string `dynamodbav:"attemptAt"`
	Status    string `dynamodbav:"status"`
	ExpiresAt int64  `dynamodbav:"expiresAt"`
}

// SendJournal persists outbound attempts to DynamoDB.
type SendJournal struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewSendJournal builds a journal backed by the provided DynamoDB client.
func NewSendJournal(client dynamoAPI, tableName string, logger *logging.Logger) *SendJournal {
	if client == nil || tableName == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SendJournal{client: client, tableName: tableName, logger: logger}
}

// Record writes one attempt. Safe to call on a nil journal.
func (j *SendJournal) Record(ctx context.Context, appointmentID uuid.UUID, triggerType, status string) error {
	if j == nil {
		return nil
	}
	now := time.Now().UTC()
	entry := JournalEntry{
		Key:       appointmentID.String() + "#" + triggerType,
		AttemptAt: now.Format(time.RFC3339),
		Status:    status,
		ExpiresAt: now.Add(journalTTL).Unix(),
	}
	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("messaging: marshal journal entry: %w", err)
	}
	_, err = j.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &j.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("messaging: journal put: %w", err)
	}
	return nil
}
