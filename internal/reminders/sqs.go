package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// QueueMessage is one received delivery job.
type QueueMessage struct {
	ID            string
	ReminderID    string
	ReceiptHandle string
}

type jobPayload struct {
	ReminderID string `json:"reminder_id"`
}

// EncodeJob renders the queue body for a reminder delivery.
func EncodeJob(reminderID string) (string, error) {
	body, err := json.Marshal(jobPayload{ReminderID: reminderID})
	if err != nil {
		return "", fmt.Errorf("reminders: encode job: %w", err)
	}
	return string(body), nil
}

// ParseJob extracts the reminder id from a queue body.
func ParseJob(body string) (string, error) {
	var p jobPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return "", fmt.Errorf("reminders: decode job: %w", err)
	}
	if strings.TrimSpace(p.ReminderID) == "" {
		return "", fmt.Errorf("reminders: job missing reminder_id")
	}
	return p.ReminderID, nil
}

// SQSQueue hands reminder deliveries to an SQS queue so a separate consumer
// (cmd/reminder-lambda or the worker's consume loop) sends them.
type SQSQueue struct {
	client   sqsAPI
	queueURL string
}

func NewSQSQueue(client sqsAPI, queueURL string) *SQSQueue {
	if client == nil {
		panic("reminders: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("reminders: SQS queueURL cannot be empty")
	}
	return &SQSQueue{client: client, queueURL: queueURL}
}

// Dispatch enqueues a delivery job for reminderID.
func (q *SQSQueue) Dispatch(ctx context.Context, reminderID string) error {
	body, err := EncodeJob(reminderID)
	if err != nil {
		return err
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("reminders: failed to send SQS message: %w", err)
	}
	return nil
}

// Receive long-polls for delivery jobs. Bodies that do not parse are returned
// with an empty ReminderID so the caller can delete them.
func (q *SQSQueue) Receive(ctx context.Context, maxMessages, waitSeconds int) ([]QueueMessage, error) {
	output, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("reminders: failed to receive SQS messages: %w", err)
	}

	messages := make([]QueueMessage, 0, len(output.Messages))
	for _, msg := range output.Messages {
		id, _ := ParseJob(aws.ToString(msg.Body))
		messages = append(messages, QueueMessage{
			ID:            aws.ToString(msg.MessageId),
			ReminderID:    id,
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		})
	}
	return messages, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("reminders: failed to delete SQS message: %w", err)
	}
	return nil
}
