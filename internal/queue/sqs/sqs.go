// Package sqs implements queue.Consumer over AWS SQS, per §4.8's
// production backend: at-least-once delivery, visibility-timeout
// extension for long-running orchestrator passes, and dead-letter routing
// left to the queue's own redrive policy (not application code).
package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/xecure-ai/alex-sub000/internal/queue"
)

// API captures the subset of the SQS client used by Consumer, so tests can
// substitute a mock in place of *sqs.Client.
type API interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

const defaultWaitSeconds = 10

// Consumer implements queue.Consumer against an SQS queue whose message
// body is the JSON `{"job_id": "<uuid>"}` wire format of §6. Dead-letter
// routing after a max receive count is configured on the queue's redrive
// policy in infrastructure, not here (§1 Non-goals: infrastructure
// provisioning).
type Consumer struct {
	api      API
	queueURL string
}

// New returns a Consumer against queueURL.
func New(api API, queueURL string) (*Consumer, error) {
	if api == nil {
		return nil, errors.New("sqs: api client is required")
	}
	if queueURL == "" {
		return nil, errors.New("sqs: queue url is required")
	}
	return &Consumer{api: api, queueURL: queueURL}, nil
}

// Receive implements queue.Consumer.
func (c *Consumer) Receive(ctx context.Context, max int) ([]queue.Message, error) {
	if max <= 0 || max > 10 {
		max = 10 // SQS's own per-call maximum
	}
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     defaultWaitSeconds,
	})
	if err != nil {
		return nil, err
	}
	msgs := make([]queue.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		jobID, err := decodeJobID(aws.ToString(m.Body))
		if err != nil {
			continue
		}
		msgs = append(msgs, queue.Message{JobID: jobID, ReceiptHandle: aws.ToString(m.ReceiptHandle)})
	}
	return msgs, nil
}

// Ack implements queue.Consumer.
func (c *Consumer) Ack(ctx context.Context, msg queue.Message) error {
	_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(msg.ReceiptHandle),
	})
	return err
}

// Extend implements queue.Consumer.
func (c *Consumer) Extend(ctx context.Context, msg queue.Message, d time.Duration) error {
	_, err := c.api.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(c.queueURL),
		ReceiptHandle:     aws.String(msg.ReceiptHandle),
		VisibilityTimeout: int32(d.Seconds()),
	})
	return err
}

// Send enqueues jobID as the JSON job message of §6. It is not part of
// queue.Consumer; jobctl and any future ingress edge use it directly.
func (c *Consumer) Send(ctx context.Context, jobID string) error {
	body, err := json.Marshal(struct {
		JobID string `json:"job_id"`
	}{JobID: jobID})
	if err != nil {
		return err
	}
	_, err = c.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.queueURL),
		MessageBody: aws.String(string(body)),
	})
	return err
}

func decodeJobID(body string) (string, error) {
	var v struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return "", err
	}
	if v.JobID == "" {
		return "", errors.New("sqs: message body missing job_id")
	}
	return v.JobID, nil
}
