package sqs

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/xecure-ai/alex-sub000/internal/queue"
)

type fakeAPI struct {
	receiveOut     *sqs.ReceiveMessageOutput
	receiveErr     error
	deletedHandles []string
	extended       []int32
	sent           []string
}

func (f *fakeAPI) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return f.receiveOut, f.receiveErr
}

func (f *fakeAPI) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deletedHandles = append(f.deletedHandles, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeAPI) ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	f.extended = append(f.extended, params.VisibilityTimeout)
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, aws.ToString(params.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func sqsMessage(body, handle string) types.Message {
	return types.Message{Body: aws.String(body), ReceiptHandle: aws.String(handle)}
}

func TestNewRejectsMissingArgs(t *testing.T) {
	if _, err := New(nil, "url"); err == nil {
		t.Fatal("New() with nil api, want error")
	}
	if _, err := New(&fakeAPI{}, ""); err == nil {
		t.Fatal("New() with empty queue url, want error")
	}
}

func TestReceiveDecodesJobIDsAndSkipsMalformedBodies(t *testing.T) {
	api := &fakeAPI{receiveOut: &sqs.ReceiveMessageOutput{
		Messages: []types.Message{
			sqsMessage(`{"job_id":"job-1"}`, "handle-1"),
			sqsMessage(`not json`, "handle-2"),
			sqsMessage(`{"job_id":""}`, "handle-3"),
		},
	}}
	c, err := New(api, "https://queue.example/q")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	msgs, err := c.Receive(context.Background(), 10)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].JobID != "job-1" || msgs[0].ReceiptHandle != "handle-1" {
		t.Fatalf("Receive() = %+v, want one decoded job-1 message", msgs)
	}
}

func TestAckDeletesByReceiptHandle(t *testing.T) {
	api := &fakeAPI{}
	c, _ := New(api, "https://queue.example/q")

	if err := c.Ack(context.Background(), queue.Message{JobID: "job-1", ReceiptHandle: "handle-1"}); err != nil {
		t.Fatalf("Ack() error = %v", err)
	}
	if len(api.deletedHandles) != 1 || api.deletedHandles[0] != "handle-1" {
		t.Fatalf("deletedHandles = %v, want [handle-1]", api.deletedHandles)
	}
}

func TestExtendConvertsDurationToSeconds(t *testing.T) {
	api := &fakeAPI{}
	c, _ := New(api, "https://queue.example/q")

	if err := c.Extend(context.Background(), queue.Message{JobID: "job-1", ReceiptHandle: "handle-1"}, 45*time.Second); err != nil {
		t.Fatalf("Extend() error = %v", err)
	}
	if len(api.extended) != 1 || api.extended[0] != 45 {
		t.Fatalf("extended = %v, want [45]", api.extended)
	}
}

func TestSendEncodesJobIDAsJSON(t *testing.T) {
	api := &fakeAPI{}
	c, _ := New(api, "https://queue.example/q")

	if err := c.Send(context.Background(), "job-9"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(api.sent) != 1 || api.sent[0] != `{"job_id":"job-9"}` {
		t.Fatalf("sent = %v, want job-9 envelope", api.sent)
	}
}
