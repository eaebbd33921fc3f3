// Package model defines the provider-agnostic request/response types used by
// the worker runtime and the orchestrator's classifier pre-pass. It models a
// request as either tool mode or schema mode; a single Client invocation is
// a uniform request/response primitive, not a turn loop.
package model

import (
	"encoding/json"
	"errors"
	"fmt"

	"context"
)

// ConversationRole is the role for a message in a conversation.
type ConversationRole string

const (
	ConversationRoleSystem    ConversationRole = "system"
	ConversationRoleUser      ConversationRole = "user"
	ConversationRoleAssistant ConversationRole = "assistant"
)

type (
	// Part is a marker interface implemented by every message content block.
	Part interface {
		isPart()
	}

	// TextPart is plain assistant- or user-visible text.
	TextPart struct {
		Text string
	}

	// ToolUsePart declares a tool invocation requested by the model.
	ToolUsePart struct {
		ID    string
		Name  string
		Input json.RawMessage
	}

	// ToolResultPart carries a tool result fed back to the model on a
	// subsequent turn.
	ToolResultPart struct {
		ToolUseID string
		Content   any
		IsError   bool
	}

	// Message is a single chat message.
	Message struct {
		Role  ConversationRole
		Parts []Part
	}

	// ToolDefinition describes one tool exposed to the model for tool-mode
	// requests.
	ToolDefinition struct {
		Name        string
		Description string
		InputSchema any
	}

	// ToolCall is a tool invocation requested by the model.
	ToolCall struct {
		ID      string
		Name    string
		Payload json.RawMessage
	}

	// Request captures one model invocation. At most one of Tools or
	// ResponseSchema may be set; Validate rejects a request that sets both.
	Request struct {
		Messages []Message

		// Tools, when non-empty, puts the request in tool mode: the model may
		// respond with text and/or tool calls.
		Tools []ToolDefinition

		// ResponseSchema, when non-nil, puts the request in schema mode: the
		// model is constrained to emit JSON matching this JSON Schema and no
		// tool calls are possible.
		ResponseSchema any

		MaxTokens   int
		Temperature float64
	}

	// Response is the result of a Complete call.
	Response struct {
		// Text is the assistant's text content, populated in both tool mode
		// (when the model chose not to call a tool) and schema mode (the raw
		// JSON matching ResponseSchema).
		Text string

		// ToolCalls lists tool invocations requested by the model. Always
		// empty in schema mode.
		ToolCalls []ToolCall

		StopReason string
	}

	// Client is the provider-agnostic model client: a single request/response
	// primitive. The turn loop (send, dispatch tool calls, append results,
	// repeat) lives in internal/worker.Runtime, not here.
	Client interface {
		Complete(ctx context.Context, req *Request) (*Response, error)
	}
)

func (TextPart) isPart()       {}
func (ToolUsePart) isPart()    {}
func (ToolResultPart) isPart() {}

// ErrRateLimited indicates the provider rejected the request due to rate
// limiting. internal/model/middleware retries on this error up to its
// configured attempt limit before letting it surface.
var ErrRateLimited = errors.New("model: rate limited")

// ErrTimeout indicates the provider call exceeded its deadline.
var ErrTimeout = errors.New("model: timeout")

// ErrInvalidRequest indicates a malformed request that retrying will not fix.
var ErrInvalidRequest = errors.New("model: invalid request")

// Validate enforces the mutual exclusivity of tool mode and schema mode.
func (r *Request) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("%w: messages are required", ErrInvalidRequest)
	}
	if len(r.Tools) > 0 && r.ResponseSchema != nil {
		return fmt.Errorf("%w: a request may not set both Tools and ResponseSchema", ErrInvalidRequest)
	}
	return nil
}

// IsSchemaMode reports whether r is a schema-mode request.
func (r *Request) IsSchemaMode() bool {
	return r.ResponseSchema != nil
}
