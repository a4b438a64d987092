package model

import (
	"context"
	"fmt"
	"strings"
)

// Role of a transcript turn as seen by the provider.
type Role string

const (
	// RoleUser marks input the agent heard.
	RoleUser Role = "user"
	// RoleAssistant marks output the agent produced earlier.
	RoleAssistant Role = "assistant"
)

// Turn is one transcript message handed to a provider.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request captures the normalized model input built from an agent memory.
type Request struct {
	Instructions string `json:"instructions"`
	Turns        []Turn `json:"turns"`
	Stream       bool   `json:"stream,omitempty"`
}

// LastUserText returns the content of the last user turn.
func (r Request) LastUserText() string {
	for i := len(r.Turns) - 1; i >= 0; i-- {
		if r.Turns[i].Role == RoleUser {
			return r.Turns[i].Content
		}
	}
	return ""
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model. Partial chunks
// carry text deltas; the final chunk carries the complete text.
type Response struct {
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Model is the minimal interface a provider adapter implements.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains the channels returned by Model.Generate and returns the
// final text. Partial chunks are concatenated when no final chunk arrives.
func Collect(ctx context.Context, respCh <-chan Response, errCh <-chan error) (string, error) {
	var (
		partial strings.Builder
		final   *Response
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				partial.WriteString(r.Text)
				continue
			}
			final = &r
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", err
			}
		}
	}

	if final != nil {
		return final.Text, nil
	}

	return partial.String(), nil
}

// MockModel is a lightweight in-memory Model useful for tests and demos.
type MockModel struct {
	info      Info
	responses map[string]string
	fallback  func(req Request) string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
		fallback: func(req Request) string {
			return fmt.Sprintf("Mock response to: %s", req.LastUserText())
		},
	}
}

// AddResponse registers a deterministic canned completion for the last user
// turn of a request.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// SetFallback replaces the completion used when no canned response matches.
func (m *MockModel) SetFallback(fn func(req Request) string) { m.fallback = fn }

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if len(req.Turns) == 0 {
			errCh <- fmt.Errorf("no turns provided")
			return
		}

		full, ok := m.responses[req.LastUserText()]
		if !ok {
			full = m.fallback(req)
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{Text: full, FinishReason: "stop"}:
		}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
