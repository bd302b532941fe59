// Package llm provides the model clients Marcus talks to: the Anthropic
// Messages API, a local Ollama server, and headless command-line tools.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// levelTrace is below Debug, used for wire-level payload logging.
const levelTrace = slog.Level(-8)

// Client is implemented by providers that support multi-turn chat with
// native tool calls.
type Client interface {
	// Chat sends the conversation and returns the model's next message.
	// tools may be nil when no capabilities should be offered.
	Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error)

	// Ping checks that the provider is reachable.
	Ping(ctx context.Context) error
}

// Completer is a single-shot text interface: prompt in, text out. It is
// the lowest common denominator shared by API providers and CLI tools.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ErrUnavailable indicates the provider could not be reached at all:
// a missing executable, refused connection, or unresolvable host.
var ErrUnavailable = errors.New("provider unavailable")

// ErrEmptyResponse indicates the provider answered with no text.
var ErrEmptyResponse = errors.New("empty response")

// APIError is a non-2xx response from an HTTP provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Body)
}

// ClientCompleter adapts a Client to the Completer interface by sending
// a system message plus one user message with no tools.
type ClientCompleter struct {
	Client Client
	Model  string
	System string
}

// Complete sends prompt as a single user turn and returns the reply text.
func (c *ClientCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var msgs []Message
	if c.System != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: c.System})
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: prompt})

	resp, err := c.Client.Chat(ctx, c.Model, msgs, nil)
	if err != nil {
		return "", err
	}
	if resp.Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Message.Content, nil
}
