// Package advisor is the conversational core: it holds the persona
// contract, decides per turn whether to delegate research, and always
// produces a user-facing reply.
//
// Two loops implement [Advisor]. [Structured] offers research as a
// native tool to a chat model and runs a bounded call/execute loop.
// [Signal] drives a text-only model that asks for research by writing
// an inline [RESEARCH: topic] marker.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nugget/marcus/internal/llm"
)

// Role identifies who wrote a message.
type Role string

const (
	RoleUser    Role = "user"
	RoleAdvisor Role = "advisor"
)

// Message is one entry in a conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Advisor produces the next advisor message for a history whose last
// element is the latest user turn. Reply never fails: every error is
// folded into a short user-visible message.
type Advisor interface {
	Reply(ctx context.Context, history []Message) string
}

// User-visible replies for turns that could not complete normally.
const (
	DegradedTimeout     = "Sorry, I took too long thinking that one over. Please try again."
	DegradedUnavailable = "Sorry, I can't reach my design notes right now. Check that the advisor model is available and try again."
	DegradedEmpty       = "Sorry, I came up empty on that one. Could you rephrase the question?"
	DegradedRounds      = "I dug through as much research as I could this turn but couldn't pull it together. Could you narrow the question a bit?"
	DegradedNoQuestion  = "I didn't catch a question there. What can I help you with?"
)

// errInvalidHistory marks a history Reply cannot answer.
var errInvalidHistory = errors.New("invalid history")

// validate checks that history is non-empty, uses known roles, and
// ends with a user turn.
func validate(history []Message) error {
	if len(history) == 0 {
		return fmt.Errorf("%w: empty", errInvalidHistory)
	}
	for i, m := range history {
		if m.Role != RoleUser && m.Role != RoleAdvisor {
			return fmt.Errorf("%w: message %d has role %q", errInvalidHistory, i, m.Role)
		}
	}
	if last := history[len(history)-1]; last.Role != RoleUser || strings.TrimSpace(last.Content) == "" {
		return fmt.Errorf("%w: last message is not a user question", errInvalidHistory)
	}
	return nil
}

// degraded maps a primary-model failure to a reply.
func degraded(err error) string {
	switch {
	case errors.Is(err, errInvalidHistory):
		return DegradedNoQuestion
	case errors.Is(err, context.DeadlineExceeded):
		return DegradedTimeout
	case errors.Is(err, llm.ErrUnavailable):
		return DegradedUnavailable
	case errors.Is(err, llm.ErrEmptyResponse):
		return DegradedEmpty
	default:
		return fmt.Sprintf("Sorry, something went wrong on my end (%v). Please try again.", err)
	}
}

// Transcript flattens history into labeled paragraphs for text-only
// models.
func Transcript(history []Message) string {
	var sb strings.Builder
	for i, m := range history {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		switch m.Role {
		case RoleAdvisor:
			sb.WriteString("Marcus: ")
		default:
			sb.WriteString("User: ")
		}
		sb.WriteString(strings.TrimSpace(m.Content))
	}
	return sb.String()
}

// toLLM converts history to provider messages behind a system prompt.
func toLLM(system string, history []Message) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == RoleAdvisor {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	return msgs
}
