package llm

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a provider conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // Set on tool result messages
}

// ToolCall is a capability invocation requested by the model.
type ToolCall struct {
	// ID is assigned by the provider (Anthropic) or generated locally
	// (Ollama) and correlates the call with its tool result message.
	ID       string       `json:"id,omitempty"`
	Function ToolFunction `json:"function"`
}

// ToolFunction names the capability and carries its arguments.
type ToolFunction struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ChatResponse is the provider-neutral result of a Chat call.
type ChatResponse struct {
	Model   string
	Message Message
	Done    bool

	// StopReason is the provider's reason for ending the response
	// (end_turn, tool_use, max_tokens, stop). May be empty.
	StopReason string

	InputTokens  int
	OutputTokens int
}

// ToolDefinition builds a tool definition in the OpenAI-style shape
// accepted by every Client implementation:
//
//	{"type": "function", "function": {"name", "description", "parameters"}}
func ToolDefinition(name, description string, parameters map[string]any) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        name,
			"description": description,
			"parameters":  parameters,
		},
	}
}
