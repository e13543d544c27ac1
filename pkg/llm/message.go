// Package llm holds the provider-agnostic snapshot of an assembled chat
// message. Snapshots are plain data and safe to serialize.
package llm

// Block and role names shared with the wire protocol.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
	BlockReasoning  = "reasoning"
)

// Block statuses.
const (
	StatusPending  = "pending"
	StatusComplete = "complete"
	StatusError    = "error"
)

// Tool result statuses.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Message represents one assembled turn. Content is ordered by block index.
type Message struct {
	ID    string `json:"id"`
	Role  string `json:"role"` // "user", "assistant"
	Model string `json:"model,omitempty"`

	Content []ContentBlock `json:"content"`

	// Reasoning collected while no block was open.
	Reasoning string `json:"reasoning,omitempty"`

	StopReason string `json:"stop_reason,omitempty"`
	Complete   bool   `json:"complete"`

	// Side channel payloads in arrival order.
	Citations    []Citation       `json:"citations,omitempty"`
	Metadata     []map[string]any `json:"metadata,omitempty"`
	Quota        []QuotaNotice    `json:"quota,omitempty"`
	StreamErrors []StreamError    `json:"stream_errors,omitempty"`
	Errors       []any            `json:"errors,omitempty"`
}

// ContentBlock represents a single piece of content within a message.
// The Type field determines which other fields are populated.
type ContentBlock struct {
	Index  int    `json:"index"`
	Type   string `json:"type"`   // "text", "tool_use", "tool_result", "reasoning"
	Status string `json:"status"` // "pending", "complete", "error"

	// Text content (type="text")
	Text string `json:"text,omitempty"`

	// Reasoning attached to this block while it was open.
	Reasoning string `json:"reasoning,omitempty"`

	// Tool use (type="tool_use")
	ToolUseID string `json:"tool_use_id,omitempty"`
	ToolName  string `json:"tool_name,omitempty"`
	ToolInput any    `json:"tool_input,omitempty"`

	// ToolInputRaw is the concatenated input fragments, kept when they did
	// not parse so callers can show what arrived.
	ToolInputRaw string `json:"tool_input_raw,omitempty"`

	// Tool result (type="tool_result")
	ToolResult   []ToolResultContent `json:"tool_result,omitempty"`
	ResultStatus string              `json:"result_status,omitempty"` // "success", "error"

	// Error describes why Status is "error".
	Error string `json:"error,omitempty"`
}

// ToolResultContent is one normalized part of a tool result.
type ToolResultContent struct {
	Type  string       `json:"type"` // "text", "json", "image"
	Text  string       `json:"text,omitempty"`
	JSON  any          `json:"json,omitempty"`
	Image *ImageSource `json:"image,omitempty"`
}

// ImageSource is an image payload normalized from the provider's shapes.
type ImageSource struct {
	Format string `json:"format"`
	Data   any    `json:"data"`
}

// Citation references a document used to produce the message.
type Citation struct {
	AssistantID string `json:"assistant_id"`
	DocumentID  string `json:"document_id"`
	FileName    string `json:"file_name"`
	Text        string `json:"text"`
}

// QuotaNotice records a quota_warning or quota_exceeded signal.
type QuotaNotice struct {
	Type           string  `json:"type"`
	CurrentUsage   float64 `json:"current_usage"`
	QuotaLimit     float64 `json:"quota_limit"`
	PercentageUsed float64 `json:"percentage_used"`
	Message        string  `json:"message,omitempty"`
}

// StreamError records a conversational error carried by the stream.
type StreamError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Recoverable bool     `json:"recoverable"`
	RetryAfter  *float64 `json:"retry_after,omitempty"`
}

// NewTextMessage creates a simple, completed text message.
func NewTextMessage(role, text string) Message {
	return Message{
		Role:     role,
		Complete: true,
		Content: []ContentBlock{
			{Type: BlockText, Status: StatusComplete, Text: text},
		},
	}
}

// GetText returns the concatenated text content from all text blocks in the message.
func (m *Message) GetText() string {
	var result string
	for _, block := range m.Content {
		if block.Type == BlockText {
			result += block.Text
		}
	}
	return result
}

// ToolUses returns the tool_use blocks in index order.
func (m *Message) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, block := range m.Content {
		if block.Type == BlockToolUse {
			uses = append(uses, block)
		}
	}
	return uses
}
