package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chatstream/pkg/llm"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMessageAssembled is emitted after a streamed message was assembled.
	EventTypeMessageAssembled = "chatstream.message.assembled"
)

// Origins name the component that assembled a message.
const (
	OriginProxy = "proxy"
	OriginAPI   = "api"
	OriginMCP   = "mcp"
)

// MessageAssembledEvent is a transport-neutral event payload for one
// assembled message.
type MessageAssembledEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Message       llm.Message `json:"message"`

	// ParseErrors holds every parse error reported while the stream carrying
	// this message was consumed.
	ParseErrors []string `json:"parse_errors,omitempty"`
}

// EventSource identifies where the message was assembled.
type EventSource struct {
	Origin   string `json:"origin"`
	Path     string `json:"path,omitempty"`
	Upstream string `json:"upstream,omitempty"`

	// Client is the caller supplied tag, if any.
	Client string `json:"client,omitempty"`
}

// NewMessageAssembledEvent stamps msg with a fresh event id and the current time.
func NewMessageAssembledEvent(source EventSource, msg llm.Message, parseErrors []string) *MessageAssembledEvent {
	return &MessageAssembledEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeMessageAssembled,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Message:       msg,
		ParseErrors:   parseErrors,
	}
}
