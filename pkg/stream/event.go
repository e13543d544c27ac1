// Package stream defines the chat event catalogue carried over SSE, the
// parse-and-narrow validators for every event kind, and the Dispatcher that
// routes validated events to a Sink.
//
// Events are immutable once parsed. Each Kind has exactly one Go type and
// only the fields that are valid for that kind:
//
//	message_start        -> MessageStart
//	content_block_start  -> ContentBlockStart
//	content_block_delta  -> ContentBlockDelta
//	content_block_stop   -> ContentBlockStop
//	message_stop         -> MessageStop
//	tool_use             -> ToolUse (legacy flat form)
//	tool_result          -> ToolResult
//	done                 -> Done
//	error                -> Error (payload forwarded raw)
//	metadata             -> Metadata
//	reasoning            -> Reasoning
//	quota_warning        -> QuotaWarning
//	quota_exceeded       -> QuotaExceeded
//	stream_error         -> StreamError
//	citation             -> Citation
package stream

// Kind is the SSE "event:" name of a chat stream event.
type Kind string

const (
	KindMessageStart      Kind = "message_start"
	KindContentBlockStart Kind = "content_block_start"
	KindContentBlockDelta Kind = "content_block_delta"
	KindContentBlockStop  Kind = "content_block_stop"
	KindMessageStop       Kind = "message_stop"
	KindToolUse           Kind = "tool_use"
	KindToolResult        Kind = "tool_result"
	KindDone              Kind = "done"
	KindError             Kind = "error"
	KindMetadata          Kind = "metadata"
	KindReasoning         Kind = "reasoning"
	KindQuotaWarning      Kind = "quota_warning"
	KindQuotaExceeded     Kind = "quota_exceeded"
	KindStreamError       Kind = "stream_error"
	KindCitation          Kind = "citation"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType is the kind of a content block.
type BlockType string

const (
	BlockTypeText       BlockType = "text"
	BlockTypeToolUse    BlockType = "tool_use"
	BlockTypeToolResult BlockType = "tool_result"

	// BlockTypeReasoning is never accepted on the wire. It is inferred for
	// blocks that only ever received reasoning text.
	BlockTypeReasoning BlockType = "reasoning"
)

// Event is the sealed union of all chat stream events.
type Event interface {
	Kind() Kind
	event()
}

// MessageStart opens a new message.
type MessageStart struct {
	Role Role

	// ID and Model are optional and empty when the provider omits them.
	ID    string
	Model string
}

// ToolUseRef identifies the tool a content block invokes.
type ToolUseRef struct {
	ToolUseID string
	Name      string
}

// ContentBlockStart announces a content block. Type is empty when the
// provider did not say, in which case it is inferred from the first delta.
type ContentBlockStart struct {
	Index   int
	Type    BlockType
	ToolUse *ToolUseRef
}

// ContentBlockDelta carries an incremental fragment for one block. At least
// one of Text or Input is non-nil. Input is a fragment of a JSON document and
// is usually not valid JSON on its own.
type ContentBlockDelta struct {
	Index int
	Text  *string
	Input *string
}

// ContentBlockStop closes a content block.
type ContentBlockStop struct {
	Index int
}

// MessageStop closes the message.
type MessageStop struct {
	StopReason string
}

// ToolUse is the legacy, non-indexed tool invocation event.
type ToolUse struct {
	ToolUseID string
	Name      string
	Input     map[string]any
}

// ToolResult carries the output of a tool invocation. It is correlated with
// its invocation by ToolUseID, never by block index.
type ToolResult struct {
	ToolUseID string

	// Content holds the raw entries of the result's content array.
	Content []any

	// Status is the provider status string ("success", "error", ...) or empty.
	Status string
}

// Done is the end of stream sentinel.
type Done struct{}

// Error is an application error carried by the protocol. Payload is the
// decoded data forwarded without interpretation.
type Error struct {
	Payload any
}

// Metadata is an opaque metadata object.
type Metadata struct {
	Data map[string]any
}

// Reasoning carries a fragment of the model's reasoning trace.
type Reasoning struct {
	ReasoningText string
}

// QuotaUsage is shared by quota_warning and quota_exceeded.
type QuotaUsage struct {
	CurrentUsage   float64
	QuotaLimit     float64
	PercentageUsed float64

	// Message is an optional human readable description.
	Message string
}

// QuotaWarning signals that usage is approaching the quota.
type QuotaWarning struct {
	QuotaUsage
}

// QuotaExceeded signals that the quota is exhausted.
type QuotaExceeded struct {
	QuotaUsage
}

// StreamError is a conversational error the caller may be able to recover
// from. RetryAfter is in seconds and nil when absent.
type StreamError struct {
	Code        string
	Message     string
	Recoverable bool
	RetryAfter  *float64
}

// Citation references a document used by an assistant.
type Citation struct {
	AssistantID string
	DocumentID  string
	FileName    string
	Text        string
}

func (MessageStart) Kind() Kind      { return KindMessageStart }
func (ContentBlockStart) Kind() Kind { return KindContentBlockStart }
func (ContentBlockDelta) Kind() Kind { return KindContentBlockDelta }
func (ContentBlockStop) Kind() Kind  { return KindContentBlockStop }
func (MessageStop) Kind() Kind       { return KindMessageStop }
func (ToolUse) Kind() Kind           { return KindToolUse }
func (ToolResult) Kind() Kind        { return KindToolResult }
func (Done) Kind() Kind              { return KindDone }
func (Error) Kind() Kind             { return KindError }
func (Metadata) Kind() Kind          { return KindMetadata }
func (Reasoning) Kind() Kind         { return KindReasoning }
func (QuotaWarning) Kind() Kind      { return KindQuotaWarning }
func (QuotaExceeded) Kind() Kind     { return KindQuotaExceeded }
func (StreamError) Kind() Kind       { return KindStreamError }
func (Citation) Kind() Kind          { return KindCitation }

func (MessageStart) event()      {}
func (ContentBlockStart) event() {}
func (ContentBlockDelta) event() {}
func (ContentBlockStop) event()  {}
func (MessageStop) event()       {}
func (ToolUse) event()           {}
func (ToolResult) event()        {}
func (Done) event()              {}
func (Error) event()             {}
func (Metadata) event()          {}
func (Reasoning) event()         {}
func (QuotaWarning) event()      {}
func (QuotaExceeded) event()     {}
func (StreamError) event()       {}
func (Citation) event()          {}
