package assembler

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/stream"
)

var (
	// ErrBlockComplete is returned for any mutation of a block after its stop.
	ErrBlockComplete = errors.New("content block already complete")

	// ErrInvalidToolInput is returned when tool input fragments do not form
	// valid JSON at stop time.
	ErrInvalidToolInput = errors.New("invalid tool input JSON")
)

// Status is the lifecycle state of a content block.
type Status string

const (
	StatusPending  Status = llm.StatusPending
	StatusComplete Status = llm.StatusComplete
	StatusError    Status = llm.StatusError
)

// BlockBuilder accumulates the fragments of one content block. Fragments are
// concatenated in arrival order, never re-ordered or deduplicated.
type BlockBuilder struct {
	index int
	kind  stream.BlockType

	textChunks      []string
	inputChunks     []string
	reasoningChunks []string

	toolUseID string
	toolName  string
	input     any

	result       []llm.ToolResultContent
	resultStatus string

	status   Status
	complete bool
	err      error
}

// NewBlockBuilder returns a pending block at index with its kind still
// unknown.
func NewBlockBuilder(index int) *BlockBuilder {
	return &BlockBuilder{index: index, status: StatusPending}
}

// Start applies a content_block_start. An explicit type wins over anything
// inferred so far and a tool identity is stored immediately.
func (b *BlockBuilder) Start(ev stream.ContentBlockStart) error {
	if b.complete {
		return b.completeErr()
	}
	if ev.Type != "" {
		b.kind = ev.Type
	}
	if ev.ToolUse != nil {
		b.Identify(ev.ToolUse.ToolUseID, ev.ToolUse.Name)
	}
	return nil
}

// ApplyDelta appends the delta's text or input fragment. The first fragment
// decides the kind when no start said otherwise: input means tool_use, text
// means text. Input arriving before the tool identity is buffered.
func (b *BlockBuilder) ApplyDelta(ev stream.ContentBlockDelta) error {
	if b.complete {
		return b.completeErr()
	}
	if ev.Input != nil {
		b.inputChunks = append(b.inputChunks, *ev.Input)
		b.infer(stream.BlockTypeToolUse)
	}
	if ev.Text != nil {
		b.textChunks = append(b.textChunks, *ev.Text)
		b.infer(stream.BlockTypeText)
	}
	return nil
}

// AppendReasoning appends a reasoning fragment to the block.
func (b *BlockBuilder) AppendReasoning(text string) error {
	if b.complete {
		return b.completeErr()
	}
	b.reasoningChunks = append(b.reasoningChunks, text)
	return nil
}

// Identify records the tool the block invokes. The first identity wins.
func (b *BlockBuilder) Identify(toolUseID, name string) {
	if b.toolUseID == "" {
		b.toolUseID = toolUseID
	}
	if b.toolName == "" {
		b.toolName = name
	}
	b.infer(stream.BlockTypeToolUse)
}

func (b *BlockBuilder) infer(kind stream.BlockType) {
	if b.kind == "" {
		b.kind = kind
	}
}

// Stop completes the block. For tool_use blocks the input fragments are
// joined and parsed once; a parse failure marks only this block as errored
// and is returned wrapping ErrInvalidToolInput.
func (b *BlockBuilder) Stop() error {
	if b.complete {
		return b.completeErr()
	}
	b.complete = true
	b.status = StatusComplete

	if b.kind == "" {
		switch {
		case len(b.inputChunks) > 0:
			b.kind = stream.BlockTypeToolUse
		case len(b.textChunks) == 0 && len(b.reasoningChunks) > 0:
			b.kind = stream.BlockTypeReasoning
		default:
			b.kind = stream.BlockTypeText
		}
	}

	if b.kind != stream.BlockTypeToolUse {
		return nil
	}

	raw := b.InputRaw()
	if strings.TrimSpace(raw) == "" {
		if b.input == nil {
			b.input = map[string]any{}
		}
		return nil
	}

	var input any
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		b.status = StatusError
		b.err = fmt.Errorf("%w: block %d: %w", ErrInvalidToolInput, b.index, err)
		return b.err
	}
	b.input = input
	return nil
}

// SetInput completes a tool_use block whose input arrived already parsed.
func (b *BlockBuilder) SetInput(input map[string]any) {
	if input == nil {
		input = map[string]any{}
	}
	b.input = input
	b.kind = stream.BlockTypeToolUse
	b.complete = true
	b.status = StatusComplete
}

// SetResult stores a normalized tool result. Results may land before or
// after the block's stop; completion is left to the stop.
func (b *BlockBuilder) SetResult(parts []llm.ToolResultContent, status string) {
	b.kind = stream.BlockTypeToolResult
	b.result = parts
	b.resultStatus = status
}

func (b *BlockBuilder) completeErr() error {
	return fmt.Errorf("%w: index %d", ErrBlockComplete, b.index)
}

// Index returns the block's position in its message.
func (b *BlockBuilder) Index() int { return b.index }

// Kind returns the declared or inferred kind, empty while unknown.
func (b *BlockBuilder) Kind() stream.BlockType { return b.kind }

// Status returns the block status.
func (b *BlockBuilder) Status() Status { return b.status }

// IsComplete reports whether the block has been stopped.
func (b *BlockBuilder) IsComplete() bool { return b.complete }

// Err returns the finalization error, if any.
func (b *BlockBuilder) Err() error { return b.err }

// ToolUseID returns the tool use id, empty until identified.
func (b *BlockBuilder) ToolUseID() string { return b.toolUseID }

// ToolName returns the tool name, empty until identified.
func (b *BlockBuilder) ToolName() string { return b.toolName }

// Text returns the text fragments joined so far.
func (b *BlockBuilder) Text() string { return strings.Join(b.textChunks, "") }

// Reasoning returns the reasoning fragments joined so far.
func (b *BlockBuilder) Reasoning() string { return strings.Join(b.reasoningChunks, "") }

// InputRaw returns the tool input fragments joined so far.
func (b *BlockBuilder) InputRaw() string { return strings.Join(b.inputChunks, "") }

// Input returns the parsed tool input. It is nil until a tool_use block
// completes successfully.
func (b *BlockBuilder) Input() any { return b.input }

// Result returns the normalized tool result parts.
func (b *BlockBuilder) Result() []llm.ToolResultContent { return b.result }

// PartialInput returns a best effort parse of the input received so far,
// repairing truncated JSON. It never changes the block.
func (b *BlockBuilder) PartialInput() (any, error) {
	if b.input != nil {
		return b.input, nil
	}
	raw := b.InputRaw()
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v, nil
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("repairing partial input: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return nil, fmt.Errorf("parsing repaired input: %w", err)
	}
	return v, nil
}

// Snapshot converts the block into its serializable form.
func (b *BlockBuilder) Snapshot() llm.ContentBlock {
	kind := b.kind
	if kind == "" {
		kind = stream.BlockTypeText
	}
	block := llm.ContentBlock{
		Index:     b.index,
		Type:      string(kind),
		Status:    string(b.status),
		Reasoning: b.Reasoning(),
	}

	switch kind {
	case stream.BlockTypeToolUse:
		block.ToolUseID = b.toolUseID
		block.ToolName = b.toolName
		block.ToolInput = b.input
		if b.input == nil {
			block.ToolInputRaw = b.InputRaw()
		}
	case stream.BlockTypeToolResult:
		block.ToolUseID = b.toolUseID
		block.ToolResult = b.result
		block.ResultStatus = b.resultStatus
	case stream.BlockTypeReasoning:
	default:
		block.Text = b.Text()
	}

	if b.err != nil {
		block.Error = b.err.Error()
	}
	return block
}
