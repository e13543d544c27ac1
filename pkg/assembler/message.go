package assembler

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/stream"
)

// ErrMessageComplete is returned for block mutations after the message stopped.
var ErrMessageComplete = errors.New("message already complete")

// MessageBuilder assembles one turn. Blocks are keyed by index; the order in
// which indices were first seen is kept separately.
type MessageBuilder struct {
	id    string
	role  stream.Role
	model string

	blocks map[int]*BlockBuilder
	order  []int

	// open is the block reasoning attaches to, -1 when none.
	open int

	reasoning  []string
	stopReason string
	complete   bool

	citations    []llm.Citation
	metadata     []map[string]any
	quota        []llm.QuotaNotice
	streamErrors []llm.StreamError
	appErrors    []any
}

// NewMessageBuilder returns an open message.
func NewMessageBuilder(id string, role stream.Role, model string) *MessageBuilder {
	return &MessageBuilder{
		id:     id,
		role:   role,
		model:  model,
		blocks: make(map[int]*BlockBuilder),
		open:   -1,
	}
}

// block returns the builder at index, creating it on first reference.
func (m *MessageBuilder) block(index int) *BlockBuilder {
	if b, ok := m.blocks[index]; ok {
		return b
	}
	b := NewBlockBuilder(index)
	m.blocks[index] = b
	m.order = append(m.order, index)
	return b
}

func (m *MessageBuilder) nextIndex() int {
	next := 0
	for index := range m.blocks {
		if index >= next {
			next = index + 1
		}
	}
	return next
}

func (m *MessageBuilder) checkOpen() error {
	if m.complete {
		return fmt.Errorf("%w: %s", ErrMessageComplete, m.id)
	}
	return nil
}

// StartBlock applies a content_block_start.
func (m *MessageBuilder) StartBlock(ev stream.ContentBlockStart) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := m.block(ev.Index).Start(ev); err != nil {
		return err
	}
	m.open = ev.Index
	return nil
}

// ApplyDelta applies a content_block_delta, creating the block when the
// provider skipped its start.
func (m *MessageBuilder) ApplyDelta(ev stream.ContentBlockDelta) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := m.block(ev.Index).ApplyDelta(ev); err != nil {
		return err
	}
	m.open = ev.Index
	return nil
}

// StopBlock applies a content_block_stop. The returned error is either a
// rejected duplicate stop or the block's finalization failure; other blocks
// are unaffected by both.
func (m *MessageBuilder) StopBlock(ev stream.ContentBlockStop) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if m.open == ev.Index {
		m.open = -1
	}
	return m.block(ev.Index).Stop()
}

// AppendReasoning attaches reasoning to the open block, or to the message
// when no block is open.
func (m *MessageBuilder) AppendReasoning(text string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if b, ok := m.blocks[m.open]; ok && !b.IsComplete() {
		return b.AppendReasoning(text)
	}
	m.reasoning = append(m.reasoning, text)
	return nil
}

// AddToolUse records a legacy tool_use event as a completed block after the
// highest index seen.
func (m *MessageBuilder) AddToolUse(ev stream.ToolUse) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	b := m.block(m.nextIndex())
	b.Identify(ev.ToolUseID, ev.Name)
	b.SetInput(ev.Input)
	return nil
}

// ApplyToolResult attaches a result to the tool_result block carrying the
// same tool use id. Failing that it fills the first declared tool_result
// block that has neither id nor result, and only then appends a new,
// already stopped block. Results are accepted after the message stopped
// since tools run after the turn ends.
func (m *MessageBuilder) ApplyToolResult(ev stream.ToolResult) {
	parts, status := NormalizeToolResult(ev)

	if b := m.resultBlock(ev.ToolUseID); b != nil {
		if b.toolUseID == "" {
			b.toolUseID = ev.ToolUseID
		}
		b.SetResult(parts, status)
		return
	}

	b := m.block(m.nextIndex())
	b.toolUseID = ev.ToolUseID
	b.SetResult(parts, status)
	_ = b.Stop()
}

func (m *MessageBuilder) resultBlock(toolUseID string) *BlockBuilder {
	var unnamed *BlockBuilder
	for _, index := range m.order {
		b := m.blocks[index]
		if b.Kind() != stream.BlockTypeToolResult {
			continue
		}
		if b.ToolUseID() == toolUseID {
			return b
		}
		if unnamed == nil && b.ToolUseID() == "" && b.Result() == nil {
			unnamed = b
		}
	}
	return unnamed
}

// Complete finalizes the message. Blocks without a stop are stopped
// implicitly; their finalization errors are joined and returned. Calling
// Complete again is a no-op.
func (m *MessageBuilder) Complete(stopReason string) error {
	if m.complete {
		return nil
	}

	var errs []error
	for _, index := range m.order {
		b := m.blocks[index]
		if b.IsComplete() {
			continue
		}
		if err := b.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	m.stopReason = stopReason
	m.complete = true
	m.open = -1
	return errors.Join(errs...)
}

// AddCitation records a citation.
func (m *MessageBuilder) AddCitation(ev stream.Citation) {
	m.citations = append(m.citations, llm.Citation{
		AssistantID: ev.AssistantID,
		DocumentID:  ev.DocumentID,
		FileName:    ev.FileName,
		Text:        ev.Text,
	})
}

// AddMetadata records a metadata object.
func (m *MessageBuilder) AddMetadata(ev stream.Metadata) {
	m.metadata = append(m.metadata, ev.Data)
}

// AddQuota records a quota_warning or quota_exceeded signal.
func (m *MessageBuilder) AddQuota(kind stream.Kind, usage stream.QuotaUsage) {
	m.quota = append(m.quota, llm.QuotaNotice{
		Type:           string(kind),
		CurrentUsage:   usage.CurrentUsage,
		QuotaLimit:     usage.QuotaLimit,
		PercentageUsed: usage.PercentageUsed,
		Message:        usage.Message,
	})
}

// AddStreamError records a conversational error.
func (m *MessageBuilder) AddStreamError(ev stream.StreamError) {
	m.streamErrors = append(m.streamErrors, llm.StreamError{
		Code:        ev.Code,
		Message:     ev.Message,
		Recoverable: ev.Recoverable,
		RetryAfter:  ev.RetryAfter,
	})
}

// AddError records an application error payload as received.
func (m *MessageBuilder) AddError(ev stream.Error) {
	m.appErrors = append(m.appErrors, ev.Payload)
}

func (m *MessageBuilder) ID() string          { return m.id }
func (m *MessageBuilder) Role() stream.Role   { return m.role }
func (m *MessageBuilder) Model() string       { return m.model }
func (m *MessageBuilder) StopReason() string  { return m.stopReason }
func (m *MessageBuilder) IsComplete() bool    { return m.complete }
func (m *MessageBuilder) Reasoning() string   { return strings.Join(m.reasoning, "") }
func (m *MessageBuilder) ArrivalOrder() []int { return slices.Clone(m.order) }

// Block returns the builder at index.
func (m *MessageBuilder) Block(index int) (*BlockBuilder, bool) {
	b, ok := m.blocks[index]
	return b, ok
}

// Blocks returns the builders sorted by index.
func (m *MessageBuilder) Blocks() []*BlockBuilder {
	indices := slices.Sorted(maps.Keys(m.blocks))
	blocks := make([]*BlockBuilder, 0, len(indices))
	for _, index := range indices {
		blocks = append(blocks, m.blocks[index])
	}
	return blocks
}

// Message returns a serializable snapshot with blocks in index order.
func (m *MessageBuilder) Message() llm.Message {
	msg := llm.Message{
		ID:           m.id,
		Role:         string(m.role),
		Model:        m.model,
		Content:      make([]llm.ContentBlock, 0, len(m.blocks)),
		Reasoning:    m.Reasoning(),
		StopReason:   m.stopReason,
		Complete:     m.complete,
		Citations:    slices.Clone(m.citations),
		Metadata:     slices.Clone(m.metadata),
		Quota:        slices.Clone(m.quota),
		StreamErrors: slices.Clone(m.streamErrors),
		Errors:       slices.Clone(m.appErrors),
	}
	for _, b := range m.Blocks() {
		msg.Content = append(msg.Content, b.Snapshot())
	}
	return msg
}
