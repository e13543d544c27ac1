// Package assembler reconstructs structured messages from validated chat
// stream events.
package assembler

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/sse"
	"github.com/papercomputeco/chatstream/pkg/stream"
)

// Assembler is a stream.Sink that drives MessageBuilders. One Assembler
// serves one logical stream and is not safe for concurrent use.
type Assembler struct {
	logger *slog.Logger
	newID  func() string

	messages    []*MessageBuilder
	current     *MessageBuilder
	parseErrors []string
	progress    []stream.ToolProgress
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the assembler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithIDGenerator overrides how ids are made for messages that arrive
// without one.
func WithIDGenerator(fn func() string) Option {
	return func(a *Assembler) {
		if fn != nil {
			a.newID = fn
		}
	}
}

// New returns an empty Assembler.
func New(opts ...Option) *Assembler {
	a := &Assembler{
		logger: slog.New(slog.DiscardHandler),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ stream.Sink = (*Assembler)(nil)

// HandleEvent implements stream.Sink. Returned errors are reported by the
// dispatcher as parse errors; they never stop the stream.
func (a *Assembler) HandleEvent(ev stream.Event) error {
	switch e := ev.(type) {
	case stream.MessageStart:
		return a.open(e)
	case stream.ContentBlockStart:
		return a.ensureCurrent().StartBlock(e)
	case stream.ContentBlockDelta:
		return a.ensureCurrent().ApplyDelta(e)
	case stream.ContentBlockStop:
		return a.ensureCurrent().StopBlock(e)
	case stream.MessageStop:
		return a.finish(a.ensureCurrent(), e.StopReason)
	case stream.ToolUse:
		return a.ensureCurrent().AddToolUse(e)
	case stream.ToolResult:
		a.ensureCurrent().ApplyToolResult(e)
	case stream.Done:
		if a.current != nil {
			return a.finish(a.current, string(stream.KindDone))
		}
	case stream.Reasoning:
		return a.ensureCurrent().AppendReasoning(e.ReasoningText)
	case stream.Metadata:
		a.ensureCurrent().AddMetadata(e)
	case stream.Citation:
		a.ensureCurrent().AddCitation(e)
	case stream.QuotaWarning:
		a.ensureCurrent().AddQuota(e.Kind(), e.QuotaUsage)
	case stream.QuotaExceeded:
		a.ensureCurrent().AddQuota(e.Kind(), e.QuotaUsage)
	case stream.StreamError:
		a.ensureCurrent().AddStreamError(e)
	case stream.Error:
		a.ensureCurrent().AddError(e)
	}
	return nil
}

// open finalizes any message still in flight and starts a new one.
func (a *Assembler) open(ev stream.MessageStart) error {
	var err error
	if a.current != nil && !a.current.IsComplete() {
		err = a.finish(a.current, "")
	}

	id := ev.ID
	if id == "" {
		id = a.newID()
	}
	a.current = NewMessageBuilder(id, ev.Role, ev.Model)
	a.messages = append(a.messages, a.current)
	a.logger.Debug("message started", "message_id", id, "role", ev.Role, "model", ev.Model)
	return err
}

// ensureCurrent returns the message in flight, opening an assistant message
// when the provider skipped message_start.
func (a *Assembler) ensureCurrent() *MessageBuilder {
	if a.current == nil {
		_ = a.open(stream.MessageStart{Role: stream.RoleAssistant})
	}
	return a.current
}

func (a *Assembler) finish(m *MessageBuilder, stopReason string) error {
	if m.IsComplete() {
		return nil
	}
	err := m.Complete(stopReason)
	a.logger.Debug("message complete",
		"message_id", m.ID(),
		"stop_reason", stopReason,
		"blocks", len(m.order),
	)
	return err
}

// HandleToolProgress implements stream.Sink.
func (a *Assembler) HandleToolProgress(p stream.ToolProgress) {
	a.progress = append(a.progress, p)
}

// HandleParseError implements stream.Sink.
func (a *Assembler) HandleParseError(err *stream.ParseError) {
	a.parseErrors = append(a.parseErrors, err.Message)
}

// Messages returns every message seen so far in arrival order.
func (a *Assembler) Messages() []*MessageBuilder { return a.messages }

// Current returns the message in flight or most recently finished, nil
// before any event.
func (a *Assembler) Current() *MessageBuilder { return a.current }

// ParseErrors returns every parse error message in arrival order.
func (a *Assembler) ParseErrors() []string { return a.parseErrors }

// ToolProgress returns every progress notice in arrival order.
func (a *Assembler) ToolProgress() []stream.ToolProgress { return a.progress }

// Result is the serializable outcome of assembling one stream.
type Result struct {
	Messages     []llm.Message         `json:"messages"`
	ParseErrors  []string              `json:"parse_errors"`
	ToolProgress []stream.ToolProgress `json:"tool_progress"`
}

// Result snapshots the assembler. Slices are never nil.
func (a *Assembler) Result() Result {
	res := Result{
		Messages:     make([]llm.Message, 0, len(a.messages)),
		ParseErrors:  append([]string{}, a.parseErrors...),
		ToolProgress: append([]stream.ToolProgress{}, a.progress...),
	}
	for _, m := range a.messages {
		res.Messages = append(res.Messages, m.Message())
	}
	return res
}

// Pipeline wires a LineParser, a Dispatcher and an Assembler for one stream.
// Extra sinks passed to NewPipeline see the same events.
type Pipeline struct {
	Assembler  *Assembler
	Dispatcher *stream.Dispatcher
	Parser     *sse.LineParser
}

// NewPipeline returns a ready to use pipeline.
func NewPipeline(logger *slog.Logger, extra ...stream.Sink) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	asm := New(WithLogger(logger))

	var sink stream.Sink = asm
	if len(extra) > 0 {
		sink = stream.MultiSink(append([]stream.Sink{asm}, extra...)...)
	}
	d := stream.NewDispatcher(sink, stream.WithLogger(logger))

	return &Pipeline{
		Assembler:  asm,
		Dispatcher: d,
		Parser:     sse.NewLineParser(d),
	}
}

// Consume reads r to the end, copying it to dest when non-nil. Messages
// still open at EOF are left open; callers decide whether a truncated
// stream counts as complete.
func (p *Pipeline) Consume(ctx context.Context, r io.Reader, dest io.Writer, opts ...sse.Option) error {
	return sse.NewTeeReader(r, dest, p.Parser, opts...).Run(ctx)
}

// AssembleReader assembles a complete SSE capture.
func AssembleReader(ctx context.Context, r io.Reader, logger *slog.Logger, opts ...sse.Option) (*Assembler, error) {
	p := NewPipeline(logger)
	if err := p.Consume(ctx, r, nil, opts...); err != nil {
		return p.Assembler, err
	}
	return p.Assembler, nil
}
