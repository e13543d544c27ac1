package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Dispatcher validates (eventType, data) pairs and delivers them to a Sink.
// It is not safe for concurrent use; create one per stream.
type Dispatcher struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for debug output about dropped events.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock overrides the time source used for ToolProgress.StartTime.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDispatcher returns a Dispatcher delivering to sink.
func NewDispatcher(sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sink:   sink,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ProcessEvent validates data for eventType and hands the narrowed event to
// the sink. Nothing here returns an error or panics: problems are reported
// through Sink.HandleParseError and the event is dropped.
func (d *Dispatcher) ProcessEvent(eventType string, data any) {
	if eventType == "" {
		d.ReportParseError(&ParseError{
			Category: CategoryLine,
			Message:  "Invalid event type: empty",
			Err:      ErrEmptyEventType,
		})
		return
	}

	kind := Kind(eventType)
	ev, err := Parse(kind, data)
	if errors.Is(err, ErrUnknownKind) {
		d.logger.Debug("ignoring unknown event", "event_type", eventType)
		return
	}
	if err != nil {
		d.ReportParseError(&ParseError{
			Category: CategoryValidation,
			Kind:     kind,
			Message:  err.Error(),
			Err:      err,
		})
		return
	}

	if r, ok := ev.(Reasoning); ok && r.ReasoningText == "" {
		return
	}

	d.deliver(ev)
}

func (d *Dispatcher) deliver(ev Event) {
	kind := ev.Kind()
	defer func() {
		if r := recover(); r != nil {
			d.reportHandlerFailure(kind, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := d.sink.HandleEvent(ev); err != nil {
		d.reportHandlerFailure(kind, err)
		return
	}

	if p, ok := d.progressFor(ev); ok {
		d.sink.HandleToolProgress(p)
	}
}

// progressFor returns the ToolProgress side effect of ev, if any.
func (d *Dispatcher) progressFor(ev Event) (ToolProgress, bool) {
	switch e := ev.(type) {
	case ContentBlockStart:
		if e.Type != BlockTypeToolUse || e.ToolUse == nil {
			return ToolProgress{}, false
		}
		return ToolProgress{
			Visible:   true,
			ToolName:  e.ToolUse.Name,
			ToolUseID: e.ToolUse.ToolUseID,
			Message:   runningMessage(e.ToolUse.Name),
			StartTime: d.now(),
		}, true
	case ToolUse:
		return ToolProgress{
			Visible:   true,
			ToolName:  e.Name,
			ToolUseID: e.ToolUseID,
			Message:   runningMessage(e.Name),
		}, true
	case ToolResult:
		return ToolProgress{Visible: false, ToolUseID: e.ToolUseID}, true
	case Done:
		return ToolProgress{Visible: false}, true
	default:
		return ToolProgress{}, false
	}
}

func runningMessage(name string) string {
	return fmt.Sprintf("Running %s...", name)
}

func (d *Dispatcher) reportHandlerFailure(kind Kind, err error) {
	d.ReportParseError(&ParseError{
		Category: CategoryCallback,
		Kind:     kind,
		Message:  fmt.Sprintf("Error processing %s event: %v", kind, err),
		Err:      err,
	})
}

// ReportParseError forwards err to the sink. It is exported so the line
// parser can report line and JSON level problems through the same channel.
// A panicking parse error handler is logged and swallowed.
func (d *Dispatcher) ReportParseError(err *ParseError) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("parse error handler panicked", "panic", r, "parse_error", err.Message)
		}
	}()
	d.logger.Debug("stream parse error", "category", err.Category, "kind", err.Kind, "error", err.Message)
	d.sink.HandleParseError(err)
}

// ProcessEvent is a convenience wrapper for a one-off dispatch to sink.
func ProcessEvent(eventType string, data any, sink Sink) {
	NewDispatcher(sink).ProcessEvent(eventType, data)
}
