package stream

import (
	"errors"
	"fmt"
	"time"
)

// ToolProgress is an ephemeral UI hint emitted alongside tool lifecycle
// events. It is never stored in the assembled message.
type ToolProgress struct {
	Visible   bool      `json:"visible"`
	ToolName  string    `json:"tool_name,omitempty"`
	ToolUseID string    `json:"tool_use_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	StartTime time.Time `json:"start_time,omitzero"`
}

// Sink receives validated events from a Dispatcher.
//
// HandleEvent may return an error; the Dispatcher reports it through
// HandleParseError and keeps going. Panics in any method are recovered the
// same way.
type Sink interface {
	HandleEvent(ev Event) error
	HandleToolProgress(p ToolProgress)
	HandleParseError(err *ParseError)
}

// Callbacks adapts a set of optional functions to the Sink interface. Nil
// fields are skipped.
type Callbacks struct {
	OnMessageStart      func(MessageStart)
	OnContentBlockStart func(ContentBlockStart)
	OnContentBlockDelta func(ContentBlockDelta)
	OnContentBlockStop  func(ContentBlockStop)
	OnMessageStop       func(MessageStop)
	OnToolUse           func(ToolUse)
	OnToolResult        func(ToolResult)
	OnDone              func()
	OnError             func(Error)
	OnMetadata          func(Metadata)
	OnReasoning         func(Reasoning)
	OnQuotaWarning      func(QuotaWarning)
	OnQuotaExceeded     func(QuotaExceeded)
	OnStreamError       func(StreamError)
	OnCitation          func(Citation)

	OnToolProgress func(ToolProgress)

	// OnParseError receives the human readable message of every structural,
	// validation and handler error.
	OnParseError func(message string)
}

var _ Sink = (*Callbacks)(nil)

// HandleEvent implements Sink.
func (c *Callbacks) HandleEvent(ev Event) error {
	switch e := ev.(type) {
	case MessageStart:
		call(c.OnMessageStart, e)
	case ContentBlockStart:
		call(c.OnContentBlockStart, e)
	case ContentBlockDelta:
		call(c.OnContentBlockDelta, e)
	case ContentBlockStop:
		call(c.OnContentBlockStop, e)
	case MessageStop:
		call(c.OnMessageStop, e)
	case ToolUse:
		call(c.OnToolUse, e)
	case ToolResult:
		call(c.OnToolResult, e)
	case Done:
		if c.OnDone != nil {
			c.OnDone()
		}
	case Error:
		call(c.OnError, e)
	case Metadata:
		call(c.OnMetadata, e)
	case Reasoning:
		call(c.OnReasoning, e)
	case QuotaWarning:
		call(c.OnQuotaWarning, e)
	case QuotaExceeded:
		call(c.OnQuotaExceeded, e)
	case StreamError:
		call(c.OnStreamError, e)
	case Citation:
		call(c.OnCitation, e)
	default:
		return fmt.Errorf("unhandled event type %T", ev)
	}
	return nil
}

// HandleToolProgress implements Sink.
func (c *Callbacks) HandleToolProgress(p ToolProgress) {
	call(c.OnToolProgress, p)
}

// HandleParseError implements Sink.
func (c *Callbacks) HandleParseError(err *ParseError) {
	if c.OnParseError != nil && err != nil {
		c.OnParseError(err.Message)
	}
}

func call[T any](fn func(T), v T) {
	if fn != nil {
		fn(v)
	}
}

// multiSink fans every call out to a list of sinks.
type multiSink struct {
	sinks []Sink
}

// MultiSink returns a Sink that forwards to each of sinks in order. Errors
// from HandleEvent are joined; every sink sees every event.
func MultiSink(sinks ...Sink) Sink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &multiSink{sinks: filtered}
}

func (m *multiSink) HandleEvent(ev Event) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.HandleEvent(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *multiSink) HandleToolProgress(p ToolProgress) {
	for _, s := range m.sinks {
		s.HandleToolProgress(p)
	}
}

func (m *multiSink) HandleParseError(err *ParseError) {
	for _, s := range m.sinks {
		s.HandleParseError(err)
	}
}
