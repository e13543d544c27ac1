// Package sse decodes line-delimited server-sent event text into chat stream
// events.
package sse

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/papercomputeco/chatstream/pkg/stream"
	"github.com/papercomputeco/chatstream/pkg/utils"
)

// maxExcerptLen bounds the payload excerpt attached to JSON decode errors.
const maxExcerptLen = 100

// LineParser turns SSE lines into (eventType, payload) pairs and hands them
// to a Dispatcher. It holds the most recent "event:" name between lines and
// must not be shared between streams.
type LineParser struct {
	dispatcher       *stream.Dispatcher
	currentEventType string
}

// NewLineParser returns a parser dispatching through d.
func NewLineParser(d *stream.Dispatcher) *LineParser {
	return &LineParser{dispatcher: d}
}

// ParseLine consumes one line without its terminator. It never returns an
// error: malformed lines are reported via the dispatcher's sink and skipped.
func (p *LineParser) ParseLine(line string) {
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, ":") {
		return
	}

	field, value, _ := strings.Cut(line, ":")
	switch field {
	case "event":
		p.parseEvent(value)
	case "data":
		p.parseData(value)
	default:
		// id, retry and unknown fields carry nothing for assembly.
	}
}

func (p *LineParser) parseEvent(value string) {
	name := strings.TrimSpace(value)
	if name == "" {
		p.dispatcher.ReportParseError(&stream.ParseError{
			Category: stream.CategoryLine,
			Message:  "Invalid SSE line: empty event name",
			Err:      stream.ErrEmptyEventType,
		})
		return
	}
	p.currentEventType = name
}

func (p *LineParser) parseData(value string) {
	if p.currentEventType == "" {
		p.dispatcher.ReportParseError(&stream.ParseError{
			Category: stream.CategoryLine,
			Message:  "Invalid SSE line: data without a preceding event",
			Err:      stream.ErrEmptyEventType,
		})
		return
	}

	payload := strings.TrimSpace(value)
	if payload == "" || payload == "{}" {
		return
	}

	var data any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		p.dispatcher.ReportParseError(&stream.ParseError{
			Category: stream.CategoryJSON,
			Kind:     stream.Kind(p.currentEventType),
			Message: fmt.Sprintf("Failed to parse SSE data for %s event: %s (data: %s)",
				p.currentEventType, err, utils.Truncate(payload, maxExcerptLen)),
			Err: err,
		})
		return
	}

	p.dispatcher.ProcessEvent(p.currentEventType, data)
}

// Reset forgets the current event type, e.g. between reconnects.
func (p *LineParser) Reset() {
	p.currentEventType = ""
}

// CurrentEventType returns the event name that the next data line will be
// dispatched under.
func (p *LineParser) CurrentEventType() string {
	return p.currentEventType
}
