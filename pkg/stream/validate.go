package stream

import (
	"encoding/json"
	"fmt"
	"math"
)

// Parse validates a decoded payload against the shape required by kind and
// narrows it to the matching Event. It never panics: malformed payloads yield
// a *ValidationError and kinds outside the catalogue yield ErrUnknownKind.
func Parse(kind Kind, data any) (Event, error) {
	switch kind {
	case KindMessageStart:
		return narrow(parseMessageStart(data))
	case KindContentBlockStart:
		return narrow(parseContentBlockStart(data))
	case KindContentBlockDelta:
		return narrow(parseContentBlockDelta(data))
	case KindContentBlockStop:
		return narrow(parseContentBlockStop(data))
	case KindMessageStop:
		return narrow(parseMessageStop(data))
	case KindToolUse:
		return narrow(parseToolUse(data))
	case KindToolResult:
		return narrow(parseToolResult(data))
	case KindDone:
		return Done{}, nil
	case KindError:
		return Error{Payload: data}, nil
	case KindMetadata:
		return narrow(parseMetadata(data))
	case KindReasoning:
		return narrow(parseReasoning(data))
	case KindQuotaWarning:
		usage, err := parseQuota(kind, data)
		return narrow(QuotaWarning{QuotaUsage: usage}, err)
	case KindQuotaExceeded:
		usage, err := parseQuota(kind, data)
		return narrow(QuotaExceeded{QuotaUsage: usage}, err)
	case KindStreamError:
		return narrow(parseStreamError(data))
	case KindCitation:
		return narrow(parseCitation(data))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// narrow drops the concrete value when err is set so callers never see a
// half-populated event behind a non-nil interface.
func narrow[T Event](ev T, err error) (Event, error) {
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func parseMessageStart(data any) (MessageStart, error) {
	obj, err := asObject(KindMessageStart, data)
	if err != nil {
		return MessageStart{}, err
	}

	role, _ := obj["role"].(string)
	switch Role(role) {
	case RoleUser, RoleAssistant:
	default:
		return MessageStart{}, invalid(KindMessageStart, "role must be %q or %q", RoleUser, RoleAssistant)
	}

	ev := MessageStart{Role: Role(role)}
	ev.ID, _ = obj["id"].(string)
	ev.Model, _ = obj["model"].(string)
	return ev, nil
}

func parseContentBlockStart(data any) (ContentBlockStart, error) {
	obj, err := asObject(KindContentBlockStart, data)
	if err != nil {
		return ContentBlockStart{}, err
	}

	index, err := blockIndex(KindContentBlockStart, obj)
	if err != nil {
		return ContentBlockStart{}, err
	}
	ev := ContentBlockStart{Index: index}

	if raw, ok := obj["type"]; ok && raw != nil {
		t, _ := raw.(string)
		switch BlockType(t) {
		case BlockTypeText, BlockTypeToolUse, BlockTypeToolResult:
			ev.Type = BlockType(t)
		default:
			return ContentBlockStart{}, invalid(KindContentBlockStart, "unsupported block type %q", t)
		}
	}

	if ev.Type == BlockTypeToolResult {
		// A result block only needs the id it answers; the name is optional.
		ev.ToolUse = resultRef(obj["toolUse"])
		return ev, nil
	}

	ref, hasRef, err := toolUseRef(obj["toolUse"])
	if err != nil && ev.Type == BlockTypeToolUse {
		return ContentBlockStart{}, invalid(KindContentBlockStart, "tool_use block %s", err)
	}
	if hasRef && err == nil && (ev.Type == "" || ev.Type == BlockTypeToolUse) {
		ev.ToolUse = ref
		ev.Type = BlockTypeToolUse
	}
	return ev, nil
}

func resultRef(raw any) *ToolUseRef {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	id, ok := nonEmptyString(obj["toolUseId"])
	if !ok {
		return nil
	}
	name, _ := nonEmptyString(obj["name"])
	return &ToolUseRef{ToolUseID: id, Name: name}
}

// toolUseRef extracts {toolUseId, name}. hasRef reports whether any value was
// present at all so absent and malformed can be told apart.
func toolUseRef(raw any) (ref *ToolUseRef, hasRef bool, err error) {
	if raw == nil {
		return nil, false, fmt.Errorf("requires toolUse")
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, true, fmt.Errorf("toolUse must be an object")
	}
	id, ok := nonEmptyString(obj["toolUseId"])
	if !ok {
		return nil, true, fmt.Errorf("requires non-empty toolUse.toolUseId")
	}
	name, ok := nonEmptyString(obj["name"])
	if !ok {
		return nil, true, fmt.Errorf("requires non-empty toolUse.name")
	}
	return &ToolUseRef{ToolUseID: id, Name: name}, true, nil
}

func parseContentBlockDelta(data any) (ContentBlockDelta, error) {
	obj, err := asObject(KindContentBlockDelta, data)
	if err != nil {
		return ContentBlockDelta{}, err
	}

	index, err := blockIndex(KindContentBlockDelta, obj)
	if err != nil {
		return ContentBlockDelta{}, err
	}
	ev := ContentBlockDelta{Index: index}

	if text, ok := obj["text"].(string); ok {
		ev.Text = &text
	}
	if input, ok := obj["input"].(string); ok {
		ev.Input = &input
	}
	if ev.Text == nil && ev.Input == nil {
		return ContentBlockDelta{}, invalid(KindContentBlockDelta, "requires text or input")
	}
	return ev, nil
}

func parseContentBlockStop(data any) (ContentBlockStop, error) {
	obj, err := asObject(KindContentBlockStop, data)
	if err != nil {
		return ContentBlockStop{}, err
	}
	index, err := blockIndex(KindContentBlockStop, obj)
	if err != nil {
		return ContentBlockStop{}, err
	}
	return ContentBlockStop{Index: index}, nil
}

func parseMessageStop(data any) (MessageStop, error) {
	obj, err := asObject(KindMessageStop, data)
	if err != nil {
		return MessageStop{}, err
	}
	reason, ok := nonEmptyString(obj["stopReason"])
	if !ok {
		return MessageStop{}, invalid(KindMessageStop, "requires non-empty stopReason")
	}
	return MessageStop{StopReason: reason}, nil
}

func parseToolUse(data any) (ToolUse, error) {
	obj, err := asObject(KindToolUse, data)
	if err != nil {
		return ToolUse{}, err
	}
	nested, ok := obj["tool_use"].(map[string]any)
	if !ok {
		return ToolUse{}, invalid(KindToolUse, "requires tool_use object")
	}

	name, ok := nonEmptyString(nested["name"])
	if !ok {
		return ToolUse{}, invalid(KindToolUse, "requires non-empty tool_use.name")
	}
	id, ok := nonEmptyString(nested["tool_use_id"])
	if !ok {
		return ToolUse{}, invalid(KindToolUse, "requires non-empty tool_use.tool_use_id")
	}

	ev := ToolUse{ToolUseID: id, Name: name}
	switch input := nested["input"].(type) {
	case nil:
	case map[string]any:
		ev.Input = input
	default:
		return ToolUse{}, invalid(KindToolUse, "tool_use.input must be an object")
	}
	return ev, nil
}

func parseToolResult(data any) (ToolResult, error) {
	obj, err := asObject(KindToolResult, data)
	if err != nil {
		return ToolResult{}, err
	}
	nested, ok := obj["tool_result"].(map[string]any)
	if !ok {
		return ToolResult{}, invalid(KindToolResult, "requires tool_result object")
	}

	id, ok := nonEmptyString(nested["toolUseId"])
	if !ok {
		return ToolResult{}, invalid(KindToolResult, "requires non-empty tool_result.toolUseId")
	}
	ev := ToolResult{ToolUseID: id}

	switch content := nested["content"].(type) {
	case nil:
	case []any:
		ev.Content = content
	case string:
		ev.Content = []any{map[string]any{"text": content}}
	default:
		return ToolResult{}, invalid(KindToolResult, "tool_result.content must be an array")
	}

	if raw, ok := nested["status"]; ok && raw != nil {
		status, ok := raw.(string)
		if !ok {
			return ToolResult{}, invalid(KindToolResult, "tool_result.status must be a string")
		}
		ev.Status = status
	}
	return ev, nil
}

func parseMetadata(data any) (Metadata, error) {
	obj, err := asObject(KindMetadata, data)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{Data: obj}, nil
}

func parseReasoning(data any) (Reasoning, error) {
	obj, err := asObject(KindReasoning, data)
	if err != nil {
		return Reasoning{}, err
	}
	var text string
	if raw, ok := obj["reasoningText"]; ok && raw != nil {
		if text, ok = raw.(string); !ok {
			return Reasoning{}, invalid(KindReasoning, "reasoningText must be a string")
		}
	}
	return Reasoning{ReasoningText: text}, nil
}

func parseQuota(kind Kind, data any) (QuotaUsage, error) {
	obj, err := asObject(kind, data)
	if err != nil {
		return QuotaUsage{}, err
	}
	if t, _ := obj["type"].(string); t != string(kind) {
		return QuotaUsage{}, invalid(kind, "type must be %q", kind)
	}

	var usage QuotaUsage
	fields := []struct {
		name string
		dst  *float64
	}{
		{"currentUsage", &usage.CurrentUsage},
		{"quotaLimit", &usage.QuotaLimit},
		{"percentageUsed", &usage.PercentageUsed},
	}
	for _, f := range fields {
		v, ok := asFloat(obj[f.name])
		if !ok {
			return QuotaUsage{}, invalid(kind, "%s must be a number", f.name)
		}
		*f.dst = v
	}
	usage.Message, _ = obj["message"].(string)
	return usage, nil
}

func parseStreamError(data any) (StreamError, error) {
	obj, err := asObject(KindStreamError, data)
	if err != nil {
		return StreamError{}, err
	}
	if t, _ := obj["type"].(string); t != string(KindStreamError) {
		return StreamError{}, invalid(KindStreamError, "type must be %q", KindStreamError)
	}

	code, ok := obj["code"].(string)
	if !ok {
		return StreamError{}, invalid(KindStreamError, "code must be a string")
	}
	message, ok := obj["message"].(string)
	if !ok {
		return StreamError{}, invalid(KindStreamError, "message must be a string")
	}
	recoverable, ok := obj["recoverable"].(bool)
	if !ok {
		return StreamError{}, invalid(KindStreamError, "recoverable must be a boolean")
	}

	ev := StreamError{Code: code, Message: message, Recoverable: recoverable}
	if raw, ok := obj["retry_after"]; ok && raw != nil {
		v, ok := asFloat(raw)
		if !ok {
			return StreamError{}, invalid(KindStreamError, "retry_after must be a number")
		}
		ev.RetryAfter = &v
	}
	return ev, nil
}

func parseCitation(data any) (Citation, error) {
	obj, err := asObject(KindCitation, data)
	if err != nil {
		return Citation{}, err
	}

	var ev Citation
	fields := []struct {
		name string
		dst  *string
	}{
		{"assistantId", &ev.AssistantID},
		{"documentId", &ev.DocumentID},
		{"fileName", &ev.FileName},
		{"text", &ev.Text},
	}
	for _, f := range fields {
		v, ok := obj[f.name].(string)
		if !ok {
			return Citation{}, invalid(KindCitation, "%s must be a string", f.name)
		}
		*f.dst = v
	}
	return ev, nil
}

func asObject(kind Kind, data any) (map[string]any, error) {
	obj, ok := data.(map[string]any)
	if !ok {
		return nil, invalid(kind, "payload must be an object")
	}
	return obj, nil
}

func blockIndex(kind Kind, obj map[string]any) (int, error) {
	index, ok := asIndex(obj["contentBlockIndex"])
	if !ok {
		return 0, invalid(kind, "contentBlockIndex must be a non-negative integer")
	}
	return index, nil
}

// asIndex accepts the numeric forms produced by encoding/json (float64 or
// json.Number) as well as Go integers from callers building payloads by hand.
func asIndex(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case int:
		return n, n >= 0
	case int64:
		return int(n), n >= 0 && n <= math.MaxInt32
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return asIndex(i)
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok && s != ""
}
