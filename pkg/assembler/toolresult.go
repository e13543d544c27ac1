package assembler

import (
	"encoding/json"
	"strings"

	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/stream"
)

// NormalizeToolResult walks the content array of a tool result and returns
// its typed parts. Text is tried as JSON first since tools often return
// encoded JSON. Entries that are not text, image or json are skipped.
func NormalizeToolResult(ev stream.ToolResult) ([]llm.ToolResultContent, string) {
	parts := make([]llm.ToolResultContent, 0, len(ev.Content))
	for _, entry := range ev.Content {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if part, ok := normalizeEntry(obj); ok {
			parts = append(parts, part)
		}
	}
	return parts, resultStatus(ev.Status)
}

func normalizeEntry(obj map[string]any) (llm.ToolResultContent, bool) {
	if text, ok := obj["text"].(string); ok {
		var v any
		if err := json.Unmarshal([]byte(text), &v); err == nil {
			return llm.ToolResultContent{Type: "json", JSON: v}, true
		}
		return llm.ToolResultContent{Type: "text", Text: text}, true
	}

	if img, ok := obj["image"].(map[string]any); ok {
		if image, ok := normalizeImage(img); ok {
			return llm.ToolResultContent{Type: "image", Image: image}, true
		}
		return llm.ToolResultContent{}, false
	}

	if v, ok := obj["json"]; ok {
		return llm.ToolResultContent{Type: "json", JSON: v}, true
	}
	return llm.ToolResultContent{}, false
}

// normalizeImage finds the image bytes under source.data, source.bytes or a
// bare data key, in that order.
func normalizeImage(img map[string]any) (*llm.ImageSource, bool) {
	format, _ := img["format"].(string)

	var data any
	if source, ok := img["source"].(map[string]any); ok {
		data = firstPresent(source, "data", "bytes")
	}
	if data == nil {
		data = img["data"]
	}
	if data == nil {
		return nil, false
	}
	return &llm.ImageSource{Format: format, Data: data}, true
}

func firstPresent(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func resultStatus(status string) string {
	switch strings.ToLower(status) {
	case "error", "failed":
		return llm.ResultError
	default:
		return llm.ResultSuccess
	}
}
