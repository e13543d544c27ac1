package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/chatstream/pkg/assembler"
	"github.com/papercomputeco/chatstream/pkg/eventstream"
	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/sse"
)

var (
	assembleToolName    = "assemble_stream"
	assembleDescription = "Assemble a captured server-sent events chat stream into structured messages. Returns the messages with their ordered content blocks, every parse error, and tool progress notices."
)

// AssembleInput represents the input arguments for the assemble_stream tool.
type AssembleInput struct {
	SSE string `json:"sse" jsonschema:"the raw text/event-stream capture, event and data lines separated by newlines"`
}

// AssembleOutput represents the output of the assemble_stream tool.
type AssembleOutput struct {
	Messages     []llm.Message    `json:"messages"`
	ParseErrors  []string         `json:"parse_errors"`
	ToolProgress []ProgressNotice `json:"tool_progress"`
}

// ProgressNotice is a tool progress notice with an RFC 3339 start time.
type ProgressNotice struct {
	Visible   bool   `json:"visible"`
	ToolName  string `json:"tool_name,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Message   string `json:"message,omitempty"`
	StartTime string `json:"start_time,omitempty"`
}

func newAssembleOutput(res assembler.Result) AssembleOutput {
	out := AssembleOutput{
		Messages:     append([]llm.Message{}, res.Messages...),
		ParseErrors:  append([]string{}, res.ParseErrors...),
		ToolProgress: make([]ProgressNotice, 0, len(res.ToolProgress)),
	}
	for _, p := range res.ToolProgress {
		notice := ProgressNotice{
			Visible:   p.Visible,
			ToolName:  p.ToolName,
			ToolUseID: p.ToolUseID,
			Message:   p.Message,
		}
		if !p.StartTime.IsZero() {
			notice.StartTime = p.StartTime.Format(time.RFC3339Nano)
		}
		out.ToolProgress = append(out.ToolProgress, notice)
	}
	return out
}

// handleAssemble processes an assemble_stream request.
func (s *Server) handleAssemble(ctx context.Context, _ *mcp.CallToolRequest, input AssembleInput) (*mcp.CallToolResult, AssembleOutput, error) {
	logger := s.config.Logger
	logger.Debug("MCP assemble request", "bytes", len(input.SSE))

	var opts []sse.Option
	if s.config.MaxLineBytes > 0 {
		opts = append(opts, sse.WithMaxLineSize(s.config.MaxLineBytes))
	}

	asm, err := assembler.AssembleReader(ctx, strings.NewReader(input.SSE), logger, opts...)
	if err != nil {
		logger.Error("failed to read stream", "error", err)
		return errorResult("Failed to read stream: %v", err), newAssembleOutput(assembler.Result{}), nil
	}
	res := asm.Result()

	if s.config.Enqueuer != nil {
		s.config.Enqueuer.EnqueueResult(eventstream.EventSource{Origin: eventstream.OriginMCP}, res)
	}
	output := newAssembleOutput(res)

	// Structured content is mirrored as JSON text for clients that only
	// read text content.
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal assemble output", "error", err)
		return errorResult("Failed to serialize result: %v", err), newAssembleOutput(assembler.Result{}), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

func errorResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}
