package api

import (
	"bytes"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatstream/pkg/assembler"
	"github.com/papercomputeco/chatstream/pkg/eventstream"
	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/sse"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleAssemble assembles the SSE capture in the request body and returns
// the messages, parse errors and tool progress notices.
func (s *Server) handleAssemble(c *fiber.Ctx) error {
	body := c.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "request body must contain an SSE stream"})
	}

	var opts []sse.Option
	if s.config.MaxLineBytes > 0 {
		opts = append(opts, sse.WithMaxLineSize(s.config.MaxLineBytes))
	}

	asm, err := assembler.AssembleReader(c.UserContext(), bytes.NewReader(body), s.logger, opts...)
	if err != nil {
		s.logger.Warn("failed to read stream", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: fmt.Sprintf("failed to read stream: %v", err)})
	}

	res := asm.Result()
	if s.enqueuer != nil {
		queued := s.enqueuer.EnqueueResult(eventstream.EventSource{
			Origin: eventstream.OriginAPI,
			Path:   c.Path(),
		}, res)
		s.logger.Debug("assembled stream",
			"messages", len(res.Messages),
			"parse_errors", len(res.ParseErrors),
			"queued", queued,
		)
	}

	return c.JSON(res)
}
