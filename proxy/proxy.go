// Package proxy provides a chat stream proxy that assembles every
// server-sent event response it relays and hands the messages off for
// publishing.
package proxy

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"

	"github.com/papercomputeco/chatstream/pkg/assembler"
	"github.com/papercomputeco/chatstream/pkg/eventstream"
	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/sse"
	"github.com/papercomputeco/chatstream/pkg/stream"
	"github.com/papercomputeco/chatstream/proxy/header"
)

const defaultTimeout = 5 * time.Minute

// Enqueuer hands assembled messages off for publishing.
type Enqueuer interface {
	EnqueueResult(source eventstream.EventSource, res assembler.Result) int
}

// Proxy is a transparent chat proxy. It forwards requests to the upstream
// service and, for event stream responses, relays the bytes verbatim while
// assembling them into messages.
type Proxy struct {
	config        Config
	enqueuer      Enqueuer
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
}

// New creates a new Proxy. The enqueuer is optional and is injected to
// allow sharing a worker pool with the API server.
func New(config Config, enqueuer Enqueuer, logger *slog.Logger) (*Proxy, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	config.UpstreamURL = strings.TrimRight(config.UpstreamURL, "/")
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StreamRequestBody:     true,
	})

	// Add compression middleware to handle responses
	app.Use(compress.New())

	p := &Proxy{
		config:        config,
		enqueuer:      enqueuer,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
		httpClient: &http.Client{
			// Long generations keep the stream open for minutes.
			Timeout: config.Timeout,
		},
	}

	// Register transparent proxy route - forwards any path to upstream
	app.All("/*", p.handleProxy)

	return p, nil
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		"listen", p.config.ListenAddr,
		"upstream", p.config.UpstreamURL,
	)
	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		"listen", listener.Addr().String(),
		"upstream", p.config.UpstreamURL,
	)
	return p.server.Listener(listener)
}

// Close gracefully shuts down the proxy. The enqueuer is owned by the caller.
func (p *Proxy) Close() error {
	return p.server.Shutdown()
}

// handleProxy forwards the request upstream and relays the response.
func (p *Proxy) handleProxy(c *fiber.Ctx) error {
	startTime := time.Now()
	path := c.Path()
	if q := c.Request().URI().QueryString(); len(q) > 0 {
		path += "?" + string(q)
	}
	upstreamURL := p.config.UpstreamURL + path

	var reqBody io.Reader
	if body := c.Body(); len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}

	// The streamed body outlives the handler: fasthttp recycles its
	// RequestCtx once the handler returns, so the upstream request must not
	// be bound to it.
	httpReq, err := http.NewRequestWithContext(context.Background(), c.Method(), upstreamURL, reqBody)
	if err != nil {
		p.logger.Error("failed to create upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}
	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	p.logger.Debug("forwarding request to upstream",
		"method", c.Method(),
		"url", upstreamURL,
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "upstream request failed"})
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)

	if httpResp.StatusCode != http.StatusOK || !header.IsEventStream(httpResp) {
		return p.relayBody(c, httpResp)
	}

	source := eventstream.EventSource{
		Origin:   eventstream.OriginProxy,
		Path:     c.Path(),
		Upstream: p.config.UpstreamURL,
		Client:   p.headerHandler.Client(c),
	}
	p.headerHandler.SetStreamingHeaders(c)

	// io.Pipe gives per-chunk backpressure: pw.Write blocks until fasthttp's
	// chunked body writer has read the data and flushed it to the socket.
	pr, pw := io.Pipe()
	go p.assembleToPipe(httpResp, pw, source, startTime)

	// Unknown size (-1) makes fasthttp use chunked transfer encoding.
	c.Status(httpResp.StatusCode)
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// relayBody passes a non-streaming or failed response through untouched.
func (p *Proxy) relayBody(c *fiber.Ctx, httpResp *http.Response) error {
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		p.logger.Error("failed to read upstream response", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "failed to read upstream response"})
	}
	if httpResp.StatusCode >= http.StatusBadRequest {
		p.logger.Warn("upstream returned error",
			"status", httpResp.StatusCode,
			"body", string(respBody),
		)
	}
	return c.Status(httpResp.StatusCode).Send(respBody)
}

// assembleToPipe tees the upstream event stream into pw while assembling
// it, then enqueues the assembled messages.
func (p *Proxy) assembleToPipe(httpResp *http.Response, pw *io.PipeWriter, source eventstream.EventSource, startTime time.Time) {
	defer httpResp.Body.Close()
	defer pw.Close()

	logger := p.logger.With("path", source.Path)
	pipeline := assembler.NewPipeline(logger, &stream.Callbacks{
		OnToolProgress: func(tp stream.ToolProgress) {
			if tp.Visible {
				logger.Debug("tool running", "tool", tp.ToolName, "tool_use_id", tp.ToolUseID)
			}
		},
	})

	var opts []sse.Option
	if p.config.MaxLineBytes > 0 {
		opts = append(opts, sse.WithMaxLineSize(p.config.MaxLineBytes))
	}
	err := pipeline.Consume(context.Background(), httpResp.Body, pw, opts...)
	switch {
	case err == nil:
	case errors.Is(err, bufio.ErrTooLong):
		// The client already has the whole body; only assembly stopped.
		logger.Warn("event line exceeds limit, rest relayed unassembled",
			"max_line_bytes", p.config.MaxLineBytes,
			"error", err,
		)
	default:
		// The client went away or the upstream broke off; whatever was
		// assembled so far is still published.
		logger.Warn("event stream ended early", "error", err)
		pw.CloseWithError(err)
	}

	res := pipeline.Assembler.Result()
	logger.Debug("streaming complete",
		"messages", len(res.Messages),
		"parse_errors", len(res.ParseErrors),
		"duration", time.Since(startTime),
	)

	if p.enqueuer != nil && len(res.Messages) > 0 {
		p.enqueuer.EnqueueResult(source, res)
	}
}
