package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/assembler"
	"github.com/papercomputeco/chatstream/pkg/eventstream"
	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/logger"
)

type recordingEnqueuer struct {
	sources []eventstream.EventSource
	results []assembler.Result
}

func (r *recordingEnqueuer) EnqueueResult(source eventstream.EventSource, res assembler.Result) int {
	r.sources = append(r.sources, source)
	r.results = append(r.results, res)
	return len(res.Messages)
}

const toolCapture = `event: message_start
data: {"role":"assistant","id":"msg_7","model":"m"}

event: content_block_start
data: {"contentBlockIndex":0,"toolUse":{"toolUseId":"t1","name":"search"}}

event: content_block_delta
data: {"contentBlockIndex":0,"input":"{\"q\":"}

event: content_block_delta
data: {"contentBlockIndex":0,"input":"\"cats\"}"}

event: content_block_stop
data: {"contentBlockIndex":0}

event: message_stop
data: {"stopReason":"tool_use"}
`

var _ = Describe("Server", func() {
	var (
		server   *Server
		enqueuer *recordingEnqueuer
	)

	BeforeEach(func() {
		enqueuer = &recordingEnqueuer{}
		var err error
		server, err = NewServer(Config{ListenAddr: ":0"}, enqueuer, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	do := func(req *http.Request) (*http.Response, []byte) {
		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp, body
	}

	It("requires a logger", func() {
		_, err := NewServer(Config{}, nil, nil)
		Expect(err).To(MatchError("logger is required"))
	})

	It("answers pings", func() {
		resp, body := do(httptest.NewRequest(http.MethodGet, "/ping", nil))
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(Equal(`"pong"`))
	})

	Describe("POST /v1/assemble", func() {
		It("returns the assembled messages", func() {
			resp, body := do(httptest.NewRequest(http.MethodPost, "/v1/assemble", strings.NewReader(toolCapture)))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var res assembler.Result
			Expect(json.Unmarshal(body, &res)).To(Succeed())
			Expect(res.ParseErrors).To(BeEmpty())
			Expect(res.Messages).To(HaveLen(1))

			msg := res.Messages[0]
			Expect(msg.ID).To(Equal("msg_7"))
			Expect(msg.StopReason).To(Equal("tool_use"))
			Expect(msg.Content).To(HaveLen(1))
			Expect(msg.Content[0].Type).To(Equal(llm.BlockToolUse))
			Expect(msg.Content[0].ToolInput).To(Equal(map[string]any{"q": "cats"}))

			Expect(res.ToolProgress).To(HaveLen(1))
			Expect(res.ToolProgress[0].Message).To(Equal("Running search..."))
		})

		It("enqueues the result for publishing", func() {
			do(httptest.NewRequest(http.MethodPost, "/v1/assemble", strings.NewReader(toolCapture)))
			Expect(enqueuer.sources).To(ConsistOf(eventstream.EventSource{
				Origin: eventstream.OriginAPI,
				Path:   "/v1/assemble",
			}))
			Expect(enqueuer.results[0].Messages[0].ID).To(Equal("msg_7"))
		})

		It("reports malformed lines without failing the request", func() {
			capture := "event: content_block_delta\ndata: {not json}\n" +
				"event: content_block_delta\ndata: {\"contentBlockIndex\":0,\"text\":\"ok\"}\n"
			resp, body := do(httptest.NewRequest(http.MethodPost, "/v1/assemble", strings.NewReader(capture)))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var res assembler.Result
			Expect(json.Unmarshal(body, &res)).To(Succeed())
			Expect(res.ParseErrors).To(ConsistOf(HavePrefix("Failed to parse SSE data for content_block_delta event:")))
			Expect(res.Messages[0].GetText()).To(Equal("ok"))
		})

		It("rejects an empty body", func() {
			resp, body := do(httptest.NewRequest(http.MethodPost, "/v1/assemble", strings.NewReader("  \n")))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("request body must contain an SSE stream"))
			Expect(enqueuer.results).To(BeEmpty())
		})

		It("rejects lines longer than the configured limit", func() {
			var err error
			server, err = NewServer(Config{MaxLineBytes: 16}, enqueuer, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			long := "event: content_block_delta\ndata: " + strings.Repeat("x", 64) + "\n"
			resp, body := do(httptest.NewRequest(http.MethodPost, "/v1/assemble", strings.NewReader(long)))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("failed to read stream"))
		})
	})

	It("mounts the MCP endpoint", func() {
		req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
		resp, _ := do(req)
		Expect(resp.StatusCode).NotTo(Equal(http.StatusNotFound))
	})
})
