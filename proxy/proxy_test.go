package proxy

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatstream/pkg/assembler"
	"github.com/papercomputeco/chatstream/pkg/eventstream"
	"github.com/papercomputeco/chatstream/pkg/llm"
	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/proxy/header"
)

type recordingEnqueuer struct {
	mu      sync.Mutex
	sources []eventstream.EventSource
	results []assembler.Result
}

func (r *recordingEnqueuer) EnqueueResult(source eventstream.EventSource, res assembler.Result) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, source)
	r.results = append(r.results, res)
	return len(res.Messages)
}

func (r *recordingEnqueuer) Results() []assembler.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]assembler.Result(nil), r.results...)
}

func (r *recordingEnqueuer) Sources() []eventstream.EventSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]eventstream.EventSource(nil), r.sources...)
}

// upstreamRequest is what the fake upstream saw.
type upstreamRequest struct {
	method string
	uri    string
	body   string
	header http.Header
}

var sseEvents = []string{
	"event: message_start\ndata: {\"role\":\"assistant\",\"id\":\"msg_1\",\"model\":\"m-1\"}\n\n",
	"event: content_block_delta\ndata: {\"contentBlockIndex\":0,\"text\":\"Hello\"}\n\n",
	": keep-alive\n\n",
	"event: content_block_delta\ndata: {\"contentBlockIndex\":0,\"text\":\" world\"}\n\n",
	"event: content_block_stop\ndata: {\"contentBlockIndex\":0}\n\n",
	"event: message_stop\ndata: {\"stopReason\":\"end_turn\"}\n\n",
}

var _ = Describe("Proxy", func() {
	var (
		p        *Proxy
		enqueuer *recordingEnqueuer
		upstream *httptest.Server
		seen     chan upstreamRequest
	)

	startUpstream := func(handler http.HandlerFunc) {
		seen = make(chan upstreamRequest, 1)
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			seen <- upstreamRequest{method: r.Method, uri: r.URL.RequestURI(), body: string(body), header: r.Header.Clone()}
			handler(w, r)
		}))
		DeferCleanup(upstream.Close)

		enqueuer = &recordingEnqueuer{}
		var err error
		p, err = New(Config{ListenAddr: ":0", UpstreamURL: upstream.URL + "/"}, enqueuer, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(p.Close)
	}

	do := func(req *http.Request) (*http.Response, string) {
		resp, err := p.server.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp, string(body)
	}

	Describe("New", func() {
		It("requires an upstream", func() {
			_, err := New(Config{}, nil, logger.Nop())
			Expect(err).To(MatchError("upstream URL is required"))
		})

		It("requires a logger", func() {
			_, err := New(Config{UpstreamURL: "http://localhost:1"}, nil, nil)
			Expect(err).To(MatchError("logger is required"))
		})
	})

	Context("when upstream streams server-sent events", func() {
		BeforeEach(func() {
			startUpstream(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				w.Header().Set("X-Request-Id", "req_9")
				flusher, ok := w.(http.Flusher)
				Expect(ok).To(BeTrue())
				for _, ev := range sseEvents {
					fmt.Fprint(w, ev)
					flusher.Flush()
				}
			})
		})

		It("relays the stream byte for byte", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/chat?stream=1", strings.NewReader(`{"prompt":"hi"}`))
			resp, body := do(req)

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/event-stream"))
			Expect(resp.Header.Get("X-Request-Id")).To(Equal("req_9"))
			Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))
			Expect(body).To(Equal(strings.Join(sseEvents, "")))
		})

		It("forwards method, path, query and body upstream", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/chat?stream=1", strings.NewReader(`{"prompt":"hi"}`))
			req.Header.Set("Authorization", "Bearer k")
			req.Header.Set(header.ClientHeader, "notebook")
			do(req)

			var got upstreamRequest
			Eventually(seen).Should(Receive(&got))
			Expect(got.method).To(Equal(http.MethodPost))
			Expect(got.uri).To(Equal("/v1/chat?stream=1"))
			Expect(got.body).To(Equal(`{"prompt":"hi"}`))
			Expect(got.header.Get("Authorization")).To(Equal("Bearer k"))
			Expect(got.header.Get(header.ClientHeader)).To(BeEmpty())
		})

		It("enqueues the assembled message", func() {
			req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{}`))
			req.Header.Set(header.ClientHeader, "notebook")
			do(req)

			Eventually(enqueuer.Results).Should(HaveLen(1))
			res := enqueuer.Results()[0]
			Expect(res.ParseErrors).To(BeEmpty())
			Expect(res.Messages).To(HaveLen(1))

			msg := res.Messages[0]
			Expect(msg.ID).To(Equal("msg_1"))
			Expect(msg.Model).To(Equal("m-1"))
			Expect(msg.Complete).To(BeTrue())
			Expect(msg.StopReason).To(Equal("end_turn"))
			Expect(msg.GetText()).To(Equal("Hello world"))

			Expect(enqueuer.Sources()).To(ConsistOf(eventstream.EventSource{
				Origin:   eventstream.OriginProxy,
				Path:     "/v1/chat",
				Upstream: upstream.URL,
				Client:   "notebook",
			}))
		})
	})

	Context("when upstream answers with JSON", func() {
		BeforeEach(func() {
			startUpstream(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				fmt.Fprint(w, `{"ok":true}`)
			})
		})

		It("passes the response through without assembling it", func() {
			resp, body := do(httptest.NewRequest(http.MethodGet, "/v1/models", nil))
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(body).To(Equal(`{"ok":true}`))

			var got upstreamRequest
			Eventually(seen).Should(Receive(&got))
			Expect(got.method).To(Equal(http.MethodGet))
			Consistently(enqueuer.Results).Should(BeEmpty())
		})
	})

	Context("when upstream fails", func() {
		It("relays error bodies even for event streams", func() {
			startUpstream(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, "event: stream_error\n")
			})

			resp, body := do(httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{}")))
			Expect(resp.StatusCode).To(Equal(http.StatusTooManyRequests))
			Expect(body).To(Equal("event: stream_error\n"))
			Expect(enqueuer.Results()).To(BeEmpty())
		})

		It("returns 502 when upstream is unreachable", func() {
			dead := httptest.NewServer(http.NotFoundHandler())
			dead.Close()

			var err error
			p, err = New(Config{UpstreamURL: dead.URL}, nil, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			resp, body := do(httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{}")))
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
			Expect(body).To(ContainSubstring("upstream request failed"))
		})
	})

	It("keeps partial messages when the stream breaks off", func() {
		startUpstream(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, sseEvents[0]+sseEvents[1])
		})

		do(httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{}")))

		Eventually(enqueuer.Results).Should(HaveLen(1))
		msg := enqueuer.Results()[0].Messages[0]
		Expect(msg.Complete).To(BeFalse())
		Expect(msg.Content).To(ConsistOf(HaveField("Text", "Hello")))
		Expect(msg.Content[0].Status).To(Equal(llm.StatusPending))
	})

	It("relays the whole body past a line longer than the limit", func() {
		long := "event: content_block_delta\ndata: " + strings.Repeat("x", 256) + "\n\n"
		stream := sseEvents[0] + sseEvents[1] + long + sseEvents[4] + sseEvents[5]
		startUpstream(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, stream)
		})

		var err error
		p, err = New(Config{UpstreamURL: upstream.URL + "/", MaxLineBytes: 128}, enqueuer, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(p.Close)

		resp, body := do(httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader("{}")))
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(body).To(Equal(stream))

		Eventually(enqueuer.Results).Should(HaveLen(1))
		msg := enqueuer.Results()[0].Messages[0]
		Expect(msg.Complete).To(BeFalse())
		Expect(msg.Content).To(ConsistOf(HaveField("Text", "Hello")))
	})
})
