// Package header provides header filtering for the chatstream proxy.
//
// The proxy sits between a client and an upstream chat service:
//
//	Client <--> Proxy <--> Upstream chat service
//
// and each leg negotiates compression, hops and encoding independently.
package header

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ClientHeader is the optional header a caller uses to tag its requests.
// The tag travels with every published message and is not forwarded.
const ClientHeader = "X-Chatstream-Client"

// hopByHop headers only describe a single transport-level connection.
var hopByHop = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// skipRequest is the set of request headers (client --> proxy --> upstream)
// that are not forwarded upstream.
var skipRequest = with(hopByHop,
	// http.Transport rewrites Host to match the upstream URL.
	"Host",
	// Dropped so http.Transport negotiates gzip itself and decompresses.
	"Accept-Encoding",
	// Set by the transport from the actual body.
	"Content-Length",
	ClientHeader,
)

// skipResponse is the set of upstream response headers (client <-- proxy <-- upstream)
// that are not copied back to the client.
var skipResponse = with(hopByHop,
	// The body read from http.Transport is already decompressed.
	"Content-Encoding",
	// fasthttp computes the length or switches to chunked encoding.
	"Content-Length",
)

func with(base []string, extra ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(base)+len(extra))
	for _, k := range slices.Concat(base, extra) {
		set[http.CanonicalHeaderKey(k)] = struct{}{}
	}
	return set
}

// Handler manages headers between proxy connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// SetUpstreamRequestHeaders copies request headers from the fiber context to
// the outgoing http.Request, dropping the ones the upstream must not see.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, skip := skipRequest[k]; !skip {
			req.Header.Add(k, string(value))
		}
	})
}

// SetClientResponseHeaders copies upstream response headers to the fiber
// context, dropping the ones that do not survive the proxy hop.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[http.CanonicalHeaderKey(k)]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}

// SetStreamingHeaders marks a relayed event stream as uncacheable and asks
// intermediaries not to buffer it.
func (h *Handler) SetStreamingHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Accel-Buffering", "no")
}

// Client returns the trimmed caller tag, empty when absent.
func (h *Handler) Client(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get(ClientHeader))
}

// IsEventStream reports whether an upstream response carries server-sent events.
func IsEventStream(resp *http.Response) bool {
	return strings.HasPrefix(strings.ToLower(resp.Header.Get("Content-Type")), "text/event-stream")
}
