package http

import "sync"

// Field limits. Longer values are truncated, not rejected.
const (
	MaxMethodLen      = 16
	MaxPathLen        = 256
	MaxProtoLen       = 16
	MaxHeaderValueLen = 256
)

// Request is a parsed HTTP/1.1 request.
// When Valid is false none of the other fields can be trusted.
type Request struct {
	Method string
	Path   string
	Proto  string

	// Recognized headers, empty when absent
	UserAgent   string
	Host        string
	ContentType string
	Connection  string

	// ContentLength is 0 when the header is absent or not numeric
	ContentLength int

	Valid bool
}

var requestPool = sync.Pool{
	New: func() any {
		return &Request{}
	},
}

// AcquireRequest returns an empty request from the pool.
func AcquireRequest() *Request {
	return requestPool.Get().(*Request)
}

// Reset clears every field so the request can be reused.
func (r *Request) Reset() {
	*r = Request{}
}

// ReleaseRequest resets req and puts it back in the pool.
func ReleaseRequest(req *Request) {
	if req == nil {
		return
	}
	req.Reset()
	requestPool.Put(req)
}

// Header gets a recognized request header by its canonical name
func (r *Request) Header(key string) string {
	switch key {
	case HeaderUserAgent:
		return r.UserAgent
	case HeaderHost:
		return r.Host
	case HeaderContentType:
		return r.ContentType
	case HeaderConnection:
		return r.Connection
	default:
		return ""
	}
}

// Recognized header names
const (
	HeaderUserAgent     = "User-Agent"
	HeaderHost          = "Host"
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"
	HeaderConnection    = "Connection"
	HeaderKeepAlive     = "Keep-Alive"
)
