package http

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/searchktools/static-server/core/pools"
)

var (
	ErrWriteFailed = errors.New("response write failed")
)

// Response describes one response before it is written.
type Response struct {
	Status      int
	ContentType string

	// Body is only sent when HasBody is set, so an empty body can still
	// carry a Content-Type.
	Body    []byte
	HasBody bool

	// KeepAlive is decided by the session right before writing.
	KeepAlive bool

	// Close is set by handlers that end the connection whatever the
	// session would decide.
	Close bool

	// Route names the handler that produced the response, for logs and
	// metrics.
	Route string
}

// Empty returns a 200 response without a body.
func Empty() *Response {
	return &Response{Status: StatusOK}
}

// Text returns a 200 text/plain response.
func Text(body string) *Response {
	return &Response{
		Status:      StatusOK,
		ContentType: "text/plain",
		Body:        []byte(body),
		HasBody:     true,
	}
}

// Data returns a 200 response with the given content type.
func Data(contentType string, body []byte) *Response {
	return &Response{
		Status:      StatusOK,
		ContentType: contentType,
		Body:        body,
		HasBody:     true,
	}
}

// Error returns a bodiless error response. When close is set the
// connection ends after it.
func Error(code int, close bool) *Response {
	return &Response{Status: NormalizeStatus(code), Close: close}
}

// ResponseWriter serializes responses onto a connection.
type ResponseWriter struct {
	w           io.Writer
	idleTimeout time.Duration
	maxRequests int
}

// NewResponseWriter creates a writer. idleTimeout and maxRequests are only
// advertised in the Keep-Alive header.
func NewResponseWriter(w io.Writer, idleTimeout time.Duration, maxRequests int) *ResponseWriter {
	return &ResponseWriter{
		w:           w,
		idleTimeout: idleTimeout,
		maxRequests: maxRequests,
	}
}

// Reset points the writer at a new connection.
func (rw *ResponseWriter) Reset(w io.Writer) {
	rw.w = w
}

// Write sends resp and returns the number of bytes put on the wire.
func (rw *ResponseWriter) Write(resp *Response) (int, error) {
	if resp.Status != StatusOK {
		return rw.WriteError(resp.Status, resp.KeepAlive)
	}
	if !resp.HasBody {
		return rw.WriteSuccess(nil, "", resp.KeepAlive)
	}
	body := resp.Body
	if body == nil {
		body = []byte{}
	}
	return rw.WriteSuccess(body, resp.ContentType, resp.KeepAlive)
}

// WriteError sends a zero-length error response. Codes outside the status
// table are sent as 500.
func (rw *ResponseWriter) WriteError(code int, keepAlive bool) (int, error) {
	code = NormalizeStatus(code)

	bufp := pools.AcquireBuffer(128)
	defer pools.ReleaseBuffer(bufp)

	buf := appendStatusLine(*bufp, code)
	buf = append(buf, "Content-Length: 0\r\n"...)
	buf = appendConnection(buf, keepAlive)
	buf = append(buf, "\r\n"...)
	*bufp = buf

	n, err := rw.w.Write(buf)
	if err != nil {
		return n, fmt.Errorf("%w: %d header: %v", ErrWriteFailed, code, err)
	}
	return n, nil
}

// WriteSuccess sends a 200 response. A nil body means no body at all and
// produces a bare Content-Length: 0. A non-nil body, even empty, gets a
// Content-Type and, on kept-alive connections, a Keep-Alive hint.
func (rw *ResponseWriter) WriteSuccess(body []byte, contentType string, keepAlive bool) (int, error) {
	bufp := pools.AcquireBuffer(256)
	defer pools.ReleaseBuffer(bufp)

	buf := appendStatusLine(*bufp, StatusOK)
	if body == nil {
		buf = append(buf, "Content-Length: 0\r\n"...)
		buf = appendConnection(buf, keepAlive)
	} else {
		if contentType == "" {
			contentType = DefaultContentType
		}
		buf = append(buf, HeaderContentType+": "...)
		buf = append(buf, contentType...)
		buf = append(buf, "\r\n"+HeaderContentLength+": "...)
		buf = strconv.AppendInt(buf, int64(len(body)), 10)
		buf = append(buf, "\r\n"...)
		buf = appendConnection(buf, keepAlive)
		if keepAlive {
			buf = append(buf, HeaderKeepAlive+": timeout="...)
			buf = strconv.AppendInt(buf, int64(rw.idleSeconds()), 10)
			buf = append(buf, ", max="...)
			buf = strconv.AppendInt(buf, int64(rw.maxRequests), 10)
			buf = append(buf, "\r\n"...)
		}
	}
	buf = append(buf, "\r\n"...)
	*bufp = buf

	sent, err := rw.w.Write(buf)
	if err != nil {
		return sent, fmt.Errorf("%w: header: %v", ErrWriteFailed, err)
	}

	if len(body) > 0 {
		n, err := rw.w.Write(body)
		sent += n
		if err != nil {
			return sent, fmt.Errorf("%w: body: %v", ErrWriteFailed, err)
		}
	}

	return sent, nil
}

func (rw *ResponseWriter) idleSeconds() int {
	return int(math.Ceil(rw.idleTimeout.Seconds()))
}

func appendStatusLine(buf []byte, code int) []byte {
	buf = append(buf, "HTTP/1.1 "...)
	buf = strconv.AppendInt(buf, int64(code), 10)
	buf = append(buf, ' ')
	buf = append(buf, StatusText(code)...)
	return append(buf, "\r\n"...)
}

func appendConnection(buf []byte, keepAlive bool) []byte {
	if keepAlive {
		return append(buf, HeaderConnection+": keep-alive\r\n"...)
	}
	return append(buf, HeaderConnection+": close\r\n"...)
}
