package http

import (
	"bytes"
	"errors"
	"math"
)

var (
	ErrInvalidRequest = errors.New("invalid HTTP request")
)

var (
	crlf = []byte("\r\n")

	userAgentKey     = []byte(HeaderUserAgent + ": ")
	hostKey          = []byte(HeaderHost + ": ")
	contentTypeKey   = []byte(HeaderContentType + ": ")
	contentLengthKey = []byte(HeaderContentLength + ": ")
	connectionKey    = []byte(HeaderConnection + ": ")
)

// ParseRequest parses one request from a single receive buffer.
//
// The returned request is never nil. On a malformed request line it carries
// Valid=false together with ErrInvalidRequest. Bytes following the first
// request (a pipelined second request) are not looked at.
//
// Headers are found by searching the whole buffer for "<Name>: " rather than
// walking header lines, so a recognized name that appears inside another
// header's value or inside the body can be picked up instead. Callers must not
// rely on header attribution being exact.
func ParseRequest(data []byte) (*Request, error) {
	req := AcquireRequest()

	line := data
	if lineEnd := bytes.IndexByte(data, '\n'); lineEnd != -1 {
		line = data[:lineEnd]
	}

	// METHOD PATH PROTO, any whitespace between them
	fields := bytes.Fields(line)
	if len(fields) != 3 {
		return req, ErrInvalidRequest
	}

	req.Method = string(truncate(fields[0], MaxMethodLen))
	req.Path = string(truncate(fields[1], MaxPathLen))
	req.Proto = string(truncate(fields[2], MaxProtoLen))

	req.UserAgent, _ = headerValue(data, userAgentKey)
	req.Host, _ = headerValue(data, hostKey)
	req.ContentType, _ = headerValue(data, contentTypeKey)
	req.Connection, _ = headerValue(data, connectionKey)

	if v, ok := headerValue(data, contentLengthKey); ok {
		req.ContentLength = parseContentLength([]byte(v))
	}

	req.Valid = true
	return req, nil
}

// headerValue returns everything between key and the next CRLF.
// A key with no CRLF after it counts as absent.
func headerValue(data, key []byte) (string, bool) {
	start := bytes.Index(data, key)
	if start == -1 {
		return "", false
	}

	rest := data[start+len(key):]
	end := bytes.Index(rest, crlf)
	if end == -1 {
		return "", false
	}

	return string(truncate(rest[:end], MaxHeaderValueLen)), true
}

// parseContentLength reads the leading decimal digits of b.
// Text that does not start with a number yields 0, and so does a negative one.
func parseContentLength(b []byte) int {
	b = bytes.TrimLeft(b, " \t")

	negative := false
	if len(b) > 0 && (b[0] == '+' || b[0] == '-') {
		negative = b[0] == '-'
		b = b[1:]
	}

	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			break
		}
		if n > (math.MaxInt32-int(c-'0'))/10 {
			n = math.MaxInt32
			break
		}
		n = n*10 + int(c-'0')
	}

	if negative {
		return 0
	}
	return n
}

func truncate(b []byte, max int) []byte {
	if len(b) > max {
		return b[:max]
	}
	return b
}

// HeaderComplete reports whether data holds the blank line that ends a
// request header block.
func HeaderComplete(data []byte) bool {
	return bytes.Contains(data, []byte("\r\n\r\n")) || bytes.Contains(data, []byte("\n\n"))
}
