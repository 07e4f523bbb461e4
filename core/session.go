package core

import (
	"errors"
	"io"
	"net"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/searchktools/static-server/core/http"
)

// Session serves one accepted connection. It runs the keep-alive loop
//
//	AWAITING_REQUEST -> HANDLING -> AWAITING_REQUEST | CLOSING
//
// and is owned by a single goroutine from attach until Reset.
type Session struct {
	engine *Engine

	conn     net.Conn
	peer     string
	clientIP string
	writer   *http.ResponseWriter

	buf      []byte
	received int

	state     int
	requests  int
	keepAlive bool
}

func newSession(e *Engine) *Session {
	return &Session{
		engine: e,
		writer: http.NewResponseWriter(nil, e.cfg.IdleTimeout, e.cfg.MaxRequests),
	}
}

func (s *Session) attach(conn net.Conn) {
	s.conn = conn
	s.peer = conn.RemoteAddr().String()
	s.clientIP = s.peer
	if host, _, err := net.SplitHostPort(s.peer); err == nil {
		s.clientIP = host
	}
	s.writer.Reset(conn)
	s.buf = s.engine.bytePool.Get()
	s.received = 0
	s.state = StateAwaitingRequest
	s.requests = 0
	s.keepAlive = true
}

// Reset implements pools.Poolable
func (s *Session) Reset() {
	if s.buf != nil {
		s.engine.bytePool.Put(s.buf)
		s.buf = nil
	}
	s.conn = nil
	s.peer = ""
	s.clientIP = ""
	s.writer.Reset(nil)
	s.received = 0
	s.state = StateAwaitingRequest
	s.requests = 0
	s.keepAlive = false
}

// Run drives the session until it closes. The socket is always closed on
// return.
func (s *Session) Run() {
	for s.state != StateClosing {
		switch s.state {
		case StateAwaitingRequest:
			s.state = s.await()
		case StateHandling:
			s.state = s.handle(s.buf[:s.received])
		}
	}
	s.close()
}

// await reads one request's header block. Reads continue until the blank
// line that ends the headers arrives or the buffer is full; the idle
// deadline is pushed forward before each read. Whatever follows the header
// block in the buffer is dropped with it.
func (s *Session) await() int {
	log := s.engine.logger
	idle := s.engine.cfg.IdleTimeout

	s.received = 0
	for {
		if err := s.conn.SetReadDeadline(time.Now().Add(idle)); err != nil {
			log.Warnf("Set deadline for %s: %v", s.peer, err)
			return StateClosing
		}

		n, err := s.conn.Read(s.buf[s.received:])
		s.received += n

		if s.received > 0 && (http.HeaderComplete(s.buf[:s.received]) || s.received == len(s.buf)) {
			return StateHandling
		}

		if err == nil {
			continue
		}

		var netErr net.Error
		switch {
		case errors.Is(err, io.EOF):
			if s.received > 0 {
				// peer half-closed after an unterminated request
				return StateHandling
			}
			log.Infof("Client %s closed the connection", s.peer)
		case errors.As(err, &netErr) && netErr.Timeout():
			s.engine.monitor.IdleTimeout()
			log.Infof("Client %s idle for %v, closing", s.peer, idle)
		default:
			log.Warnf("Receive from %s failed: %v", s.peer, err)
		}
		return StateClosing
	}
}

// handle parses and answers one request, then decides whether the
// connection stays open.
func (s *Session) handle(data []byte) int {
	e := s.engine

	req, err := http.ParseRequest(data)
	defer http.ReleaseRequest(req)

	if err != nil {
		e.monitor.BadRequest()
		e.logger.Warnf("Bad request from %s: %v", s.peer, err)
		s.keepAlive = false

		n, werr := s.writer.WriteError(http.StatusBadRequest, false)
		e.monitor.RecordBytes(n)
		e.logger.Access(s.clientIP, "-", "-", http.StatusBadRequest, n)
		if werr != nil {
			e.monitor.WriteError()
			e.logger.Warnf("Send to %s failed: %v", s.peer, werr)
		}
		return StateClosing
	}

	s.requests++
	e.logger.Infof("Request: %s %s", req.Method, req.Path)

	resp := e.router.Serve(req)
	s.keepAlive = s.keepAlive && !resp.Close && s.allowsKeepAlive(req)
	resp.KeepAlive = s.keepAlive

	n, err := s.writer.Write(resp)
	e.monitor.RecordBytes(n)
	e.logger.Access(s.clientIP, req.Method, req.Path, resp.Status, n)

	if err != nil {
		e.monitor.WriteError()
		e.logger.Warnf("Send to %s failed: %v", s.peer, err)
		return StateClosing
	}
	if !s.keepAlive {
		return StateClosing
	}
	return StateAwaitingRequest
}

// allowsKeepAlive applies the per-request close conditions
func (s *Session) allowsKeepAlive(req *http.Request) bool {
	if req.Method != "GET" {
		return false
	}
	if s.requests >= s.engine.cfg.MaxRequests {
		return false
	}
	if httpguts.HeaderValuesContainsToken([]string{req.Connection}, "close") {
		return false
	}
	return true
}

func (s *Session) close() {
	s.state = StateClosing
	if err := s.conn.Close(); err != nil {
		s.engine.logger.Debugf("Close %s: %v", s.peer, err)
	}
	s.engine.monitor.ConnectionClosed()
	s.engine.logger.Infof("Client disconnected: %s (%d requests)", s.peer, s.requests)
}
