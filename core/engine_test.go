package core

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/searchktools/static-server/config"
	"github.com/searchktools/static-server/core/router"
)

// startEngine serves cfg on a loopback port until the test ends
func startEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()

	e := NewEngine(cfg)
	ln, err := e.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(ctx)
		<-done
	})

	deadline := time.Now().Add(2 * time.Second)
	for e.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("engine did not start")
		}
		time.Sleep(time.Millisecond)
	}
	return e
}

func testConfig(serving config.Serving) *config.Config {
	cfg := config.Default()
	cfg.Serving = serving
	return cfg
}

type client struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, e *Engine) *client {
	t.Helper()

	conn, err := net.Dial("tcp", e.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return &client{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *client) send(raw string) {
	c.t.Helper()
	if _, err := io.WriteString(c.conn, raw); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *client) get(path string, headers ...string) {
	c.send("GET " + path + " HTTP/1.1\r\nHost: localhost\r\n" + strings.Join(headers, "") + "\r\n")
}

type response struct {
	raw     string
	status  int
	headers map[string]string
	body    string
}

// read reads one response: the header block, then Content-Length bytes
func (c *client) read() response {
	c.t.Helper()

	var head strings.Builder
	for {
		line, err := c.r.ReadString('\n')
		head.WriteString(line)
		if err != nil {
			c.t.Fatalf("read header: %v (got %q)", err, head.String())
		}
		if line == "\r\n" {
			break
		}
	}

	resp := response{headers: make(map[string]string)}
	lines := strings.Split(strings.TrimSuffix(head.String(), "\r\n\r\n"), "\r\n")
	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) < 2 {
		c.t.Fatalf("bad status line %q", lines[0])
	}
	resp.status, _ = strconv.Atoi(parts[1])
	for _, l := range lines[1:] {
		if k, v, ok := strings.Cut(l, ": "); ok {
			resp.headers[k] = v
		}
	}

	n, _ := strconv.Atoi(resp.headers["Content-Length"])
	body := make([]byte, n)
	if _, err := io.ReadFull(c.r, body); err != nil {
		c.t.Fatalf("read body: %v", err)
	}
	resp.body = string(body)
	resp.raw = head.String() + resp.body
	return resp
}

// expectClosed asserts the server closes without sending anything more
func (c *client) expectClosed() {
	c.t.Helper()

	b, err := c.r.ReadByte()
	if err == nil {
		c.t.Fatalf("Expected connection to be closed, read %q", b)
	}
	if !errors.Is(err, io.EOF) {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			c.t.Fatal("Expected connection to be closed, still open")
		}
	}
}

func TestRootWithoutServing(t *testing.T) {
	e := startEngine(t, testConfig(config.NoServing()))
	c := dial(t, e)

	c.send("GET / HTTP/1.1\r\n\r\n")
	all, err := io.ReadAll(c.r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	want := "HTTP/1.1 200 OK\r\nContent-Length: 0\r\nConnection: close\r\n\r\n"
	if string(all) != want {
		t.Errorf("Expected %q, got %q", want, all)
	}
}

func TestEchoKeepAlive(t *testing.T) {
	e := startEngine(t, testConfig(config.NoServing()))
	c := dial(t, e)

	c.get("/echo/abc")
	resp := c.read()

	want := "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Length: 3\r\n" +
		"Connection: keep-alive\r\n" +
		"Keep-Alive: timeout=5, max=100\r\n" +
		"\r\n" +
		"abc"
	if resp.raw != want {
		t.Errorf("Expected %q, got %q", want, resp.raw)
	}

	// same connection, second request
	c.get("/echo/")
	resp = c.read()
	if resp.status != 200 || resp.body != "" {
		t.Errorf("Expected empty 200 echo, got %d %q", resp.status, resp.body)
	}
	if resp.headers["Content-Length"] != "0" {
		t.Errorf("Expected Content-Length 0, got %s", resp.headers["Content-Length"])
	}
}

func TestEchoIdempotent(t *testing.T) {
	e := startEngine(t, testConfig(config.NoServing()))
	c := dial(t, e)

	var first string
	for i := 0; i < 3; i++ {
		c.get("/echo/same/path")
		resp := c.read()
		if i == 0 {
			first = resp.raw
			continue
		}
		if resp.raw != first {
			t.Errorf("Expected identical responses, got %q and %q", first, resp.raw)
		}
	}
}

func TestUserAgent(t *testing.T) {
	e := startEngine(t, testConfig(config.NoServing()))
	c := dial(t, e)

	c.get("/user-agent", "User-Agent: foobar/1.2.3\r\n")
	resp := c.read()
	if resp.status != 200 {
		t.Fatalf("Expected 200, got %d", resp.status)
	}
	if resp.body != "foobar/1.2.3" {
		t.Errorf("Expected body foobar/1.2.3, got %q", resp.body)
	}
	if resp.headers["Content-Type"] != "text/plain" {
		t.Errorf("Expected text/plain, got %s", resp.headers["Content-Type"])
	}

	c.get("/user-agent")
	resp = c.read()
	if resp.status != 200 || resp.body != "" {
		t.Errorf("Expected empty 200 without User-Agent, got %d %q", resp.status, resp.body)
	}
}

func TestNotFoundKeepsConnection(t *testing.T) {
	e := startEngine(t, testConfig(config.NoServing()))
	c := dial(t, e)

	c.get("/missing")
	resp := c.read()
	want := "HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\nConnection: keep-alive\r\n\r\n"
	if resp.raw != want {
		t.Errorf("Expected %q, got %q", want, resp.raw)
	}

	c.get("/echo/still-here")
	if resp = c.read(); resp.body != "still-here" {
		t.Errorf("Expected connection to stay usable, got %q", resp.body)
	}
}

func newSiteDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"index.html":     "<h1>home</h1>",
		"style.css":      "body{}",
		"empty.txt":      "",
		"sub/page.html":  "<p>sub</p>",
		"data/blob.bin":  "\x00\x01\x02",
		"docs/notes.txt": "notes",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestDirectoryServing(t *testing.T) {
	dir := newSiteDir(t)
	e := startEngine(t, testConfig(config.DirectoryServing(dir)))
	c := dial(t, e)

	tests := []struct {
		path        string
		status      int
		contentType string
		body        string
	}{
		{"/", 200, "text/html", "<h1>home</h1>"},
		{"/index.html", 200, "text/html", "<h1>home</h1>"},
		{"/style.css", 200, "text/css", "body{}"},
		{"/sub/page.html", 200, "text/html", "<p>sub</p>"},
		{"/data/blob.bin", 200, "application/octet-stream", "\x00\x01\x02"},
		{"/empty.txt", 200, "text/plain", ""},
		{"/nope.html", 404, "", ""},
		{"/sub", 404, "", ""},
	}

	for _, tt := range tests {
		c.get(tt.path)
		resp := c.read()
		if resp.status != tt.status {
			t.Errorf("%s: expected status %d, got %d", tt.path, tt.status, resp.status)
			continue
		}
		if resp.headers["Content-Type"] != tt.contentType {
			t.Errorf("%s: expected content type %q, got %q", tt.path, tt.contentType, resp.headers["Content-Type"])
		}
		if resp.body != tt.body {
			t.Errorf("%s: expected body %q, got %q", tt.path, tt.body, resp.body)
		}
		if resp.headers["Connection"] != "keep-alive" {
			t.Errorf("%s: expected keep-alive, got %s", tt.path, resp.headers["Connection"])
		}
	}
}

func TestDirectoryTraversalForbidden(t *testing.T) {
	dir := newSiteDir(t)
	e := startEngine(t, testConfig(config.DirectoryServing(filepath.Join(dir, "sub"))))
	c := dial(t, e)

	c.get("/../index.html")
	resp := c.read()
	want := "HTTP/1.1 403 Forbidden\r\nContent-Length: 0\r\nConnection: close\r\n\r\n"
	if resp.raw != want {
		t.Errorf("Expected %q, got %q", want, resp.raw)
	}
	c.expectClosed()
}

func TestFileServing(t *testing.T) {
	dir := newSiteDir(t)
	e := startEngine(t, testConfig(config.FileServing(filepath.Join(dir, "style.css"))))
	c := dial(t, e)

	c.get("/style.css")
	resp := c.read()
	if resp.status != 200 || resp.body != "body{}" {
		t.Errorf("Expected the file, got %d %q", resp.status, resp.body)
	}
	if resp.headers["Content-Type"] != "text/css" {
		t.Errorf("Expected text/css, got %s", resp.headers["Content-Type"])
	}

	c.get("/index.html")
	if resp = c.read(); resp.status != 404 {
		t.Errorf("Expected 404 for other paths, got %d", resp.status)
	}

	c.get("/")
	if resp = c.read(); resp.status != 404 {
		t.Errorf("Expected 404 for / in file mode, got %d", resp.status)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	e := startEngine(t, testConfig(config.NoServing()))
	c := dial(t, e)

	c.send("POST /echo/abc HTTP/1.1\r\nContent-Length: 0\r\n\r\n")
	resp := c.read()
	want := "HTTP/1.1 405 Method Not Allowed\r\nContent-Length: 0\r\nConnection: close\r\n\r\n"
	if resp.raw != want {
		t.Errorf("Expected %q, got %q", want, resp.raw)
	}
	c.expectClosed()
}

func TestBadRequest(t *testing.T) {
	e := startEngine(t, testConfig(config.NoServing()))
	c := dial(t, e)

	c.send("NONSENSE\r\n\r\n")
	resp := c.read()
	want := "HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\nConnection: close\r\n\r\n"
	if resp.raw != want {
		t.Errorf("Expected %q, got %q", want, resp.raw)
	}
	c.expectClosed()

	if got := e.Monitor().Snapshot().BadRequests; got != 1 {
		t.Errorf("Expected 1 bad request, got %d", got)
	}
}

func TestConnectionCloseHeader(t *testing.T) {
	e := startEngine(t, testConfig(config.NoServing()))
	c := dial(t, e)

	c.get("/echo/bye", "Connection: close\r\n")
	resp := c.read()
	if resp.headers["Connection"] != "close" {
		t.Errorf("Expected Connection: close, got %s", resp.headers["Connection"])
	}
	if _, ok := resp.headers["Keep-Alive"]; ok {
		t.Error("Expected no Keep-Alive header on a closing response")
	}
	if resp.body != "bye" {
		t.Errorf("Expected body bye, got %q", resp.body)
	}
	c.expectClosed()
}

func TestRequestCap(t *testing.T) {
	cfg := testConfig(config.NoServing())
	cfg.MaxRequests = 3
	e := startEngine(t, cfg)
	c := dial(t, e)

	for i := 1; i <= 3; i++ {
		c.get("/echo/" + strconv.Itoa(i))
		resp := c.read()
		if resp.body != strconv.Itoa(i) {
			t.Errorf("request %d: expected body %d, got %q", i, i, resp.body)
		}

		if i < 3 {
			if resp.headers["Connection"] != "keep-alive" {
				t.Errorf("request %d: expected keep-alive, got %s", i, resp.headers["Connection"])
			}
			if resp.headers["Keep-Alive"] != "timeout=5, max=3" {
				t.Errorf("request %d: expected Keep-Alive timeout=5, max=3, got %q", i, resp.headers["Keep-Alive"])
			}
			continue
		}
		if resp.headers["Connection"] != "close" {
			t.Errorf("request %d: expected close, got %s", i, resp.headers["Connection"])
		}
	}
	c.expectClosed()
}

func TestIdleTimeout(t *testing.T) {
	cfg := testConfig(config.NoServing())
	cfg.IdleTimeout = 100 * time.Millisecond
	e := startEngine(t, cfg)
	c := dial(t, e)

	start := time.Now()
	c.expectClosed()
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Expected close after about 100ms, took %v", elapsed)
	}

	// the counter is bumped before the socket is closed
	if got := e.Monitor().Snapshot().IdleTimeouts; got != 1 {
		t.Errorf("Expected 1 idle timeout, got %d", got)
	}
}

func TestIdleTimeoutAfterRequest(t *testing.T) {
	cfg := testConfig(config.NoServing())
	cfg.IdleTimeout = 100 * time.Millisecond
	e := startEngine(t, cfg)
	c := dial(t, e)

	c.get("/echo/x")
	resp := c.read()
	if resp.headers["Keep-Alive"] != "timeout=1, max=100" {
		t.Errorf("Expected rounded-up timeout, got %q", resp.headers["Keep-Alive"])
	}
	c.expectClosed()
}

func TestSplitRequest(t *testing.T) {
	e := startEngine(t, testConfig(config.NoServing()))
	c := dial(t, e)

	c.send("GET /echo/split HTTP/1.1\r\n")
	time.Sleep(20 * time.Millisecond)
	c.send("Host: localhost\r\n\r\n")

	if resp := c.read(); resp.body != "split" {
		t.Errorf("Expected body split, got %q", resp.body)
	}
}

func TestConcurrentClients(t *testing.T) {
	e := startEngine(t, testConfig(config.NoServing()))

	const clients = 8
	errs := make(chan error, clients)
	for i := 0; i < clients; i++ {
		go func(i int) {
			conn, err := net.Dial("tcp", e.Addr().String())
			if err != nil {
				errs <- err
				return
			}
			defer conn.Close()
			conn.SetDeadline(time.Now().Add(5 * time.Second))

			want := "client-" + strconv.Itoa(i)
			io.WriteString(conn, "GET /echo/"+want+" HTTP/1.1\r\nConnection: close\r\n\r\n")
			all, err := io.ReadAll(conn)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.HasSuffix(all, []byte("\r\n\r\n"+want)) {
				errs <- errors.New("unexpected response: " + string(all))
				return
			}
			errs <- nil
		}(i)
	}

	for i := 0; i < clients; i++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}

func TestRouteMetrics(t *testing.T) {
	e := startEngine(t, testConfig(config.NoServing()))
	c := dial(t, e)

	c.get("/echo/a")
	c.read()
	c.get("/echo/b")
	c.read()
	c.get("/missing")
	c.read()

	snap := e.Monitor().Snapshot()
	if snap.TotalRequests != 3 {
		t.Errorf("Expected 3 requests, got %d", snap.TotalRequests)
	}
	echo, ok := snap.Route(router.RouteEcho)
	if !ok || echo.Count != 2 {
		t.Errorf("Expected 2 echo requests, got %+v", echo)
	}
	notFound, ok := snap.Route(router.RouteNotFound)
	if !ok || notFound.Count != 1 || notFound.Errors != 0 {
		t.Errorf("Expected 1 not-found request and no server errors, got %+v", notFound)
	}

	m := e.Snapshot()
	if _, ok := m["sessions"].(map[string]any); !ok {
		t.Errorf("Expected sessions in snapshot, got %v", m["sessions"])
	}
	if _, ok := m["pools"].(map[string]any); !ok {
		t.Errorf("Expected pools in snapshot, got %v", m["pools"])
	}
}

func TestShutdown(t *testing.T) {
	e := NewEngine(testConfig(config.NoServing()))
	ln, err := e.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Serve(ln) }()

	for e.Addr() == nil {
		time.Sleep(time.Millisecond)
	}
	addr := e.Addr().String()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrServerClosed) {
			t.Errorf("Expected ErrServerClosed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}

	if conn, err := net.Dial("tcp", addr); err == nil {
		conn.Close()
		t.Error("Expected dial to fail after Shutdown")
	}

	if err := e.Serve(ln); !errors.Is(err, ErrServerClosed) {
		t.Errorf("Expected ErrServerClosed when serving after Shutdown, got %v", err)
	}
}

func TestShutdownWaitsForSessions(t *testing.T) {
	cfg := testConfig(config.NoServing())
	cfg.IdleTimeout = 200 * time.Millisecond
	e := startEngine(t, cfg)
	c := dial(t, e)

	c.get("/echo/x")
	c.read()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := e.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}
	if e.Stats().Sessions.Active != 0 {
		t.Errorf("Expected no active sessions, got %d", e.Stats().Sessions.Active)
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("Expected shutdown within the idle timeout, took %v", time.Since(start))
	}
	c.expectClosed()
}
