package app

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/searchktools/static-server/config"
	"github.com/searchktools/static-server/core/observability"
)

func serveInBackground(t *testing.T, a *App) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for a.Engine().Addr() == nil {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("app did not start")
		}
		time.Sleep(time.Millisecond)
	}
	return cancel, done
}

func echo(t *testing.T, a *App, text string) {
	t.Helper()

	port := a.Engine().Addr().(*net.TCPAddr).Port
	conn, err := net.Dial("tcp", "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	io.WriteString(conn, "GET /echo/"+text+" HTTP/1.1\r\nConnection: close\r\n\r\n")
	if _, err := io.ReadAll(conn); err != nil {
		t.Fatalf("read: %v", err)
	}
}

func TestServeWritesJSONStats(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 0
	cfg.IdleTimeout = 200 * time.Millisecond
	cfg.StatsFile = filepath.Join(t.TempDir(), "stats.json")

	a := NewWithLogger(cfg, observability.Discard())
	cancel, done := serveInBackground(t, a)

	echo(t, a, "one")
	echo(t, a, "two")

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve error: %v", err)
	}

	data, err := os.ReadFile(cfg.StatsFile)
	if err != nil {
		t.Fatalf("read stats: %v", err)
	}
	var snap map[string]any
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if snap["requests"] != float64(2) {
		t.Errorf("Expected 2 requests, got %v", snap["requests"])
	}
	conns, _ := snap["connections"].(map[string]any)
	if conns["opened"] != float64(2) {
		t.Errorf("Expected 2 connections, got %v", conns["opened"])
	}
}

func TestServeWritesProtobufStats(t *testing.T) {
	cfg := config.Default()
	cfg.Port = 0
	cfg.IdleTimeout = 200 * time.Millisecond
	cfg.StatsFile = filepath.Join(t.TempDir(), "stats.pb")

	a := NewWithLogger(cfg, observability.Discard())
	cancel, done := serveInBackground(t, a)

	echo(t, a, "pb")

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve error: %v", err)
	}

	data, err := os.ReadFile(cfg.StatsFile)
	if err != nil {
		t.Fatalf("read stats: %v", err)
	}
	s := &structpb.Struct{}
	if err := proto.Unmarshal(data, s); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if got := s.Fields["requests"].GetNumberValue(); got != 1 {
		t.Errorf("Expected 1 request, got %v", got)
	}
}

func TestServeBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	cfg := config.Default()
	cfg.Port = ln.Addr().(*net.TCPAddr).Port

	a := NewWithLogger(cfg, observability.Discard())
	if err := a.Serve(context.Background()); err == nil {
		t.Error("Expected an error when the port is taken")
	}
}

func TestNewRejectsBadLogLevel(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "chatty"

	if _, err := New(cfg); err == nil {
		t.Error("Expected error for unknown log level")
	}
}

func TestNewOpensLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.LogFile = filepath.Join(t.TempDir(), "server.log")

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	a.logger.Infof("hello")
	a.logger.Close()

	data, err := os.ReadFile(cfg.LogFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(data) == 0 {
		t.Error("Expected log file to have content")
	}
}

func TestWriteStatsUnencodable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pb")
	if err := WriteStats(path, map[string]any{"ch": make(chan int)}); err == nil {
		t.Error("Expected encode error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected no file after a failed encode")
	}
}
