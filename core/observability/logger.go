package observability

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a log severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "LEVEL(" + fmt.Sprint(int(l)) + ")"
	}
}

// ParseLevel parses a level name, case-insensitively
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

const timeLayout = "2006/01/02 15:04:05.000000"

// Logger is the process-wide line logger. Timestamp formatting and the
// write happen under one lock, so lines from concurrent connections never
// interleave.
type Logger struct {
	mu    sync.Mutex
	out   io.Writer
	min   Level
	now   func() time.Time
	buf   []byte
	close func() error
}

// NewLogger writes lines at or above min to out
func NewLogger(out io.Writer, min Level) *Logger {
	return &Logger{
		out: out,
		min: min,
		now: time.Now,
	}
}

// OpenLogger logs to stderr and, when path is not empty, appends to the
// file at path as well.
func OpenLogger(path string, min Level) (*Logger, error) {
	if path == "" {
		return NewLogger(os.Stderr, min), nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := NewLogger(io.MultiWriter(os.Stderr, f), min)
	l.close = f.Close
	return l, nil
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return NewLogger(io.Discard, LevelError+1)
}

// Close releases the log file, if any
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.close == nil {
		return nil
	}
	err := l.close()
	l.close = nil
	return err
}

// Enabled reports whether lines at level are written
func (l *Logger) Enabled(level Level) bool {
	return level >= l.min
}

// Log writes one line at level
func (l *Logger) Log(level Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	l.write("["+level.String()+"] ", fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...any) { l.Log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.Log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.Log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.Log(LevelError, format, args...) }

// Access writes one access line. Access lines are written at info level.
func (l *Logger) Access(clientIP, method, path string, status, bytesSent int) {
	if !l.Enabled(LevelInfo) {
		return
	}
	l.write("[ACCESS] ", fmt.Sprintf("%s \"%s %s\" %d %d", clientIP, method, path, status, bytesSent))
}

func (l *Logger) write(tag, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf = l.buf[:0]
	l.buf = l.now().AppendFormat(l.buf, timeLayout)
	l.buf = append(l.buf, ' ')
	l.buf = append(l.buf, tag...)
	l.buf = append(l.buf, msg...)
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		l.buf = append(l.buf, '\n')
	}
	l.out.Write(l.buf)
}
