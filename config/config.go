package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Defaults
const (
	DefaultPort        = 4221
	DefaultIdleTimeout = 5 * time.Second
	DefaultMaxRequests = 100
	DefaultLogLevel    = "info"

	// EnvPrefix namespaces environment overrides, e.g. STATIC_SERVER_PORT
	EnvPrefix = "STATIC_SERVER"
)

var (
	ErrHelp          = flag.ErrHelp
	ErrModeConflict  = errors.New("-d and -f are mutually exclusive")
	ErrInvalidPort   = errors.New("port must be between 1 and 65535")
	ErrInvalidTarget = errors.New("invalid serving target")
	ErrInvalidLimit  = errors.New("invalid connection limit")
)

// Config holds all application configuration. It is built once at startup
// and never modified afterwards.
type Config struct {
	Serving     Serving
	Port        int
	LogFile     string
	LogLevel    string
	IdleTimeout time.Duration
	MaxRequests int
	StatsFile   string
	Env         string

	// ReusePort lets several processes listen on Port at once
	ReusePort bool
}

// Default returns the configuration used when nothing is specified
func Default() *Config {
	return &Config{
		Serving:     NoServing(),
		Port:        DefaultPort,
		LogLevel:    DefaultLogLevel,
		IdleTimeout: DefaultIdleTimeout,
		MaxRequests: DefaultMaxRequests,
		Env:         "development",
	}
}

// Addr is the listen address for Port on all interfaces
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// settings is the flat shape every source is merged into
type settings struct {
	Port        int           `config:"port"`
	Directory   string        `config:"directory"`
	File        string        `config:"file"`
	LogFile     string        `config:"log.file"`
	LogLevel    string        `config:"log.level"`
	IdleTimeout time.Duration `config:"idle.timeout"`
	MaxRequests int           `config:"max.requests"`
	StatsFile   string        `config:"stats.file"`
	Env         string        `config:"env"`
	ReusePort   bool          `config:"reuse.port"`
}

// flag name -> settings key
var flagKeys = map[string]string{
	"d":          "directory",
	"f":          "file",
	"p":          "port",
	"l":          "log.file",
	"log-level":  "log.level",
	"stats":      "stats.file",
	"reuse-port": "reuse.port",
}

// Load builds the configuration from command-line args (without the
// program name) and environ (shaped like os.Environ()). Later sources win:
// defaults, the JSON file named by -c, STATIC_SERVER_* variables, flags.
//
// Load returns ErrHelp after printing usage to output when -h is given.
func Load(args, environ []string, output io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("static-server", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: static-server [-d <directory> | -f <file>] [-p <port>] [-l <logfile>]\n\n")
		fs.PrintDefaults()
	}

	fs.String("d", "", "serve files from `directory`")
	fs.String("f", "", "serve only this `file`, as /<basename>")
	fs.Int("p", DefaultPort, "listen `port` (1-65535)")
	fs.String("l", "", "also append log lines to `logfile`")
	fs.String("log-level", DefaultLogLevel, "minimum log `level` (debug, info, warn, error)")
	fs.String("stats", "", "write a metrics snapshot to `file` on shutdown (.pb for protobuf, JSON otherwise)")
	fs.Bool("reuse-port", false, "set SO_REUSEPORT so several processes can share the port")
	configFile := fs.String("c", "", "load settings from JSON `file`")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	m := NewManager()
	if *configFile != "" {
		if err := m.LoadFromJSON(*configFile); err != nil {
			return nil, err
		}
	}
	m.LoadFromEnv(EnvPrefix, environ)
	fs.Visit(func(f *flag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			m.Set(key, f.Value.String())
		}
	})

	def := Default()
	s := settings{
		Port:        def.Port,
		LogLevel:    def.LogLevel,
		IdleTimeout: def.IdleTimeout,
		MaxRequests: def.MaxRequests,
		Env:         def.Env,
	}
	if err := m.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return s.build()
}

func (s *settings) build() (*Config, error) {
	if s.Directory != "" && s.File != "" {
		return nil, ErrModeConflict
	}
	if s.Port < 1 || s.Port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, s.Port)
	}
	if s.IdleTimeout <= 0 {
		return nil, fmt.Errorf("%w: idle timeout %v", ErrInvalidLimit, s.IdleTimeout)
	}
	if s.MaxRequests <= 0 {
		return nil, fmt.Errorf("%w: max requests %d", ErrInvalidLimit, s.MaxRequests)
	}

	serving := NoServing()
	switch {
	case s.Directory != "":
		info, err := os.Stat(s.Directory)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidTarget, s.Directory)
		}
		serving = DirectoryServing(s.Directory)

	case s.File != "":
		info, err := os.Stat(s.File)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: %s is not a regular file", ErrInvalidTarget, s.File)
		}
		serving = FileServing(s.File)
	}

	return &Config{
		Serving:     serving,
		Port:        s.Port,
		LogFile:     s.LogFile,
		LogLevel:    s.LogLevel,
		IdleTimeout: s.IdleTimeout,
		MaxRequests: s.MaxRequests,
		StatsFile:   s.StatsFile,
		Env:         s.Env,
		ReusePort:   s.ReusePort,
	}, nil
}
