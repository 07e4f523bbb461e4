package config

import "path/filepath"

// Mode selects where static content comes from
type Mode int

const (
	ModeNone Mode = iota
	ModeFile
	ModeDirectory
)

func (m Mode) String() string {
	switch m {
	case ModeFile:
		return "file"
	case ModeDirectory:
		return "directory"
	default:
		return "none"
	}
}

// Serving is the static serving configuration. It is a value type with no
// setters, so one instance can be shared by every connection.
type Serving struct {
	mode Mode
	path string
}

// NoServing disables static content
func NoServing() Serving {
	return Serving{mode: ModeNone}
}

// FileServing serves the single file at path
func FileServing(path string) Serving {
	return Serving{mode: ModeFile, path: path}
}

// DirectoryServing serves files below root
func DirectoryServing(root string) Serving {
	return Serving{mode: ModeDirectory, path: root}
}

// Mode returns the serving mode
func (s Serving) Mode() Mode {
	return s.mode
}

// Path returns the configured file or directory
func (s Serving) Path() string {
	return s.path
}

// Active reports whether any static content is served
func (s Serving) Active() bool {
	return s.mode != ModeNone
}

// Basename is the last element of the configured path. In file mode the
// file is only reachable as "/" + Basename().
func (s Serving) Basename() string {
	return filepath.Base(s.path)
}

func (s Serving) String() string {
	if s.mode == ModeNone {
		return "none"
	}
	return s.mode.String() + ":" + s.path
}
