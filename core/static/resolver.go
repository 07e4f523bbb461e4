// Package static maps request paths to file contents under the configured
// serving mode.
package static

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/searchktools/static-server/config"
	"github.com/searchktools/static-server/core/http"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrReadFailed = errors.New("read failed")
)

// IndexFile is served for "/" in directory mode
const IndexFile = "index.html"

// File is the subset of *os.File the resolver reads through
type File interface {
	io.Reader
	io.Closer
	Stat() (fs.FileInfo, error)
}

// FileSystem opens files for reading
type FileSystem interface {
	Open(name string) (File, error)
}

// OSFileSystem reads from the local disk
type OSFileSystem struct{}

// Open opens name with os.Open
func (OSFileSystem) Open(name string) (File, error) {
	return os.Open(name)
}

// Content is a resolved file, fully read into memory
type Content struct {
	Path        string
	ContentType string
	Body        []byte
}

// Resolver turns request paths into file contents
type Resolver struct {
	serving config.Serving
	fs      FileSystem
}

// NewResolver creates a resolver. A nil fsys means the OS filesystem.
func NewResolver(serving config.Serving, fsys FileSystem) *Resolver {
	if fsys == nil {
		fsys = OSFileSystem{}
	}
	return &Resolver{
		serving: serving,
		fs:      fsys,
	}
}

// Resolve maps path to a file and reads it.
//
// In directory mode a path containing ".." anywhere is refused with
// ErrForbidden before the filesystem is touched. This is a plain substring
// test: it also refuses harmless names such as "a..b" and does not resolve
// symlinks that point outside the root.
func (r *Resolver) Resolve(path string) (*Content, error) {
	target, err := r.target(path)
	if err != nil {
		return nil, err
	}
	return r.read(target)
}

// target computes the filesystem path for path without reading it
func (r *Resolver) target(path string) (string, error) {
	switch r.serving.Mode() {
	case config.ModeFile:
		if path != "/"+r.serving.Basename() {
			return "", fmt.Errorf("%w: %s (only /%s is served)", ErrNotFound, path, r.serving.Basename())
		}
		return r.serving.Path(), nil

	case config.ModeDirectory:
		if path == "/" {
			return filepath.Join(r.serving.Path(), IndexFile), nil
		}
		rel := strings.TrimPrefix(path, "/")
		if strings.Contains(rel, "..") {
			return "", fmt.Errorf("%w: %s", ErrForbidden, path)
		}
		return filepath.Join(r.serving.Path(), rel), nil

	default:
		return "", fmt.Errorf("%w: no static content configured", ErrNotFound)
	}
}

func (r *Resolver) read(name string) (*Content, error) {
	f, err := r.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrReadFailed, name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, name)
	}

	content := &Content{
		Path:        name,
		ContentType: http.ContentType(name),
	}

	size := info.Size()
	if size == 0 {
		content.Body = []byte{}
		return content, nil
	}

	body := make([]byte, size)
	n, err := io.ReadFull(f, body)
	if err != nil || int64(n) != size {
		return nil, fmt.Errorf("%w: %s: read %d of %d bytes: %v", ErrReadFailed, name, n, size, err)
	}

	content.Body = body
	return content, nil
}

// Status maps a Resolve error to the HTTP status it should produce.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
