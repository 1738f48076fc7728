// Package blob stores item photos on the local filesystem.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/najdeno/internal/imaging"
)

// URLPrefix is the path under which stored photos are served.
const URLPrefix = "/uploads/"

// FS stores normalised photos as <uuid>.jpg files in Dir and refers to them
// by their public path, e.g. /uploads/<uuid>.jpg.
type FS struct {
	Dir     string
	MaxSize int64
}

// NewFS creates dir if needed and returns a store rooted there.
func NewFS(dir string, maxSize int64) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads directory: %w", err)
	}
	return &FS{Dir: dir, MaxSize: maxSize}, nil
}

// Put normalises the photo read from r, stores it under a generated name and
// returns its reference.
func (s *FS) Put(ctx context.Context, r io.Reader) (string, error) {
	photo, err := imaging.Normalize(r, s.MaxSize)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + ".jpg"
	tmp, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(photo.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing upload: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.Dir, name)); err != nil {
		return "", fmt.Errorf("storing upload: %w", err)
	}

	return URLPrefix + name, nil
}

// Delete removes the photo behind ref. Missing files are not an error.
func (s *FS) Delete(_ context.Context, ref string) error {
	if ref == "" {
		return nil
	}

	name, err := s.name(ref)
	if err != nil {
		return err
	}

	err = os.Remove(filepath.Join(s.Dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting upload: %w", err)
	}
	return nil
}

// Handler serves stored photos under URLPrefix. Directory listings, nested
// paths and dot-files such as in-flight uploads are not found.
func (s *FS) Handler() http.Handler {
	files := http.FileServer(http.Dir(s.Dir))
	return http.StripPrefix(URLPrefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.name(URLPrefix + r.URL.Path); err != nil {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	}))
}

func (s *FS) name(ref string) (string, error) {
	name, ok := strings.CutPrefix(ref, URLPrefix)
	if !ok || name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid upload reference %q", ref)
	}
	return name, nil
}
