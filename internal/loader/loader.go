// Package loader turns raw uploaded bytes into text segments.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xxxsen/nixai/internal/model"
)

var ErrUnsupported = errors.New("unsupported file type")

// LoadError reports a document that could not be read.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

type ILoader interface {
	Load(ctx context.Context, name string, data []byte) ([]model.Segment, error)
}

type LoaderFunc func(ctx context.Context, name string, data []byte) ([]model.Segment, error)

func (f LoaderFunc) Load(ctx context.Context, name string, data []byte) ([]model.Segment, error) {
	return f(ctx, name, data)
}

var (
	mu       sync.RWMutex
	registry = map[string]ILoader{}
)

// Register binds a loader to a file extension such as ".pdf".
func Register(ext string, l ILoader) {
	key := normalizeExt(ext)
	if key == "" || l == nil {
		return
	}
	mu.Lock()
	registry[key] = l
	mu.Unlock()
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Supported reports whether name has a registered extension.
func Supported(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := registry[normalizeExt(filepath.Ext(name))]
	return ok
}

func Extensions() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for ext := range registry {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Load reads r fully and extracts its segments with the loader registered for the
// extension of name. Every failure is a *LoadError.
func Load(ctx context.Context, name string, r io.Reader) ([]model.Segment, error) {
	ext := normalizeExt(filepath.Ext(name))
	mu.RLock()
	l := registry[ext]
	mu.RUnlock()
	if l == nil {
		return nil, &LoadError{Path: name, Err: fmt.Errorf("%w: %q", ErrUnsupported, ext)}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &LoadError{Path: name, Err: err}
	}
	segs, err := l.Load(ctx, name, data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, &LoadError{Path: name, Err: err}
	}
	return segs, nil
}
