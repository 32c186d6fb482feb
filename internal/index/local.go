package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/xxxsen/nixai/internal/model"
	"github.com/xxxsen/nixai/internal/pkg/fileutil"
)

const (
	manifestFile  = "manifest.json"
	segmentPrefix = "seg-"
	segmentSuffix = ".json"
)

type localCollection struct {
	mu       sync.RWMutex
	loaded   bool
	manifest *Manifest
	chunks   []model.Chunk
	segments int
}

// LocalBackend keeps every collection in its own directory. Each Add writes one
// segment file, so a crash leaves either the whole batch or none of it.
type LocalBackend struct {
	dir         string
	collections sync.Map
}

func NewLocalBackend(dir string) (*LocalBackend, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("index dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return &LocalBackend{dir: dir}, nil
}

func (b *LocalBackend) Name() string {
	return "local"
}

func (b *LocalBackend) path(collection string, name ...string) string {
	return filepath.Join(append([]string{b.dir, collection}, name...)...)
}

func (b *LocalBackend) collection(name string) *localCollection {
	v, _ := b.collections.LoadOrStore(name, &localCollection{})
	return v.(*localCollection)
}

// load reads the manifest and segments from disk once. Callers hold c.mu for writing.
func (b *LocalBackend) load(name string, c *localCollection) error {
	if c.loaded {
		return nil
	}
	raw, err := os.ReadFile(b.path(name, manifestFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrCollectionNotFound
		}
		return err
	}
	m := &Manifest{}
	if err := json.Unmarshal(raw, m); err != nil {
		return fmt.Errorf("decode manifest of %s: %w", name, err)
	}
	segs, err := b.segmentFiles(name)
	if err != nil {
		return err
	}
	var chunks []model.Chunk
	for _, seg := range segs {
		data, err := os.ReadFile(b.path(name, seg.file))
		if err != nil {
			return err
		}
		var batch []model.Chunk
		if err := json.Unmarshal(data, &batch); err != nil {
			return fmt.Errorf("decode segment %s of %s: %w", seg.file, name, err)
		}
		chunks = append(chunks, batch...)
	}
	c.manifest = m
	c.chunks = chunks
	if len(segs) > 0 {
		c.segments = segs[len(segs)-1].seq
	}
	c.loaded = true
	return nil
}

type segmentFile struct {
	seq  int
	file string
}

func (b *LocalBackend) segmentFiles(name string) ([]segmentFile, error) {
	entries, err := os.ReadDir(b.path(name))
	if err != nil {
		return nil, err
	}
	var out []segmentFile
	for _, e := range entries {
		fn := e.Name()
		if e.IsDir() || !strings.HasPrefix(fn, segmentPrefix) || !strings.HasSuffix(fn, segmentSuffix) {
			continue
		}
		seq, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(fn, segmentPrefix), segmentSuffix))
		if err != nil {
			continue
		}
		out = append(out, segmentFile{seq: seq, file: fn})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out, nil
}

func (b *LocalBackend) readable(name string) (*localCollection, error) {
	c := b.collection(name)
	c.mu.RLock()
	if c.loaded {
		return c, nil
	}
	c.mu.RUnlock()
	c.mu.Lock()
	err := b.load(name, c)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	return c, nil
}

func (b *LocalBackend) Exists(_ context.Context, collection string) (bool, error) {
	_, err := os.Stat(b.path(collection, manifestFile))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (b *LocalBackend) Create(_ context.Context, m Manifest) error {
	c := b.collection(m.Collection)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(b.path(m.Collection), 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(b.path(m.Collection, manifestFile)); err == nil {
		return nil
	}
	if err := writeJSONAtomic(b.path(m.Collection, manifestFile), m); err != nil {
		return err
	}
	c.manifest = &m
	c.chunks = nil
	c.segments = 0
	c.loaded = true
	return nil
}

func (b *LocalBackend) Describe(_ context.Context, collection string) (*Manifest, error) {
	c, err := b.readable(collection)
	if err != nil {
		return nil, err
	}
	defer c.mu.RUnlock()
	m := *c.manifest
	return &m, nil
}

func (b *LocalBackend) Add(_ context.Context, collection string, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	c := b.collection(collection)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := b.load(collection, c); err != nil {
		return err
	}
	seq := c.segments + 1
	name := fmt.Sprintf("%s%06d%s", segmentPrefix, seq, segmentSuffix)
	if err := writeJSONAtomic(b.path(collection, name), chunks); err != nil {
		return fmt.Errorf("write segment %s: %w", name, err)
	}
	c.segments = seq
	c.chunks = append(c.chunks, chunks...)
	return nil
}

func (b *LocalBackend) Search(_ context.Context, collection string, vec []float32, k int, source string) ([]model.ScoredChunk, error) {
	c, err := b.readable(collection)
	if err != nil {
		return nil, err
	}
	defer c.mu.RUnlock()
	scored := make([]model.ScoredChunk, 0, len(c.chunks))
	for _, ch := range c.chunks {
		if source != "" && ch.Source != source {
			continue
		}
		sc := model.ScoredChunk{Chunk: ch, Score: cosine(vec, ch.Embedding)}
		sc.Embedding = nil
		scored = append(scored, sc)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (b *LocalBackend) Count(_ context.Context, collection string) (int, error) {
	c, err := b.readable(collection)
	if err != nil {
		return 0, err
	}
	defer c.mu.RUnlock()
	return len(c.chunks), nil
}

func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, data)
}
