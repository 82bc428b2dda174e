package settings

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
)

// CacheFileName is the single slot the local cache writes to.
const CacheFileName = "presentationSettings.json"

// ErrCacheEmpty is returned by LocalCache.Read when nothing was cached yet.
var ErrCacheEmpty = errors.New("settings cache is empty")

// LocalCache holds the last saved configuration as serialized text.
type LocalCache interface {
	Write(data []byte) error
	Read() ([]byte, error)
}

// FileCache stores the cache slot as a file. Every write replaces the file
// wholesale. Until the first write, Read returns the fallback if one is set.
type FileCache struct {
	mu       sync.Mutex
	path     string
	fallback []byte
}

// NewFileCache creates the cache directory if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{path: filepath.Join(dir, CacheFileName)}, nil
}

// Path returns the cache file location.
func (c *FileCache) Path() string { return c.path }

func (c *FileCache) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", CacheFileName, os.Getpid(), rand.Int()))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}

func (c *FileCache) Read() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		if c.fallback != nil {
			return append([]byte(nil), c.fallback...), nil
		}
		return nil, ErrCacheEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	return data, nil
}

func (c *FileCache) setFallback(data []byte) {
	c.mu.Lock()
	c.fallback = data
	c.mu.Unlock()
}
