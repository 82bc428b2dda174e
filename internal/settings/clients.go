package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/slidewizard/backend/internal/models"
)

// ErrInvalidClient is returned for client ids that are not UUIDs.
var ErrInvalidClient = errors.New("invalid client id")

// ClientCaches keeps one cache slot per browser client, each in its own
// directory under root.
type ClientCaches struct {
	root string

	mu     sync.Mutex
	caches map[string]*FileCache
	preset []byte
}

// NewClientCaches creates root if needed.
func NewClientCaches(root string) (*ClientCaches, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create client cache root: %w", err)
	}
	return &ClientCaches{root: root, caches: make(map[string]*FileCache)}, nil
}

// UsePreset makes cfg what an empty client slot reads until the client
// caches its own settings.
func (c *ClientCaches) UsePreset(cfg *models.Configuration) error {
	var data []byte
	if cfg != nil {
		var err error
		if data, err = json.Marshal(cfg); err != nil {
			return fmt.Errorf("encode preset: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.preset = data
	for _, fc := range c.caches {
		fc.setFallback(data)
	}
	return nil
}

// For returns the cache slot of clientID. The directory is created on the
// first write.
func (c *ClientCaches) For(clientID string) (LocalCache, error) {
	id, err := uuid.Parse(clientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidClient, clientID)
	}
	key := id.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if fc, ok := c.caches[key]; ok {
		return fc, nil
	}
	fc := &FileCache{path: filepath.Join(c.root, key, CacheFileName)}
	fc.setFallback(c.preset)
	c.caches[key] = fc
	return fc, nil
}

// Clients lists the ids of clients that have cached settings.
func (c *ClientCaches) Clients() ([]string, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := uuid.Parse(e.Name()); err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(c.root, e.Name(), CacheFileName)); err == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
