package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bnema/chfctl/internal/characters"
)

const (
	// CacheTTL is how long a synced catalog is served without refetching
	CacheTTL = 24 * time.Hour
	// CacheFileName lives in the application cache directory
	CacheFileName = "catalog.json"
)

var ErrEmptyCatalog = errors.New("catalog sync returned nothing and no cache is available")

// Snapshot is the on-disk form of a full catalog sync
type Snapshot struct {
	GeneratedAt time.Time              `json:"generated_at"`
	SourceURL   string                 `json:"source_url"`
	Count       int                    `json:"count"`
	Characters  []characters.Character `json:"characters"`
}

// Cache stores the last full catalog sync
type Cache struct {
	path string
	log  *log.Logger
}

// NewCache creates a cache in cacheDir
func NewCache(cacheDir string, logger *log.Logger) *Cache {
	return &Cache{
		path: filepath.Join(cacheDir, CacheFileName),
		log:  logger,
	}
}

// Path returns the cache file location
func (c *Cache) Path() string {
	return c.path
}

// Get returns the catalog, syncing through client when the cache is stale,
// missing or force is set. A sync that yields nothing falls back to a
// stale cache.
func (c *Cache) Get(ctx context.Context, client *Client, force bool, progress ProgressFunc) ([]characters.Character, error) {
	cached, err := c.Load()
	if err == nil {
		age := time.Since(cached.GeneratedAt)
		if !force && age < CacheTTL {
			c.log.Debug("Using cached catalog", "age", age.Round(time.Minute), "characters", cached.Count)
			return cached.Characters, nil
		}
		c.log.Debug("Catalog cache is stale", "age", age.Round(time.Hour))
	} else if !os.IsNotExist(err) {
		c.log.Warn("Ignoring unreadable catalog cache", "path", c.path, "error", err)
	}

	fresh := client.FetchAll(ctx, progress, nil)
	if len(fresh) == 0 || ctx.Err() != nil {
		if cached != nil {
			c.log.Warn("Catalog sync incomplete, using stale cache",
				"cache_age", time.Since(cached.GeneratedAt).Round(time.Hour))
			return cached.Characters, nil
		}
		if len(fresh) == 0 {
			return nil, ErrEmptyCatalog
		}
		return fresh, nil
	}

	snap := &Snapshot{
		GeneratedAt: time.Now(),
		SourceURL:   client.BaseURL(),
		Count:       len(fresh),
		Characters:  fresh,
	}
	if err := c.Save(snap); err != nil {
		c.log.Warn("Failed to save catalog cache", "error", err)
	}
	return fresh, nil
}

// Load reads the cache file
func (c *Cache) Load() (*Snapshot, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse catalog cache: %w", err)
	}
	return &snap, nil
}

// Save writes snap to the cache file
func (c *Cache) Save(snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Info describes the cache state
type Info struct {
	HasCache    bool
	IsStale     bool
	GeneratedAt time.Time
	Age         time.Duration
	Total       int
	New         int
}

// Info returns the cache state without touching the network
func (c *Cache) Info() Info {
	snap, err := c.Load()
	if err != nil {
		return Info{}
	}
	age := time.Since(snap.GeneratedAt)
	newCount := 0
	for i := range snap.Characters {
		if snap.Characters[i].IsNew() {
			newCount++
		}
	}
	return Info{
		HasCache:    true,
		IsStale:     age > CacheTTL,
		GeneratedAt: snap.GeneratedAt,
		Age:         age,
		Total:       len(snap.Characters),
		New:         newCount,
	}
}
