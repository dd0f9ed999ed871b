package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	sitelog "sitecms/api/internal/log"
	"sitecms/api/internal/schema"
)

// Cache holds the configuration snapshot handed to readers. Readers get a
// value copy; nothing they do reaches the cached snapshot.
type Cache struct {
	store  *ConfigStore
	logger zerolog.Logger

	mu      sync.RWMutex
	current schema.SiteConfiguration
	loaded  bool
}

func NewCache(store *ConfigStore) *Cache {
	return &Cache{store: store, logger: sitelog.WithComponent("config-cache")}
}

// Get returns the current snapshot, loading it on first use.
func (c *Cache) Get(ctx context.Context) (schema.SiteConfiguration, error) {
	c.mu.RLock()
	if c.loaded {
		cfg := c.current.Clone()
		c.mu.RUnlock()
		return cfg, nil
	}
	c.mu.RUnlock()
	if err := c.Refresh(ctx); err != nil {
		return schema.SiteConfiguration{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Clone(), nil
}

// Refresh reloads from the store. On failure the previous snapshot stays.
func (c *Cache) Refresh(ctx context.Context) error {
	cfg, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Error().Err(err).Str("event", "config.refresh_failed").Msg("keeping previous configuration")
		return err
	}
	c.Set(cfg)
	return nil
}

// Set replaces the snapshot. It is registered as a commit listener so saves
// are visible without waiting for a file event.
func (c *Cache) Set(cfg schema.SiteConfiguration) {
	c.mu.Lock()
	c.current = cfg.Clone()
	c.loaded = true
	c.mu.Unlock()
}

// Watch refreshes the cache whenever the artifact at path changes. The
// directory is watched because atomic replaces swap the file's inode. Watch
// blocks until ctx is done.
func (c *Cache) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(path)
	c.logger.Info().Str("event", "config.watcher_started").Str("path", target).Msg("watching configuration artifact")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := c.Refresh(ctx); err == nil {
				c.logger.Debug().Str("event", "config.reloaded").Str("op", event.Op.String()).Msg("configuration reloaded from disk")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn().Err(err).Str("event", "config.watcher_error").Msg("watcher error")
		}
	}
}
