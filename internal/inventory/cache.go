package inventory

import (
	"context"
	"fmt"
	"time"
	"vmigrate/internal/logger"
	"vmigrate/internal/model"
	"vmigrate/internal/platform"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Cache holds the last discovered inventory per provider. Each sync replaces
// a provider's item slice in a single Set, so readers always see either the
// previous snapshot or the new one, never a mix. A failed sync leaves the
// previous snapshot untouched.
type Cache struct {
	items   *gocache.Cache
	factory platform.Factory
	timeout time.Duration
}

func NewCache(factory platform.Factory, timeout time.Duration) *Cache {
	return &Cache{
		items:   gocache.New(gocache.NoExpiration, 0),
		factory: factory,
		timeout: timeout,
	}
}

func key(providerID uint) string {
	return fmt.Sprint(providerID)
}

// Sync discovers the provider's current inventory and swaps it into the
// cache wholesale. Items not present in the new snapshot are dropped.
func (c *Cache) Sync(ctx context.Context, provider model.Provider) (model.SyncSummary, error) {
	var summary model.SyncSummary

	client, err := c.factory(provider)
	if err != nil {
		return summary, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	items, err := client.Discover(ctx)
	if err != nil {
		return summary, fmt.Errorf("sync failed for provider %d: %w", provider.ID, err)
	}

	c.items.Set(key(provider.ID), items, gocache.NoExpiration)

	logger.Log.Info("inventory synced",
		zap.Uint("provider", provider.ID),
		zap.String("kind", string(provider.Kind)),
		zap.Int("items", len(items)))

	return model.SyncSummary{
		ProviderID: provider.ID,
		Kind:       string(provider.Kind),
		Items:      len(items),
	}, nil
}

// List returns the cached snapshot for a provider in discovery order, or nil
// if the provider has never been synced.
func (c *Cache) List(providerID uint) []model.InventoryItem {
	v, ok := c.items.Get(key(providerID))
	if !ok {
		return nil
	}
	return v.([]model.InventoryItem)
}

// Lookup finds a cached item by name.
func (c *Cache) Lookup(providerID uint, name string) (model.InventoryItem, bool) {
	for _, item := range c.List(providerID) {
		if item.Name == name {
			return item, true
		}
	}
	return model.InventoryItem{}, false
}
