package bom

import (
	"context"

	"github.com/erp/bomsync/internal/domain/integration"
	"github.com/google/uuid"
)

type variantListKey struct {
	tenantID uuid.UUID
	parentID int64
}

type variantListEntry struct {
	variants []integration.PlatformVariant
	err      error
}

// VariantListCache memoises variant list fetches for a single calculation.
// Several lines of one BOM often share a parent product; the list is fetched
// once. Failed fetches are memoised too. A cache must not outlive the
// calculation it was created for and is not safe for concurrent use.
type VariantListCache struct {
	source  integration.StockSource
	entries map[variantListKey]variantListEntry
	fetches int
}

// NewVariantListCache creates an empty cache reading through source
func NewVariantListCache(source integration.StockSource) *VariantListCache {
	return &VariantListCache{
		source:  source,
		entries: make(map[variantListKey]variantListEntry),
	}
}

// Variants returns the variant list of a parent product, fetching it on first use
func (c *VariantListCache) Variants(ctx context.Context, tenantID uuid.UUID, parentExternalID int64) ([]integration.PlatformVariant, error) {
	key := variantListKey{tenantID: tenantID, parentID: parentExternalID}
	if entry, ok := c.entries[key]; ok {
		return entry.variants, entry.err
	}

	c.fetches++
	variants, err := c.source.ListVariants(ctx, tenantID, parentExternalID)
	c.entries[key] = variantListEntry{variants: variants, err: err}
	return variants, err
}

// Fetches returns how many upstream calls the cache made
func (c *VariantListCache) Fetches() int {
	return c.fetches
}
