package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/soldprice-service/internal/entity"
)

// ErrItemNotFound is returned when an item-variant is not in the catalog table.
var ErrItemNotFound = errors.New("catalog item not found")

// ListingRepository is the write side used by the scraper.
type ListingRepository interface {
	// EnsureCatalogLoaded inserts every item-variant, ignoring existing rows.
	EnsureCatalogLoaded(ctx context.Context, catalog *entity.Catalog) error
	// LastKnownListingDate returns the newest sale date on record, or nil.
	LastKnownListingDate(ctx context.Context, key entity.ItemKey) (*time.Time, error)
	// CommitListings stores listings, their association to key and advances
	// the checkpoint to key in a single transaction.
	CommitListings(ctx context.Context, key entity.ItemKey, listings []entity.Listing) error
}

// CheckpointRepository persists sweep progress.
type CheckpointRepository interface {
	// LoadCheckpoint returns nil when no sweep is in progress.
	LoadCheckpoint(ctx context.Context) (*entity.Checkpoint, error)
	// ClearCheckpoint is not an error when no checkpoint exists.
	ClearCheckpoint(ctx context.Context) error
}

// ItemFilter narrows catalog listings.
type ItemFilter struct {
	CollectionName string
}

// CatalogReader serves the read API.
type CatalogReader interface {
	ListItems(ctx context.Context, filter ItemFilter) ([]entity.CatalogItem, error)
	GetItem(ctx context.Context, key entity.ItemKey) (*entity.CatalogItem, error)
	ItemVariants(ctx context.Context, collection string, collectionSeq float64, itemSeq int) ([]entity.CatalogItem, error)
	// ListingsFor returns listings newest first; since may be nil.
	ListingsFor(ctx context.Context, key entity.ItemKey, since *time.Time) ([]entity.Listing, error)
	// RecentPrices returns up to perItem most recent prices for every item-variant.
	RecentPrices(ctx context.Context, perItem int) ([]entity.PricePoint, error)
	Ping(ctx context.Context) error
}
