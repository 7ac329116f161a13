package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/user/soldprice-service/internal/entity"
	"github.com/user/soldprice-service/internal/repository"
)

// CatalogQuery serves catalog items and their raw listings.
type CatalogQuery interface {
	ListItems(ctx context.Context, collection string) ([]entity.CatalogItem, error)
	ItemVariants(ctx context.Context, collection string, collectionSeq float64, itemSeq int) ([]entity.CatalogItem, error)
	GetItem(ctx context.Context, key entity.ItemKey) (*entity.CatalogItem, error)
	Listings(ctx context.Context, key entity.ItemKey, since *time.Time) ([]entity.Listing, error)
}

type catalogUseCase struct {
	reader repository.CatalogReader
}

// NewCatalogQuery creates a new CatalogQuery use case.
func NewCatalogQuery(reader repository.CatalogReader) CatalogQuery {
	return &catalogUseCase{reader: reader}
}

func (uc *catalogUseCase) ListItems(ctx context.Context, collection string) ([]entity.CatalogItem, error) {
	items, err := uc.reader.ListItems(ctx, repository.ItemFilter{CollectionName: collection})
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []entity.CatalogItem{}
	}
	return items, nil
}

func (uc *catalogUseCase) ItemVariants(ctx context.Context, collection string, collectionSeq float64, itemSeq int) ([]entity.CatalogItem, error) {
	return uc.reader.ItemVariants(ctx, collection, collectionSeq, itemSeq)
}

func (uc *catalogUseCase) GetItem(ctx context.Context, key entity.ItemKey) (*entity.CatalogItem, error) {
	return uc.reader.GetItem(ctx, key)
}

// Listings returns the listings of a known item-variant newest first.
func (uc *catalogUseCase) Listings(ctx context.Context, key entity.ItemKey, since *time.Time) ([]entity.Listing, error) {
	if _, err := uc.reader.GetItem(ctx, key); err != nil {
		return nil, err
	}
	listings, err := uc.reader.ListingsFor(ctx, key, since)
	if err != nil {
		return nil, fmt.Errorf("listings for %s: %w", key, err)
	}
	if listings == nil {
		listings = []entity.Listing{}
	}
	return listings, nil
}
