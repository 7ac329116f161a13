package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/user/soldprice-service/internal/entity"
	"github.com/user/soldprice-service/internal/repository"
	"github.com/user/soldprice-service/pkg/money"
)

const itemColumns = `collection_name, collection_display_name, collection_sequence, collection_total, item_sequence, variant_class, display_name, rarity`

const variantOrder = `CASE variant_class WHEN 'Regular' THEN 1 WHEN 'Reverse Holo' THEN 2 ELSE 3 END`

func scanItem(row pgx.Row) (entity.CatalogItem, error) {
	var (
		it      entity.CatalogItem
		variant string
		rarity  string
	)
	if err := row.Scan(
		&it.CollectionName,
		&it.CollectionDisplayName,
		&it.CollectionSequence,
		&it.CollectionTotal,
		&it.ItemSequence,
		&variant,
		&it.DisplayName,
		&rarity,
	); err != nil {
		return it, err
	}
	v, err := entity.ParseVariant(variant)
	if err != nil {
		return it, err
	}
	it.Variant = v
	it.Rarity = entity.Rarity(rarity)
	return it, nil
}

func collectItems(rows pgx.Rows) ([]entity.CatalogItem, error) {
	defer rows.Close()

	var items []entity.CatalogItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListItems returns catalog items in sweep order, optionally restricted to
// one collection name.
func (s *Store) ListItems(ctx context.Context, filter repository.ItemFilter) ([]entity.CatalogItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM catalog_items
		WHERE ($1 = '' OR collection_name = $1)
		ORDER BY collection_sequence, collection_name, item_sequence, ` + variantOrder + `;
	`
	rows, err := s.db.Query(ctx, query, filter.CollectionName)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// GetItem returns one item-variant or repository.ErrItemNotFound.
func (s *Store) GetItem(ctx context.Context, key entity.ItemKey) (*entity.CatalogItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM catalog_items
		WHERE collection_name = $1 AND collection_sequence = $2 AND item_sequence = $3 AND variant_class = $4;
	`
	it, err := scanItem(s.db.QueryRow(ctx, query,
		key.CollectionName,
		key.CollectionSequence,
		key.ItemSequence,
		key.Variant.String(),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", key, err)
	}
	return &it, nil
}

// ItemVariants returns every variant of one item. An unknown item yields
// repository.ErrItemNotFound.
func (s *Store) ItemVariants(ctx context.Context, collection string, collectionSeq float64, itemSeq int) ([]entity.CatalogItem, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM catalog_items
		WHERE collection_name = $1 AND collection_sequence = $2 AND item_sequence = $3
		ORDER BY ` + variantOrder + `;
	`
	rows, err := s.db.Query(ctx, query, collection, collectionSeq, itemSeq)
	if err != nil {
		return nil, fmt.Errorf("item variants: %w", err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, fmt.Errorf("item variants: %w", err)
	}
	if len(items) == 0 {
		return nil, repository.ErrItemNotFound
	}
	return items, nil
}

// ListingsFor returns the listings of key newest first. A non-nil since keeps
// only listings sold on or after that date.
func (s *Store) ListingsFor(ctx context.Context, key entity.ItemKey, since *time.Time) ([]entity.Listing, error) {
	query := `
		SELECT l.external_id, l.title, l.sale_date, l.price_minor, l.currency, l.url, l.format, l.bid_count, l.accepts_offers, l.offer_accepted
		FROM listings l
		JOIN listing_items li ON li.external_id = l.external_id
		WHERE li.collection_name = $1
		  AND li.collection_sequence = $2
		  AND li.item_sequence = $3
		  AND li.variant_class = $4
		  AND ($5::date IS NULL OR l.sale_date >= $5::date)
		ORDER BY l.sale_date DESC, l.external_id DESC;
	`
	rows, err := s.db.Query(ctx, query,
		key.CollectionName,
		key.CollectionSequence,
		key.ItemSequence,
		key.Variant.String(),
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("listings for %s: %w", key, err)
	}
	defer rows.Close()

	var listings []entity.Listing
	for rows.Next() {
		var (
			l             entity.Listing
			minor         int64
			currency      string
			format        string
			bids          *int
			acceptsOffers *bool
			offerAccepted bool
		)
		if err := rows.Scan(
			&l.ExternalID,
			&l.Title,
			&l.SaleDate,
			&minor,
			&currency,
			&l.URL,
			&format,
			&bids,
			&acceptsOffers,
			&offerAccepted,
		); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		cur, err := money.LookupCurrency(currency)
		if err != nil {
			return nil, fmt.Errorf("listing %d: %w", l.ExternalID, err)
		}
		l.Price = money.New(minor, cur)

		switch entity.FormatKind(format) {
		case entity.FormatAuction:
			n := 0
			if bids != nil {
				n = *bids
			}
			l.Format = entity.Auction(n, offerAccepted)
		case entity.FormatFixedPrice:
			l.Format = entity.FixedPrice(acceptsOffers != nil && *acceptsOffers, offerAccepted)
		default:
			return nil, fmt.Errorf("listing %d: unknown format %q", l.ExternalID, format)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// RecentPrices returns, for every item-variant with listings, the prices of
// its perItem most recent listings.
func (s *Store) RecentPrices(ctx context.Context, perItem int) ([]entity.PricePoint, error) {
	query := `
		SELECT collection_name, collection_sequence, item_sequence, variant_class, price_minor
		FROM (
			SELECT li.collection_name, li.collection_sequence, li.item_sequence, li.variant_class, l.price_minor,
				ROW_NUMBER() OVER (
					PARTITION BY li.collection_name, li.collection_sequence, li.item_sequence, li.variant_class
					ORDER BY l.sale_date DESC, l.external_id DESC
				) AS listing_rank
			FROM listing_items li
			JOIN listings l ON l.external_id = li.external_id
		) ranked_listings
		WHERE listing_rank <= $1
		ORDER BY collection_sequence, collection_name, item_sequence, variant_class, listing_rank;
	`
	rows, err := s.db.Query(ctx, query, perItem)
	if err != nil {
		return nil, fmt.Errorf("recent prices: %w", err)
	}
	defer rows.Close()

	var points []entity.PricePoint
	for rows.Next() {
		var (
			p       entity.PricePoint
			variant string
		)
		if err := rows.Scan(
			&p.Key.CollectionName,
			&p.Key.CollectionSequence,
			&p.Key.ItemSequence,
			&variant,
			&p.Minor,
		); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		if p.Key.Variant, err = entity.ParseVariant(variant); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
