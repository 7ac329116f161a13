package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/user/soldprice-service/internal/entity"
)

const catalogInsert = `
		INSERT INTO catalog_items (collection_name, collection_display_name, collection_sequence, collection_total, item_sequence, variant_class, display_name, rarity)
		VALUES %s
		ON CONFLICT DO NOTHING;`

const listingInsert = `
		INSERT INTO listings (external_id, title, sale_date, price_minor, currency, url, format, bid_count, accepts_offers, offer_accepted)
		VALUES %s
		ON CONFLICT (external_id) DO NOTHING;`

const listingItemInsert = `
		INSERT INTO listing_items (external_id, collection_name, collection_sequence, item_sequence, variant_class)
		VALUES %s
		ON CONFLICT DO NOTHING;`

const checkpointUpsert = `
		INSERT INTO scrape_checkpoint (id, collection_name, collection_sequence, item_sequence, variant_class, updated_at)
		VALUES (1, $1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			collection_name = EXCLUDED.collection_name,
			collection_sequence = EXCLUDED.collection_sequence,
			item_sequence = EXCLUDED.item_sequence,
			variant_class = EXCLUDED.variant_class,
			updated_at = EXCLUDED.updated_at;`

// EnsureCatalogLoaded inserts every item-variant of catalog in one
// transaction. Rows already present are left untouched.
func (s *Store) EnsureCatalogLoaded(ctx context.Context, catalog *entity.Catalog) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin catalog load: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, col := range catalog.Collections {
		units := (&entity.Catalog{Collections: []entity.Collection{col}}).Units()
		if len(units) == 0 {
			continue
		}
		const cols = 8
		for _, span := range chunkRows(len(units), cols) {
			batch := units[span[0]:span[1]]
			args := make([]any, 0, len(batch)*cols)
			for _, u := range batch {
				args = append(args,
					u.CollectionName,
					u.CollectionDisplayName,
					u.CollectionSequence,
					u.CollectionTotal,
					u.ItemSequence,
					u.Variant.String(),
					u.DisplayName,
					string(u.Rarity),
				)
			}
			if _, err := tx.Exec(ctx, fmt.Sprintf(catalogInsert, valuesClause(len(batch), cols)), args...); err != nil {
				return fmt.Errorf("insert catalog %s: %w", col.Name, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit catalog load: %w", err)
	}
	return nil
}

// LastKnownListingDate returns the most recent sale date recorded for key,
// or nil when none is.
func (s *Store) LastKnownListingDate(ctx context.Context, key entity.ItemKey) (*time.Time, error) {
	query := `
		SELECT MAX(l.sale_date)
		FROM listings l
		JOIN listing_items li ON li.external_id = l.external_id
		WHERE li.collection_name = $1
		  AND li.collection_sequence = $2
		  AND li.item_sequence = $3
		  AND li.variant_class = $4;
	`
	var latest *time.Time
	err := s.db.QueryRow(ctx, query,
		key.CollectionName,
		key.CollectionSequence,
		key.ItemSequence,
		key.Variant.String(),
	).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("last listing date for %s: %w", key, err)
	}
	return latest, nil
}

// CommitListings stores listings, links them to key and moves the checkpoint
// to key. Either all three happen or none does.
func (s *Store) CommitListings(ctx context.Context, key entity.ItemKey, listings []entity.Listing) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin commit for %s: %w", key, err)
	}
	defer tx.Rollback(ctx)

	const listingCols = 10
	for _, span := range chunkRows(len(listings), listingCols) {
		batch := listings[span[0]:span[1]]
		args := make([]any, 0, len(batch)*listingCols)
		for _, l := range batch {
			var (
				bids   *int
				offers *bool
			)
			if n, ok := l.Format.Bids(); ok {
				bids = &n
			}
			if o, ok := l.Format.Offers(); ok {
				offers = &o
			}
			args = append(args,
				l.ExternalID,
				l.Title,
				l.SaleDate,
				l.Price.Minor(),
				l.Price.Currency().Code,
				l.URL,
				string(l.Format.Kind),
				bids,
				offers,
				l.Format.OfferAccepted,
			)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(listingInsert, valuesClause(len(batch), listingCols)), args...); err != nil {
			return fmt.Errorf("insert listings for %s: %w", key, err)
		}
	}

	const linkCols = 5
	for _, span := range chunkRows(len(listings), linkCols) {
		batch := listings[span[0]:span[1]]
		args := make([]any, 0, len(batch)*linkCols)
		for _, l := range batch {
			args = append(args,
				l.ExternalID,
				key.CollectionName,
				key.CollectionSequence,
				key.ItemSequence,
				key.Variant.String(),
			)
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(listingItemInsert, valuesClause(len(batch), linkCols)), args...); err != nil {
			return fmt.Errorf("link listings to %s: %w", key, err)
		}
	}

	if _, err := tx.Exec(ctx, checkpointUpsert,
		key.CollectionName,
		key.CollectionSequence,
		key.ItemSequence,
		key.Variant.String(),
	); err != nil {
		return fmt.Errorf("advance checkpoint to %s: %w", key, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit listings for %s: %w", key, err)
	}
	return nil
}
