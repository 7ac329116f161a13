package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/soldprice-service/internal/entity"
	"github.com/user/soldprice-service/internal/repository"
	"github.com/user/soldprice-service/pkg/money"
)

var pikachuKey = entity.ItemKey{
	CollectionName:     "Scarlet & Violet",
	CollectionSequence: 8,
	ItemSequence:       63,
	Variant:            entity.VariantRegular,
}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewStore(mock)
}

func sampleListings() []entity.Listing {
	return []entity.Listing{
		{
			ExternalID: 1001,
			Title:      "Pikachu 063/191",
			SaleDate:   time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
			Price:      money.New(250, money.GBP),
			URL:        "https://shop.example/itm/1001",
			Format:     entity.Auction(4, false),
		},
		{
			ExternalID: 1000,
			Title:      "Pikachu 063/191 NM",
			SaleDate:   time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC),
			Price:      money.New(199, money.GBP),
			URL:        "https://shop.example/itm/1000",
			Format:     entity.FixedPrice(true, true),
		},
	}
}

func TestValuesClause(t *testing.T) {
	assert.Equal(t, "($1, $2), ($3, $4), ($5, $6)", valuesClause(3, 2))
	assert.Equal(t, "($1)", valuesClause(1, 1))
	assert.Equal(t, "", valuesClause(0, 3))
}

func TestChunkRows(t *testing.T) {
	assert.Nil(t, chunkRows(0, 10))
	assert.Equal(t, [][2]int{{0, 5}}, chunkRows(5, 10))

	spans := chunkRows(13000, 10)
	require.Len(t, spans, 3)
	assert.Equal(t, [2]int{0, 6000}, spans[0])
	assert.Equal(t, [2]int{12000, 13000}, spans[2])
}

func TestCommitListings(t *testing.T) {
	mock, store := newMock(t)
	listings := sampleListings()
	bids := 4
	offers := true

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO listings (")).
		WithArgs(
			int64(1001), "Pikachu 063/191", listings[0].SaleDate, int64(250), "GBP", "https://shop.example/itm/1001", "auction", &bids, (*bool)(nil), false,
			int64(1000), "Pikachu 063/191 NM", listings[1].SaleDate, int64(199), "GBP", "https://shop.example/itm/1000", "fixed_price", (*int)(nil), &offers, true,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO listing_items")).
		WithArgs(
			int64(1001), "Scarlet & Violet", 8.0, 63, "Regular",
			int64(1000), "Scarlet & Violet", 8.0, 63, "Regular",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scrape_checkpoint")).
		WithArgs("Scarlet & Violet", 8.0, 63, "Regular").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.CommitListings(context.Background(), pikachuKey, listings))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitListingsRollsBackOnFailure(t *testing.T) {
	mock, store := newMock(t)
	boom := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO listings (")).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO listing_items")).
		WillReturnError(boom)
	mock.ExpectRollback()

	err := store.CommitListings(context.Background(), pikachuKey, sampleListings())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitListingsCheckpointFailureRollsBack(t *testing.T) {
	mock, store := newMock(t)
	boom := errors.New("deadlock detected")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO listings (")).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO listing_items")).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scrape_checkpoint")).
		WillReturnError(boom)
	mock.ExpectRollback()

	err := store.CommitListings(context.Background(), pikachuKey, sampleListings())
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommitListingsIsIdempotentSQL(t *testing.T) {
	assert.Contains(t, listingInsert, "ON CONFLICT (external_id) DO NOTHING")
	assert.Contains(t, listingItemInsert, "ON CONFLICT DO NOTHING")
	assert.Contains(t, catalogInsert, "ON CONFLICT DO NOTHING")
	assert.Contains(t, checkpointUpsert, "ON CONFLICT (id) DO UPDATE")
}

func TestEnsureCatalogLoaded(t *testing.T) {
	mock, store := newMock(t)
	catalog := &entity.Catalog{Collections: []entity.Collection{
		{
			Name: "Scarlet & Violet", DisplayName: "Surging Sparks", Sequence: 8, TotalItemCount: 191,
			Items: []entity.Item{
				{DisplayName: "Pikachu", Sequence: 63, Rarity: "Common", Variants: []entity.Variant{entity.VariantRegular, entity.VariantReverseHolo}},
			},
		},
		{
			Name: "Scarlet & Violet", DisplayName: "151", Sequence: 3.5, TotalItemCount: 165,
			Items: []entity.Item{
				{DisplayName: "Mew ex", Sequence: 151, Rarity: "Double Rare", Variants: []entity.Variant{entity.VariantFoil}},
			},
		},
	}}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO catalog_items")).
		WithArgs(
			"Scarlet & Violet", "Surging Sparks", 8.0, 191, 63, "Regular", "Pikachu", "Common",
			"Scarlet & Violet", "Surging Sparks", 8.0, 191, 63, "Reverse Holo", "Pikachu", "Common",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO catalog_items")).
		WithArgs("Scarlet & Violet", "151", 3.5, 165, 151, "Holo", "Mew ex", "Double Rare").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	require.NoError(t, store.EnsureCatalogLoaded(context.Background(), catalog))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLastKnownListingDate(t *testing.T) {
	mock, store := newMock(t)
	latest := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(l.sale_date)")).
		WithArgs("Scarlet & Violet", 8.0, 63, "Regular").
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(&latest))

	got, err := store.LastKnownListingDate(context.Background(), pikachuKey)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, latest, *got)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(l.sale_date)")).
		WithArgs("Scarlet & Violet", 8.0, 63, "Regular").
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow((*time.Time)(nil)))

	got, err = store.LastKnownListingDate(context.Background(), pikachuKey)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadCheckpoint(t *testing.T) {
	mock, store := newMock(t)
	updated := time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM scrape_checkpoint")).
		WillReturnRows(pgxmock.NewRows([]string{"collection_name", "collection_sequence", "item_sequence", "variant_class", "updated_at"}).
			AddRow("Scarlet & Violet", 8.0, 63, "Reverse Holo", updated))

	cp, err := store.LoadCheckpoint(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, entity.VariantReverseHolo, cp.Variant)
	assert.Equal(t, 63, cp.ItemSequence)
	assert.Equal(t, updated, cp.UpdatedAt)

	mock.ExpectQuery(regexp.QuoteMeta("FROM scrape_checkpoint")).
		WillReturnError(pgx.ErrNoRows)

	cp, err = store.LoadCheckpoint(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClearCheckpoint(t *testing.T) {
	mock, store := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM scrape_checkpoint")).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, store.ClearCheckpoint(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

var itemCols = []string{"collection_name", "collection_display_name", "collection_sequence", "collection_total", "item_sequence", "variant_class", "display_name", "rarity"}

func TestListItems(t *testing.T) {
	mock, store := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM catalog_items")).
		WithArgs("Scarlet & Violet").
		WillReturnRows(pgxmock.NewRows(itemCols).
			AddRow("Scarlet & Violet", "Surging Sparks", 8.0, 191, 63, "Regular", "Pikachu", "Common").
			AddRow("Scarlet & Violet", "Surging Sparks", 8.0, 191, 63, "Reverse Holo", "Pikachu", "Common"))

	items, err := store.ListItems(context.Background(), repository.ItemFilter{CollectionName: "Scarlet & Violet"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, entity.VariantReverseHolo, items[1].Variant)
	assert.Equal(t, "Pikachu 063/191", items[0].SearchText())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetItemNotFound(t *testing.T) {
	mock, store := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM catalog_items")).
		WithArgs("Scarlet & Violet", 8.0, 63, "Regular").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetItem(context.Background(), pikachuKey)
	assert.ErrorIs(t, err, repository.ErrItemNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemVariantsNotFound(t *testing.T) {
	mock, store := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM catalog_items")).
		WithArgs("Scarlet & Violet", 8.0, 999).
		WillReturnRows(pgxmock.NewRows(itemCols))

	_, err := store.ItemVariants(context.Background(), "Scarlet & Violet", 8, 999)
	assert.ErrorIs(t, err, repository.ErrItemNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingsFor(t *testing.T) {
	mock, store := newMock(t)
	bids := 4
	accepts := true
	sold := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM listings l")).
		WithArgs("Scarlet & Violet", 8.0, 63, "Regular", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"external_id", "title", "sale_date", "price_minor", "currency", "url", "format", "bid_count", "accepts_offers", "offer_accepted"}).
			AddRow(int64(1001), "Pikachu 063/191", sold, int64(250), "GBP", "https://shop.example/itm/1001", "auction", &bids, (*bool)(nil), false).
			AddRow(int64(1000), "Pikachu 063/191 NM", sold, int64(199), "GBP", "https://shop.example/itm/1000", "fixed_price", (*int)(nil), &accepts, true))

	listings, err := store.ListingsFor(context.Background(), pikachuKey, nil)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, entity.Auction(4, false), listings[0].Format)
	assert.Equal(t, entity.FixedPrice(true, true), listings[1].Format)
	assert.Equal(t, "£2.50", listings[0].Price.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentPrices(t *testing.T) {
	mock, store := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("ROW_NUMBER() OVER")).
		WithArgs(30).
		WillReturnRows(pgxmock.NewRows([]string{"collection_name", "collection_sequence", "item_sequence", "variant_class", "price_minor"}).
			AddRow("Scarlet & Violet", 8.0, 63, "Regular", int64(250)).
			AddRow("Scarlet & Violet", 8.0, 63, "Regular", int64(199)).
			AddRow("Scarlet & Violet", 3.5, 151, "Holo", int64(1200)))

	points, err := store.RecentPrices(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, pikachuKey, points[0].Key)
	assert.Equal(t, entity.VariantFoil, points[2].Key.Variant)
	assert.Equal(t, int64(1200), points[2].Minor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store := NewStore(mock)

	mock.ExpectPing()
	require.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
