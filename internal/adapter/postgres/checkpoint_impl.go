package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/user/soldprice-service/internal/entity"
)

// LoadCheckpoint returns the progress of the interrupted sweep, or nil.
func (s *Store) LoadCheckpoint(ctx context.Context) (*entity.Checkpoint, error) {
	query := `
		SELECT collection_name, collection_sequence, item_sequence, variant_class, updated_at
		FROM scrape_checkpoint
		WHERE id = 1;
	`
	var (
		cp      entity.Checkpoint
		variant string
	)
	err := s.db.QueryRow(ctx, query).Scan(
		&cp.CollectionName,
		&cp.CollectionSequence,
		&cp.ItemSequence,
		&variant,
		&cp.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp.Variant, err = entity.ParseVariant(variant); err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return &cp, nil
}

// ClearCheckpoint removes the checkpoint once a sweep has finished.
func (s *Store) ClearCheckpoint(ctx context.Context) error {
	query := `DELETE FROM scrape_checkpoint WHERE id = 1;`
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}
