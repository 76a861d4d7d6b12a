package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SequenceRepository hands out monotonically increasing values for
// human-readable codes (TGT0001, PROD0001). A dedicated row per sequence
// keeps numbering safe under concurrent inserts and deletions, unlike
// counting rows.
type SequenceRepository struct {
	db *sqlx.DB
}

// NewSequenceRepository creates a SequenceRepository.
func NewSequenceRepository(db *sqlx.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Next atomically increments and returns the named sequence value,
// creating it at 1 on first use.
func (r *SequenceRepository) Next(ctx context.Context, name string) (int64, error) {
	const query = `INSERT INTO sequences (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = sequences.value + 1
		RETURNING value`
	var value int64
	if err := r.db.GetContext(ctx, &value, query, name); err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", name, err)
	}
	return value, nil
}

// NextCode formats the next sequence value with the given prefix,
// zero-padded to four digits (PROD0007, TGT0012).
func (r *SequenceRepository) NextCode(ctx context.Context, name, prefix string) (string, error) {
	value, err := r.Next(ctx, name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, value), nil
}
