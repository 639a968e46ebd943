package database

import (
	"context"
	"database/sql"
	"fmt"
)

var _ CategoryStore = (*CategoryRepository)(nil)

// DefaultCategory is used when a story's category cannot be resolved.
const DefaultCategory = "world"

// CategoryRepository resolves category names against the shared
// categories table.
type CategoryRepository struct {
	db *DB
}

func NewCategoryRepository(db *DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// GetCategoryID looks up a category by name, falling back to the
// default category when the name is unknown.
func (r *CategoryRepository) GetCategoryID(ctx context.Context, name string) (string, error) {
	id, err := r.lookup(ctx, name)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	return r.lookup(ctx, DefaultCategory)
}

func (r *CategoryRepository) lookup(ctx context.Context, name string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, "SELECT id FROM categories WHERE name = ?", name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up category %s: %w", name, err)
	}

	return id, nil
}
