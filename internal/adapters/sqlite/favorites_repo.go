package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/mapnav/navclient/internal/core/domain"
)

// FavoritesRepo implements ports.FavoritesCache. The whole list is stored
// and replaced as one unit, preserving order.
type FavoritesRepo struct {
	db *DB
}

func NewFavoritesRepo(db *DB) *FavoritesRepo {
	return &FavoritesRepo{db: db}
}

// Load returns the cached list in saved order. An empty store yields an
// empty list.
func (r *FavoritesRepo) Load(ctx context.Context) ([]domain.FavoriteLocation, error) {
	rows, err := r.db.SQL.QueryContext(ctx, `
		SELECT id, name, address, lat, lng, tag
		FROM favorites ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	defer rows.Close()

	list := []domain.FavoriteLocation{}
	for rows.Next() {
		var f domain.FavoriteLocation
		if err := rows.Scan(&f.ID, &f.Name, &f.Address, &f.Location.Lat, &f.Location.Lng, &f.Tag); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		list = append(list, f)
	}
	return list, rows.Err()
}

// Save replaces the stored list. On error the previous list is kept.
func (r *FavoritesRepo) Save(ctx context.Context, list []domain.FavoriteLocation) error {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save favorites: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM favorites`); err != nil {
		return fmt.Errorf("save favorites: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO favorites (position, id, name, address, lat, lng, tag)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("save favorites: %w", err)
	}
	defer stmt.Close()

	for i, f := range list {
		if _, err := stmt.ExecContext(ctx, i, f.ID, f.Name, f.Address, f.Location.Lat, f.Location.Lng, f.Tag); err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				return fmt.Errorf("save favorite %q: %w", f.Name, domain.ErrDuplicateName)
			}
			return fmt.Errorf("save favorite %q: %w", f.Name, err)
		}
	}
	return tx.Commit()
}
