package ports

import (
	"context"

	"github.com/mapnav/navclient/internal/core/domain"
)

// FavoritesCache is the device-local favorites store used when no token is
// present. Save replaces the whole list.
type FavoritesCache interface {
	Load(ctx context.Context) ([]domain.FavoriteLocation, error)
	Save(ctx context.Context, favorites []domain.FavoriteLocation) error
}
