package backend

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mapnav/navclient/internal/core/domain"
)

type favoriteWire struct {
	ID        wireID  `json:"id,omitempty"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Tag       string  `json:"tag,omitempty"`
}

func (w favoriteWire) toDomain() domain.FavoriteLocation {
	return domain.FavoriteLocation{
		ID:       string(w.ID),
		Name:     w.Name,
		Address:  w.Address,
		Location: domain.Coordinate{Lat: w.Latitude, Lng: w.Longitude},
		Tag:      w.Tag,
	}
}

// Favorites adapts the client to ports.FavoritesService.
type Favorites struct{ cl *Client }

func (cl *Client) Favorites() *Favorites { return &Favorites{cl: cl} }

func (f *Favorites) List(ctx context.Context, token string) ([]domain.FavoriteLocation, error) {
	var wire []favoriteWire
	if err := f.cl.do(ctx, call{service: "favorites", method: "GET", path: "/api/users/favorites/", token: token}, &wire); err != nil {
		return nil, err
	}
	out := make([]domain.FavoriteLocation, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toDomain())
	}
	return out, nil
}

func (f *Favorites) Create(ctx context.Context, token string, c domain.FavoriteCandidate) (*domain.FavoriteLocation, error) {
	body := favoriteWire{
		Name:      c.Name,
		Address:   c.Address,
		Latitude:  c.Location.Lat,
		Longitude: c.Location.Lng,
		Tag:       c.Tag,
	}
	var created favoriteWire
	err := f.cl.do(ctx, call{service: "favorites", method: "POST", path: "/api/users/favorites/", token: token, body: body}, &created)
	if isDuplicate(err) {
		return nil, fmt.Errorf("favorites: %w", domain.ErrDuplicateName)
	}
	if err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, fmt.Errorf("favorites: %w: created favorite without id", domain.ErrMalformedResponse)
	}
	loc := created.toDomain()
	return &loc, nil
}

func (f *Favorites) Delete(ctx context.Context, token, id string) error {
	return f.cl.do(ctx, call{service: "favorites", method: "DELETE", path: "/api/users/favorites/" + url.PathEscape(id) + "/", token: token}, nil)
}
