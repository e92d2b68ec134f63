package backend

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/mapnav/navclient/internal/core/domain"
)

type areaWire struct {
	ID             wireID    `json:"id,omitempty"`
	PreferenceType string    `json:"preference_type"`
	MinLat         float64   `json:"min_lat"`
	MinLon         float64   `json:"min_lon"`
	MaxLat         float64   `json:"max_lat"`
	MaxLon         float64   `json:"max_lon"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

func (w areaWire) toDomain() domain.AreaPreference {
	return domain.AreaPreference{
		ID:        string(w.ID),
		Type:      domain.PreferenceType(w.PreferenceType),
		Bounds:    domain.Bounds{MinLat: w.MinLat, MinLng: w.MinLon, MaxLat: w.MaxLat, MaxLng: w.MaxLon},
		Reason:    w.Reason,
		CreatedAt: w.CreatedAt,
	}
}

// AreaPreferences adapts the client to ports.AreaPreferenceService.
type AreaPreferences struct{ cl *Client }

func (cl *Client) AreaPreferences() *AreaPreferences { return &AreaPreferences{cl: cl} }

const areaPath = "/api/routing/area-preferences/"

func (a *AreaPreferences) List(ctx context.Context, token string) ([]domain.AreaPreference, error) {
	var wire []areaWire
	if err := a.cl.do(ctx, call{service: "area_preferences", method: "GET", path: areaPath, token: token}, &wire); err != nil {
		return nil, err
	}
	out := make([]domain.AreaPreference, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toDomain())
	}
	return out, nil
}

func (a *AreaPreferences) Create(ctx context.Context, token string, p domain.AreaPreference) (*domain.AreaPreference, error) {
	body := struct {
		PreferenceType string  `json:"preference_type"`
		MinLat         float64 `json:"min_lat"`
		MinLon         float64 `json:"min_lon"`
		MaxLat         float64 `json:"max_lat"`
		MaxLon         float64 `json:"max_lon"`
		Reason         string  `json:"reason,omitempty"`
	}{string(p.Type), p.Bounds.MinLat, p.Bounds.MinLng, p.Bounds.MaxLat, p.Bounds.MaxLng, p.Reason}

	var created areaWire
	if err := a.cl.do(ctx, call{service: "area_preferences", method: "POST", path: areaPath, token: token, body: body}, &created); err != nil {
		return nil, err
	}
	if created.ID == "" {
		return nil, fmt.Errorf("area_preferences: %w: created preference without id", domain.ErrMalformedResponse)
	}
	out := created.toDomain()
	if out.Type == "" {
		out.Type = p.Type
	}
	return &out, nil
}

func (a *AreaPreferences) Delete(ctx context.Context, token, id string) error {
	return a.cl.do(ctx, call{service: "area_preferences", method: "DELETE", path: areaPath + url.PathEscape(id) + "/", token: token}, nil)
}
