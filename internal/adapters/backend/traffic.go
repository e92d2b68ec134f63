package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/mapnav/navclient/internal/core/domain"
)

// Traffic serves the latest traffic snapshot.
type Traffic struct{ cl *Client }

func (cl *Client) Traffic() *Traffic { return &Traffic{cl: cl} }

// Latest returns the snapshot's feature collection. A 404 means nothing has
// been collected yet and yields an empty collection.
func (t *Traffic) Latest(ctx context.Context, token string) (*geojson.FeatureCollection, error) {
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	err := t.cl.do(ctx, call{service: "traffic", method: "GET", path: "/api/traffic/latest/", token: token}, &resp)
	if errors.Is(err, domain.ErrNotFound) {
		return geojson.NewFeatureCollection(), nil
	}
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil, fmt.Errorf("traffic: %w: missing data", domain.ErrMalformedResponse)
	}
	fc, err := geojson.UnmarshalFeatureCollection(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("traffic: %w: %v", domain.ErrMalformedResponse, err)
	}
	return fc, nil
}
