package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mapnav/navclient/internal/core/domain"
)

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type routeRequest struct {
	Start         latLng `json:"start"`
	End           latLng `json:"end"`
	TransportMode string `json:"transport_mode"`
	DepartureTime string `json:"departure_time,omitempty"`
}

type routeResponse struct {
	Routes []struct {
		Geometry json.RawMessage `json:"geometry"`
		Distance float64         `json:"distance"`
		Duration float64         `json:"duration"`
		Legs     []struct {
			Steps []struct {
				Name     string  `json:"name"`
				Distance float64 `json:"distance"`
				Duration float64 `json:"duration"`
				Maneuver struct {
					Type        string `json:"type"`
					Modifier    string `json:"modifier"`
					Instruction string `json:"instruction"`
				} `json:"maneuver"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
	TransitInfo *domain.TransitInfo `json:"transit_info"`
}

// Route implements ports.DirectionsService. Transit requests go to the
// transit endpoint, every other mode to the regular one.
func (cl *Client) Route(ctx context.Context, token string, req domain.RouteRequest) (*domain.RouteGeometry, error) {
	path := "/api/directions/route/"
	if req.Mode == domain.ModeTransit {
		path = "/api/directions/transit/"
	}
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeDriving
	}
	body := routeRequest{
		Start:         latLng{Lat: req.Start.Lat, Lng: req.Start.Lng},
		End:           latLng{Lat: req.End.Lat, Lng: req.End.Lng},
		TransportMode: string(mode),
	}
	if !req.DepartureTime.IsZero() {
		body.DepartureTime = req.DepartureTime.Format(time.RFC3339)
	}

	var resp routeResponse
	if err := cl.do(ctx, call{service: "directions", method: "POST", path: path, token: token, body: body}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Routes) == 0 {
		return nil, fmt.Errorf("directions: %w: no routes", domain.ErrMalformedResponse)
	}
	r := resp.Routes[0]
	geom, err := decodeGeometry(r.Geometry)
	if err != nil {
		return nil, fmt.Errorf("directions: %w: %v", domain.ErrMalformedResponse, err)
	}

	out := &domain.RouteGeometry{
		Path:      geom,
		Mode:      mode,
		Distance:  r.Distance,
		Duration:  r.Duration,
		FetchedAt: time.Now().UTC(),
	}
	for _, leg := range r.Legs {
		for _, s := range leg.Steps {
			instr := s.Maneuver.Instruction
			if instr == "" {
				instr = strings.TrimSpace(s.Maneuver.Type + " " + s.Maneuver.Modifier)
			}
			out.Steps = append(out.Steps, domain.RouteStep{
				Instruction: instr,
				Name:        s.Name,
				Distance:    s.Distance,
				Duration:    s.Duration,
			})
		}
	}
	if mode == domain.ModeTransit {
		out.Transit = resp.TransitInfo
	}
	return out, nil
}

// decodeGeometry accepts a bare GeoJSON geometry, a Feature or a
// FeatureCollection.
func decodeGeometry(raw json.RawMessage) (orb.Geometry, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("missing geometry")
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case "Feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, err
		}
		if f.Geometry == nil {
			return nil, fmt.Errorf("feature without geometry")
		}
		return f.Geometry, nil
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return nil, err
		}
		var coll orb.Collection
		for _, f := range fc.Features {
			if f.Geometry != nil {
				coll = append(coll, f.Geometry)
			}
		}
		if len(coll) == 0 {
			return nil, fmt.Errorf("empty feature collection")
		}
		return coll, nil
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, err
	}
	if g.Geometry() == nil {
		return nil, fmt.Errorf("unsupported geometry type %q", head.Type)
	}
	return g.Geometry(), nil
}
