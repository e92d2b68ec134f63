package overpass

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/serjvanilla/go-overpass"

	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/ports"
	"github.com/mapnav/navclient/internal/pkg/geospatial"
	"github.com/mapnav/navclient/internal/pkg/metrics"
)

// TaxiProvider finds taxi stands (amenity=taxi) in OpenStreetMap. It is the
// keyless alternative to the backend's places proxy.
type TaxiProvider struct {
	client *overpass.Client
}

var _ ports.POIProvider = (*TaxiProvider)(nil)

// NewTaxiProvider creates a provider against an Overpass interpreter URL.
func NewTaxiProvider(endpoint string, timeout time.Duration) *TaxiProvider {
	httpClient := &http.Client{Timeout: timeout}
	client := overpass.NewWithSettings(endpoint, 2, httpClient)
	return &TaxiProvider{client: &client}
}

func taxiQuery(q ports.NearbyQuery) string {
	radius := q.RadiusMeters
	if radius <= 0 {
		radius = 5000
	}
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(q.Origin.Lat, q.Origin.Lng, float64(radius))
	bbox := fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", minLat, minLon, maxLat, maxLon)
	return fmt.Sprintf(`[out:json][timeout:25];
(
	node["amenity"="taxi"](%[1]s);
	way["amenity"="taxi"](%[1]s);
);
out body;
>;
out skel qt;`, bbox)
}

// Nearby runs the query. The token is not used; Overpass is anonymous.
func (p *TaxiProvider) Nearby(ctx context.Context, _ string, q ports.NearbyQuery) ([]domain.PointOfInterest, error) {
	start := time.Now()
	defer metrics.ObserveBackend("overpass", start)

	type outcome struct {
		res overpass.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := p.client.Query(taxiQuery(q))
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		if o.err != nil {
			metrics.BackendErrors.WithLabelValues("overpass", string(domain.KindTransient)).Inc()
			return nil, fmt.Errorf("overpass: %w: %v", domain.ErrUnavailable, o.err)
		}
		return taxiPOIs(&o.res), nil
	}
}

func taxiPOIs(res *overpass.Result) []domain.PointOfInterest {
	var out []domain.PointOfInterest
	for _, n := range res.Nodes {
		if n.Tags["amenity"] != "taxi" {
			// skeleton node of a way
			continue
		}
		out = append(out, taxiPOI("node", n.ID, n.Tags, domain.Coordinate{Lat: n.Lat, Lng: n.Lon}))
	}
	for _, w := range res.Ways {
		if w.Tags["amenity"] != "taxi" || len(w.Nodes) == 0 {
			continue
		}
		var lat, lon float64
		var count int
		for _, n := range w.Nodes {
			if n == nil {
				continue
			}
			lat += n.Lat
			lon += n.Lon
			count++
		}
		if count == 0 {
			continue
		}
		out = append(out, taxiPOI("way", w.ID, w.Tags, domain.Coordinate{Lat: lat / float64(count), Lng: lon / float64(count)}))
	}
	return out
}

func taxiPOI(kind string, id int64, tags map[string]string, at domain.Coordinate) domain.PointOfInterest {
	name := tags["name"]
	if name == "" {
		name = "Taksi"
	}
	phone := tags["phone"]
	if phone == "" {
		phone = tags["contact:phone"]
	}
	address := tags["addr:street"]
	if num := tags["addr:housenumber"]; address != "" && num != "" {
		address += " " + num
	}
	return domain.PointOfInterest{
		ID:       "osm-" + kind + "-" + strconv.FormatInt(id, 10),
		Type:     domain.POITaxi,
		Name:     name,
		Location: at,
		Address:  address,
		Phone:    phone,
	}
}
