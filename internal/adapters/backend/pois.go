package backend

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/ports"
)

type nullableLatLng struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// coordinate returns the zero Coordinate when either axis is missing, which
// the discovery workflow rejects as out of bounds.
func (l *nullableLatLng) coordinate() domain.Coordinate {
	if l == nil || l.Lat == nil || l.Lng == nil {
		return domain.Coordinate{}
	}
	return domain.Coordinate{Lat: *l.Lat, Lng: *l.Lng}
}

type pharmacyWire struct {
	ID        wireID          `json:"id"`
	Name      string          `json:"name"`
	Address   string          `json:"address"`
	Phone     string          `json:"phone"`
	District  string          `json:"district"`
	ExtraInfo string          `json:"extra_info"`
	Date      string          `json:"date"`
	Location  *nullableLatLng `json:"location"`
	Distance  *float64        `json:"distance"`
}

// Pharmacies serves duty pharmacy lookups.
type Pharmacies struct{ cl *Client }

func (cl *Client) Pharmacies() *Pharmacies { return &Pharmacies{cl: cl} }

var (
	_ ports.POIProvider           = (*Pharmacies)(nil)
	_ ports.PharmacyStatusChecker = (*Pharmacies)(nil)
	_ ports.POIProvider           = (*TaxiStations)(nil)
	_ ports.POIProvider           = (*WiFiPoints)(nil)
	_ ports.POIProvider           = (*BicycleStations)(nil)
)

// Nearby returns the duty pharmacies for q.Date ordered by the backend.
// A 404 means no data for the day and yields an empty list.
func (p *Pharmacies) Nearby(ctx context.Context, token string, q ports.NearbyQuery) ([]domain.PointOfInterest, error) {
	query := url.Values{}
	query.Set("lat", formatFloat(q.Origin.Lat))
	query.Set("lng", formatFloat(q.Origin.Lng))
	if q.Date != "" {
		query.Set("date", q.Date)
	}
	var wire []pharmacyWire
	err := p.cl.do(ctx, call{service: "pharmacies", method: "GET", path: "/api/pharmacies/nearest/", token: token, query: query}, &wire)
	if errors.Is(err, domain.ErrNotFound) {
		return []domain.PointOfInterest{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.PointOfInterest, 0, len(wire))
	for _, w := range wire {
		out = append(out, domain.PointOfInterest{
			ID:         string(w.ID),
			Type:       domain.POIPharmacy,
			Name:       w.Name,
			Location:   w.Location.coordinate(),
			Address:    w.Address,
			Phone:      w.Phone,
			DistanceKm: w.Distance,
			District:   w.District,
			ExtraInfo:  w.ExtraInfo,
			Date:       w.Date,
		})
	}
	return out, nil
}

// CheckToday asks whether today's duty list is loaded.
func (p *Pharmacies) CheckToday(ctx context.Context, token string) (*domain.PharmacyDataStatus, error) {
	var st domain.PharmacyDataStatus
	if err := p.cl.do(ctx, call{service: "pharmacies", method: "GET", path: "/api/pharmacies/check-today/", token: token}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

type taxiWire struct {
	Name        string          `json:"name"`
	PlaceID     string          `json:"place_id"`
	Location    *nullableLatLng `json:"location"`
	Rating      *float64        `json:"rating"`
	PhoneNumber *string         `json:"phoneNumber"`
	Vicinity    string          `json:"vicinity"`
}

// TaxiStations serves taxi stand lookups through the backend's places proxy.
type TaxiStations struct{ cl *Client }

func (cl *Client) TaxiStations() *TaxiStations { return &TaxiStations{cl: cl} }

func (t *TaxiStations) Nearby(ctx context.Context, token string, q ports.NearbyQuery) ([]domain.PointOfInterest, error) {
	radius := q.RadiusMeters
	if radius <= 0 {
		radius = 5000
	}
	query := url.Values{}
	query.Set("location", formatFloat(q.Origin.Lat)+","+formatFloat(q.Origin.Lng))
	query.Set("radius", strconv.Itoa(radius))

	var wire []taxiWire
	if err := t.cl.do(ctx, call{service: "taxi_stations", method: "GET", path: "/api/taxi-stations/", token: token, query: query}, &wire); err != nil {
		return nil, err
	}
	out := make([]domain.PointOfInterest, 0, len(wire))
	for _, w := range wire {
		poi := domain.PointOfInterest{
			ID:       w.PlaceID,
			Type:     domain.POITaxi,
			Name:     w.Name,
			Location: w.Location.coordinate(),
			Address:  w.Vicinity,
			Rating:   w.Rating,
		}
		if w.PhoneNumber != nil {
			poi.Phone = *w.PhoneNumber
		}
		out = append(out, poi)
	}
	return out, nil
}

// pointWire is the flat shape shared by the wifi and bicycle listings. The
// backend's file fallback omits id, so the ID is left to discovery.
type pointWire struct {
	ID        wireID   `json:"id"`
	GlobalID  string   `json:"global_id"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Category  string   `json:"category"`
	IsActive  *bool    `json:"is_active"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (w pointWire) active() bool { return w.IsActive == nil || *w.IsActive }

func (w pointWire) poi(t domain.POIType) domain.PointOfInterest {
	loc := nullableLatLng{Lat: w.Latitude, Lng: w.Longitude}
	return domain.PointOfInterest{
		ID:        string(w.ID),
		Type:      t,
		Name:      w.Name,
		Location:  loc.coordinate(),
		Address:   w.Address,
		ExtraInfo: w.Category,
	}
}

// listPoints fetches a full listing; the backend does no spatial filtering
// for these families. A 404 yields an empty list.
func (cl *Client) listPoints(ctx context.Context, service, path, token string) ([]pointWire, error) {
	var wire []pointWire
	err := cl.do(ctx, call{service: service, method: "GET", path: path, token: token}, &wire)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return wire, err
}

// WiFiPoints serves public wifi hotspots.
type WiFiPoints struct{ cl *Client }

func (cl *Client) WiFiPoints() *WiFiPoints { return &WiFiPoints{cl: cl} }

// Nearby returns every active hotspot. Distance ordering is left to the
// caller.
func (p *WiFiPoints) Nearby(ctx context.Context, token string, _ ports.NearbyQuery) ([]domain.PointOfInterest, error) {
	wire, err := p.cl.listPoints(ctx, "wifi_points", "/api/wifi-points/", token)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PointOfInterest, 0, len(wire))
	for _, w := range wire {
		if !w.active() {
			continue
		}
		out = append(out, w.poi(domain.POIWiFi))
	}
	return out, nil
}

// BicycleStations serves bike share stations.
type BicycleStations struct{ cl *Client }

func (cl *Client) BicycleStations() *BicycleStations { return &BicycleStations{cl: cl} }

func (b *BicycleStations) Nearby(ctx context.Context, token string, _ ports.NearbyQuery) ([]domain.PointOfInterest, error) {
	wire, err := b.cl.listPoints(ctx, "bicycle_stations", "/api/bicycle-stations/", token)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PointOfInterest, 0, len(wire))
	for _, w := range wire {
		if !w.active() {
			continue
		}
		poi := w.poi(domain.POIBicycle)
		if poi.ID == "" {
			poi.ID = w.GlobalID
		}
		out = append(out, poi)
	}
	return out, nil
}
