package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb/geojson"

	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/ports"
	"github.com/mapnav/navclient/internal/pkg/metrics"
	"github.com/mapnav/navclient/internal/pkg/telemetry"
)

// TrafficState tags the traffic layer lifecycle.
type TrafficState string

const (
	TrafficOff     TrafficState = "off"
	TrafficLoading TrafficState = "loading"
	TrafficOn      TrafficState = "on"
	TrafficError   TrafficState = "error"
)

// Congestion thresholds on the 0..1 scale.
const (
	congestionHigh   = 0.7
	congestionMedium = 0.4
)

var severityColors = map[domain.TrafficSeverity]string{
	domain.SeverityHigh:    "#FF0000",
	domain.SeverityMedium:  "#FFA500",
	domain.SeverityLow:     "#008000",
	domain.SeverityUnknown: "#808080",
}

// SeverityOf buckets a traffic feature from its severity label or its
// congestion value.
func SeverityOf(props geojson.Properties) domain.TrafficSeverity {
	for _, key := range []string{"severity", "congestion_level", "congestion"} {
		v, ok := props[key]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case float64:
			return severityFromValue(x)
		case int:
			return severityFromValue(float64(x))
		case string:
			if f, err := strconv.ParseFloat(x, 64); err == nil {
				return severityFromValue(f)
			}
			switch strings.ToLower(x) {
			case "high", "heavy":
				return domain.SeverityHigh
			case "medium", "moderate":
				return domain.SeverityMedium
			case "low", "light":
				return domain.SeverityLow
			}
		}
		return domain.SeverityUnknown
	}
	return domain.SeverityUnknown
}

func severityFromValue(v float64) domain.TrafficSeverity {
	switch {
	case v >= congestionHigh:
		return domain.SeverityHigh
	case v >= congestionMedium:
		return domain.SeverityMedium
	case v >= 0:
		return domain.SeverityLow
	}
	return domain.SeverityUnknown
}

// trafficShapes styles each drawable feature. Features without geometry are
// skipped.
func trafficShapes(fc *geojson.FeatureCollection) []domain.Shape {
	shapes := make([]domain.Shape, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		sev := SeverityOf(f.Properties)
		title := f.Properties.MustString("name", "")
		shapes = append(shapes, domain.Shape{
			Kind:     domain.ShapePath,
			Position: domain.CoordinateFromPoint(f.Geometry.Bound().Center()),
			Geometry: f.Geometry,
			Title:    title,
			Ref:      string(sev),
			Style:    domain.ShapeStyle{Color: severityColors[sev], Weight: 3, Opacity: 0.65},
		})
	}
	return shapes
}

// TrafficService renders the token-gated traffic layer and keeps it above
// the base layer across style switches.
type TrafficService struct {
	overlays  *OverlayManager
	feed      ports.TrafficFeed
	session   *Session
	publisher ports.EventPublisher

	// refetchOnStyle re-queries traffic after a base style switch.
	refetchOnStyle bool

	mu      sync.Mutex
	state   TrafficState
	enabled bool
	seq     uint64
	lastErr string
}

// NewTrafficService creates a disabled traffic controller.
func NewTrafficService(overlays *OverlayManager, feed ports.TrafficFeed, session *Session, publisher ports.EventPublisher, refetchOnStyle bool) *TrafficService {
	return &TrafficService{
		overlays:       overlays,
		feed:           feed,
		session:        session,
		publisher:      publisher,
		refetchOnStyle: refetchOnStyle,
		state:          TrafficOff,
	}
}

// State returns the current layer state.
func (s *TrafficService) State() TrafficState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Enabled reports whether the layer is switched on.
func (s *TrafficService) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// LastError returns the message of the last failed fetch.
func (s *TrafficService) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Enable fetches and draws the traffic layer. Without a token nothing is
// fetched. A transient failure keeps the previous layer; a malformed payload
// clears it.
func (s *TrafficService) Enable(ctx context.Context) error {
	token, ok := s.session.Token()
	if !ok {
		return domain.ErrAuthRequired
	}

	ctx, span := telemetry.Start(ctx, telemetry.SpanTrafficFetch)
	defer span.End()

	s.mu.Lock()
	s.enabled = true
	s.state = TrafficLoading
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	fc, err := s.feed.Latest(ctx, token)
	if err == nil && fc == nil {
		err = fmt.Errorf("%w: empty traffic payload", domain.ErrMalformedResponse)
	}

	s.mu.Lock()
	stale := seq != s.seq || !s.enabled
	var applyErr error
	if !stale {
		applyErr = s.applyLocked(fc, err)
	}
	s.mu.Unlock()

	// a rejected token is invalid whether or not this response is stale
	if errors.Is(err, domain.ErrUnauthorized) {
		s.session.Revoke(ctx, token)
	}
	if stale {
		metrics.StaleResponses.WithLabelValues("traffic").Inc()
		return domain.ErrSuperseded
	}
	if applyErr != nil {
		span.RecordError(applyErr)
		return applyErr
	}
	publish(ctx, s.publisher, domain.NewEvent(domain.EventTrafficRefreshed, map[string]any{
		"features": len(fc.Features),
	}))
	return nil
}

func (s *TrafficService) applyLocked(fc *geojson.FeatureCollection, fetchErr error) error {
	if fetchErr != nil {
		s.state, s.lastErr = TrafficError, fetchErr.Error()
		if errors.Is(fetchErr, domain.ErrMalformedResponse) {
			if err := s.overlays.Clear(domain.CategoryTraffic); err != nil {
				slog.Warn("clear traffic layer", "error", err)
			}
		}
		return fmt.Errorf("traffic: %w", fetchErr)
	}
	if _, err := s.overlays.ReplaceSet(domain.CategoryTraffic, trafficShapes(fc)); err != nil {
		s.state, s.lastErr = TrafficError, err.Error()
		return err
	}
	s.state, s.lastErr = TrafficOn, ""
	return nil
}

// Disable removes the layer. Disabling a layer that was never enabled is a
// no-op.
func (s *TrafficService) Disable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.enabled = false
	s.state, s.lastErr = TrafficOff, ""
	return s.overlays.Clear(domain.CategoryTraffic)
}

// SwitchBaseStyle changes the base layer and lifts traffic back on top.
func (s *TrafficService) SwitchBaseStyle(ctx context.Context, style domain.MapStyle) error {
	style, err := domain.ParseMapStyle(string(style))
	if err != nil {
		return err
	}
	if err := s.overlays.SetBaseStyle(style); err != nil {
		return err
	}
	if !s.Enabled() {
		return nil
	}
	if err := s.overlays.Redraw(domain.CategoryTraffic); err != nil {
		return err
	}
	if s.refetchOnStyle {
		if err := s.Enable(ctx); err != nil && !errors.Is(err, domain.ErrSuperseded) {
			return err
		}
	}
	return nil
}

// HandleSessionChange drops the layer once no token is left.
func (s *TrafficService) HandleSessionChange(ctx context.Context, change SessionChange) {
	if s.session.Authenticated() {
		return
	}
	if err := s.Disable(ctx); err != nil {
		slog.Warn("disable traffic after session change", "change", change, "error", err)
	}
}
