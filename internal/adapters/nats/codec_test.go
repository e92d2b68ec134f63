package natsadapter

import (
	"testing"
	"time"

	"github.com/mapnav/navclient/internal/core/domain"
)

func TestEncodeDecodeEvent(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	in := domain.Event{
		Type:       domain.EventRouteComputed,
		OccurredAt: at,
		Attributes: map[string]any{"mode": "driving", "distance": 2500.0, "count": 3},
	}
	data, err := EncodeEvent(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Type != in.Type || !out.OccurredAt.Equal(at) {
		t.Errorf("unexpected header %+v", out)
	}
	if out.Attributes["mode"] != "driving" || out.Attributes["count"] != 3.0 {
		t.Errorf("unexpected attributes %+v", out.Attributes)
	}
}

func TestEncodeEventWithoutAttributes(t *testing.T) {
	data, err := EncodeEvent(domain.NewEvent(domain.EventSessionRevoked, nil))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Attributes != nil {
		t.Errorf("expected no attributes, got %v", out.Attributes)
	}
}

func TestEncodeEventRejectsUnsupportedValue(t *testing.T) {
	_, err := EncodeEvent(domain.Event{Type: domain.EventAreaSubmitted, Attributes: map[string]any{"ch": make(chan int)}})
	if err == nil {
		t.Error("expected error for unsupported attribute type")
	}
}

func TestDecodeEventRequiresType(t *testing.T) {
	if _, err := DecodeEvent(nil); err == nil {
		t.Error("expected error for empty payload")
	}
}

func TestSubject(t *testing.T) {
	if got := Subject(domain.EventFavoriteAdded); got != "navclient.events.favorite.added" {
		t.Errorf("unexpected subject %s", got)
	}
}
