package natsadapter

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mapnav/navclient/internal/core/domain"
)

// SubjectPrefix is prepended to the event type to form the subject.
const SubjectPrefix = "navclient.events."

// Subject returns the JetStream subject an event is published on.
func Subject(t domain.EventType) string {
	return SubjectPrefix + string(t)
}

// EncodeEvent serializes an event as a protobuf Struct.
func EncodeEvent(e domain.Event) ([]byte, error) {
	attrs := e.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	s, err := structpb.NewStruct(map[string]any{
		"type":        string(e.Type),
		"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339Nano),
		"attributes":  attrs,
	})
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", e.Type, err)
	}
	return proto.Marshal(s)
}

// DecodeEvent is the inverse of EncodeEvent. Numeric attributes come back
// as float64.
func DecodeEvent(data []byte) (domain.Event, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return domain.Event{}, fmt.Errorf("decode event: %w", err)
	}
	m := s.AsMap()
	typ, _ := m["type"].(string)
	if typ == "" {
		return domain.Event{}, fmt.Errorf("decode event: missing type")
	}
	e := domain.Event{Type: domain.EventType(typ)}
	if ts, ok := m["occurred_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			e.OccurredAt = t
		}
	}
	if attrs, ok := m["attributes"].(map[string]any); ok && len(attrs) > 0 {
		e.Attributes = attrs
	}
	return e, nil
}
