package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{fmt.Errorf("wrap: %w", ErrOutOfBounds), KindInput},
		{&MissingEndpointError{Endpoint: EndpointSource}, KindInput},
		{ErrDuplicateName, KindInput},
		{FavoriteCandidate{Location: MetroCenter}.Validate(), KindInput},
		{fmt.Errorf("wrap: %w", ErrInvalidInput), KindInput},
		{ErrUnauthorized, KindAuth},
		{ErrAuthRequired, KindAuth},
		{fmt.Errorf("decode: %w", ErrMalformedResponse), KindMalformed},
		{ErrNotFound, KindNotFound},
		{ErrSuperseded, KindStale},
		{ErrUnavailable, KindTransient},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestMissingEndpointError(t *testing.T) {
	err := fmt.Errorf("route: %w", &MissingEndpointError{Endpoint: EndpointDestination})
	if !errors.Is(err, ErrMissingEndpoint) {
		t.Error("expected errors.Is to match ErrMissingEndpoint")
	}
	var me *MissingEndpointError
	if !errors.As(err, &me) || me.Endpoint != EndpointDestination {
		t.Errorf("expected destination, got %v", me)
	}
}
