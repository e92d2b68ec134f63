package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/usecases"
)

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		in      string
		want    domain.Coordinate
		wantErr bool
	}{
		{in: "39.93,32.86", want: domain.Coordinate{Lat: 39.93, Lng: 32.86}},
		{in: " 39.93 , 32.86 ", want: domain.Coordinate{Lat: 39.93, Lng: 32.86}},
		{in: "39.93", wantErr: true},
		{in: "north,32.86", wantErr: true},
		{in: "41.0,29.0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseCoordinate(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseCoordinate_OutsideMetroArea(t *testing.T) {
	_, err := parseCoordinate("41.0,29.0")
	if !errors.Is(err, domain.ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestWriteExport(t *testing.T) {
	list := []domain.FavoriteLocation{
		{ID: "1", Name: "Home", Address: "Kizilay", Location: domain.Coordinate{Lat: 39.92, Lng: 32.85}, Tag: "home"},
		{ID: "2", Name: "Office", Location: domain.Coordinate{Lat: 39.9, Lng: 32.8}},
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	if err := writeExport(&buf, usecases.FavoritesLocal, list, now); err != nil {
		t.Fatalf("writeExport: %v", err)
	}

	var doc favoritesExport
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("export is not valid YAML: %v\n%s", err, buf.String())
	}
	if doc.Source != usecases.FavoritesLocal || !doc.ExportedAt.Equal(now) {
		t.Errorf("header = %q %v", doc.Source, doc.ExportedAt)
	}
	if len(doc.Favorites) != 2 || doc.Favorites[0].Name != "Home" || doc.Favorites[1].Lat != 39.9 {
		t.Errorf("favorites = %+v", doc.Favorites)
	}
	if strings.Contains(buf.String(), "address: \"\"") {
		t.Error("empty address should be omitted")
	}
}

func TestPrintResult(t *testing.T) {
	v := trafficSummary{State: usecases.TrafficOn, Features: 3}

	var js bytes.Buffer
	if err := printResult(&js, v, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(js.String(), `"features": 3`) {
		t.Errorf("json = %s", js.String())
	}

	var ym bytes.Buffer
	if err := printResult(&ym, v, true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ym.String(), "features: 3") {
		t.Errorf("yaml = %s", ym.String())
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"serve"}, {"route"}, {"discover"}, {"traffic"},
		{"favorites", "list"}, {"favorites", "add"}, {"favorites", "remove"}, {"favorites", "export"},
		{"areas", "list"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not registered", path)
		}
	}
}
