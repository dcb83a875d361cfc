package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/otp-analysis/internal/geo"
	"github.com/otp-analysis/internal/otp"
)

const pointsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "north"}, "geometry": {"type": "Point", "coordinates": [1, 1]}},
    {"type": "Feature", "properties": {"name": "south"}, "geometry": {"type": "Point", "coordinates": [2, 2]}}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestParseJob(t *testing.T) {
	job, err := ParseJob([]byte(`
name: morning peak
kind: odmatrix
mode: TRANSIT,WALK
departure: "2024-03-05T08:00:00+11:00"
origins:
  path: origins.geojson
  idField: name
  crs: EPSG:4326
destinations:
  path: destinations.geojson
  idField: name
  crs: EPSG:3857
maxTravelTimeMinutes: 45
params:
  maxWalkDistance: "1000"
  wheelchair: "false"
output: out.geojson
`))
	if err != nil {
		t.Fatalf("ParseJob failed: %v", err)
	}

	if job.Kind != KindODMatrix {
		t.Errorf("Expected kind odmatrix, got %s", job.Kind)
	}
	if job.MaxTravelTimeMinutes == nil || *job.MaxTravelTimeMinutes != 45 {
		t.Errorf("Expected max travel time 45, got %v", job.MaxTravelTimeMinutes)
	}
	if job.Destinations == nil || job.Destinations.CRS != "EPSG:3857" {
		t.Errorf("Expected destinations in EPSG:3857, got %+v", job.Destinations)
	}
	if job.Params["maxWalkDistance"] != "1000" {
		t.Errorf("Expected maxWalkDistance 1000, got %q", job.Params["maxWalkDistance"])
	}
	dep, err := job.DepartureTime()
	if err != nil {
		t.Fatalf("DepartureTime failed: %v", err)
	}
	if dep.UTC().Hour() != 21 {
		t.Errorf("Expected 21:00 UTC, got %s", dep.UTC())
	}
	if job.DisplayName() != "morning peak" {
		t.Errorf("Expected display name 'morning peak', got %q", job.DisplayName())
	}
}

func TestParseJobValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown kind", `
kind: heatmap
departure: "2024-03-05T08:00:00Z"
origins: {path: o.geojson, crs: EPSG:4326}
output: out.geojson`},
		{"missing crs", `
kind: isochrone
departure: "2024-03-05T08:00:00Z"
origins: {path: o.geojson}
output: out.geojson`},
		{"odmatrix without destinations", `
kind: odmatrix
departure: "2024-03-05T08:00:00Z"
origins: {path: o.geojson, crs: EPSG:4326}
output: out.geojson`},
		{"bad departure", `
kind: isochrone
departure: "tomorrow morning"
origins: {path: o.geojson, crs: EPSG:4326}
output: out.geojson`},
		{"negative break", `
kind: isochrone
departure: "2024-03-05T08:00:00Z"
origins: {path: o.geojson, crs: EPSG:4326}
breaks: [10, -1]
output: out.geojson`},
		{"missing output", `
kind: isochrone
departure: "2024-03-05T08:00:00Z"
origins: {path: o.geojson, crs: EPSG:4326}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseJob([]byte(tt.doc)); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoadJobResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "job.yaml", `
kind: isochrone
departure: "2024-03-05T08:00:00Z"
origins: {path: data/origins.geojson, crs: EPSG:4326}
output: /tmp/out.geojson
`)

	job, err := LoadJob(path)
	if err != nil {
		t.Fatalf("LoadJob failed: %v", err)
	}
	if got := job.Resolve(job.Origins.Path); got != filepath.Join(dir, "data", "origins.geojson") {
		t.Errorf("Expected origins under job dir, got %s", got)
	}
	if got := job.Resolve(job.Output); got != "/tmp/out.geojson" {
		t.Errorf("Expected absolute output untouched, got %s", got)
	}
}

func TestRunnerODMatrixJob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "points.geojson", pointsGeoJSON)
	path := writeFile(t, dir, "job.yaml", `
kind: odmatrix
departure: "2024-03-05T08:00:00Z"
origins: {path: points.geojson, idField: name, crs: EPSG:4326}
destinations: {path: points.geojson, idField: name, crs: EPSG:4326}
output: out.geojson
`)
	job, err := LoadJob(path)
	if err != nil {
		t.Fatalf("LoadJob failed: %v", err)
	}

	planner := &fakePlanner{failTrips: map[string]bool{"from south to north": true}}
	out, err := NewRunner(planner, Options{Progress: &recordingReporter{}}, nil).Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if out.Records != 3 {
		t.Errorf("Expected 3 legs, got %d", out.Records)
	}
	if len(out.Failures) != 1 {
		t.Errorf("Expected 1 failure, got %d", len(out.Failures))
	}
	if out.RunID == "" {
		t.Error("Expected a run id")
	}
	if len(out.Features.Features) != 3 {
		t.Errorf("Expected 3 features, got %d", len(out.Features.Features))
	}
	if !strings.Contains(out.Summary(), "3 records, 1 failures") {
		t.Errorf("Unexpected summary %q", out.Summary())
	}
}

func TestRunnerRouteJob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "points.geojson", pointsGeoJSON)
	path := writeFile(t, dir, "job.yaml", `
kind: route
tripName: commute
departure: "2024-03-05T08:00:00Z"
origins: {path: points.geojson, idField: name, crs: EPSG:4326}
destinations: {path: points.geojson, idField: name, crs: EPSG:4326}
output: out.geojson
`)
	job, err := LoadJob(path)
	if err != nil {
		t.Fatalf("LoadJob failed: %v", err)
	}

	planner := &fakePlanner{}
	out, err := NewRunner(planner, Options{}, nil).Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := planner.routed(); len(got) != 1 || got[0] != "commute" {
		t.Errorf("Expected one route named commute, got %v", got)
	}
	if out.Records != 1 {
		t.Errorf("Expected 1 leg, got %d", out.Records)
	}
}

func TestLoadJobRejectsUnsupportedCRS(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "job.yaml", `
kind: route
departure: "2024-03-05T08:00:00Z"
origins: {path: points.geojson, idField: name, crs: EPSG:28355}
destinations: {path: points.geojson, idField: name, crs: EPSG:4326}
output: out.geojson
`)
	if _, err := LoadJob(path); !errors.Is(err, geo.ErrUnsupportedCRS) {
		t.Errorf("Expected ErrUnsupportedCRS, got %v", err)
	}
}

func TestRunnerRouteJobUnsupportedCRS(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "points.geojson", pointsGeoJSON)
	job := &Job{
		Kind:         KindRoute,
		Departure:    "2024-03-05T08:00:00Z",
		Origins:      PointSource{Path: "points.geojson", IDField: "name", CRS: "EPSG:28355"},
		Destinations: &PointSource{Path: "points.geojson", IDField: "name", CRS: "EPSG:4326"},
		Output:       "out.geojson",
		baseDir:      dir,
	}

	planner := &fakePlanner{}
	_, err := NewRunner(planner, Options{}, nil).Run(context.Background(), job)
	if !otp.IsConfigurationError(err) {
		t.Errorf("Expected ConfigurationError, got %v", err)
	}
	if len(planner.routed()) != 0 {
		t.Error("Expected no route request")
	}
}
