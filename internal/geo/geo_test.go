package geo

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"

	"github.com/otp-analysis/pkg/otp/models"
)

func square(minX, minY, maxX, maxY float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}}
}

func TestNormalizeCRS(t *testing.T) {
	cases := map[string]string{
		"EPSG:4326":                     models.WGS84,
		"epsg:4326":                     models.WGS84,
		"urn:ogc:def:crs:OGC:1.3:CRS84": models.WGS84,
		"EPSG:3857":                     "EPSG:3857",
		"EPSG:900913":                   "EPSG:3857",
	}
	for in, want := range cases {
		got, err := NormalizeCRS(in)
		if err != nil {
			t.Errorf("NormalizeCRS(%q): unexpected error %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("NormalizeCRS(%q): expected %s, got %s", in, want, got)
		}
	}

	if _, err := NormalizeCRS(""); !errors.Is(err, ErrMissingCRS) {
		t.Errorf("Expected ErrMissingCRS, got %v", err)
	}
	if _, err := NormalizeCRS("EPSG:28355"); !errors.Is(err, ErrUnsupportedCRS) {
		t.Errorf("Expected ErrUnsupportedCRS, got %v", err)
	}
}

func TestToWGS84FromMercator(t *testing.T) {
	want := orb.Point{144.9631, -37.8136}
	merc := project.Point(want, project.WGS84.ToMercator)

	ps, err := ToWGS84(models.PointSet{
		CRS:       "EPSG:3857",
		Locations: []models.Location{{ID: "flinders", Point: merc}},
	})
	if err != nil {
		t.Fatalf("ToWGS84 failed: %v", err)
	}
	if ps.CRS != models.WGS84 {
		t.Errorf("Expected WGS84 tag, got %s", ps.CRS)
	}
	got := ps.Locations[0].Point
	if math.Abs(got.Lon()-want.Lon()) > 1e-9 || math.Abs(got.Lat()-want.Lat()) > 1e-9 {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if ps.Locations[0].ID != "flinders" {
		t.Errorf("Identifier lost during reprojection")
	}
}

func TestToWGS84RequiresCRS(t *testing.T) {
	_, err := ToWGS84(models.PointSet{Locations: []models.Location{{ID: "a"}}})
	if !errors.Is(err, ErrMissingCRS) {
		t.Errorf("Expected ErrMissingCRS, got %v", err)
	}
}

func TestBufferIntersects(t *testing.T) {
	catchment := square(0, 0, 1, 1)

	cases := []struct {
		name   string
		center orb.Point
		want   bool
	}{
		{"inside", orb.Point{0.5, 0.5}, true},
		{"on boundary", orb.Point{1, 0.5}, true},
		{"just outside within radius", orb.Point{1.000005, 0.5}, true},
		{"outside", orb.Point{1.1, 0.5}, false},
		{"far away", orb.Point{10, 10}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := Buffer{ID: "d", Center: tc.center, Radius: DefaultBufferDegrees}
			if got := b.Intersects(catchment); got != tc.want {
				t.Errorf("Expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestBufferPolygon(t *testing.T) {
	b := Buffer{Center: orb.Point{10, 20}, Radius: 0.5}
	poly := b.Polygon()
	if len(poly) != 1 || len(poly[0]) != bufferSegments+1 {
		t.Fatalf("Unexpected polygon shape: %v", poly)
	}
	if !poly[0].Closed() {
		t.Error("Buffer ring should be closed")
	}
	if !planar.PolygonContains(poly, b.Center) {
		t.Error("Buffer polygon should contain its center")
	}
	area := math.Abs(planar.Area(poly))
	if area <= 0 || area > math.Pi*0.25 {
		t.Errorf("Unexpected buffer area %v", area)
	}
}

func TestIntersectingIDs(t *testing.T) {
	buffers := NewBuffers(models.PointSet{
		CRS: models.WGS84,
		Locations: []models.Location{
			{ID: "in", Point: orb.Point{0.2, 0.2}},
			{ID: "out", Point: orb.Point{5, 5}},
			{ID: "second", Point: orb.Point{2.5, 2.5}},
		},
	}, DefaultBufferDegrees)

	catchments := []models.Catchment{
		{Name: "o1", Geometry: square(0, 0, 1, 1)},
		{Name: "o1", Geometry: square(2, 2, 3, 3)},
	}

	ids := IntersectingIDs(buffers, catchments)
	if !ids["in"] || !ids["second"] {
		t.Errorf("Expected in and second to intersect, got %v", ids)
	}
	if ids["out"] {
		t.Error("Destination outside every catchment should not intersect")
	}

	if got := IntersectingIDs(buffers, nil); len(got) != 0 {
		t.Errorf("Expected no intersections without catchments, got %v", got)
	}
}

func TestLoadPointSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stops.geojson")
	data := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"code":101},"geometry":{"type":"Point","coordinates":[144.96,-37.81]}},
		{"type":"Feature","properties":{"code":"B"},"geometry":{"type":"Point","coordinates":[144.97,-37.82]}}
	]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	ps, err := LoadPointSet(path, "code", models.WGS84)
	if err != nil {
		t.Fatalf("LoadPointSet failed: %v", err)
	}
	if ps.Len() != 2 {
		t.Fatalf("Expected 2 points, got %d", ps.Len())
	}
	if ps.Locations[0].ID != "101" || ps.Locations[1].ID != "B" {
		t.Errorf("Unexpected identifiers: %q %q", ps.Locations[0].ID, ps.Locations[1].ID)
	}
	if ps.Locations[0].Point != (orb.Point{144.96, -37.81}) {
		t.Errorf("Unexpected point %v", ps.Locations[0].Point)
	}

	if _, err := LoadPointSet(path, "missing", models.WGS84); err == nil {
		t.Error("Expected error for missing id property")
	}
}

func TestLegsToFeatureCollection(t *testing.T) {
	wait := int64(120000)
	legs := []models.TripLeg{{
		TripName: "from a to b",
		LegID:    0,
		Mode:     models.ModeWalk,
		From:     models.Place{Kind: models.PlaceName, Value: "Origin", Point: orb.Point{1, 2}},
		To:       models.Place{Kind: models.StopReference, Value: "1:42", Point: orb.Point{3, 4}},
		WaitTime: &wait,
		Geometry: orb.LineString{{1, 2}, {3, 4}},
	}}

	data, err := LegsToFeatureCollection(legs).MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	var decoded struct {
		CRS struct {
			Properties struct {
				Name string `json:"name"`
			} `json:"properties"`
		} `json:"crs"`
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.CRS.Properties.Name != models.WGS84 {
		t.Errorf("Expected WGS84 crs member, got %q", decoded.CRS.Properties.Name)
	}
	props := decoded.Features[0].Properties
	if props["from_name"] != "Origin" || props["to_name"] != "1:42" {
		t.Errorf("Unexpected endpoint names: %v", props)
	}
	if props["waitTime"] != float64(120000) {
		t.Errorf("Expected waitTime 120000, got %v", props["waitTime"])
	}
}
