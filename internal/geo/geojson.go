package geo

import (
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/otp-analysis/pkg/otp/models"
)

// LoadPointSet reads point features from a GeoJSON file. idField names the
// property holding each point's identifier; when empty the feature id is used.
// The coordinate reference is supplied by the caller, never inferred.
func LoadPointSet(path, idField, crs string) (models.PointSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.PointSet{}, fmt.Errorf("reading %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return models.PointSet{}, fmt.Errorf("decoding %s: %w", path, err)
	}

	ps := models.PointSet{CRS: crs}
	for i, f := range fc.Features {
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			return models.PointSet{}, fmt.Errorf("%s: feature %d is %T, expected a point", path, i, f.Geometry)
		}
		var id string
		if idField != "" {
			v, ok := f.Properties[idField]
			if !ok {
				return models.PointSet{}, fmt.Errorf("%s: feature %d has no %q property", path, i, idField)
			}
			id = FormatID(v)
		} else if f.ID != nil {
			id = FormatID(f.ID)
		}
		ps.Locations = append(ps.Locations, models.Location{ID: id, Point: p})
	}
	return ps, nil
}

// FormatID renders a property value as an identifier string.
func FormatID(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func newCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = geojson.Properties{
		"crs": map[string]interface{}{
			"type":       "name",
			"properties": map[string]string{"name": models.WGS84},
		},
	}
	return fc
}

// LegsToFeatureCollection converts legs to line features in WGS84.
func LegsToFeatureCollection(legs []models.TripLeg) *geojson.FeatureCollection {
	fc := newCollection()
	for _, leg := range legs {
		f := geojson.NewFeature(leg.Geometry)
		f.Properties = geojson.Properties{
			"trip_name": leg.TripName,
			"leg_id":    leg.LegID,
			"mode":      string(leg.Mode),
			"from":      []float64{leg.From.Point.Lon(), leg.From.Point.Lat()},
			"from_name": leg.FromName(),
			"to":        []float64{leg.To.Point.Lon(), leg.To.Point.Lat()},
			"to_name":   leg.ToName(),
			"route_id":  leg.RouteID,
			"trip_id":   leg.TripID,
			"distance":  leg.Distance,
			"duration":  leg.Duration,
			"startTime": leg.StartTime,
			"endTime":   leg.EndTime,
			"waitTime":  leg.WaitTime,
		}
		fc.Append(f)
	}
	return fc
}

// CatchmentsToFeatureCollection converts catchments to polygon features in WGS84.
func CatchmentsToFeatureCollection(catchments []models.Catchment) *geojson.FeatureCollection {
	fc := newCollection()
	for _, c := range catchments {
		f := geojson.NewFeature(c.Geometry)
		f.Properties = geojson.Properties{}
		for k, v := range c.Properties {
			f.Properties[k] = v
		}
		f.Properties["time"] = c.BreakSec
		if c.Name != "" {
			f.Properties["name"] = c.Name
		}
		fc.Append(f)
	}
	return fc
}

// WriteFeatureCollection writes fc to path as GeoJSON.
func WriteFeatureCollection(path string, fc *geojson.FeatureCollection) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding feature collection: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
