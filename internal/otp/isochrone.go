package otp

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/otp-analysis/internal/geo"
	"github.com/otp-analysis/pkg/otp/models"
)

// DefaultBreaks are the cutoffs, in minutes, used when a request names none.
var DefaultBreaks = []int{10, 20}

// ServiceAreaRequest describes a batch of catchment queries, one per origin.
type ServiceAreaRequest struct {
	// Origins carry their own CRS. A non-empty Location.ID tags the
	// catchments of that origin.
	Origins models.PointSet
	Mode    models.Mode
	// Breaks are cutoffs in minutes; each becomes one cutoffSec value.
	Breaks        []int
	DepartureTime time.Time
	Params        map[string]string
}

// ServiceArea requests the catchments of every origin. A failing origin is
// recorded in the result's Failures and the batch moves on; only invalid
// input or a cancelled context fails the whole call.
func (c *Client) ServiceArea(ctx context.Context, req ServiceAreaRequest) (*models.ServiceAreaResult, error) {
	if req.DepartureTime.IsZero() {
		return nil, configErr("departure time not set", nil)
	}
	breaks := req.Breaks
	if breaks == nil {
		breaks = DefaultBreaks
	}
	if len(breaks) == 0 {
		return nil, configErr("no cutoff breaks", nil)
	}
	for _, b := range breaks {
		if b <= 0 {
			return nil, configErr(fmt.Sprintf("cutoff break %d must be positive", b), nil)
		}
	}
	origins, err := geo.ToWGS84(req.Origins)
	if err != nil {
		return nil, configErr("origins", err)
	}
	mode := req.Mode
	if mode == "" {
		mode = models.ModeTransitWalk
	}

	base := NewParams()
	base.Set("date", req.DepartureTime.Format(isochroneDateLayout))
	base.Set("time", req.DepartureTime.Format(planTimeLayout))
	base.Set("mode", string(mode))
	cutoffs := make([]string, len(breaks))
	for i, b := range breaks {
		cutoffs[i] = strconv.Itoa(b * 60)
	}
	base.Set("cutoffSec", cutoffs...)

	result := &models.ServiceAreaResult{
		CRS:        models.WGS84,
		Catchments: []models.Catchment{},
	}

	for _, loc := range origins.Locations {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Attempted++

		params := NewParams()
		params.Set("fromPlace", formatPlace(loc.Point))
		for _, k := range base.Keys() {
			params.Set(k, base.All(k)...)
		}

		catchments, err := c.catchments(ctx, params.Merge(req.Params), breaks)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			c.logger.Warn("Service area failed for origin", "origin", loc.ID, "error", err)
			result.Failures = append(result.Failures, models.Failure{
				Stage:  models.StageServiceArea,
				Origin: loc.ID,
				Err:    err,
			})
			continue
		}

		for _, ct := range catchments {
			if loc.ID != "" {
				ct.Name = loc.ID
				ct.Properties["name"] = loc.ID
			}
			result.Catchments = append(result.Catchments, ct)
		}
		c.logger.Debug("Service area done", "origin", loc.ID, "catchments", len(catchments))
	}

	return result, nil
}

// catchments issues one isochrone request and returns its non-empty polygons.
func (c *Client) catchments(ctx context.Context, params *Params, breaks []int) ([]models.Catchment, error) {
	resp, err := c.get(ctx, endpointIsochrone, params)
	if err != nil {
		return nil, err
	}

	var raw []models.Catchment
	if strings.Contains(strings.ToLower(resp.ContentType()), "zip") {
		raw, err = parseArchive(resp.Body)
	} else {
		raw, err = parseFeatureCollection(resp.Body)
	}
	if err != nil {
		return nil, err
	}

	out := make([]models.Catchment, 0, len(raw))
	for _, ct := range raw {
		if len(ct.Geometry) == 0 {
			continue
		}
		if ct.Properties == nil {
			ct.Properties = make(map[string]interface{})
		}
		ct.BreakSec = breakSeconds(ct.Properties, breaks)
		out = append(out, ct)
	}
	return out, nil
}

func parseFeatureCollection(body []byte) ([]models.Catchment, error) {
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, parseErr("isochrone feature collection", err)
	}

	out := make([]models.Catchment, 0, len(fc.Features))
	for _, f := range fc.Features {
		out = append(out, models.Catchment{
			Geometry:   toMultiPolygon(f.Geometry),
			Properties: map[string]interface{}(f.Properties),
		})
	}
	return out, nil
}

// toMultiPolygon returns nil for absent or non-areal geometry.
func toMultiPolygon(g orb.Geometry) orb.MultiPolygon {
	switch g := g.(type) {
	case orb.Polygon:
		if len(g) == 0 {
			return nil
		}
		return orb.MultiPolygon{g}
	case orb.MultiPolygon:
		return g
	}
	return nil
}

// breakSeconds reads the cutoff a polygon stands for from its "time"
// property, falling back to the only requested break.
func breakSeconds(props map[string]interface{}, breaks []int) int {
	switch v := props["time"].(type) {
	case float64:
		return int(math.Round(v))
	case int:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return int(math.Round(f))
		}
	}
	if len(breaks) == 1 {
		return breaks[0] * 60
	}
	return 0
}
