package otp

import (
	"context"
	"time"

	"github.com/paulmach/orb"

	"github.com/otp-analysis/internal/geo"
	"github.com/otp-analysis/pkg/otp/models"
)

// RouteRequest describes one origin-destination planning query.
type RouteRequest struct {
	// CRS is the coordinate reference of Origin and Destination.
	CRS         string
	Origin      orb.Point
	Destination orb.Point
	Mode        models.Mode
	TripName    string
	// DepartureTime is required; there is no implicit "now".
	DepartureTime time.Time
	// Params are extra query parameters (maxWalkDistance, arriveBy, ...).
	// They replace generated parameters of the same name.
	Params map[string]string
}

// Route plans a trip and returns the legs of the first itinerary, in
// travel order. A planner that finds no itinerary gives an empty result.
func (c *Client) Route(ctx context.Context, req RouteRequest) (*models.RouteResult, error) {
	params, err := c.planParams(req)
	if err != nil {
		return nil, err
	}

	key := c.endpoint(endpointPlan) + "?" + params.Encode()
	body, ok := c.cache.get(key)
	if ok {
		if c.metrics != nil {
			c.metrics.PlanCacheHit()
		}
		c.logger.Debug("Plan cache hit", "trip", req.TripName)
	} else {
		resp, err := c.get(ctx, endpointPlan, params)
		if err != nil {
			return nil, err
		}
		body = resp.Body
	}

	legs, err := parsePlan(body, req.TripName, c.precision)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.cache.set(key, body)
	}
	if len(legs) == 0 {
		c.logger.Debug("No itinerary found", "trip", req.TripName)
	}

	return &models.RouteResult{CRS: models.WGS84, Legs: legs}, nil
}

func (c *Client) planParams(req RouteRequest) (*Params, error) {
	if req.DepartureTime.IsZero() {
		return nil, configErr("departure time not set", nil)
	}
	origin, err := geo.PointToWGS84(req.Origin, req.CRS)
	if err != nil {
		return nil, configErr("origin", err)
	}
	dest, err := geo.PointToWGS84(req.Destination, req.CRS)
	if err != nil {
		return nil, configErr("destination", err)
	}
	mode := req.Mode
	if mode == "" {
		mode = models.ModeTransitWalk
	}

	p := NewParams()
	p.Set("fromPlace", formatPlace(origin))
	p.Set("toPlace", formatPlace(dest))
	p.Set("time", req.DepartureTime.Format(planTimeLayout))
	p.Set("date", req.DepartureTime.Format(planDateLayout))
	p.Set("mode", string(mode))
	return p.Merge(req.Params), nil
}
