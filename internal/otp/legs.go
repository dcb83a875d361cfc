package otp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"github.com/otp-analysis/pkg/otp/models"
	"github.com/otp-analysis/pkg/polyline"
)

var errMissingPlan = errors.New("response has no plan")

type planResponse struct {
	Plan *planJSON `json:"plan"`
}

type planJSON struct {
	Itineraries []itineraryJSON `json:"itineraries"`
}

type itineraryJSON struct {
	Duration float64   `json:"duration"`
	Legs     []legJSON `json:"legs"`
}

type legJSON struct {
	Mode        string       `json:"mode"`
	From        placeJSON    `json:"from"`
	To          placeJSON    `json:"to"`
	Distance    float64      `json:"distance"`
	Duration    float64      `json:"duration"`
	StartTime   int64        `json:"startTime"`
	EndTime     int64        `json:"endTime"`
	TransitLeg  bool         `json:"transitLeg"`
	RouteID     scopedID     `json:"routeId"`
	TripID      scopedID     `json:"tripId"`
	LegGeometry geometryJSON `json:"legGeometry"`
}

type placeJSON struct {
	Name   string   `json:"name"`
	StopID scopedID `json:"stopId"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
}

type geometryJSON struct {
	Points string `json:"points"`
	Length int    `json:"length"`
}

// scopedID is a feed scoped identifier. Older planners send it as an
// object ({"agencyId": "1", "id": "123"}), newer ones as "1:123".
type scopedID string

func (s *scopedID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = scopedID(v)
		return nil
	}

	var obj struct {
		AgencyID string `json:"agencyId"`
		FeedID   string `json:"feedId"`
		ID       string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("scoped id: %w", err)
	}
	scope := obj.AgencyID
	if scope == "" {
		scope = obj.FeedID
	}
	if scope == "" {
		*s = scopedID(obj.ID)
	} else {
		*s = scopedID(scope + ":" + obj.ID)
	}
	return nil
}

// parsePlan turns a plan response body into the legs of its first
// itinerary. A body carrying an "error" member is a planner that found
// nothing, which yields no legs and no error.
func parsePlan(body []byte, tripName string, precision int) ([]models.TripLeg, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, parseErr("plan response", err)
	}
	if raw, ok := top["error"]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return []models.TripLeg{}, nil
	}
	raw, ok := top["plan"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, parseErr("plan response", errMissingPlan)
	}

	var plan planJSON
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, parseErr("plan", err)
	}
	if len(plan.Itineraries) == 0 {
		return []models.TripLeg{}, nil
	}

	// The planner's first itinerary is taken as ranked.
	raws := plan.Itineraries[0].Legs
	legs := make([]models.TripLeg, 0, len(raws))
	for i, rl := range raws {
		leg, err := normalizeLeg(rl, i, tripName, precision)
		if err != nil {
			return nil, err
		}
		legs = append(legs, leg)
	}
	computeWaitTimes(legs)
	return legs, nil
}

// normalizeLeg builds the TripLeg at position id of its itinerary.
func normalizeLeg(rl legJSON, id int, tripName string, precision int) (models.TripLeg, error) {
	from, err := resolvePlace(rl.From)
	if err != nil {
		return models.TripLeg{}, parseErr(fmt.Sprintf("leg %d origin", id), err)
	}
	to, err := resolvePlace(rl.To)
	if err != nil {
		return models.TripLeg{}, parseErr(fmt.Sprintf("leg %d destination", id), err)
	}

	geom, err := polyline.DecodeWithPrecision(rl.LegGeometry.Points, precision)
	if err != nil {
		return models.TripLeg{}, parseErr(fmt.Sprintf("leg %d geometry", id), err)
	}

	leg := models.TripLeg{
		TripName:  tripName,
		LegID:     id,
		Mode:      models.Mode(rl.Mode),
		From:      from,
		To:        to,
		Distance:  nonNegative(rl.Distance),
		Duration:  nonNegative(rl.Duration),
		StartTime: rl.StartTime,
		EndTime:   rl.EndTime,
		Geometry:  geom,
	}
	if rl.TransitLeg || isTransitMode(rl.Mode) {
		leg.RouteID = string(rl.RouteID)
		leg.TripID = string(rl.TripID)
	}
	return leg, nil
}

func resolvePlace(p placeJSON) (models.Place, error) {
	if p.Lat == nil || p.Lon == nil {
		return models.Place{}, errors.New("missing lat/lon")
	}
	pt := orb.Point{*p.Lon, *p.Lat}
	if p.StopID != "" {
		return models.Place{Kind: models.StopReference, Value: string(p.StopID), Point: pt}, nil
	}
	return models.Place{Kind: models.PlaceName, Value: p.Name, Point: pt}, nil
}

// computeWaitTimes sets WaitTime on every leg but the last.
func computeWaitTimes(legs []models.TripLeg) {
	for i := range legs {
		if i == len(legs)-1 {
			legs[i].WaitTime = nil
			continue
		}
		w := legs[i+1].StartTime - legs[i].EndTime
		legs[i].WaitTime = &w
	}
}

func isTransitMode(mode string) bool {
	switch strings.ToUpper(mode) {
	case "", string(models.ModeWalk), string(models.ModeBicycle), string(models.ModeCar):
		return false
	}
	return true
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
