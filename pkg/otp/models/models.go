package models

import (
	"github.com/paulmach/orb"
)

// WGS84 is the coordinate reference every result is expressed in.
const WGS84 = "EPSG:4326"

// Mode is a travel mode, or a comma separated combination of modes, as
// understood by the routing service (e.g. "TRANSIT,WALK").
type Mode string

const (
	ModeCar         Mode = "CAR"
	ModeBus         Mode = "BUS"
	ModeFerry       Mode = "FERRY"
	ModeRail        Mode = "RAIL"
	ModeTram        Mode = "TRAM"
	ModeSubway      Mode = "SUBWAY"
	ModeTransit     Mode = "TRANSIT"
	ModeWalk        Mode = "WALK"
	ModeBicycle     Mode = "BICYCLE"
	ModeTransitWalk Mode = "TRANSIT,WALK"
)

// Location is one input point with an optional identifier.
type Location struct {
	ID    string
	Point orb.Point
}

// PointSet is a list of locations sharing one coordinate reference.
// CRS is an authority code such as "EPSG:4326" and is never assumed.
type PointSet struct {
	CRS       string
	Locations []Location
}

// Len returns the number of locations.
func (ps PointSet) Len() int { return len(ps.Locations) }

// PlaceKind tells how a leg endpoint is labelled.
type PlaceKind int

const (
	// StopReference labels an endpoint with a transit stop identifier.
	StopReference PlaceKind = iota
	// PlaceName labels an endpoint with a free-form name ("Origin", "Destination", a street).
	PlaceName
)

func (k PlaceKind) String() string {
	switch k {
	case StopReference:
		return "stop"
	case PlaceName:
		return "name"
	default:
		return "unknown"
	}
}

// Place is a leg endpoint, resolved once during leg normalization.
type Place struct {
	Kind  PlaceKind
	Value string
	Point orb.Point
}

// Label returns the stop identifier or the place name.
func (p Place) Label() string { return p.Value }

// TripLeg is one continuous-mode segment of an itinerary.
type TripLeg struct {
	TripName  string
	LegID     int
	Mode      Mode
	From      Place
	To        Place
	RouteID   string
	TripID    string
	Distance  float64 // meters
	Duration  float64 // seconds
	StartTime int64   // epoch milliseconds
	EndTime   int64   // epoch milliseconds
	// WaitTime is StartTime of the next leg minus EndTime of this leg,
	// nil for the last leg of an itinerary.
	WaitTime *int64
	Geometry orb.LineString
}

// FromName returns the label of the leg's start.
func (l TripLeg) FromName() string { return l.From.Label() }

// ToName returns the label of the leg's end.
func (l TripLeg) ToName() string { return l.To.Label() }

// Catchment is the area reachable from one origin within one cutoff.
type Catchment struct {
	Name       string // originating point identifier, empty when none was requested
	BreakSec   int
	Geometry   orb.MultiPolygon
	Properties map[string]interface{}
}
