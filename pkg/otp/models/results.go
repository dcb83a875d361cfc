package models

import (
	"fmt"
	"time"
)

// Stage names the step of a batch operation an item failed in.
type Stage string

const (
	StageServiceArea Stage = "service_area"
	StageRoute       Stage = "route"
)

// Failure records one batch item that was skipped.
type Failure struct {
	Stage       Stage
	Origin      string
	Destination string
	Err         error
}

func (f Failure) Error() string {
	if f.Destination != "" {
		return fmt.Sprintf("%s %s -> %s: %v", f.Stage, f.Origin, f.Destination, f.Err)
	}
	return fmt.Sprintf("%s %s: %v", f.Stage, f.Origin, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// RouteResult is the ordered leg table of one origin-destination query.
// An empty Legs slice with a nil error means the planner found no itinerary.
type RouteResult struct {
	CRS  string
	Legs []TripLeg
}

// ServiceAreaResult holds the catchments of a batch and the origins that failed.
type ServiceAreaResult struct {
	CRS        string
	Catchments []Catchment
	Failures   []Failure
	Attempted  int
}

// ForOrigin returns the catchments tagged with the given origin identifier.
func (r *ServiceAreaResult) ForOrigin(name string) []Catchment {
	var out []Catchment
	for _, c := range r.Catchments {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// PairResult describes what happened to one origin-destination pair.
type PairResult struct {
	Origin      string
	Destination string
	TripName    string
	Legs        int
	Err         error
}

// ODMatrixResult is the concatenated leg table of an OD-matrix run.
type ODMatrixResult struct {
	RunID    string
	CRS      string
	Legs     []TripLeg
	Pairs    []PairResult
	Failures []Failure
	Origins  int
	Elapsed  time.Duration
}

// Succeeded counts pairs that were routed without error.
func (r *ODMatrixResult) Succeeded() int {
	n := 0
	for _, p := range r.Pairs {
		if p.Err == nil {
			n++
		}
	}
	return n
}
