package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"github.com/otp-analysis/internal/common/logger"
	"github.com/otp-analysis/internal/geo"
	"github.com/otp-analysis/internal/otp"
	"github.com/otp-analysis/pkg/otp/models"
)

// Outcome is what a job produced, ready to be written and summarised.
type Outcome struct {
	RunID    string
	Job      string
	Kind     JobKind
	Features *geojson.FeatureCollection
	Records  int
	Failures []models.Failure
	Elapsed  time.Duration
}

// Summary is a one-line description of the outcome.
func (o *Outcome) Summary() string {
	return fmt.Sprintf("%s job %q (run %s): %d records, %d failures in %s",
		o.Kind, o.Job, o.RunID, o.Records, len(o.Failures), o.Elapsed.Round(time.Millisecond))
}

// Runner executes jobs against a planner.
type Runner struct {
	planner Planner
	opts    Options
	logger  logger.Logger
}

func NewRunner(planner Planner, opts Options, log logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{planner: planner, opts: opts, logger: log}
}

// Run loads the job's point files and dispatches on its kind.
func (r *Runner) Run(ctx context.Context, job *Job) (*Outcome, error) {
	departure, err := job.DepartureTime()
	if err != nil {
		return nil, err
	}

	origins, err := geo.LoadPointSet(job.Resolve(job.Origins.Path), job.Origins.IDField, job.Origins.CRS)
	if err != nil {
		return nil, fmt.Errorf("loading origins: %w", err)
	}
	var destinations models.PointSet
	if job.Destinations != nil {
		destinations, err = geo.LoadPointSet(job.Resolve(job.Destinations.Path), job.Destinations.IDField, job.Destinations.CRS)
		if err != nil {
			return nil, fmt.Errorf("loading destinations: %w", err)
		}
	}

	start := time.Now()
	out := &Outcome{Job: job.DisplayName(), Kind: job.Kind}

	switch job.Kind {
	case KindRoute:
		err = r.route(ctx, job, departure, origins, destinations, out)
	case KindIsochrone:
		err = r.isochrone(ctx, job, departure, origins, out)
	case KindODMatrix:
		err = r.odMatrix(ctx, job, departure, origins, destinations, out)
	default:
		err = fmt.Errorf("unknown job kind %q", job.Kind)
	}
	out.Elapsed = time.Since(start)
	if err != nil {
		return out, err
	}

	r.logger.Info("Job finished", "job", out.Job, "run_id", out.RunID, "records", out.Records, "failures", len(out.Failures))
	return out, nil
}

func (r *Runner) route(ctx context.Context, job *Job, departure time.Time, origins, destinations models.PointSet, out *Outcome) error {
	out.RunID = uuid.NewString()
	if origins.Len() == 0 || destinations.Len() == 0 {
		return errors.New("route job needs one origin and one destination")
	}
	// Route takes one CRS for both ends.
	origins, err := geo.ToWGS84(origins)
	if err != nil {
		return &otp.ConfigurationError{Reason: "origins", Err: err}
	}
	destinations, err = geo.ToWGS84(destinations)
	if err != nil {
		return &otp.ConfigurationError{Reason: "destinations", Err: err}
	}

	o, d := origins.Locations[0], destinations.Locations[0]
	name := job.TripName
	if name == "" {
		name = TripName(o.ID, d.ID)
	}

	res, err := r.planner.Route(ctx, otp.RouteRequest{
		CRS:           models.WGS84,
		Origin:        o.Point,
		Destination:   d.Point,
		Mode:          job.TravelMode(),
		TripName:      name,
		DepartureTime: departure,
		Params:        job.Params,
	})
	if err != nil {
		return fmt.Errorf("routing %s: %w", name, err)
	}
	if len(res.Legs) == 0 {
		r.logger.Warn("No itinerary found", "trip", name)
	}

	out.Features = geo.LegsToFeatureCollection(res.Legs)
	out.Records = len(res.Legs)
	return nil
}

func (r *Runner) isochrone(ctx context.Context, job *Job, departure time.Time, origins models.PointSet, out *Outcome) error {
	out.RunID = uuid.NewString()
	res, err := r.planner.ServiceArea(ctx, otp.ServiceAreaRequest{
		Origins:       origins,
		Mode:          job.TravelMode(),
		Breaks:        job.Breaks,
		DepartureTime: departure,
		Params:        job.Params,
	})
	if err != nil {
		return fmt.Errorf("service area: %w", err)
	}

	out.Features = geo.CatchmentsToFeatureCollection(res.Catchments)
	out.Records = len(res.Catchments)
	out.Failures = res.Failures
	return nil
}

func (r *Runner) odMatrix(ctx context.Context, job *Job, departure time.Time, origins, destinations models.PointSet, out *Outcome) error {
	res, err := NewMatrix(r.planner, r.opts, r.logger).Run(ctx, ODMatrixRequest{
		Origins:              origins,
		Destinations:         destinations,
		Mode:                 job.TravelMode(),
		MaxTravelTimeMinutes: job.MaxTravelTimeMinutes,
		DepartureTime:        departure,
		Params:               job.Params,
	})
	if res != nil {
		out.RunID = res.RunID
		out.Features = geo.LegsToFeatureCollection(res.Legs)
		out.Records = len(res.Legs)
		out.Failures = res.Failures
	}
	if err != nil {
		return fmt.Errorf("od matrix: %w", err)
	}
	return nil
}
