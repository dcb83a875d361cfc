// Package analysis composes routing queries into batch analyses. The
// OD-matrix run pre-filters destinations by each origin's catchment and
// routes every surviving origin-destination pair.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/otp-analysis/internal/common/logger"
	"github.com/otp-analysis/internal/geo"
	"github.com/otp-analysis/internal/otp"
	"github.com/otp-analysis/pkg/otp/models"
)

const (
	DefaultWorkers     = 1
	DefaultPairTimeout = 2 * time.Minute
)

// Planner is the routing service as seen by the orchestrator. *otp.Client
// implements it.
type Planner interface {
	Route(ctx context.Context, req otp.RouteRequest) (*models.RouteResult, error)
	ServiceArea(ctx context.Context, req otp.ServiceAreaRequest) (*models.ServiceAreaResult, error)
}

// Metrics receives pair and origin level observations.
type Metrics interface {
	ObservePair(ok bool, d time.Duration)
	OriginProcessed()
}

// Options tunes an OD-matrix run.
type Options struct {
	// Workers bounds concurrent route queries within one origin. One keeps
	// the run strictly sequential.
	Workers       int
	PairTimeout   time.Duration
	BufferDegrees float64
	Progress      ProgressReporter
	Metrics       Metrics
}

// ODMatrixRequest describes one run. Every location needs an ID; origin IDs
// key the catchments and both IDs name the trips.
type ODMatrixRequest struct {
	Origins      models.PointSet
	Destinations models.PointSet
	Mode         models.Mode
	// MaxTravelTimeMinutes enables the catchment pre-filter. Nil routes the
	// full Cartesian product.
	MaxTravelTimeMinutes *int
	DepartureTime        time.Time
	Params               map[string]string
}

// Matrix runs OD-matrix analyses against a Planner.
type Matrix struct {
	planner Planner
	opts    Options
	logger  logger.Logger
}

func NewMatrix(planner Planner, opts Options, log logger.Logger) *Matrix {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.PairTimeout <= 0 {
		opts.PairTimeout = DefaultPairTimeout
	}
	if opts.BufferDegrees <= 0 {
		opts.BufferDegrees = geo.DefaultBufferDegrees
	}
	if opts.Progress == nil {
		opts.Progress = NewLogReporter(log)
	}
	return &Matrix{planner: planner, opts: opts, logger: log}
}

// TripName labels the legs of one origin-destination pair.
func TripName(origin, destination string) string {
	return fmt.Sprintf("from %s to %s", origin, destination)
}

// Run computes the matrix. Failing origins and pairs are recorded in the
// result and skipped. Invalid input fails before any request is sent; a
// cancelled context stops the run and returns what was completed with the
// context error.
func (m *Matrix) Run(ctx context.Context, req ODMatrixRequest) (*models.ODMatrixResult, error) {
	origins, destinations, err := validate(req)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := m.logger.With("run_id", runID)
	start := time.Now()
	log.Info("Analysis started",
		"started_at", start.Format(time.RFC3339),
		"origins", origins.Len(),
		"destinations", destinations.Len(),
		"workers", m.opts.Workers,
	)

	result := &models.ODMatrixResult{
		RunID:   runID,
		CRS:     models.WGS84,
		Legs:    []models.TripLeg{},
		Origins: origins.Len(),
	}

	filtered := req.MaxTravelTimeMinutes != nil
	var catchments map[string][]models.Catchment
	failedOrigins := make(map[string]bool)
	if filtered {
		sa, err := m.planner.ServiceArea(ctx, otp.ServiceAreaRequest{
			Origins:       origins,
			Mode:          req.Mode,
			Breaks:        []int{*req.MaxTravelTimeMinutes},
			DepartureTime: req.DepartureTime,
			Params:        req.Params,
		})
		if err != nil {
			result.Elapsed = time.Since(start)
			return result, fmt.Errorf("computing catchments: %w", err)
		}
		result.Failures = append(result.Failures, sa.Failures...)
		for _, f := range sa.Failures {
			failedOrigins[f.Origin] = true
		}
		catchments = make(map[string][]models.Catchment, origins.Len())
		for _, c := range sa.Catchments {
			catchments[c.Name] = append(catchments[c.Name], c)
		}
	}

	buffers := geo.NewBuffers(destinations, m.opts.BufferDegrees)

	for k, o := range origins.Locations {
		if err := ctx.Err(); err != nil {
			result.Elapsed = time.Since(start)
			return result, err
		}

		selected := destinations.Locations
		if filtered {
			selected = nil
			if !failedOrigins[o.ID] {
				ids := geo.IntersectingIDs(buffers, catchments[o.ID])
				for _, d := range destinations.Locations {
					if ids[d.ID] {
						selected = append(selected, d)
					}
				}
			}
		}

		for _, pr := range m.routeOrigin(ctx, o, selected, req) {
			result.Pairs = append(result.Pairs, pr.PairResult)
			result.Legs = append(result.Legs, pr.legs...)
			if pr.Err != nil {
				result.Failures = append(result.Failures, models.Failure{
					Stage:       models.StageRoute,
					Origin:      pr.Origin,
					Destination: pr.Destination,
					Err:         pr.Err,
				})
			}
		}

		if m.opts.Metrics != nil {
			m.opts.Metrics.OriginProcessed()
		}
		processed := k + 1
		elapsed := time.Since(start)
		m.opts.Progress.ReportProgress(ctx, Progress{
			RunID:        runID,
			Origin:       o.ID,
			Destinations: len(selected),
			Processed:    processed,
			Remaining:    origins.Len() - processed,
			Total:        origins.Len(),
			Elapsed:      elapsed,
			ETA:          estimateRemaining(elapsed, processed, origins.Len()),
		})
	}

	result.Elapsed = time.Since(start)
	log.Info("Analysis finished",
		"elapsed", result.Elapsed.String(),
		"pairs", len(result.Pairs),
		"legs", len(result.Legs),
		"failures", len(result.Failures),
	)
	return result, nil
}

type pairOutcome struct {
	models.PairResult
	legs []models.TripLeg
}

// routeOrigin routes one origin to each destination on a bounded pool.
// Outcomes keep the order of destinations regardless of completion order.
func (m *Matrix) routeOrigin(ctx context.Context, o models.Location, destinations []models.Location, req ODMatrixRequest) []pairOutcome {
	outcomes := make([]pairOutcome, len(destinations))

	var g errgroup.Group
	g.SetLimit(m.opts.Workers)
	for i, d := range destinations {
		g.Go(func() error {
			outcomes[i] = m.routePair(ctx, o, d, req)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (m *Matrix) routePair(ctx context.Context, o, d models.Location, req ODMatrixRequest) pairOutcome {
	name := TripName(o.ID, d.ID)
	out := pairOutcome{PairResult: models.PairResult{Origin: o.ID, Destination: d.ID, TripName: name}}

	pctx, cancel := context.WithTimeout(ctx, m.opts.PairTimeout)
	defer cancel()

	start := time.Now()
	res, err := m.planner.Route(pctx, otp.RouteRequest{
		CRS:           models.WGS84,
		Origin:        o.Point,
		Destination:   d.Point,
		Mode:          req.Mode,
		TripName:      name,
		DepartureTime: req.DepartureTime,
		Params:        req.Params,
	})
	if m.opts.Metrics != nil {
		m.opts.Metrics.ObservePair(err == nil, time.Since(start))
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("pair timed out after %s: %w", m.opts.PairTimeout, err)
		}
		m.logger.Warn("Route failed", "trip", name, "error", err)
		out.Err = err
		return out
	}

	out.legs = res.Legs
	out.Legs = len(res.Legs)
	return out
}

// validate checks the request and returns both point sets in WGS84.
func validate(req ODMatrixRequest) (models.PointSet, models.PointSet, error) {
	if req.DepartureTime.IsZero() {
		return models.PointSet{}, models.PointSet{}, &otp.ConfigurationError{Reason: "departure time not set"}
	}
	if req.MaxTravelTimeMinutes != nil && *req.MaxTravelTimeMinutes <= 0 {
		return models.PointSet{}, models.PointSet{}, &otp.ConfigurationError{
			Reason: fmt.Sprintf("max travel time %d must be positive", *req.MaxTravelTimeMinutes),
		}
	}

	origins, err := geo.ToWGS84(req.Origins)
	if err != nil {
		return models.PointSet{}, models.PointSet{}, &otp.ConfigurationError{Reason: "origins", Err: err}
	}
	destinations, err := geo.ToWGS84(req.Destinations)
	if err != nil {
		return models.PointSet{}, models.PointSet{}, &otp.ConfigurationError{Reason: "destinations", Err: err}
	}

	for _, set := range []struct {
		name string
		ps   models.PointSet
	}{{"origin", origins}, {"destination", destinations}} {
		for i, loc := range set.ps.Locations {
			if loc.ID == "" {
				return models.PointSet{}, models.PointSet{}, &otp.ConfigurationError{
					Reason: fmt.Sprintf("%s %d has no identifier", set.name, i),
				}
			}
		}
	}
	return origins, destinations, nil
}
