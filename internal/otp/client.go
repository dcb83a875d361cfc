// Package otp is a client for an OpenTripPlanner style routing service. It
// builds plan and isochrone requests, normalizes itinerary legs and parses
// catchment polygons from GeoJSON or zipped shapefile responses.
package otp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/otp-analysis/internal/common/logger"
	"github.com/otp-analysis/pkg/polyline"
)

const (
	DefaultBaseURL = "http://localhost:8080"
	DefaultRouter  = "default"
	DefaultTimeout = 60 * time.Second

	endpointPlan      = "plan"
	endpointIsochrone = "isochrone"

	planTimeLayout      = "15:04PM"
	planDateLayout      = "01-02-2006"
	isochroneDateLayout = "2006/01/02"
)

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	BaseURL           string
	Router            string
	Timeout           time.Duration
	PolylinePrecision int
	PlanCacheSize     int
	PlanCacheTTL      time.Duration
	Transport         Transport
	Metrics           Metrics
}

// Client issues planning and isochrone queries.
type Client struct {
	baseURL   string
	router    string
	precision int
	transport Transport
	metrics   Metrics
	cache     *planCache
	logger    logger.Logger
}

// NewClient validates opts and returns a ready client.
func NewClient(opts Options, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Router == "" {
		opts.Router = DefaultRouter
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PolylinePrecision == 0 {
		opts.PolylinePrecision = polyline.Precision6
	}

	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", opts.BaseURL)
	}
	if opts.PolylinePrecision < 1 || opts.PolylinePrecision > 9 {
		return nil, fmt.Errorf("polyline precision %d out of range", opts.PolylinePrecision)
	}

	tr := opts.Transport
	if tr == nil {
		tr = NewHTTPTransport(opts.Timeout, log)
	}

	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		router:    opts.Router,
		precision: opts.PolylinePrecision,
		transport: tr,
		metrics:   opts.Metrics,
		cache:     newPlanCache(opts.PlanCacheSize, opts.PlanCacheTTL),
		logger:    log,
	}, nil
}

func (c *Client) endpoint(name string) string {
	return c.baseURL + "/otp/routers/" + url.PathEscape(c.router) + "/" + name
}

// get performs one request and maps transport failures and non-2xx
// statuses to *TransportError.
func (c *Client) get(ctx context.Context, name string, params *Params) (*Response, error) {
	endpoint := c.endpoint(name)
	start := time.Now()

	resp, err := c.transport.Get(ctx, endpoint, params)
	if err != nil {
		c.observe(name, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		return nil, &TransportError{URL: endpoint, Err: err}
	}
	c.observe(name, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Body:       truncate(resp.Body, maxErrorBody),
		}
	}
	return resp, nil
}

func (c *Client) observe(name string, status int, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveRequest(name, status, d)
	}
}

// formatPlace renders a WGS84 point as the "lat, lon" text the service expects.
func formatPlace(p orb.Point) string {
	return strconv.FormatFloat(p.Lat(), 'f', -1, 64) + ", " + strconv.FormatFloat(p.Lon(), 'f', -1, 64)
}
