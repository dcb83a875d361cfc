package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otp-analysis/internal/common/logger"
)

// Collector owns a private registry with the analysis metrics.
type Collector struct {
	reg *prometheus.Registry

	Requests        *prometheus.CounterVec // endpoint, status labels
	RequestDuration *prometheus.HistogramVec
	PlanCacheHits   prometheus.Counter

	PairsRouted     prometheus.Counter
	PairsFailed     prometheus.Counter
	PairDuration    prometheus.Histogram
	OriginsComplete prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otpanalysis_requests_total",
			Help: "Requests sent to the routing service.",
		}, []string{"endpoint", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "otpanalysis_request_duration_seconds",
			Help:    "Routing service request latency.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"endpoint"}),
		PlanCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otpanalysis_plan_cache_hits_total",
			Help: "Plan queries answered from the response cache.",
		}),
		PairsRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otpanalysis_od_pairs_routed_total",
			Help: "Origin-destination pairs routed successfully.",
		}),
		PairsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otpanalysis_od_pairs_failed_total",
			Help: "Origin-destination pairs that failed or timed out.",
		}),
		PairDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "otpanalysis_od_pair_duration_seconds",
			Help:    "Time spent routing one origin-destination pair.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		OriginsComplete: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otpanalysis_od_origins_processed_total",
			Help: "Origins fully processed by OD-matrix runs.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otpanalysis_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "otpanalysis_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "otpanalysis_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "otpanalysis_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.Requests, c.RequestDuration, c.PlanCacheHits,
		c.PairsRouted, c.PairsFailed, c.PairDuration, c.OriginsComplete,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
	)

	return c
}

// ObserveRequest records one routing service request. Status 0 means no
// response was received.
func (c *Collector) ObserveRequest(endpoint string, statusCode int, d time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	c.Requests.WithLabelValues(endpoint, status).Inc()
	c.RequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (c *Collector) PlanCacheHit() { c.PlanCacheHits.Inc() }

func (c *Collector) ObservePair(ok bool, d time.Duration) {
	if ok {
		c.PairsRouted.Inc()
	} else {
		c.PairsFailed.Inc()
	}
	c.PairDuration.Observe(d.Seconds())
}

func (c *Collector) OriginProcessed() { c.OriginsComplete.Inc() }

func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }
func (c *Collector) NATSSetConnected(b bool) {
	if b {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server error", "error", err)
		}
	}()
	log.Info("Metrics listening", "addr", addr)
	return srv
}
