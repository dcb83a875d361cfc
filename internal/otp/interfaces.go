package otp

import (
	"context"
	"time"
)

// Transport is the HTTP collaborator: one GET per call.
type Transport interface {
	Get(ctx context.Context, endpoint string, params *Params) (*Response, error)
}

// Metrics receives request level observations. A nil Metrics is allowed.
type Metrics interface {
	ObserveRequest(endpoint string, statusCode int, d time.Duration)
	PlanCacheHit()
}
