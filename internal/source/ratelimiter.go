package source

import (
	"context"

	"golang.org/x/time/rate"
)

// limiterWrapper gates outbound requests this process makes to an upstream
// API, matching the rate the ingestion loop this was built from enforces
// by sleeping between calls. Unlike the engine's own per-IP inbound
// limiter, this is a single shared bucket, not one per caller.
type limiterWrapper struct {
	l *rate.Limiter
}

// newLimiterWrapper builds a token-bucket limiter allowing `requests`
// outbound calls per `periodSeconds`, with a burst of one so consecutive
// calls are spaced periodSeconds/requests apart.
func newLimiterWrapper(requests, periodSeconds int) *limiterWrapper {
	if requests <= 0 {
		requests = 1
	}
	if periodSeconds <= 0 {
		periodSeconds = 1
	}
	r := rate.Limit(float64(requests) / float64(periodSeconds))
	return &limiterWrapper{l: rate.NewLimiter(r, 1)}
}

func (w *limiterWrapper) wait(ctx context.Context) error {
	return w.l.Wait(ctx)
}
