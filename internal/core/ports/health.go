package ports

import "context"

// HealthChecker is one dependency probed by GET /health. Ping returns
// nil when healthy; Name labels the entry in the response.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}
