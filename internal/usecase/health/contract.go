package health

import "context"

// DBPinger checks Redis availability when the redis retrieval backend is configured.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker checks a model provider's availability.
type Checker interface {
	HealthCheck(ctx context.Context) error
}
