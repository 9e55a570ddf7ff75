package health

import (
	"context"

	"go.uber.org/zap"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component (database, embeddings) is failing.
	Degraded Status = "degraded"
	// Unhealthy indicates the completion provider is failing and no run can succeed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used as Report.Checks keys.
const (
	ComponentCompletion = "completion"
	ComponentEmbedding  = "embedding"
	ComponentDatabase   = "database"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks. Components left unset are not reported.
type Service struct {
	db         DBPinger
	completion Checker
	embedding  Checker
	logger     *zap.Logger
}

// New creates a Service.
func New(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger}
}

// WithDatabase adds the Redis ping.
func (s *Service) WithDatabase(db DBPinger) *Service {
	s.db = db
	return s
}

// WithCompletion adds the completion provider check.
func (s *Service) WithCompletion(c Checker) *Service {
	s.completion = c
	return s
}

// WithEmbedding adds the embedding provider check.
func (s *Service) WithEmbedding(e Checker) *Service {
	s.embedding = e
	return s
}

// Check runs health checks against all configured components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	record := func(name string, err error, fatal bool) {
		if err == nil {
			checks[name] = CheckOK
			return
		}
		s.logger.Warn("Health check failed", zap.String("component", name), zap.Error(err))
		checks[name] = CheckError
		switch {
		case fatal:
			status = Unhealthy
		case status == Healthy:
			status = Degraded
		}
	}

	if s.completion != nil {
		record(ComponentCompletion, s.completion.HealthCheck(ctx), true)
	}
	if s.embedding != nil {
		record(ComponentEmbedding, s.embedding.HealthCheck(ctx), false)
	}
	if s.db != nil {
		record(ComponentDatabase, s.db.Ping(ctx), false)
	}

	return Report{Status: status, Checks: checks}
}
