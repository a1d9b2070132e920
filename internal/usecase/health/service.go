package health

import (
	"context"
	"sort"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates a provider is failing; answers will fail but the store is up.
	Degraded Status = "degraded"
	// Unhealthy indicates the vector store is unreachable.
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

// StoreCheck is the name of the vector store check.
const StoreCheck = "vector_store"

// DefaultCheckTimeout bounds each individual check.
const DefaultCheckTimeout = 3 * time.Second

// Report aggregates health check results. Records is -1 when the store
// could not be counted.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	Records int
}

// Service coordinates health checks.
type Service struct {
	store     StorePinger
	providers map[string]ProviderChecker
	timeout   time.Duration
}

// New creates a Service. providers maps check names ("embedding",
// "generation") to checkers; nil entries are skipped.
func New(store StorePinger, providers map[string]ProviderChecker) *Service {
	return &Service{store: store, providers: providers, timeout: DefaultCheckTimeout}
}

// WithTimeout overrides the per-check timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.providers)+1)
	records := -1

	storeErr := s.run(ctx, s.store.Ping)
	if storeErr != nil {
		checks[StoreCheck] = CheckError
	} else {
		checks[StoreCheck] = CheckOK
		_ = s.run(ctx, func(ctx context.Context) error {
			n, err := s.store.Count(ctx)
			if err == nil {
				records = n
			}
			return err
		})
	}

	names := make([]string, 0, len(s.providers))
	for name, p := range s.providers {
		if p != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	status := Healthy
	for _, name := range names {
		if err := s.run(ctx, s.providers[name].HealthCheck); err != nil {
			checks[name] = CheckError
			status = Degraded
		} else {
			checks[name] = CheckOK
		}
	}
	if storeErr != nil {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks, Records: records}
}

func (s *Service) run(ctx context.Context, check func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return check(ctx)
}
