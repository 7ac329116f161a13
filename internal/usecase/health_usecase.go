package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Pinger is a dependency whose reachability is reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports the state of the service's backing stores.
type HealthChecker interface {
	Check(ctx context.Context) (map[string]string, error)
}

type healthUseCase struct {
	deps    map[string]Pinger
	timeout time.Duration
}

// NewHealthChecker creates a HealthChecker over the named dependencies.
func NewHealthChecker(deps map[string]Pinger) HealthChecker {
	return &healthUseCase{deps: deps, timeout: 2 * time.Second}
}

// Check pings every dependency and marks each "healthy" or "unhealthy". The
// error combines every failed ping.
func (uc *healthUseCase) Check(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	status := make(map[string]string, len(uc.deps))
	var errs error
	for name, dep := range uc.deps {
		if err := dep.Ping(ctx); err != nil {
			status[name] = "unhealthy"
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		status[name] = "healthy"
	}
	return status, errs
}
