package keel

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/danpasecinic/keel/internal/container"
	"github.com/danpasecinic/keel/internal/reflect"
)

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusUnknown   HealthStatus = "unknown"
	HealthStatusTimedOut  HealthStatus = "timed_out"
)

type HealthReport struct {
	Name    string
	Status  HealthStatus
	Error   error
	Latency time.Duration
}

func (r HealthReport) Failed() bool {
	return r.Status == HealthStatusUnhealthy || r.Status == HealthStatusTimedOut
}

// HealthChecker is detected on constructed instances that have no
// WithHealthCheck probe. HealthCheck() error is accepted too.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

func newHealthReport(r container.HealthResult) HealthReport {
	return HealthReport{
		Name:    r.Key,
		Status:  HealthStatus(r.Status),
		Error:   translate(r.Err),
		Latency: r.Latency,
	}
}

// CheckAll probes every constructed service concurrently. Services without a
// probe are reported as unknown, services not built yet are left out.
func (c *Container) CheckAll(ctx context.Context) map[string]HealthReport {
	results := c.internal.CheckAll(ctx)
	reports := make(map[string]HealthReport, len(results))
	for key, result := range results {
		reports[key] = newHealthReport(result)
	}
	return reports
}

// Health is CheckAll sorted by service name.
func (c *Container) Health(ctx context.Context) []HealthReport {
	results := c.CheckAll(ctx)
	reports := make([]HealthReport, 0, len(results))
	for _, r := range results {
		reports = append(reports, r)
	}
	slices.SortFunc(reports, func(a, b HealthReport) int {
		return strings.Compare(a.Name, b.Name)
	})
	return reports
}

// Live fails with the first unhealthy or timed out service.
func (c *Container) Live(ctx context.Context) error {
	for _, r := range c.Health(ctx) {
		if r.Failed() {
			return errHealthCheckFailed(r.Name, r.Error)
		}
	}
	return nil
}

func HealthCheck[T any](ctx context.Context, c *Container) (HealthReport, error) {
	return healthCheck(ctx, c, reflect.TypeKey[T]())
}

func HealthCheckNamed[T any](ctx context.Context, c *Container, name string) (HealthReport, error) {
	return healthCheck(ctx, c, reflect.TypeKeyNamed[T](name))
}

func healthCheck(ctx context.Context, c *Container, key string) (HealthReport, error) {
	result, err := c.internal.Check(ctx, key)
	if err != nil {
		return HealthReport{}, translate(err)
	}
	return newHealthReport(result), nil
}
