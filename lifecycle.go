package keel

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/danpasecinic/keel/internal/container"
)

type Hook func(ctx context.Context) error

// Shutdowner is detected on constructed instances that have no WithOnStop
// hook. Shutdown(), Shutdown() error and Shutdown(ctx) are accepted too.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// ShutdownReport lists the services visited by Shutdown. Order holds them in
// visit order; Errors maps each one to the error its teardown produced, nil
// on success.
type ShutdownReport struct {
	Order    []string
	Errors   map[string]error
	Duration time.Duration
}

func newShutdownReport(r *container.ShutdownReport) *ShutdownReport {
	report := &ShutdownReport{
		Order:    r.Order,
		Errors:   make(map[string]error, len(r.Errors)),
		Duration: r.Duration,
	}
	for key, err := range r.Errors {
		report.Errors[key] = translate(err)
	}
	return report
}

func (r *ShutdownReport) Succeeded() bool {
	for _, err := range r.Errors {
		if err != nil {
			return false
		}
	}
	return true
}

// Failed returns the services whose teardown failed, in visit order.
func (r *ShutdownReport) Failed() []string {
	var failed []string
	for _, key := range r.Order {
		if r.Errors[key] != nil {
			failed = append(failed, key)
		}
	}
	return failed
}

func (r *ShutdownReport) Err() error {
	var err error
	for _, key := range r.Order {
		err = multierr.Append(err, r.Errors[key])
	}
	return err
}
