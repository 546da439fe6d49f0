// Package keelotel records container activity as OpenTelemetry metrics.
//
//	m, err := keelotel.New(otel.GetMeterProvider())
//	if err != nil {
//		return err
//	}
//	c := keel.New(m.Options()...)
//
// Every instrument carries the service identity and an outcome attribute;
// failures also carry the keel error code.
package keelotel

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/danpasecinic/keel"
)

const (
	DefaultMeterName = "github.com/danpasecinic/keel"

	ServiceKey   = attribute.Key("keel.service")
	OutcomeKey   = attribute.Key("keel.outcome")
	ErrorCodeKey = attribute.Key("keel.error.code")
	PhaseKey     = attribute.Key("keel.phase")
)

type Option func(*config)

type config struct {
	meterName string
	attrs     []attribute.KeyValue
}

func WithMeterName(name string) Option {
	return func(c *config) {
		c.meterName = name
	}
}

// WithAttributes adds attributes to every recorded measurement, for example
// the container name.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(c *config) {
		c.attrs = append(c.attrs, attrs...)
	}
}

type Metrics struct {
	attrs []attribute.KeyValue

	resolves        metric.Int64Counter
	resolveDuration metric.Float64Histogram
	registrations   metric.Int64Counter
	hooks           metric.Int64Counter
	hookDuration    metric.Float64Histogram
	probes          metric.Int64Counter
	probeDuration   metric.Float64Histogram
}

func New(mp metric.MeterProvider, opts ...Option) (*Metrics, error) {
	cfg := &config{meterName: DefaultMeterName}
	for _, opt := range opts {
		opt(cfg)
	}

	meter := mp.Meter(cfg.meterName)
	m := &Metrics{attrs: cfg.attrs}

	var err error
	if m.resolves, err = meter.Int64Counter(
		"keel.resolve.count",
		metric.WithDescription("Service resolutions, including cache hits"),
		metric.WithUnit("{resolution}"),
	); err != nil {
		return nil, err
	}
	if m.resolveDuration, err = meter.Float64Histogram(
		"keel.resolve.duration",
		metric.WithDescription("Time spent resolving a service"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.registrations, err = meter.Int64Counter(
		"keel.provide.count",
		metric.WithDescription("Services registered"),
		metric.WithUnit("{service}"),
	); err != nil {
		return nil, err
	}
	if m.hooks, err = meter.Int64Counter(
		"keel.hook.count",
		metric.WithDescription("Lifecycle hook runs by phase"),
		metric.WithUnit("{hook}"),
	); err != nil {
		return nil, err
	}
	if m.hookDuration, err = meter.Float64Histogram(
		"keel.hook.duration",
		metric.WithDescription("Time spent in start and stop hooks"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.probes, err = meter.Int64Counter(
		"keel.health.count",
		metric.WithDescription("Health probes run"),
		metric.WithUnit("{probe}"),
	); err != nil {
		return nil, err
	}
	if m.probeDuration, err = meter.Float64Histogram(
		"keel.health.duration",
		metric.WithDescription("Health probe latency"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// Options wires the instruments into a container.
func (m *Metrics) Options() []keel.Option {
	return []keel.Option{
		keel.WithResolveObserver(m.observeResolve),
		keel.WithProvideObserver(m.observeProvide),
		keel.WithStartObserver(m.observeHook("start")),
		keel.WithStopObserver(m.observeHook("stop")),
		keel.WithHealthObserver(m.observeProbe),
	}
}

func (m *Metrics) observeResolve(key string, d time.Duration, err error) {
	set := m.attributes(key, err)
	ctx := context.Background()
	m.resolves.Add(ctx, 1, set)
	m.resolveDuration.Record(ctx, d.Seconds(), set)
}

func (m *Metrics) observeProvide(key string) {
	m.registrations.Add(context.Background(), 1, m.attributes(key, nil))
}

func (m *Metrics) observeHook(phase string) func(string, time.Duration, error) {
	return func(key string, d time.Duration, err error) {
		set := m.attributes(key, err, PhaseKey.String(phase))
		ctx := context.Background()
		m.hooks.Add(ctx, 1, set)
		m.hookDuration.Record(ctx, d.Seconds(), set)
	}
}

func (m *Metrics) observeProbe(key string, d time.Duration, err error) {
	set := m.attributes(key, err)
	ctx := context.Background()
	m.probes.Add(ctx, 1, set)
	m.probeDuration.Record(ctx, d.Seconds(), set)
}

func (m *Metrics) attributes(key string, err error, extra ...attribute.KeyValue) metric.MeasurementOption {
	attrs := make([]attribute.KeyValue, 0, len(m.attrs)+len(extra)+3)
	attrs = append(attrs, m.attrs...)
	attrs = append(attrs, extra...)
	attrs = append(attrs, ServiceKey.String(key))

	if err == nil {
		attrs = append(attrs, OutcomeKey.String("ok"))
		return metric.WithAttributes(attrs...)
	}

	attrs = append(attrs, OutcomeKey.String("error"))
	var e *keel.Error
	if errors.As(err, &e) {
		attrs = append(attrs, ErrorCodeKey.String(e.Code.String()))
	}
	return metric.WithAttributes(attrs...)
}
