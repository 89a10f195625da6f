package readiness

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/joeycumines/go-readiness"

// dispatcherMetrics holds the instruments recorded by a Dispatcher.
type dispatcherMetrics struct {
	callbacks     metric.Int64Counter
	failures      metric.Int64Counter
	idle          metric.Int64Counter
	registrations metric.Int64UpDownCounter
	modeAttrs     [ModeAsync + 1]metric.AddOption
}

func newDispatcherMetrics(provider metric.MeterProvider) (*dispatcherMetrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	m := provider.Meter(instrumentationName)

	var (
		x   dispatcherMetrics
		err error
	)

	x.callbacks, err = m.Int64Counter(
		"readiness.dispatcher.callbacks",
		metric.WithDescription("Total callbacks invoked"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating callbacks counter: %w", err)
	}

	x.failures, err = m.Int64Counter(
		"readiness.dispatcher.failures",
		metric.WithDescription("Total callbacks that returned an error or panicked"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}

	x.idle, err = m.Int64Counter(
		"readiness.dispatcher.idle",
		metric.WithDescription("Total passes over sync channels that invoked no callback"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating idle counter: %w", err)
	}

	x.registrations, err = m.Int64UpDownCounter(
		"readiness.dispatcher.registrations",
		metric.WithDescription("Current number of registered channels"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating registrations counter: %w", err)
	}

	for _, mode := range [...]Mode{ModeSync, ModeAsync} {
		x.modeAttrs[mode] = metric.WithAttributes(attribute.String("mode", mode.String()))
	}

	return &x, nil
}

func (x *dispatcherMetrics) callback(mode Mode, err error) {
	x.callbacks.Add(context.Background(), 1, x.modeAttrs[mode])
	if err != nil {
		x.failures.Add(context.Background(), 1, x.modeAttrs[mode])
	}
}
