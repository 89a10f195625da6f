package readiness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type (
	recordingMeterProvider struct {
		noop.MeterProvider
		meter *recordingMeter
	}

	recordingMeter struct {
		noop.Meter
		mu     sync.Mutex
		totals map[string]int64
	}

	recordingCounter struct {
		noop.Int64Counter
		meter *recordingMeter
		name  string
	}

	recordingUpDownCounter struct {
		noop.Int64UpDownCounter
		meter *recordingMeter
		name  string
	}
)

func newRecordingMeterProvider() *recordingMeterProvider {
	return &recordingMeterProvider{meter: &recordingMeter{totals: make(map[string]int64)}}
}

func (x *recordingMeterProvider) Meter(string, ...metric.MeterOption) metric.Meter {
	return x.meter
}

func (x *recordingMeter) Int64Counter(name string, _ ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return &recordingCounter{meter: x, name: name}, nil
}

func (x *recordingMeter) Int64UpDownCounter(name string, _ ...metric.Int64UpDownCounterOption) (metric.Int64UpDownCounter, error) {
	return &recordingUpDownCounter{meter: x, name: name}, nil
}

func (x *recordingMeter) add(name string, v int64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.totals[name] += v
}

func (x *recordingMeter) total(name string) int64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.totals[name]
}

func (x *recordingCounter) Add(_ context.Context, v int64, _ ...metric.AddOption) {
	x.meter.add(x.name, v)
}

func (x *recordingUpDownCounter) Add(_ context.Context, v int64, _ ...metric.AddOption) {
	x.meter.add(x.name, v)
}

func TestDispatcher_metrics(t *testing.T) {
	provider := newRecordingMeterProvider()
	d := newTestDispatcher(t, WithMeterProvider(provider))

	tm := NewTimer(time.Millisecond)
	var calls int
	require.NoError(t, d.Add(tm, ModeSync, func() error {
		calls++
		if calls == 3 {
			return tm.Close()
		}
		return nil
	}))
	q := NewQueue[int]()
	q.Write(1)
	require.NoError(t, AddMessage(d, q, ModeSync, func(int) error { return ErrClosed }))
	assert.Equal(t, int64(2), provider.meter.total(`readiness.dispatcher.registrations`))

	assert.ErrorIs(t, d.Run(context.Background()), ErrClosed)
	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, Channel(tm), d.LastChannel())
	d.Stop()

	assert.Equal(t, int64(0), provider.meter.total(`readiness.dispatcher.registrations`))
	assert.Equal(t, int64(1), provider.meter.total(`readiness.dispatcher.failures`))
	assert.Greater(t, provider.meter.total(`readiness.dispatcher.callbacks`), int64(3))
	assert.Equal(t, 3, calls)
	assert.Greater(t, provider.meter.total(`readiness.dispatcher.idle`), int64(0))
}
