package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Meter returns the application meter from the global provider. Before Init it is a no-op meter.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Counter is a named int64 counter that tolerates instrument creation failures.
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter creates a counter on the application meter
func NewCounter(name, description string) *Counter {
	c, err := Meter().Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return &Counter{}
	}
	return &Counter{counter: c}
}

// Add increments the counter, tagging it with string attribute pairs (key, value, key, value...)
func (c *Counter) Add(ctx context.Context, n int64, kv ...string) {
	if c == nil || c.counter == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, attribute.String(kv[i], kv[i+1]))
	}
	c.counter.Add(ctx, n, metric.WithAttributes(attrs...))
}

// RegisterGauges registers float64 observable gauges whose values are read from read on each collection.
func RegisterGauges(read func() map[string]float64, names ...string) error {
	meter := Meter()
	gauges := make(map[string]metric.Float64ObservableGauge, len(names))
	observables := make([]metric.Observable, 0, len(names))
	for _, name := range names {
		g, err := meter.Float64ObservableGauge(name)
		if err != nil {
			return err
		}
		gauges[name] = g
		observables = append(observables, g)
	}

	_, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		values := read()
		for name, g := range gauges {
			o.ObserveFloat64(g, values[name])
		}
		return nil
	}, observables...)
	return err
}
