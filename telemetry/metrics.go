package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metricOpt, counterOpt, and float64CounterOpt wrap a set of attributes into
// the recording options each instrument kind expects, keeping call sites
// free of the WithAttributeSet boilerplate.
func metricOpt(attrs []attribute.KeyValue) metric.RecordOption {
	return metric.WithAttributeSet(attribute.NewSet(attrs...))
}

func counterOpt(attrs []attribute.KeyValue) metric.AddOption {
	return metric.WithAttributeSet(attribute.NewSet(attrs...))
}

func float64CounterOpt(attrs []attribute.KeyValue) metric.AddOption {
	return metric.WithAttributeSet(attribute.NewSet(attrs...))
}
