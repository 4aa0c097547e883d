// Package otel exports taskhub metrics: an OpenTelemetry meter provider read by
// a Prometheus registry, plus the workflow instruments in metrics.go.
package otel

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelglobal "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const meterName = "github.com/CodehubPriyanshu/taskhub-central-sub000"

// Provider is the installed meter provider and the /metrics handler that
// serves it.
type Provider struct {
	Handler http.Handler
	mp      *sdkmetric.MeterProvider
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.mp == nil {
		return nil
	}
	return p.mp.Shutdown(ctx)
}

// InitMeterProvider installs a global MeterProvider exporting to a private
// Prometheus registry that also carries Go runtime and process collectors.
// instance, when set, becomes the service.instance.id resource attribute so
// several homes on one host stay distinguishable.
func InitMeterProvider(ctx context.Context, serviceName, instance string) (*Provider, error) {
	if serviceName == "" {
		serviceName = "taskhub"
	}
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if instance != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(instance))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...), resource.WithHost())
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otelglobal.SetMeterProvider(mp)
	return &Provider{
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}),
		mp:      mp,
	}, nil
}

// Meter returns the taskhub meter from the global provider.
func Meter() metric.Meter {
	return otelglobal.Meter(meterName)
}

// Attribute keys shared by the instruments.
var (
	AttrOp     = attribute.Key("op")
	AttrResult = attribute.Key("result")
	AttrStatus = attribute.Key("status")
)
