package api

import (
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InstallTracerProvider registers a sampling SDK provider globally so request
// spans carry real trace and span ids into the logs. No exporter is attached;
// callers shut the provider down on exit.
func InstallTracerProvider() *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	return tp
}
