// Package tracing builds the OpenTelemetry tracer provider used by the
// services. Finished spans are written to the run log.
package tracing

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// LogProcessor logs every ended span at debug level.
type LogProcessor struct {
	log *zap.Logger
}

var _ sdktrace.SpanProcessor = (*LogProcessor)(nil)

// NewLogProcessor returns a processor writing to log.
func NewLogProcessor(log *zap.Logger) *LogProcessor {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogProcessor{log: log.Named("trace")}
}

func (p *LogProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *LogProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	fields := []zap.Field{
		zap.String("trace_id", s.SpanContext().TraceID().String()),
		zap.String("span_id", s.SpanContext().SpanID().String()),
		zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
	}
	for _, kv := range s.Attributes() {
		fields = append(fields, zap.String(string(kv.Key), kv.Value.Emit()))
	}
	if st := s.Status(); st.Description != "" {
		fields = append(fields, zap.String("error", st.Description))
	}
	p.log.Debug(s.Name(), fields...)
}

func (p *LogProcessor) Shutdown(context.Context) error   { return nil }
func (p *LogProcessor) ForceFlush(context.Context) error { return nil }

// NewProvider returns a provider that samples every span and hands it to a
// LogProcessor.
func NewProvider(log *zap.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(NewLogProcessor(log)),
	)
}
