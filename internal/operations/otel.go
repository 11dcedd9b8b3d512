package operations

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"salescli/internal/infrastructure"
	"salescli/pkg/contracts/domain"
)

const (
	TracerName = "salescli.pipeline"
)

// RunTracer provides OpenTelemetry instrumentation for pipeline runs
type RunTracer struct {
	tracer          trace.Tracer
	businessMetrics *infrastructure.BusinessMetrics
}

// NewRunTracer creates a run tracer. With nil providers spans go to the
// global tracer and metrics to a no-op meter.
func NewRunTracer(providers *infrastructure.OTelProviders) (*RunTracer, error) {
	var (
		tracer trace.Tracer
		meter  metric.Meter
	)
	if providers != nil {
		tracer, meter = providers.Tracer, providers.Meter
	}
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}

	businessMetrics, err := infrastructure.CreateBusinessMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	return &RunTracer{
		tracer:          tracer,
		businessMetrics: businessMetrics,
	}, nil
}

// TraceRun creates the root span of a run
func (rt *RunTracer) TraceRun(ctx context.Context, runID, input string) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.input", input),
		),
	)
}

// TraceStage creates a child span for one stage
func (rt *RunTracer) TraceStage(ctx context.Context, runID, stageID string) (context.Context, trace.Span) {
	return rt.tracer.Start(ctx, "pipeline."+stageID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("stage.id", stageID),
		),
	)
}

// RecordStageCompletion ends the stage span and records its duration
func (rt *RunTracer) RecordStageCompletion(ctx context.Context, span trace.Span, stageID string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(
		attribute.String("stage.status", status),
		attribute.Float64("stage.duration_seconds", duration.Seconds()),
	)

	rt.businessMetrics.StageDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("stage", stageID),
			attribute.String("status", status),
		),
	)
	span.End()
}

// RecordRows records rows read by the loader and rows removed by the cleaner
func (rt *RunTracer) RecordRows(ctx context.Context, state *RunState) {
	if state.Dataset != nil {
		rt.businessMetrics.RowsLoaded.Add(ctx, int64(state.Dataset.Len()))
	}
	if c := state.Clean; c != nil {
		reasons := map[string]int{
			"duplicate": c.DuplicatesRemoved,
			"coercion":  c.CoercionFailures,
			"missing":   c.MissingDropped,
		}
		for reason, n := range reasons {
			if n > 0 {
				rt.businessMetrics.RowsDropped.Add(ctx, int64(n),
					metric.WithAttributes(attribute.String("reason", reason)))
			}
		}
	}
}

// RecordReport counts produced and failed artifacts by type
func (rt *RunTracer) RecordReport(ctx context.Context, result *domain.ReportResult) {
	if result == nil {
		return
	}
	for _, a := range result.Artifacts {
		rt.businessMetrics.ArtifactsProduced.Add(ctx, 1,
			metric.WithAttributes(attribute.String("artifact", string(a.Kind)+":"+a.Type)))
	}
	for _, f := range result.Failures {
		rt.businessMetrics.ArtifactsFailed.Add(ctx, 1,
			metric.WithAttributes(attribute.String("artifact", f.Request.Name())))
	}
}

// RecordRunCompletion ends the run span and records the outcome
func (rt *RunTracer) RecordRunCompletion(ctx context.Context, span trace.Span, status domain.RunStatus, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("status", string(status)))
	rt.businessMetrics.RunsTotal.Add(ctx, 1, attrs)
	rt.businessMetrics.RunDuration.Record(ctx, duration.Seconds(), attrs)

	span.SetAttributes(
		attribute.String("run.status", string(status)),
		attribute.Float64("run.duration_seconds", duration.Seconds()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
