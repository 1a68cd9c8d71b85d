package experiment

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of driver spans.
const TracerName = "cvfold.experiment"

func startRunSpan(ctx context.Context, tracer trace.Tracer, runID string, nSamples, nSplits int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "experiment.Run",
		trace.WithAttributes(
			attribute.String("cv.run_id", runID),
			attribute.Int("data.samples", nSamples),
			attribute.Int("cv.n_splits", nSplits),
		),
	)
}

func startFoldSpan(ctx context.Context, tracer trace.Tracer, fold, trainSize, validSize int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "experiment.Fold",
		trace.WithAttributes(
			attribute.Int("fold.index", fold),
			attribute.Int("fold.train_size", trainSize),
			attribute.Int("fold.valid_size", validSize),
		),
	)
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
