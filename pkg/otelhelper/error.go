package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks the span failed and records the failure as a journey_error
// event carrying any identifying attributes.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("journey_error", trace.WithAttributes(
		attrs...,
	))
}

// SetStepError records a step dispatch failure with the failing step's
// identity attached to the error event.
func SetStepError(span trace.Span, err error, executionID, stepID string, attempt int) {
	SetError(span, err,
		attribute.String(ExecutionIDKey, executionID),
		attribute.String(StepIDKey, stepID),
		attribute.Int(AttemptKey, attempt),
	)
}
